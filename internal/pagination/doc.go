// Package pagination implements keyset cursor pagination shared by every
// listing operation.
//
// A cursor is the key of the last item already delivered, never an
// offset. A Source answers "the first n items whose key comes after the
// cursor"; Paginate asks it for one item more than the limit to decide
// whether a next cursor exists.
//
// Pages are stable under insertions and deletions after the cursor
// position. Insertions or deletions before the cursor while a client is
// paging may cause items to be skipped or repeated; there is no snapshot.
package pagination
