// Package query compiles idShort paths into backend operations.
//
// Compile turns a parsed path into two artefacts:
//
//   - a WriteLocator: a dotted key over the submodel's top-level element
//     array with one array-filter placeholder per Name segment and literal
//     positions for Index segments, e.g.
//     submodelElements.$[elem0].value.$[elem1].value.2
//   - a read Pipeline of abstract operations (match the container, unwind
//     the top level, match the root name, then per segment unwind both
//     child slots, match name or skip to index, and re-root).
//
// Element kinds are not known at compile time, so every nested step
// unwinds both "value" (Collection children, List items) and
// "statements" (Entity). An element only ever populates one of them, so
// the final coalesce that prefers "value" is never a real choice.
//
// Backends either translate the Pipeline into their native query language
// or run it with Evaluate over decoded JSON documents.
package query
