// Package filerepo stores the binary attachments of File elements.
//
// Three implementations share the Repository interface:
//   - Filesystem: one file per key under a root directory, with a JSON
//     sidecar carrying the original file name and content type
//   - S3: objects in a MinIO or S3 bucket via minio-go
//   - Memory: an in-process map for tests and ephemeral deployments
//
// Keys are opaque, flat strings chosen by the caller. They must not
// contain path separators.
package filerepo
