// Package image manages keeper-uploaded photos.
//
// Metadata (title, caption, content type) lives in SQLite; the image bytes
// live in an S3-compatible object store under profiles/{profileID}/images/.
// Deleting the metadata row and the stored object are separate operations
// coordinated by the API layer.
package image
