// Package upload stores avatar images in S3-compatible object storage.
//
// The Engine depends only on the [Uploader] interface; [S3Uploader] is the
// production implementation. Stored objects are addressed by an opaque
// storage key (kept on the account as the avatar public id), which is what
// registration compensation uses to delete an orphaned upload.
//
// # What this package must NOT do
//
//   - Decide upload policy (size limits, allowed types); the Engine does.
//   - Touch the account store.
package upload
