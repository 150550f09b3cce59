// Package s3 implements blobstore.BlobStore for Amazon S3.
//
// Store streams large artifacts (the document ledger and index blob) through
// the s3/manager uploader. DDBCommitStore layers DynamoDB conditional writes
// on top so that the CURRENT manifest pointer is updated atomically; plain S3
// PUTs lack the compare-and-swap semantics needed when two writers race.
package s3
