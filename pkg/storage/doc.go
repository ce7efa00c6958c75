// Package storage presigns object-store URLs for submission file access.
//
// The service never proxies file bytes. A client asking for a submission
// file hits the signing sub-path, the enforcement middleware checks the
// request against the submission's permissions, and this package hands
// back a short-lived presigned S3 URL for the client to use directly.
package storage
