// Package s3 provides a client for S3-compatible object storage.
//
// It is the transport behind the S3 credential store: the control plane
// coordinator writes the join credential as a single object and workers
// read it back. Missing objects and buckets are reported as ErrNotFound so
// callers can tell "not published yet" apart from storage failures.
package s3
