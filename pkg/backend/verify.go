package backend

import (
	"context"
	"fmt"
)

// VersioningEnabled is the bucket versioning status required before a bucket
// may hold estate state.
const VersioningEnabled = "Enabled"

// ObjectClient captures the minimal object-storage operations verification
// needs. The production implementation wraps the S3 API; tests substitute
// fakes.
type ObjectClient interface {
	BucketVersioning(ctx context.Context, bucket string) (string, error)
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// VersioningError reports a bucket whose versioning is not enabled.
type VersioningError struct {
	Bucket string
	Status string
}

func (e *VersioningError) Error() string {
	status := e.Status
	if status == "" {
		status = "unknown"
	}
	return fmt.Sprintf("bucket %q must enable versioning (status: %s)", e.Bucket, status)
}

// PermissionProbeError reports a failed write/delete probe against the
// bucket.
type PermissionProbeError struct {
	Phase  string // "write" or "cleanup"
	Bucket string
	Key    string
	Err    error
}

func (e *PermissionProbeError) Error() string {
	if e.Phase == "cleanup" {
		return fmt.Sprintf("bucket permissions cleanup failed after write probe (bucket %q, key %q): %v", e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("bucket permissions check failed (bucket %q, key %q): %v", e.Bucket, e.Key, e.Err)
}

func (e *PermissionProbeError) Unwrap() error {
	return e.Err
}

// VerifyBucket confirms the bucket is safe to hold state: versioning must be
// enabled, and a zero-byte probe object at the reserved key must be writable
// and deletable. The probe object is never left behind.
func VerifyBucket(ctx context.Context, client ObjectClient, bucket, keyPrefix, keySuffix string) error {
	status, err := client.BucketVersioning(ctx, bucket)
	if err != nil {
		return fmt.Errorf(
			"versioning check failed: unable to query bucket %q; verify credentials, endpoint, and network connectivity: %w",
			bucket, err)
	}
	if status != VersioningEnabled {
		return &VersioningError{Bucket: bucket, Status: status}
	}

	probeKey := ObjectKey(keyPrefix, keySuffix) + "." + ProbeSuffix
	if err := client.PutObject(ctx, bucket, probeKey, nil); err != nil {
		return &PermissionProbeError{Phase: "write", Bucket: bucket, Key: probeKey, Err: err}
	}
	if err := client.DeleteObject(ctx, bucket, probeKey); err != nil {
		return &PermissionProbeError{Phase: "cleanup", Bucket: bucket, Key: probeKey, Err: err}
	}
	return nil
}
