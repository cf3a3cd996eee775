package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeObjectClient records probe traffic and simulates bucket behavior.
type fakeObjectClient struct {
	status     string
	statusErr  error
	putErr     error
	deleteErr  error
	putKeys    []string
	deleteKeys []string
}

func (c *fakeObjectClient) BucketVersioning(_ context.Context, _ string) (string, error) {
	return c.status, c.statusErr
}

func (c *fakeObjectClient) PutObject(_ context.Context, _, key string, _ []byte) error {
	if c.putErr != nil {
		return c.putErr
	}
	c.putKeys = append(c.putKeys, key)
	return nil
}

func (c *fakeObjectClient) DeleteObject(_ context.Context, _, key string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleteKeys = append(c.deleteKeys, key)
	return nil
}

func TestVerifyBucketVersioningEnabled(t *testing.T) {
	client := &fakeObjectClient{status: "Enabled"}
	err := VerifyBucket(context.Background(), client, "df12-tfstate", "estates/df12/main", "terraform.tfstate")
	if err != nil {
		t.Fatalf("VerifyBucket failed: %v", err)
	}

	wantKey := "estates/df12/main/terraform.tfstate." + ProbeSuffix
	if len(client.putKeys) != 1 || client.putKeys[0] != wantKey {
		t.Errorf("put keys = %v, want [%s]", client.putKeys, wantKey)
	}
	// The probe object must not be left behind.
	if len(client.deleteKeys) != 1 || client.deleteKeys[0] != wantKey {
		t.Errorf("delete keys = %v, want [%s]", client.deleteKeys, wantKey)
	}
}

func TestVerifyBucketVersioningSuspended(t *testing.T) {
	client := &fakeObjectClient{status: "Suspended"}
	err := VerifyBucket(context.Background(), client, "df12-tfstate", "p", "s")
	var versioning *VersioningError
	if !errors.As(err, &versioning) {
		t.Fatalf("expected VersioningError, got %v", err)
	}
	if !strings.Contains(err.Error(), "must enable versioning") {
		t.Errorf("message = %q, want versioning remedy", err.Error())
	}
	if !strings.Contains(err.Error(), "Suspended") {
		t.Errorf("message = %q, want status included", err.Error())
	}
	if len(client.putKeys) != 0 {
		t.Error("probe ran despite versioning failure")
	}
}

func TestVerifyBucketUnknownStatus(t *testing.T) {
	client := &fakeObjectClient{status: ""}
	err := VerifyBucket(context.Background(), client, "df12-tfstate", "p", "s")
	if err == nil || !strings.Contains(err.Error(), "status: unknown") {
		t.Errorf("expected unknown status in message, got %v", err)
	}
}

func TestVerifyBucketVersioningQueryFailure(t *testing.T) {
	client := &fakeObjectClient{statusErr: fmt.Errorf("connection refused")}
	err := VerifyBucket(context.Background(), client, "df12-tfstate", "p", "s")
	if err == nil || !strings.Contains(err.Error(), "versioning check failed") {
		t.Errorf("expected query failure message, got %v", err)
	}
}

func TestVerifyBucketProbeFailures(t *testing.T) {
	tests := []struct {
		name      string
		client    *fakeObjectClient
		wantPhase string
	}{
		{
			name:      "put denied",
			client:    &fakeObjectClient{status: "Enabled", putErr: fmt.Errorf("access denied")},
			wantPhase: "write",
		},
		{
			name:      "delete denied",
			client:    &fakeObjectClient{status: "Enabled", deleteErr: fmt.Errorf("access denied")},
			wantPhase: "cleanup",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyBucket(context.Background(), tt.client, "df12-tfstate", "p", "s")
			var probe *PermissionProbeError
			if !errors.As(err, &probe) {
				t.Fatalf("expected PermissionProbeError, got %v", err)
			}
			if probe.Phase != tt.wantPhase {
				t.Errorf("phase = %q, want %q", probe.Phase, tt.wantPhase)
			}
		})
	}
}
