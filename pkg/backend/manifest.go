package backend

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// SchemaVersion is the highest manifest schema this build understands.
	SchemaVersion = 1

	// BackendDirname holds both the backend file and the manifest inside
	// the estate repository.
	BackendDirname = "backend"

	// ManifestFilename is the manifest file name under BackendDirname.
	ManifestFilename = "persistence.yaml"

	// ProbeSuffix is appended to the state object key to form the reserved
	// probe key used for permission checks.
	ProbeSuffix = "concordat-tfstate-check"

	// DefaultKeyFilename is the default state object key suffix.
	DefaultKeyFilename = "terraform.tfstate"
)

// Params are the five operator-supplied backend values.
type Params struct {
	Bucket    string `validate:"required"`
	Region    string `validate:"required"`
	Endpoint  string `validate:"required"`
	KeyPrefix string
	KeySuffix string `validate:"required"`
}

// Manifest is the side-car record describing a persisted backend,
// independent of the backend file itself.
type Manifest struct {
	SchemaVersion int       `yaml:"schema_version"`
	Bucket        string    `yaml:"bucket"`
	Region        string    `yaml:"region"`
	Endpoint      string    `yaml:"endpoint"`
	KeyPrefix     string    `yaml:"key_prefix"`
	KeySuffix     string    `yaml:"key_suffix"`
	CreatedAt     time.Time `yaml:"created_at"`
}

// Params extracts the operator-supplied values from a manifest.
func (m *Manifest) Params() Params {
	return Params{
		Bucket:    m.Bucket,
		Region:    m.Region,
		Endpoint:  m.Endpoint,
		KeyPrefix: m.KeyPrefix,
		KeySuffix: m.KeySuffix,
	}
}

// ObjectKey joins the prefix and suffix into the full state object key.
func ObjectKey(prefix, suffix string) string {
	prefix = strings.TrimRight(prefix, "/")
	suffix = strings.TrimLeft(suffix, "/")
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// NormalizeEndpoint returns the endpoint with an explicit scheme. Endpoints
// are typically supplied as bare hostnames; the storage client needs a fully
// qualified URL, so HTTPS is assumed when the scheme is omitted.
func NormalizeEndpoint(endpoint string) string {
	cleaned := strings.TrimSpace(endpoint)
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "//") {
		return "https:" + cleaned
	}
	if !strings.Contains(cleaned, "://") {
		return "https://" + cleaned
	}
	return cleaned
}

var paramsValidate = validator.New(validator.WithRequiredStructEnabled())

var paramLabels = map[string]string{
	"Bucket":    "Bucket",
	"Region":    "Region",
	"Endpoint":  "Endpoint",
	"KeySuffix": "Key suffix",
}

// Validate checks required fields, path safety, and the endpoint scheme.
// HTTP endpoints are rejected unless allowInsecure is set.
func (p Params) Validate(allowInsecure bool) error {
	if err := paramsValidate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			label := paramLabels[verrs[0].StructField()]
			if label == "" {
				label = verrs[0].StructField()
			}
			return fmt.Errorf("%s is required", label)
		}
		return err
	}
	if strings.TrimSpace(p.KeySuffix) == "" {
		return fmt.Errorf("Key suffix is required")
	}
	if hasTraversal(p.KeyPrefix) {
		return fmt.Errorf("Key prefix may not include directory traversals")
	}
	if hasTraversal(p.KeySuffix) {
		return fmt.Errorf("Key suffix may not include directory traversals")
	}
	return p.validateEndpoint(allowInsecure)
}

func (p Params) validateEndpoint(allowInsecure bool) error {
	endpoint := strings.TrimSpace(p.Endpoint)
	if _, err := url.Parse(endpoint); err != nil {
		return fmt.Errorf("Endpoint %q is not a valid URL: %w", endpoint, err)
	}
	if strings.HasPrefix(endpoint, "https://") {
		return nil
	}
	if allowInsecure && strings.HasPrefix(endpoint, "http://") {
		return nil
	}
	return fmt.Errorf("Endpoint must use HTTPS (for example, https://s3.example.com)")
}

func hasTraversal(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}
