package backend

import (
	"fmt"
	"strings"
)

// RenderBackendFile produces the declarative key/value block the IaC tool
// reads via -backend-config. Provider-native region/account/credential
// auto-discovery is disabled so S3-compatible vendors work unmodified.
func RenderBackendFile(p Params) string {
	key := ObjectKey(p.KeyPrefix, p.KeySuffix)
	lines := []string{
		"# Object storage backend for the concordat estate stack.",
		"# Do not add credentials here; they are supplied via the environment.",
		fmt.Sprintf("bucket                      = %q", p.Bucket),
		fmt.Sprintf("key                         = %q", key),
		fmt.Sprintf("region                      = %q", p.Region),
		fmt.Sprintf("endpoints                   = { s3 = %q }", p.Endpoint),
		"use_path_style              = true",
		"skip_region_validation      = true",
		"skip_requesting_account_id  = true",
		"skip_credentials_validation = true",
		"",
	}
	return strings.Join(lines, "\n")
}
