package storage

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const objectURLScheme = "s3"

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// IsObjectURL reports whether source names an object (s3://bucket/key)
// rather than a local file.
func IsObjectURL(source string) bool {
	return strings.HasPrefix(strings.TrimSpace(source), objectURLScheme+"://")
}

// ParseObjectURL splits s3://bucket/key into its bucket and cleaned key.
func ParseObjectURL(raw string) (string, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse object url %q: %w", raw, err)
	}
	if parsed.Scheme != objectURLScheme {
		return "", "", fmt.Errorf("object url %q must use the %s:// scheme", raw, objectURLScheme)
	}
	if !bucketPattern.MatchString(parsed.Host) {
		return "", "", fmt.Errorf("invalid bucket in %q: %q", raw, parsed.Host)
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("object url %q has no key", raw)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid object key in %q", raw)
	}
	return parsed.Host, cleaned, nil
}
