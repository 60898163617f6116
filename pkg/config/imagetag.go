package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// DefaultImageTag is used outside CI when no image tag is given.
const DefaultImageTag = "latest"

// ErrImageTagRequired is returned when a CI run does not name the image tag to deploy.
var ErrImageTagRequired = errors.New("imageTag is required in CI: pass --image-tag or set the imageTag stack config")

// IsCI reports whether the process runs in a continuous integration environment.
// Any non-empty CI value other than a false boolean counts.
func IsCI() bool {
	value := strings.TrimSpace(os.Getenv("CI"))
	if value == "" {
		return false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return true
}

// ResolveImageTag returns tag when set. Otherwise it fails in CI and falls
// back to DefaultImageTag everywhere else.
func ResolveImageTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag != "" {
		return tag, nil
	}
	if IsCI() {
		return "", ErrImageTagRequired
	}
	return DefaultImageTag, nil
}
