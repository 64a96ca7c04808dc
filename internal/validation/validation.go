// Package validation provides input validation functions.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrProjectNameEmpty is returned when project name is empty.
	ErrProjectNameEmpty = errors.New("project name is required")
	// ErrProjectNameTooLong is returned when project name exceeds 100 characters.
	ErrProjectNameTooLong = errors.New("project name must be at most 100 characters")
	// ErrProjectNameInvalidChars is returned when project name contains characters unsafe for URLs.
	ErrProjectNameInvalidChars = errors.New("project name can only contain letters, numbers, hyphens, and underscores")

	// ErrSecretKeyEmpty is returned when secret key is empty.
	ErrSecretKeyEmpty = errors.New("secret key is required")
	// ErrSecretKeyTooLong is returned when secret key exceeds 255 characters.
	ErrSecretKeyTooLong = errors.New("secret key must be at most 255 characters")
	// ErrSecretKeyInvalidFormat is returned when secret key is not a valid env var name.
	ErrSecretKeyInvalidFormat = errors.New("secret key must be a valid environment variable name (start with letter or underscore, contain only letters, numbers, and underscores)")

	// ErrDescriptionTooLong is returned when description exceeds 500 characters.
	ErrDescriptionTooLong = errors.New("description must be at most 500 characters")

	// ErrDeviceNameTooLong is returned when device name exceeds 100 characters.
	ErrDeviceNameTooLong = errors.New("device name must be at most 100 characters")
	// ErrTagTooLong is returned when a device tag exceeds 100 characters.
	ErrTagTooLong = errors.New("tags must be at most 100 characters each")
)

var (
	projectNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	secretKeyRegex   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ProjectName validates a project name.
// Rules: 1-100 characters, letters, numbers, hyphens and underscores.
func ProjectName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrProjectNameEmpty
	}
	if len(name) > 100 {
		return ErrProjectNameTooLong
	}
	if !projectNameRegex.MatchString(name) {
		return ErrProjectNameInvalidChars
	}
	return nil
}

// ProjectDescription validates a project description.
// Rules: 0-500 characters.
func ProjectDescription(desc string) error {
	if len(desc) > 500 {
		return ErrDescriptionTooLong
	}
	return nil
}

// SecretKey validates a secret key.
// Rules: 1-255 characters, valid environment variable name format.
func SecretKey(key string) error {
	if key == "" {
		return ErrSecretKeyEmpty
	}
	if len(key) > 255 {
		return ErrSecretKeyTooLong
	}
	if !secretKeyRegex.MatchString(key) {
		return ErrSecretKeyInvalidFormat
	}
	return nil
}

// DeviceName validates an optional device display name.
func DeviceName(name string) error {
	if len(name) > 100 {
		return ErrDeviceNameTooLong
	}
	return nil
}

// Tags validates a device tag list.
func Tags(tags []string) error {
	for _, tag := range tags {
		if len(tag) > 100 {
			return ErrTagTooLong
		}
	}
	return nil
}
