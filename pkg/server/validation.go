package server

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxContentLength = 5000
	MaxPathLength    = 4096
	MaxImportLength  = 10 << 20 // 10 MiB of XML text
)

// ValidateContent validates entity content. Any printable text is allowed,
// including newlines and tabs; other control characters are rejected because
// they cannot survive the XML round trip.
func ValidateContent(content string) error {
	if !utf8.ValidString(content) {
		return fmt.Errorf("content contains invalid UTF-8 characters")
	}

	if len(content) > MaxContentLength {
		return fmt.Errorf("content exceeds maximum length of %d bytes", MaxContentLength)
	}

	for _, r := range content {
		if r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		if r < 32 || r == 127 {
			return fmt.Errorf("content contains control characters")
		}
	}

	return nil
}

// ValidatePath validates a graph file path.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if !utf8.ValidString(path) {
		return fmt.Errorf("path contains invalid UTF-8 characters")
	}

	if len(path) > MaxPathLength {
		return fmt.Errorf("path exceeds maximum length of %d bytes", MaxPathLength)
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}

	return nil
}

// ValidateImportXML bounds the size of an import_xml payload before the
// decoder sees it.
func ValidateImportXML(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("xml cannot be empty")
	}

	if len(text) > MaxImportLength {
		return fmt.Errorf("xml exceeds maximum length of %d bytes", MaxImportLength)
	}

	return nil
}
