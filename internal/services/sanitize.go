package services

import (
	"path"
	"strings"
)

const maxFilenameLength = 255

// allowedExtensions are compared against the lowercased extension.
var allowedExtensions = map[string]bool{
	".pdf": true,
}

// SanitizeFilename turns a caller-supplied name into a safe object-key segment.
// Path separators become '.', runs of dots collapse to one and leading dots are dropped,
// so no traversal sequence survives. Anything outside [A-Za-z0-9._-] becomes '_', and the
// base name is truncated so the result fits in 255 bytes with its extension kept.
// Sanitizing an already sanitized name returns it unchanged.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)

	var b strings.Builder
	lastDot := true
	for _, r := range name {
		if r == '/' || r == '\\' {
			r = '.'
		}
		if r == '.' {
			if !lastDot {
				b.WriteByte('.')
			}
			lastDot = true
			continue
		}
		lastDot = false
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	clean := b.String()
	if clean == "" {
		return "", &ValidationError{Field: "filename", Reason: "must not be empty"}
	}

	ext := path.Ext(clean)
	base := strings.TrimSuffix(clean, ext)
	if base == "" {
		return "", &ValidationError{Field: "filename", Reason: "must have a name before the extension"}
	}
	if !allowedExtensions[strings.ToLower(ext)] {
		return "", &ValidationError{Field: "filename", Reason: "only .pdf files are accepted"}
	}

	// Every byte is ASCII at this point, so byte truncation is safe.
	if len(clean) > maxFilenameLength {
		base = strings.TrimRight(base[:maxFilenameLength-len(ext)], ".")
		clean = base + ext
	}
	return clean, nil
}
