package domain

import (
	"path/filepath"
	"strings"
)

// =============================================================================
// Application Name Derivation
// =============================================================================

// Slugify converts a name to a valid application name.
//
// The transformation rules are:
//   - Lowercase letters (a-z), digits and hyphens are kept as-is
//   - Uppercase letters (A-Z) are converted to lowercase
//   - Spaces, underscores and dots are converted to hyphens
//   - All other characters are removed
//   - Leading characters that are not letters are dropped
//   - The result is cut to MaxAppNameLength, without a trailing hyphen
//
// Example:
//
//	Slugify("Hello World")      // returns "hello-world"
//	Slugify("my_app.v2")        // returns "my-app-v2"
//	Slugify("2048 Game")        // returns "game"
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r == ' ' || r == '_' || r == '.':
			b.WriteRune('-')
		}
	}
	slug := strings.TrimLeftFunc(b.String(), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if len(slug) > MaxAppNameLength {
		slug = slug[:MaxAppNameLength]
	}
	return strings.TrimRight(slug, "-")
}

// AppNameFromDir derives an application name from the last element of a source directory.
func AppNameFromDir(dir string) string {
	return Slugify(filepath.Base(filepath.Clean(dir)))
}
