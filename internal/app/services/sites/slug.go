package sites

import (
	"regexp"
	"strings"
)

const maxSlugLength = 60

var (
	handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,29}$`)
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	slug := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// NormalizeHandle lowercases and trims a site handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// ValidHandle reports whether handle is a normalized, well formed handle.
func ValidHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

// ValidSlug reports whether slug is a well formed page slug.
func ValidSlug(slug string) bool {
	return len(slug) <= maxSlugLength && slugPattern.MatchString(slug)
}
