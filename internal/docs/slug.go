package docs

import "strings"

const maxSlugLen = 50

// Slugify converts a title into a URL-safe slug.
// "Retry Policy ADR" becomes "retry-policy-adr".
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	slug = b.String()

	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		// Cut at a word boundary when one falls in the back half.
		if idx := strings.LastIndex(slug, "-"); idx > maxSlugLen/2 {
			slug = slug[:idx]
		}
		slug = strings.Trim(slug, "-")
	}

	if slug == "" {
		return "untitled"
	}
	return slug
}
