package catalog

import (
	"path"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// Slug transliterates s to ASCII, lower-cases it and joins alphanumeric
// runs with '-'.
func Slug(s string) string {
	ascii := strings.ToLower(unidecode.Unidecode(s))

	var b strings.Builder
	b.Grow(len(ascii))
	pendingDash := false
	for _, r := range ascii {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// IDForPath derives the public id of a store path: the slug of the path
// without its extension.
func IDForPath(name string) string {
	trimmed := strings.TrimPrefix(name, "/")
	return Slug(strings.TrimSuffix(trimmed, path.Ext(trimmed)))
}

// titleForPath uses the base name without extension, NFC-normalised so
// decomposed names from macOS volumes compare equal.
func titleForPath(name string) string {
	base := path.Base(name)
	return norm.NFC.String(strings.TrimSpace(strings.TrimSuffix(base, path.Ext(base))))
}
