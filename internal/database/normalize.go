package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a person name for search (lowercase, no diacritics,
// dashes and underscores as spaces, collapsed whitespace).
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// FilterProfilesByName keeps profiles whose normalized name or identity ID contains
// the normalized query. An empty query keeps everything.
func FilterProfilesByName(profiles []Profile, query string) []Profile {
	q := NormalizeName(query)
	if q == "" {
		return profiles
	}
	var out []Profile
	for _, p := range profiles {
		if strings.Contains(NormalizeName(p.Name), q) || strings.Contains(NormalizeName(p.IdentityID), q) {
			out = append(out, p)
		}
	}
	return out
}
