package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugBase bounds the readable part of a slug, before the hash suffix.
const MaxSlugBase = 80

var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// FoldASCII strips diacritics ("Café" -> "Cafe").
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify lowercases, folds, hyphenates and truncates s to max characters.
func Slugify(s string, max int) string {
	s = strings.ToLower(FoldASCII(s))
	s = reNonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if max > 0 && len(s) > max {
		s = strings.TrimRight(s[:max], "-")
	}
	return s
}

// IdentityHash is a short deterministic hash of the given parts.
func IdentityHash(parts ...string) string {
	cleaned := make([]string, len(parts))
	for i, p := range parts {
		cleaned[i] = strings.ToLower(CollapseSpace(p))
	}
	sum := md5.Sum([]byte(strings.Join(cleaned, "|")))
	return hex.EncodeToString(sum[:])[:6]
}

// Slug builds "<name>-<city>-<state>-<hash>", where the hash covers name, city and state.
func Slug(name, city, state string) string {
	base := Slugify(strings.Join([]string{name, city, state}, " "), MaxSlugBase)
	suffix := IdentityHash(name, city, state)
	if base == "" {
		return "provider-" + suffix
	}
	return base + "-" + suffix
}
