package util

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Slugify lowercases name, folds accents and collapses every run of
// characters outside [a-z0-9] into a single hyphen.
func Slugify(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
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

// RandomSuffix returns n random base36 characters.
func RandomSuffix(n int) string {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(base36)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			out[i] = base36[i%len(base36)]
			continue
		}
		out[i] = base36[idx.Int64()]
	}
	return string(out)
}

// WithSuffix appends a random base36 suffix to slug.
func WithSuffix(slug string) string {
	return slug + "-" + RandomSuffix(6)
}
