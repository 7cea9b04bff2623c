package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a name normalizes to nothing.
const Fallback = "listing"

// MaxLength bounds the base part so suffixed candidates fit the column.
const MaxLength = 80

// Normalize turns a business name into a lower-case, hyphenated base slug.
// Accents are folded ("Café Zürich" -> "cafe-zurich"), runs of anything that
// is not a letter or digit collapse into a single hyphen.
func Normalize(name string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range norm.NFKD.String(name) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining marks left over from NFKD decomposition
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingHyphen = true
		}
	}

	s := b.String()
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	if s == "" {
		return Fallback
	}
	return s
}

// Candidate returns the slug to try on the given 1-based attempt:
// base, base-2, base-3, ...
func Candidate(base string, attempt int) string {
	if attempt <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(attempt)
}
