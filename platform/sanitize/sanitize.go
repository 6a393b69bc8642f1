// Package sanitize provides text sanitization utilities.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var separatorRegex = regexp.MustCompile(`[\s_\-]+`)

// Text prepares provider-supplied text for storage without altering what the
// sender wrote: surrounding whitespace is trimmed, ill-formed UTF-8 becomes
// U+FFFD and NUL bytes, which Postgres text columns reject, are dropped.
// Markup is kept verbatim; escaping belongs to whoever renders it.
func Text(s string) string {
	t := transform.Chain(runes.ReplaceIllFormed(), runes.Remove(runes.Predicate(func(r rune) bool { return r == 0 })))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "�")
	}
	return strings.TrimSpace(out)
}

// StatusKey folds a free-text lifecycle status into a comparison key:
// accents removed, lower-case, runs of spaces/underscores/hyphens collapsed
// into a single space. "Não_Preencheu-Formulário" becomes "nao preencheu formulario".
func StatusKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	folded = separatorRegex.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}
