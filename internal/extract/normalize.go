// Package extract turns a provider attempt's raw text and entity hints into
// candidate field values with provenance-aware confidence.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reRuleNoise  = regexp.MustCompile(`(?m)^\s*[_\-=]{3,}\s*$`)
)

// foldMarks strips combining marks after NFD decomposition, so OCR output
// with stray diacritics still matches the ASCII recognizers.
var foldMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize collapses noisy whitespace and common OCR artifacts while
// keeping line structure, which the block recognizers depend on.
func Normalize(s string) string {
	if s == "" {
		return s
	}

	if folded, _, err := transform.String(foldMarks, s); err == nil {
		s = folded
	}

	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reRuleNoise.ReplaceAllString(s, "")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
