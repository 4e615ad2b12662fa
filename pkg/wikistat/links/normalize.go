// Package links turns raw link targets into canonical page identifiers.
package links

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/cognicore/wikistat/pkg/wikistat/markup"
)

const ampersandEscape = "&amp;"

// NormalizeTarget canonicalizes one raw link target. The ampersand escape
// becomes the word "and", remaining entities are decoded and whitespace runs
// collapse to one space. ambiguous reports a semicolon left after decoding,
// which usually means an escape this function does not understand; the
// decoded target is returned either way.
func NormalizeTarget(raw string) (target string, ambiguous bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ampersandEscape, "and")
	s = html.UnescapeString(s)
	s = strings.Join(strings.Fields(s), " ")
	return s, strings.ContainsRune(s, ';')
}

// Normalize canonicalizes every raw link in order. Duplicates are kept.
// Targets flagged by NormalizeTarget are listed in ambiguous as well as in
// out.
func Normalize(raw []markup.RawLink) (out []string, ambiguous []string) {
	out = make([]string, 0, len(raw))
	for _, l := range raw {
		target, amb := NormalizeTarget(l.Target)
		if target == "" {
			continue
		}
		out = append(out, target)
		if amb {
			ambiguous = append(ambiguous, target)
		}
	}
	return out, ambiguous
}

// URLEnding returns the wiki URL path ending for a page title: spaces become
// underscores and the first letter is upper-cased.
func URLEnding(title string) string {
	title = strings.Join(strings.Fields(title), "_")
	if title == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(r)) + title[size:]
}
