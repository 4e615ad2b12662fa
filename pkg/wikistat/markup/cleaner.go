// Package markup turns the wiki markup of one page body into plain text and
// the list of link targets found in it.
package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// RawLink is a link target as written in the markup, before normalization.
type RawLink struct {
	Target string
	Text   string
}

// Result is the output of Clean.
type Result struct {
	PlainText string
	RawLinks  []RawLink
}

// DefaultIgnoredSections are the trailing sections excluded from analysis
// when no list is configured.
var DefaultIgnoredSections = []string{
	"See also",
	"References",
	"External links",
	"Further reading",
	"Notes",
}

var (
	residualTemplates = regexp.MustCompile(`(?s)\{\s?\{.*?\}\s?\}`)

	// Only well-formed tags match: a name, then name=value attributes.
	tags = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9]*(?:\s+[A-Za-z_:][-\w:.]*\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'<>]+))*\s*/?>`)
)

// Cleaner strips markup from page bodies. It holds only read-only state and
// is safe for concurrent use.
type Cleaner struct {
	sections []string
	cutoff   *regexp.Regexp
}

// NewCleaner creates a cleaner that drops everything from the first heading
// named in sections to the end of the body.
func NewCleaner(sections []string) *Cleaner {
	c := &Cleaner{sections: append([]string(nil), sections...)}

	var names []string
	for _, s := range sections {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		names = append(names, regexp.QuoteMeta(s))
	}
	if len(names) > 0 {
		c.cutoff = regexp.MustCompile(`(?i)={2,}[ \t]*(?:` + strings.Join(names, "|") + `)[ \t]*={2,}`)
	}
	return c
}

// Sections returns the ignored heading names.
func (c *Cleaner) Sections() []string {
	return append([]string(nil), c.sections...)
}

// Clean truncates body at the first ignored heading, resolves the markup to
// plain text, and collects the raw link targets of the truncated body.
// Headings inside comments do not truncate.
func (c *Cleaner) Clean(body string) Result {
	if strings.TrimSpace(body) == "" {
		return Result{}
	}

	body = c.Truncate(uncomment(body))
	text, links := parseWikitext(body)
	text = residualTemplates.ReplaceAllString(text, "")
	text = stripTags(text)

	return Result{
		PlainText: strings.TrimSpace(text),
		RawLinks:  links,
	}
}

// Truncate returns body up to the first ignored heading, or body unchanged
// when none matches.
func (c *Cleaner) Truncate(body string) string {
	if c.cutoff == nil {
		return body
	}
	if loc := c.cutoff.FindStringIndex(body); loc != nil {
		return body[:loc[0]]
	}
	return body
}

// stripTags drops tag markup and decodes entities. A lone '<' that does not
// open a well-formed tag is kept as text. Self-closing tags become a space.
func stripTags(s string) string {
	if strings.Contains(s, "<") {
		s = tags.ReplaceAllStringFunc(s, func(tag string) string {
			if strings.HasSuffix(tag, "/>") {
				return " "
			}
			return ""
		})
	}
	return html.UnescapeString(s)
}
