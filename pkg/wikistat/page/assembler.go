// Package page assembles page records from raw <page> spans.
package page

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/cognicore/wikistat/pkg/wikistat/ingest"
	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/links"
	"github.com/cognicore/wikistat/pkg/wikistat/markup"
)

var (
	titlePattern = regexp.MustCompile(`<title>(.*?)</title>`)
	idPattern    = regexp.MustCompile(`<id>\s*(\d+)\s*</id>`)
	// Lazy: the shortest span between the open and close text tags. A
	// self-closing text tag is an empty body.
	textPattern = regexp.MustCompile(`(?s)<text\b[^>]*?(?:/>|>(.*?)</text>)`)
)

// Assembler turns one raw page into a Record: Cleaner, then Tokenizer and
// ranking, then link normalization. It keeps no mutable state, so a single
// Assembler serves all workers.
type Assembler struct {
	cleaner   *markup.Cleaner
	tokenizer *ingest.Tokenizer
	topN      int
}

// NewAssembler creates an assembler returning at most topN words per page.
func NewAssembler(cleaner *markup.Cleaner, tokenizer *ingest.Tokenizer, topN int) *Assembler {
	return &Assembler{
		cleaner:   cleaner,
		tokenizer: tokenizer,
		topN:      topN,
	}
}

// Assemble parses raw page text. A missing or empty title is a warning. A
// page without a text element fails with internalerr.ErrBodyMissing; the
// returned Parsed still carries the title and id for reporting.
func (a *Assembler) Assemble(raw []byte) (Parsed, error) {
	text := string(raw)
	var parsed Parsed

	if m := titlePattern.FindStringSubmatch(text); m != nil {
		parsed.Record.Title = strings.TrimSpace(html.UnescapeString(m[1]))
	}
	if parsed.Record.Title == "" {
		parsed.Warnings = append(parsed.Warnings, Warning{
			Kind:   internalerr.KindTitleMissing,
			Detail: internalerr.ErrTitleMissing.Error(),
		})
	}

	if m := idPattern.FindStringSubmatch(text); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			parsed.Record.ID = id
		}
	}

	m := textPattern.FindStringSubmatch(text)
	if m == nil {
		return parsed, fmt.Errorf("page %q: %w", parsed.Record.Title, internalerr.ErrBodyMissing)
	}

	cleaned := a.cleaner.Clean(m[1])
	parsed.Record.TopWords = a.tokenizer.Rank(cleaned.PlainText, a.topN)

	normalized, ambiguous := links.Normalize(cleaned.RawLinks)
	parsed.Record.Links = normalized
	for _, target := range ambiguous {
		parsed.Warnings = append(parsed.Warnings, Warning{
			Kind:   internalerr.KindLinkEscapeAmbiguous,
			Detail: target,
		})
	}

	return parsed, nil
}
