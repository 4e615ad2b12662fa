package markup

import (
	"regexp"
	"strings"
)

var (
	// Dumps store tag markup XML-escaped. The ampersand escape is kept so
	// link targets reach the normalizer as written.
	structural = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`)

	comments    = regexp.MustCompile(`(?s)<!--.*?-->`)
	selfRefs    = regexp.MustCompile(`(?is)<ref\b[^>]*/>`)
	refs        = regexp.MustCompile(`(?is)<ref\b[^>]*>.*?</ref\s*>`)
	headings    = regexp.MustCompile(`(?m)^[ \t]*=+[ \t]*(.*?)[ \t]*=+[ \t]*$`)
	quoteRuns   = regexp.MustCompile(`'{2,}`)
	magicWords  = regexp.MustCompile(`__[A-Z]+__`)
	cellAttrsRe = regexp.MustCompile(`^[^|\[]*=[^|\[]*\|([^|].*)$`)
)

// hidden namespaces produce no text; their link targets are still recorded.
var hidden = map[string]bool{
	"file":     true,
	"image":    true,
	"category": true,
}

// uncomment decodes the escaped tag markup of a raw body and removes HTML
// comments in either form.
func uncomment(body string) string {
	return comments.ReplaceAllString(structural.Replace(body), "")
}

// parseWikitext resolves body to plain text and returns the wikilink targets
// in document order. body must already have passed through uncomment.
// Links inside templates and file captions are collected even though their
// text is dropped.
func parseWikitext(body string) (string, []RawLink) {
	body = selfRefs.ReplaceAllString(body, "")
	body = refs.ReplaceAllString(body, "")
	body = flattenTables(body)
	body = headings.ReplaceAllString(body, "$1")

	var p wikiParser
	var out strings.Builder
	out.Grow(len(body))
	p.parse(body, &out)

	text := quoteRuns.ReplaceAllString(out.String(), "")
	text = magicWords.ReplaceAllString(text, "")
	return text, p.links
}

type wikiParser struct {
	links []RawLink
}

// parse writes the text of s to out. A nil out collects links only.
func (p *wikiParser) parse(s string, out *strings.Builder) {
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			end := closing(s, i+2, "{{", "}}")
			if end < 0 {
				write(out, "{{")
				i += 2
				continue
			}
			p.parse(s[i+2:end], nil)
			i = end + 2

		case strings.HasPrefix(s[i:], "[["):
			end := closing(s, i+2, "[[", "]]")
			if end < 0 {
				write(out, "[[")
				i += 2
				continue
			}
			p.wikilink(s[i+2:end], out)
			i = end + 2

		case s[i] == '[' && isExternal(s[i+1:]):
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				write(out, "[")
				i++
				continue
			}
			inner := s[i+1 : i+end]
			if sp := strings.IndexAny(inner, " \t"); sp >= 0 {
				p.parse(inner[sp+1:], out)
			}
			i += end + 1

		default:
			if out != nil {
				out.WriteByte(s[i])
			}
			i++
		}
	}
}

func (p *wikiParser) wikilink(inner string, out *strings.Builder) {
	target, label, hasLabel := strings.Cut(inner, "|")
	target = strings.TrimSpace(target)
	visible := strings.HasPrefix(target, ":")
	target = strings.TrimSpace(strings.TrimPrefix(target, ":"))
	if target == "" {
		return
	}
	label = strings.TrimSpace(label)

	text := label
	if text == "" {
		text = target
	}
	p.links = append(p.links, RawLink{Target: target, Text: text})

	if !visible && hidden[namespace(target)] {
		if hasLabel {
			p.parse(label, nil)
		}
		return
	}
	if label == "" {
		write(out, target)
		return
	}
	p.parse(label, out)
}

func namespace(target string) string {
	ns, _, ok := strings.Cut(target, ":")
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(ns))
}

// closing returns the index of the close marker balancing an open marker
// that ends just before from, or -1.
func closing(s string, from int, open, close string) int {
	depth := 1
	for i := from; i+1 < len(s); {
		switch {
		case strings.HasPrefix(s[i:], open):
			depth++
			i += len(open)
		case strings.HasPrefix(s[i:], close):
			depth--
			if depth == 0 {
				return i
			}
			i += len(close)
		default:
			i++
		}
	}
	return -1
}

func isExternal(s string) bool {
	for _, scheme := range []string{"http://", "https://", "ftp://", "//"} {
		if len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme) {
			return true
		}
	}
	return false
}

func write(out *strings.Builder, s string) {
	if out != nil {
		out.WriteString(s)
	}
}

// flattenTables replaces {| … |} tables with their cell text, one row per
// line. Cell attributes (style="…" | text) are dropped.
func flattenTables(s string) string {
	if !strings.Contains(s, "{|") {
		return s
	}

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	depth := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "{|"):
			depth++
			continue
		case depth > 0 && strings.HasPrefix(trimmed, "|}"):
			depth--
			continue
		case depth == 0:
			kept = append(kept, line)
			continue
		case strings.HasPrefix(trimmed, "|-"):
			continue
		case strings.HasPrefix(trimmed, "|+"):
			kept = append(kept, cellText(trimmed[2:]))
			continue
		case strings.HasPrefix(trimmed, "|"), strings.HasPrefix(trimmed, "!"):
			parts := strings.Split(strings.ReplaceAll(trimmed[1:], "!!", "||"), "||")
			for i, c := range parts {
				parts[i] = cellText(c)
			}
			kept = append(kept, strings.Join(parts, " "))
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func cellText(cell string) string {
	if m := cellAttrsRe.FindStringSubmatch(cell); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(cell)
}
