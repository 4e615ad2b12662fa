package ingest

import (
	"strings"
	"unicode"

	"github.com/cognicore/wikistat/pkg/wikistat/stoplist"
)

// Tokenizer handles text tokenization and normalization
type Tokenizer struct {
	stopwords *stoplist.Set
}

// NewTokenizer creates a new tokenizer with the given stopword set.
// A nil set filters nothing.
func NewTokenizer(stopwords *stoplist.Set) *Tokenizer {
	return &Tokenizer{stopwords: stopwords}
}

// Tokenize lowercases text, drops every rune that is neither a word rune nor
// whitespace, splits on whitespace runs and removes stopwords.
//
// Punctuation is deleted, not treated as a separator: "rock-and-roll" becomes
// the single token "rockandroll".
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		word := current.String()
		current.Reset()
		if t.stopwords.IsStop(word) {
			return
		}
		tokens = append(tokens, word)
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isWordRune(r):
			current.WriteRune(unicode.ToLower(r))
		}
	}
	flush()

	return tokens
}

// Rank returns the n most frequent tokens of text.
func (t *Tokenizer) Rank(text string, n int) []string {
	return TopN(t.Tokenize(text), n)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}
