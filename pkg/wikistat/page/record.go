package page

import "github.com/cognicore/wikistat/pkg/wikistat/internalerr"

// Record is the normalized form of one dump page. Records are built once by
// the Assembler and never modified afterwards; consumers must not mutate the
// slices.
type Record struct {
	ID       int64    `json:"id,omitempty"`
	Title    string   `json:"title"`
	Links    []string `json:"links"`
	TopWords []string `json:"top_words"`
}

// Warning is a non-fatal issue found while assembling a record.
type Warning struct {
	Kind   internalerr.Kind
	Detail string
}

// Parsed is the output of Assemble.
type Parsed struct {
	Record   Record
	Warnings []Warning
}
