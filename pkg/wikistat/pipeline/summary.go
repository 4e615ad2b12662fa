package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
)

// Summary reports the outcome of one run.
type Summary struct {
	PagesRead    uint64
	PagesWritten uint64
	BytesRead    int64
	Issues       map[internalerr.Kind]uint64
	PeakQueued   int
	Duration     time.Duration
}

// IssueCount is the total of all per-kind counts.
func (s Summary) IssueCount() uint64 {
	var n uint64
	for _, c := range s.Issues {
		n += c
	}
	return n
}

// Failed reports whether any record was rejected by the sink.
func (s Summary) Failed() bool {
	return s.Issues[internalerr.KindSink] > 0
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "read %s pages (%s), wrote %s in %s",
		humanize.Comma(int64(s.PagesRead)),
		humanize.Bytes(uint64(max(s.BytesRead, 0))),
		humanize.Comma(int64(s.PagesWritten)),
		s.Duration.Round(time.Millisecond))

	var parts []string
	for _, kind := range internalerr.Kinds {
		if n := s.Issues[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", kind, n))
		}
	}
	if n := s.Issues[internalerr.KindUnknown]; n > 0 {
		parts = append(parts, fmt.Sprintf("%s=%d", internalerr.KindUnknown, n))
	}
	if len(parts) > 0 {
		b.WriteString("; issues: ")
		b.WriteString(strings.Join(parts, " "))
	}
	return b.String()
}

type tally struct {
	mu     sync.Mutex
	counts map[internalerr.Kind]uint64
}

func newTally() *tally {
	return &tally{counts: make(map[internalerr.Kind]uint64)}
}

func (t *tally) add(kind internalerr.Kind) {
	t.mu.Lock()
	t.counts[kind]++
	t.mu.Unlock()
}

func (t *tally) snapshot() map[internalerr.Kind]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[internalerr.Kind]uint64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}
