// Package dump extracts complete <page> records from a dump stream read in
// fixed-size windows.
package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
)

// DefaultChunkSize is the window size used when none is given.
const DefaultChunkSize = 1 << 20

var (
	pageOpen  = []byte("<page>")
	pageClose = []byte("</page>")
)

// RawPage is one complete <page>…</page> span. Data is a private copy; the
// Reader keeps no reference to it.
type RawPage struct {
	Seq    uint64 // document order, from 0
	Offset int64  // absolute byte offset of "<page>" in the dump
	Data   []byte
}

// IncompleteError reports a page record still open when the dump ended. The
// partial bytes are discarded.
type IncompleteError struct {
	Offset int64
	Size   int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("dropped %d bytes of unterminated page at offset %d", e.Size, e.Offset)
}

func (e *IncompleteError) Unwrap() error { return internalerr.ErrBoundaryIncomplete }

// Stats reports reader progress.
type Stats struct {
	BytesRead int64
	Pages     uint64
}

// Reader yields pages in file order. It is not safe for concurrent use: one
// goroutine owns it for the whole run.
//
// The carried buffer holds either nothing of interest (at most a partial
// "<page>" marker) or exactly one open record starting at buf[0]. It never
// holds a complete record when Next returns, so memory stays bounded by the
// window size plus the longest record.
type Reader struct {
	r     io.Reader
	chunk int

	buf  []byte
	base int64 // dump offset of buf[0]
	open bool  // buf starts with "<page>"
	scan int   // close-marker search resumes here

	eof  bool
	err  error
	seq  uint64
	read int64
}

// NewReader creates a reader over r using windows of chunkSize bytes.
func NewReader(r io.Reader, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{r: r, chunk: chunkSize}
}

// Next returns the next complete page. At the end of the dump it returns
// io.EOF, preceded by one *IncompleteError if a record was left open. Read
// failures wrap internalerr.ErrDumpIO and are returned by every later call.
func (d *Reader) Next(ctx context.Context) (RawPage, error) {
	if d.err != nil {
		return RawPage{}, d.err
	}
	for {
		if err := ctx.Err(); err != nil {
			return RawPage{}, err
		}
		if page, ok := d.extract(); ok {
			return page, nil
		}
		if d.eof {
			return RawPage{}, d.finish()
		}
		if err := d.fill(); err != nil {
			d.err = err
			return RawPage{}, err
		}
	}
}

// Stats returns bytes read and pages emitted so far.
func (d *Reader) Stats() Stats {
	return Stats{BytesRead: d.read, Pages: d.seq}
}

func (d *Reader) extract() (RawPage, bool) {
	if !d.open {
		i := bytes.Index(d.buf, pageOpen)
		if i < 0 {
			keep := min(len(pageOpen)-1, len(d.buf))
			d.discard(len(d.buf) - keep)
			return RawPage{}, false
		}
		d.discard(i)
		d.open = true
		d.scan = len(pageOpen)
	}

	j := bytes.Index(d.buf[d.scan:], pageClose)
	if j < 0 {
		d.scan = max(len(pageOpen), len(d.buf)-len(pageClose)+1)
		return RawPage{}, false
	}

	end := d.scan + j + len(pageClose)
	page := RawPage{
		Seq:    d.seq,
		Offset: d.base,
		Data:   bytes.Clone(d.buf[:end]),
	}
	d.seq++
	d.discard(end)
	d.open = false
	d.scan = 0
	return page, true
}

func (d *Reader) discard(n int) {
	d.buf = d.buf[n:]
	d.base += int64(n)
	if len(d.buf) == 0 && cap(d.buf) > 4*d.chunk {
		d.buf = nil
	}
}

// fill appends one window to the buffer, growing it by doubling.
func (d *Reader) fill() error {
	if cap(d.buf)-len(d.buf) < d.chunk {
		grown := make([]byte, len(d.buf), max(2*cap(d.buf), len(d.buf)+d.chunk))
		copy(grown, d.buf)
		d.buf = grown
	}

	start := len(d.buf)
	n, err := io.ReadFull(d.r, d.buf[start:start+d.chunk])
	d.buf = d.buf[:start+n]
	d.read += int64(n)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		d.eof = true
		return nil
	default:
		return fmt.Errorf("read dump at offset %d: %w: %w", d.read, internalerr.ErrDumpIO, err)
	}
}

func (d *Reader) finish() error {
	if d.open && len(d.buf) > 0 {
		err := &IncompleteError{Offset: d.base, Size: len(d.buf)}
		d.base += int64(len(d.buf))
		d.buf = nil
		d.open = false
		return err
	}
	d.buf = nil
	return io.EOF
}
