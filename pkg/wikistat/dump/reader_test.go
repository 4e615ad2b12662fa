package dump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
)

func buildDump(pages int) (string, []string) {
	var b strings.Builder
	b.WriteString("<mediawiki xmlns=\"http://www.mediawiki.org/xml/export-0.10/\">\n")
	b.WriteString("  <siteinfo><sitename>Test</sitename></siteinfo>\n")
	var want []string
	for i := 0; i < pages; i++ {
		body := strings.Repeat(fmt.Sprintf("word%d ", i), i%7+1)
		p := fmt.Sprintf("<page>\n    <title>Page %d</title>\n    <id>%d</id>\n    <revision><text xml:space=\"preserve\">%s [[Link %d]]</text></revision>\n  </page>", i, i+1, body, i)
		want = append(want, p)
		b.WriteString("  ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("</mediawiki>\n")
	return b.String(), want
}

func readAll(t *testing.T, r *Reader) ([]RawPage, error) {
	t.Helper()
	var pages []RawPage
	for {
		p, err := r.Next(context.Background())
		if err != nil {
			return pages, err
		}
		pages = append(pages, p)
	}
}

func TestReaderBoundaryIndependence(t *testing.T) {
	input, want := buildDump(50)

	var reference []RawPage
	for _, size := range []int{1, 3, 7, 64, 1 << 10, 10 << 20} {
		t.Run(fmt.Sprintf("chunk=%d", size), func(t *testing.T) {
			pages, err := readAll(t, NewReader(strings.NewReader(input), size))
			require.ErrorIs(t, err, io.EOF)
			require.Len(t, pages, len(want))

			for i, p := range pages {
				assert.Equal(t, want[i], string(p.Data))
				assert.Equal(t, uint64(i), p.Seq)
				assert.Equal(t, int64(strings.Index(input, want[i])), p.Offset)
			}
			if reference == nil {
				reference = pages
			} else {
				assert.Equal(t, reference, pages)
			}
		})
	}
}

func TestReaderRecordSplitAcrossWindows(t *testing.T) {
	page := "<page><title>Split</title><text>body</text></page>"
	whole, err := readAll(t, NewReader(strings.NewReader(page), len(page)))
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, whole, 1)

	// The closing tag straddles the first window edge.
	split, err := readAll(t, NewReader(strings.NewReader(page), len(page)-3))
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, split, 1)

	assert.Equal(t, whole, split)
}

func TestReaderOpenMarkerSplitAcrossWindows(t *testing.T) {
	input := "xxxx<page>a</page>"
	pages, err := readAll(t, NewReader(strings.NewReader(input), 6))
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, pages, 1)
	assert.Equal(t, "<page>a</page>", string(pages[0].Data))
	assert.Equal(t, int64(4), pages[0].Offset)
}

func TestReaderIncompleteTail(t *testing.T) {
	input := "<page>a</page>\n<page><title>cut"
	r := NewReader(strings.NewReader(input), 4)

	p, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<page>a</page>", string(p.Data))

	_, err = r.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrBoundaryIncomplete))
	var inc *IncompleteError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, int64(15), inc.Offset)
	assert.Equal(t, len("<page><title>cut"), inc.Size)

	_, err = r.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderNoPages(t *testing.T) {
	for _, input := range []string{"", "<mediawiki></mediawiki>", "<pag"} {
		pages, err := readAll(t, NewReader(strings.NewReader(input), 2))
		assert.ErrorIs(t, err, io.EOF)
		assert.Empty(t, pages)
	}
}

func TestReaderReadErrorIsFatal(t *testing.T) {
	boom := errors.New("disk on fire")
	src := io.MultiReader(strings.NewReader("<page>a</page><page>b</page>"), iotest.ErrReader(boom))
	r := NewReader(src, 4)

	p, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<page>a</page>", string(p.Data))

	var readErr error
	for i := 0; i < 10 && readErr == nil; i++ {
		_, readErr = r.Next(context.Background())
	}
	require.Error(t, readErr)
	assert.ErrorIs(t, readErr, internalerr.ErrDumpIO)
	assert.ErrorIs(t, readErr, boom)

	_, again := r.Next(context.Background())
	assert.Equal(t, readErr, again)
}

func TestReaderHonorsContext(t *testing.T) {
	input, _ := buildDump(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(strings.NewReader(input), 16).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaderBoundedBuffer(t *testing.T) {
	input, want := buildDump(200)
	longest := 0
	for _, p := range want {
		longest = max(longest, len(p))
	}

	const chunk = 64
	r := NewReader(strings.NewReader(input), chunk)
	peak := 0
	for {
		_, err := r.Next(context.Background())
		peak = max(peak, cap(r.buf))
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}
	assert.LessOrEqual(t, peak, 2*(chunk+longest)+chunk)
	assert.Equal(t, int64(len(input)), r.Stats().BytesRead)
	assert.Equal(t, uint64(200), r.Stats().Pages)
}
