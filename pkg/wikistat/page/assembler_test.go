package page

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/wikistat/pkg/wikistat/ingest"
	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/markup"
	"github.com/cognicore/wikistat/pkg/wikistat/stoplist"
)

func newAssembler(topN int) *Assembler {
	return NewAssembler(
		markup.NewCleaner(markup.DefaultIgnoredSections),
		ingest.NewTokenizer(stoplist.English()),
		topN,
	)
}

const samplePage = `<page>
    <title>Rock &amp; Roll</title>
    <ns>0</ns>
    <id>42</id>
    <revision>
      <id>9001</id>
      <text bytes="120" xml:space="preserve">'''Rock''' music is [[Music genre|music]]. Rock rock [[Rock &amp; Roll]] guitar guitar drums.
{{Infobox genre|origin=[[United States]]}}
== See also ==
[[Blues]] blues blues blues
</text>
    </revision>
  </page>`

func TestAssembleFullPage(t *testing.T) {
	parsed, err := newAssembler(3).Assemble([]byte(samplePage))
	require.NoError(t, err)

	rec := parsed.Record
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "Rock & Roll", rec.Title)
	assert.Equal(t, []string{"rock", "music", "guitar"}, rec.TopWords)
	assert.Equal(t, []string{"Music genre", "Rock and Roll", "United States"}, rec.Links)
	assert.Empty(t, parsed.Warnings)
}

func TestAssembleMissingTitle(t *testing.T) {
	parsed, err := newAssembler(5).Assemble([]byte(`<page><text>alpha beta alpha</text></page>`))
	require.NoError(t, err)

	assert.Equal(t, "", parsed.Record.Title)
	assert.Equal(t, []string{"alpha", "beta"}, parsed.Record.TopWords)
	require.Len(t, parsed.Warnings, 1)
	assert.Equal(t, internalerr.KindTitleMissing, parsed.Warnings[0].Kind)
}

func TestAssembleMissingBody(t *testing.T) {
	parsed, err := newAssembler(5).Assemble([]byte(`<page><title>Orphan</title></page>`))

	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrBodyMissing))
	assert.Equal(t, "Orphan", parsed.Record.Title)
	assert.Nil(t, parsed.Record.TopWords)
	assert.Nil(t, parsed.Record.Links)
}

func TestAssembleSelfClosingText(t *testing.T) {
	parsed, err := newAssembler(5).Assemble([]byte(`<page><title>Empty</title><text bytes="0" /></page>`))
	require.NoError(t, err)

	assert.Empty(t, parsed.Record.TopWords)
	assert.Empty(t, parsed.Record.Links)
}

func TestAssembleLazyBodyMatch(t *testing.T) {
	raw := `<page><title>T</title><text>first body</text><text>second body</text></page>`

	parsed, err := newAssembler(5).Assemble([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "body"}, parsed.Record.TopWords)
}

func TestAssembleAmbiguousLinkWarning(t *testing.T) {
	raw := `<page><title>T</title><text>see [[Foo;Bar]]</text></page>`

	parsed, err := newAssembler(5).Assemble([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []string{"Foo;Bar"}, parsed.Record.Links)
	require.Len(t, parsed.Warnings, 1)
	assert.Equal(t, internalerr.KindLinkEscapeAmbiguous, parsed.Warnings[0].Kind)
	assert.Equal(t, "Foo;Bar", parsed.Warnings[0].Detail)
}

func TestAssembleIsDeterministic(t *testing.T) {
	a := newAssembler(10)
	first, err := a.Assemble([]byte(samplePage))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := a.Assemble([]byte(samplePage))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
