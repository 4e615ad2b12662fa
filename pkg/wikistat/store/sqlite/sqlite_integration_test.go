package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/page"
	"github.com/cognicore/wikistat/pkg/wikistat/store"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func startRun(t *testing.T, st store.Store) string {
	t.Helper()
	id := store.NewRunID()
	require.NoError(t, st.StartRun(context.Background(), store.Run{
		ID:        id,
		DumpPath:  "dump.xml",
		StartedAt: time.Now(),
		Status:    store.RunRunning,
	}))
	return id
}

func TestSQLiteWriteAndGetPage(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)
	runID := startRun(t, st)

	rec := page.Record{
		ID:       42,
		Title:    "Rock and Roll",
		Links:    []string{"Blues", "Jazz", "Blues"},
		TopWords: []string{"rock", "music", "guitar"},
	}
	require.NoError(t, st.WritePage(ctx, runID, rec))

	got, found, err := st.GetPage(ctx, "Rock and Roll")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)

	_, found, err = st.GetPage(ctx, "Missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteUpsertByTitle(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)
	runID := startRun(t, st)

	require.NoError(t, st.WritePage(ctx, runID, page.Record{Title: "A", Links: []string{"x", "y"}, TopWords: []string{"w1", "w2"}}))
	require.NoError(t, st.WritePage(ctx, runID, page.Record{Title: "A", Links: []string{"z"}}))

	got, found, err := st.GetPage(ctx, "A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"z"}, got.Links)
	assert.Empty(t, got.TopWords)

	n, err := st.CountPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteUntitledPagesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)
	runID := startRun(t, st)

	require.NoError(t, st.WritePage(ctx, runID, page.Record{TopWords: []string{"a"}}))
	require.NoError(t, st.WritePage(ctx, runID, page.Record{TopWords: []string{"b"}}))

	n, err := st.CountPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)
	runID := startRun(t, st)

	finished := time.Now()
	require.NoError(t, st.FinishRun(ctx, store.Run{
		ID:           runID,
		FinishedAt:   finished,
		Status:       store.RunFailed,
		PagesRead:    10,
		PagesWritten: 9,
		Issues:       1,
	}))

	run, found, err := st.GetRun(ctx, runID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.RunFailed, run.Status)
	assert.Equal(t, "dump.xml", run.DumpPath)
	assert.Equal(t, uint64(10), run.PagesRead)
	assert.Equal(t, uint64(9), run.PagesWritten)
	assert.Equal(t, uint64(1), run.Issues)
	assert.WithinDuration(t, finished, run.FinishedAt, time.Millisecond)

	err = st.FinishRun(ctx, store.Run{ID: "nope", Status: store.RunOK})
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestSQLiteUnknownRunRejected(t *testing.T) {
	st := openTemp(t)

	err := st.WritePage(context.Background(), "no-such-run", page.Record{Title: "A"})
	assert.Error(t, err)
}

func TestSQLiteCustomSchemaScript(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "custom.db")
	script := DefaultSchema + "\nCREATE TABLE IF NOT EXISTS notes (body TEXT);"

	st, err := Open(ctx, path, script)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Re-opening an existing store runs the script again.
	st, err = Open(ctx, path, script)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestSQLiteBadSchemaScript(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "bad.db"), "CREATE TABLEX nonsense")
	assert.Error(t, err)
}
