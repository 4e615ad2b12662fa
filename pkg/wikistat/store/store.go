package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/wikistat/pkg/wikistat/page"
)

// Store is the persistence sink for page records and run bookkeeping.
type Store interface {
	Close() error

	// Runs
	StartRun(ctx context.Context, r Run) error
	FinishRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)

	// Pages
	WritePage(ctx context.Context, runID string, rec page.Record) error
	GetPage(ctx context.Context, title string) (page.Record, bool, error)
	CountPages(ctx context.Context) (int64, error)
}

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"  // at least one record could not be written
	RunAborted RunStatus = "aborted" // dump read failure or cancellation
)

// Run records one ingestion of a dump.
type Run struct {
	ID           string
	DumpPath     string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       RunStatus
	PagesRead    uint64
	PagesWritten uint64
	Issues       uint64
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a new time-ordered run identifier.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// RunWriter binds a Store to one run so it can serve as the pipeline sink.
type RunWriter struct {
	Store Store
	RunID string
}

// WritePage writes rec under the bound run.
func (w RunWriter) WritePage(ctx context.Context, rec page.Record) error {
	return w.Store.WritePage(ctx, w.RunID, rec)
}
