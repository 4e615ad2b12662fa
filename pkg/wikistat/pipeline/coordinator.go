// Package pipeline runs the reader, parser workers and sink writer as one
// bounded streaming pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/wikistat/internal/logger"
	"github.com/cognicore/wikistat/pkg/wikistat/dump"
	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/page"
)

// State is the lifecycle stage of a Coordinator.
type State int32

const (
	Idle      State = iota
	Streaming       // reader active
	Draining        // reader finished, workers and writer emptying the queues
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sink receives assembled records from the single writer goroutine.
type Sink interface {
	WritePage(ctx context.Context, rec page.Record) error
}

// Assembler turns a raw page into a record. It is called concurrently.
type Assembler interface {
	Assemble(raw []byte) (page.Parsed, error)
}

// Settings tunes the pipeline. Zero values pick defaults.
type Settings struct {
	ChunkSize     int  // reader window, dump.DefaultChunkSize when 0
	Workers       int  // parser goroutines, runtime.NumCPU() when 0
	QueueCapacity int  // work queue bound K, 2 × Workers when 0
	Ordered       bool // write records in dump order
}

// Options holds the collaborators of a Coordinator.
type Options struct {
	Assembler Assembler
	Sink      Sink
	Logger    logger.Logger
	Metrics   *Metrics
	// Mirror, when set, receives every raw page followed by a newline.
	Mirror   io.Writer
	Settings Settings
}

// Coordinator wires one reader, a pool of parser workers and one writer.
// A Coordinator runs once.
type Coordinator struct {
	assembler Assembler
	sink      Sink
	log       logger.Logger
	metrics   *Metrics
	mirror    io.Writer
	settings  Settings

	state      atomic.Int32
	dispatched atomic.Uint64
	written    atomic.Uint64
	peak       int
	issues     *tally
}

type result struct {
	seq    uint64
	offset int64
	parsed page.Parsed
	err    error
}

// New creates a coordinator.
func New(opts Options) *Coordinator {
	settings := opts.Settings
	if settings.Workers <= 0 {
		settings.Workers = runtime.NumCPU()
	}
	if settings.QueueCapacity <= 0 {
		settings.QueueCapacity = 2 * settings.Workers
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{
		assembler: opts.Assembler,
		sink:      opts.Sink,
		log:       log,
		metrics:   opts.Metrics,
		mirror:    opts.Mirror,
		settings:  settings,
		issues:    newTally(),
	}
}

// State returns the current lifecycle stage.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Dispatched returns how many raw pages the reader has handed to the work
// queue so far.
func (c *Coordinator) Dispatched() uint64 {
	return c.dispatched.Load()
}

// Settings returns the effective settings after defaults.
func (c *Coordinator) Settings() Settings {
	return c.settings
}

// Run streams r through the pipeline and blocks until every stage has
// exited. Page-level problems are counted in the Summary and never stop the
// run. A dump read failure or ctx cancellation stops reading; pages already
// parsed are still written, and the error is returned with the Summary.
func (c *Coordinator) Run(ctx context.Context, r io.Reader) (Summary, error) {
	if c.assembler == nil || c.sink == nil {
		return Summary{}, fmt.Errorf("pipeline needs an assembler and a sink: %w", internalerr.ErrInvalidConfig)
	}
	if !c.state.CompareAndSwap(int32(Idle), int32(Streaming)) {
		return Summary{}, errors.New("pipeline already started")
	}

	start := time.Now()
	reader := dump.NewReader(r, c.settings.ChunkSize)
	k, w := c.settings.QueueCapacity, c.settings.Workers

	work := make(chan dump.RawPage, k)
	results := make(chan result, k)
	var window chan struct{}
	if c.settings.Ordered {
		window = make(chan struct{}, k+w)
	}

	c.log.Info("Pipeline started",
		logger.Int("workers", w),
		logger.Int("queue_capacity", k),
		logger.Bool("ordered", c.settings.Ordered),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.produce(gctx, reader, work, window)
	})

	var workers sync.WaitGroup
	for i := 0; i < w; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			c.parse(gctx, work, results)
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	// Records that finished parsing are written even after cancellation.
	sinkCtx := context.WithoutCancel(ctx)
	g.Go(func() error {
		c.write(sinkCtx, results, window)
		return nil
	})

	err := g.Wait()
	c.state.Store(int32(Done))

	stats := reader.Stats()
	summary := Summary{
		PagesRead:    stats.Pages,
		PagesWritten: c.written.Load(),
		BytesRead:    stats.BytesRead,
		Issues:       c.issues.snapshot(),
		PeakQueued:   c.peak,
		Duration:     time.Since(start),
	}

	fields := []logger.Field{
		logger.Uint64("pages_read", summary.PagesRead),
		logger.Uint64("pages_written", summary.PagesWritten),
		logger.Uint64("issues", summary.IssueCount()),
		logger.Dur("duration", summary.Duration),
	}
	if err != nil {
		c.log.Error("Pipeline stopped", append(fields, logger.Err(err))...)
		return summary, err
	}
	c.log.Info("Pipeline finished", fields...)
	return summary, nil
}

// produce owns the reader. It closes the work queue on every exit path.
func (c *Coordinator) produce(ctx context.Context, reader *dump.Reader, work chan<- dump.RawPage, window chan struct{}) error {
	defer close(work)
	defer c.state.Store(int32(Draining))

	mirror := c.mirror
	for {
		raw, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		var incomplete *dump.IncompleteError
		if errors.As(err, &incomplete) {
			c.record(internalerr.KindBoundaryIncomplete)
			c.log.Warn("Dropped incomplete page record",
				logger.Int64("offset", incomplete.Offset),
				logger.Int("size", incomplete.Size),
				logger.String("kind", string(internalerr.KindBoundaryIncomplete)),
			)
			continue
		}
		if err != nil {
			if errors.Is(err, internalerr.ErrDumpIO) {
				c.record(internalerr.KindDumpIO)
			}
			return err
		}

		c.metrics.pageRead(len(raw.Data))
		if mirror != nil {
			if err := writeMirror(mirror, raw.Data); err != nil {
				c.log.Error("Raw page mirror disabled", logger.Err(err))
				mirror = nil
			}
		}

		if window != nil {
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case work <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.dispatched.Add(1)

		depth := len(work)
		c.peak = max(c.peak, depth)
		c.metrics.queueDepth(depth)
	}
}

func writeMirror(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// parse runs one worker. After cancellation it stops taking pages.
func (c *Coordinator) parse(ctx context.Context, work <-chan dump.RawPage, results chan<- result) {
	for raw := range work {
		if ctx.Err() != nil {
			return
		}
		c.metrics.queueDepth(len(work))

		started := time.Now()
		parsed, err := c.assembler.Assemble(raw.Data)
		c.metrics.assembled(time.Since(started).Seconds())

		results <- result{seq: raw.Seq, offset: raw.Offset, parsed: parsed, err: err}
	}
}

// write is the only goroutine that calls the sink. In ordered mode results
// are held until every earlier sequence number has been handled; anything
// still held when the queue closes (pages skipped by cancellation left gaps)
// is flushed in sequence order.
func (c *Coordinator) write(ctx context.Context, results <-chan result, window chan struct{}) {
	if window == nil {
		for res := range results {
			c.handle(ctx, res)
		}
		return
	}

	pending := make(map[uint64]result)
	var next uint64
	for res := range results {
		pending[res.seq] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			c.handle(ctx, ready)
			<-window
		}
	}

	if len(pending) == 0 {
		return
	}
	seqs := make([]uint64, 0, len(pending))
	for seq := range pending {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for _, seq := range seqs {
		c.handle(ctx, pending[seq])
		<-window
	}
}

func (c *Coordinator) handle(ctx context.Context, res result) {
	rec := res.parsed.Record
	log := c.log.With(
		logger.Uint64("seq", res.seq),
		logger.Int64("offset", res.offset),
		logger.String("title", rec.Title),
	)

	for _, warning := range res.parsed.Warnings {
		c.record(warning.Kind)
		log.Warn("Page warning",
			logger.String("kind", string(warning.Kind)),
			logger.String("detail", warning.Detail),
		)
	}

	if res.err != nil {
		kind := internalerr.KindOf(res.err)
		c.record(kind)
		log.Warn("Page skipped", logger.String("kind", string(kind)), logger.Err(res.err))
		return
	}

	if err := c.sink.WritePage(ctx, rec); err != nil {
		err = fmt.Errorf("write page %q: %w: %w", rec.Title, internalerr.ErrSink, err)
		c.record(internalerr.KindSink)
		log.Warn("Page not written", logger.String("kind", string(internalerr.KindSink)), logger.Err(err))
		return
	}
	c.written.Add(1)
	c.metrics.pageWritten()
}

func (c *Coordinator) record(kind internalerr.Kind) {
	c.issues.add(kind)
	c.metrics.issue(kind)
}
