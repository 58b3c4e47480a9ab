package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncSyncing SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)

var ErrWriterClosed = errors.New("writer closed")

const (
	writeAttempts = 3
	writeTimeout  = 5 * time.Second
	writeBackoff  = 50 * time.Millisecond
)

type job struct {
	name    string
	fn      func(ctx context.Context) error
	barrier chan struct{}
}

// Writer runs persistence calls off the caller's goroutine, one at a time and
// in submission order. Failed calls are retried a few times; a call that still
// fails flips the status to error until a later call succeeds.
type Writer struct {
	ctx      context.Context
	log      *zap.Logger
	onChange func(SyncStatus)

	jobs chan job
	quit chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending int
	failed  bool
	status  SyncStatus
	errs    error
}

// NewWriter starts the writer goroutine. onChange, when set, is called from
// whichever goroutine moved the status.
func NewWriter(ctx context.Context, log *zap.Logger, onChange func(SyncStatus)) *Writer {
	w := &Writer{
		ctx:      ctx,
		log:      log,
		onChange: onChange,
		jobs:     make(chan job, 256),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		status:   SyncSynced,
	}
	go w.loop()
	return w
}

func (w *Writer) Status() SyncStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Enqueue schedules fn. It blocks only when the queue is full.
func (w *Writer) Enqueue(name string, fn func(ctx context.Context) error) error {
	if w.closed() {
		return ErrWriterClosed
	}
	w.track(func() { w.pending++ })
	select {
	case w.jobs <- job{name: name, fn: fn}:
		return nil
	case <-w.quit:
		w.track(func() { w.pending-- })
		return ErrWriterClosed
	}
}

// Flush waits until everything enqueued before the call has run.
func (w *Writer) Flush(ctx context.Context) error {
	if w.closed() {
		return ErrWriterClosed
	}
	barrier := make(chan struct{})
	select {
	case w.jobs <- job{barrier: barrier}:
	case <-w.quit:
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued work and returns every write that ultimately failed.
func (w *Writer) Close() error {
	w.once.Do(func() { close(w.quit) })
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errs
}

func (w *Writer) closed() bool {
	select {
	case <-w.quit:
		return true
	default:
		return false
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	for {
		select {
		case j := <-w.jobs:
			w.run(j)
		case <-w.quit:
			w.drain()
			return
		case <-w.ctx.Done():
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case j := <-w.jobs:
			w.run(j)
		default:
			return
		}
	}
}

func (w *Writer) run(j job) {
	if j.barrier != nil {
		close(j.barrier)
		return
	}

	// Queued writes still land after the parent context is cancelled.
	base := context.WithoutCancel(w.ctx)
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(base, writeTimeout)
		err = j.fn(ctx)
		cancel()
		if err == nil || errors.Is(err, ErrDuplicateEvent) {
			break
		}
		w.log.Warn("store write failed",
			zap.String("op", j.name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < writeAttempts {
			time.Sleep(writeBackoff * time.Duration(attempt))
		}
	}

	switch {
	case err == nil:
		w.track(func() { w.pending--; w.failed = false })
	case errors.Is(err, ErrDuplicateEvent):
		// Already stored; the log is still in sync.
		w.log.Debug("duplicate event ignored", zap.String("op", j.name))
		w.track(func() { w.pending--; w.failed = false })
	default:
		w.log.Error("store write gave up", zap.String("op", j.name), zap.Error(err))
		w.track(func() {
			w.pending--
			w.failed = true
			w.errs = multierr.Append(w.errs, err)
		})
	}
}

// track applies mutate under the lock and reports a status change, if any.
func (w *Writer) track(mutate func()) {
	w.mu.Lock()
	mutate()
	next := SyncSynced
	switch {
	case w.failed:
		next = SyncError
	case w.pending > 0:
		next = SyncSyncing
	}
	changed := next != w.status
	w.status = next
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(next)
	}
}
