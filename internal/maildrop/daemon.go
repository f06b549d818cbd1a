// Package maildrop runs the mail drop daemon. Mail delivered into a
// maildir per action (subscribe, unsubscribe, forget) is parsed, handed
// to the front door, and removed.
package maildrop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/ingest"
	"github.com/communalgrowth/docsub/internal/mailmsg"
	"github.com/communalgrowth/docsub/internal/watcher"
)

// Handler receives every parsed message. *ingest.FrontDoor satisfies it.
type Handler interface {
	Handle(ctx context.Context, action ingest.Action, env ingest.Envelope) (*ingest.Result, error)
}

// Options configures a Daemon.
type Options struct {
	Root        string
	Workers     int
	SettleDelay time.Duration
}

// Stats counts what a daemon has done since it started.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Daemon watches the spool and enforces single-instance execution
// through a lock file in the spool root.
type Daemon struct {
	root     string
	workers  int
	settle   time.Duration
	handler  Handler
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock

	started atomic.Bool
	running atomic.Bool

	mu       sync.Mutex
	inflight map[string]struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// New constructs a daemon. Nothing touches the filesystem until Run.
func New(opts Options, handler Handler, logger *slog.Logger) (*Daemon, error) {
	if opts.Root == "" {
		return nil, errors.Configurationf("spool root must not be empty")
	}
	if handler == nil {
		return nil, errors.Internalf("maildrop daemon requires a handler")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lockPath := filepath.Join(opts.Root, LockFileName)
	return &Daemon{
		root:     opts.Root,
		workers:  opts.Workers,
		settle:   opts.SettleDelay,
		handler:  handler,
		logger:   logger.With("component", "maildrop"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		inflight: make(map[string]struct{}),
	}, nil
}

// Root returns the spool root.
func (d *Daemon) Root() string { return d.root }

// Running reports whether Run holds the lock and is watching the spool.
func (d *Daemon) Running() bool { return d.running.Load() }

// Stats returns a snapshot of the counters.
func (d *Daemon) Stats() Stats {
	return Stats{Processed: d.processed.Load(), Failed: d.failed.Load()}
}

// Run acquires the lock, processes mail already waiting in the spool,
// then processes new deliveries until ctx is cancelled. Messages being
// handled when ctx ends are finished before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.Conflictf("daemon already running")
	}
	defer d.started.Store(false)

	if err := Prepare(d.root); err != nil {
		return errors.Wrap(err, errors.CodeConfiguration, "prepare spool")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.Conflictf("another docsub daemon is already running (lock %s)", d.lockPath)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release lock", "error", err)
		}
	}()

	w, err := watcher.New(d.logger, watcher.Options{SettleDelay: d.settle})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Stop()

	// Watch before sweeping so nothing delivered in between is missed;
	// a file seen by both is claimed once.
	for _, a := range ingest.Actions {
		if err := w.Watch(NewDir(d.root, a)); err != nil {
			return fmt.Errorf("watch %s: %w", a, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := w.Start(ctx); err != nil {
			d.logger.Error("watcher stopped", "error", err)
		}
	}()

	jobs := make(chan string, d.workers*4)
	var wg sync.WaitGroup
	for range d.workers {
		wg.Go(func() {
			for path := range jobs {
				d.process(ctx, path)
			}
		})
	}

	d.running.Store(true)
	defer d.running.Store(false)
	d.logger.Info("daemon started", "root", d.root, "workers", d.workers)

	pending, err := d.sweep()
	if err != nil {
		d.logger.Warn("initial sweep failed", "error", err)
	}
	for _, path := range pending {
		if !d.enqueue(ctx, jobs, path) {
			break
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev := <-w.Events():
			if ev.Type != watcher.EventAdded {
				continue
			}
			d.enqueue(ctx, jobs, ev.Path)
		case err := <-w.Errors():
			d.logger.Warn("watcher error", "error", err)
		}
	}

	close(jobs)
	wg.Wait()

	stats := d.Stats()
	d.logger.Info("daemon stopped", "processed", stats.Processed, "failed", stats.Failed)
	return nil
}

// sweep lists mail already waiting, oldest name first within each action.
func (d *Daemon) sweep() ([]string, error) {
	var paths []string
	for _, a := range ingest.Actions {
		dir := NewDir(d.root, a)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return paths, fmt.Errorf("read %s: %w", dir, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
		slices.Sort(names)
		for _, name := range names {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}

// enqueue claims path and hands it to a worker. It reports false once
// ctx is done.
func (d *Daemon) enqueue(ctx context.Context, jobs chan<- string, path string) bool {
	if !d.claim(path) {
		return true
	}
	select {
	case jobs <- path:
		return true
	case <-ctx.Done():
		d.release(path)
		return false
	}
}

func (d *Daemon) claim(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[path]; busy {
		return false
	}
	d.inflight[path] = struct{}{}
	return true
}

func (d *Daemon) release(path string) {
	d.mu.Lock()
	delete(d.inflight, path)
	d.mu.Unlock()
}

func (d *Daemon) process(ctx context.Context, path string) {
	defer d.release(path)

	result, err := d.ProcessFile(ctx, path)
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		d.failed.Add(1)
		d.logger.Warn("message failed", "path", filepath.Base(path), "error", err)
	case result != nil:
		d.processed.Add(1)
	}
}

// ProcessFile handles one spooled message and removes it. The file is
// removed whatever the outcome, except when ctx ended first, so a
// malformed or rejected message is never retried. A file that vanished
// before it could be opened is not an error.
func (d *Daemon) ProcessFile(ctx context.Context, path string) (*ingest.Result, error) {
	action, ok := ActionOf(d.root, path)
	if !ok {
		return nil, errors.Validationf("%s is not in a spool delivery directory", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path) //#nosec G304 -- path is inside the spool root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open message: %w", err)
	}

	msg, err := mailmsg.Parse(f)
	f.Close()

	var result *ingest.Result
	if err == nil {
		result, err = d.handler.Handle(ctx, action, ingest.Envelope{Sender: msg.From, Lines: msg.Lines})
	}
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		d.logger.Error("failed to remove message", "path", path, "error", rmErr)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("message processed",
		"run_id", result.RunID,
		"action", action,
		"message_id", msg.MessageID,
		"report", result.Report,
	)
	return result, nil
}
