package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/prefexport/internal/tree"
)

// RunFunc is called each time the watcher triggers an export.
type RunFunc func(ctx context.Context) (*RunResult, error)

// RunResult holds the output of a single export so the watcher can report
// what changed between runs.
type RunResult struct {
	OutputPath string
	Keys       int
	Bytes      int
	Root       tree.Value
}

// Options configures the watch behaviour.
type Options struct {
	// Path is the preferences file to watch. Its parent directory must
	// exist; the file itself may be created or replaced later.
	Path string

	// Debounce is the quiet period before triggering an export.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 500 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Run starts the file watcher and blocks until the context is cancelled
// or a SIGINT/SIGTERM signal is received.
func Run(ctx context.Context, opts Options, runFn RunFunc) error {
	if opts.Path == "" {
		return errors.New("watch path is required")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return fmt.Errorf("resolving watch path %q: %w", opts.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Preferences are saved by writing a temp file and renaming it over
	// the target, so the directory is watched rather than the file.
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching preferences directory: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "watching %s (debounce=%s)\n", abs, opts.Debounce)

	r := &runner{opts: opts, runFn: runFn}

	r.run(sigCtx, "(initial)")

	debouncer := NewDebouncer(opts.Debounce, func(path string, events int) {
		r.run(sigCtx, fmt.Sprintf("%s (%d event(s))", filepath.Base(path), events))
	})
	defer debouncer.Stop()

	base := filepath.Base(abs)

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event, base) {
				continue
			}

			opts.Logger.Debug("preferences changed",
				slog.String("path", event.Name), slog.String("op", event.Op.String()))

			debouncer.Trigger(event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// runner serializes export runs and remembers the last successful tree.
type runner struct {
	opts  Options
	runFn RunFunc

	mu   sync.Mutex
	prev *tree.Value
}

// run executes a single export and prints the status line.
func (r *runner) run(ctx context.Context, trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Format("15:04:05")

	result, err := r.runFn(ctx)
	if err != nil {
		fmt.Fprintf(r.opts.Out, "[%s] %s → ERROR: %v\n", now, trigger, err)
		return
	}

	fmt.Fprintf(r.opts.Out, "[%s] %s → OK (%d keys, %d bytes) %s\n",
		now, trigger, result.Keys, result.Bytes, result.OutputPath)

	if result.Root.Kind() != tree.KindDict {
		return
	}

	if r.prev != nil {
		if changes := KeyDiff(*r.prev, result.Root); len(changes) > 0 {
			fmt.Fprintf(r.opts.Out, "  settings: %s\n", KeyDiffSummary(changes))

			for _, c := range changes {
				r.opts.Logger.Debug("setting changed",
					slog.String("kind", c.Kind), slog.String("key", c.Key), slog.String("detail", c.Detail))
			}
		}
	}

	root := result.Root
	r.prev = &root
}

// isRelevant keeps content-changing events on the watched file only.
func isRelevant(event fsnotify.Event, base string) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	return filepath.Base(event.Name) == base
}
