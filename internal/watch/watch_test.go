package watch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/prefexport/internal/logging"
	"github.com/hupe1980/prefexport/internal/tree"
)

// ---------------------------------------------------------------------------
// Debouncer
// ---------------------------------------------------------------------------

func TestDebouncer_SingleEvent(t *testing.T) {
	var callCount atomic.Int32
	var lastPath atomic.Value
	var lastEvents atomic.Int32

	d := NewDebouncer(50*time.Millisecond, func(path string, events int) {
		callCount.Add(1)
		lastPath.Store(path)
		lastEvents.Store(int32(events))
	})
	defer d.Stop()

	d.Trigger("com.knollsoft.Rectangle.plist")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
	assert.Equal(t, "com.knollsoft.Rectangle.plist", lastPath.Load())
	assert.Equal(t, int32(1), lastEvents.Load())
}

func TestDebouncer_MultipleEventsCoalesced(t *testing.T) {
	var callCount atomic.Int32
	var lastEvents atomic.Int32

	d := NewDebouncer(100*time.Millisecond, func(_ string, events int) {
		callCount.Add(1)
		lastEvents.Store(int32(events))
	})
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger("prefs.plist")
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
	assert.Equal(t, int32(10), lastEvents.Load())
}

func TestDebouncer_LastEventWins(t *testing.T) {
	var lastPath atomic.Value

	d := NewDebouncer(50*time.Millisecond, func(path string, _ int) {
		lastPath.Store(path)
	})
	defer d.Stop()

	d.Trigger("first.plist")
	time.Sleep(10 * time.Millisecond)
	d.Trigger("second.plist")
	time.Sleep(10 * time.Millisecond)
	d.Trigger("third.plist")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, "third.plist", lastPath.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(50*time.Millisecond, func(_ string, _ int) {
		callCount.Add(1)
	})

	d.Trigger("a.plist")
	d.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), callCount.Load())
}

// ---------------------------------------------------------------------------
// KeyDiff
// ---------------------------------------------------------------------------

func TestKeyDiff_NoChanges(t *testing.T) {
	v := tree.Dict(map[string]tree.Value{
		"gapSize":         tree.Int(0),
		"hideMenubarIcon": tree.Bool(false),
	})

	assert.Empty(t, KeyDiff(v, v))
}

func TestKeyDiff_AddedRemovedChanged(t *testing.T) {
	prev := tree.Dict(map[string]tree.Value{
		"gapSize":         tree.Int(0),
		"hideMenubarIcon": tree.Bool(false),
		"launchOnLogin":   tree.Bool(true),
	})
	curr := tree.Dict(map[string]tree.Value{
		"gapSize":                 tree.Real(5),
		"hideMenubarIcon":         tree.Bool(false),
		"SUEnableAutomaticChecks": tree.Bool(true),
	})

	changes := KeyDiff(prev, curr)
	require.Len(t, changes, 3)

	assert.Equal(t, KeyChange{Kind: "added", Key: "SUEnableAutomaticChecks", Detail: "bool"}, changes[0])
	assert.Equal(t, KeyChange{Kind: "changed", Key: "gapSize", Detail: "integer -> real"}, changes[1])
	assert.Equal(t, KeyChange{Kind: "removed", Key: "launchOnLogin", Detail: "bool"}, changes[2])
}

func TestKeyDiff_NestedDicts(t *testing.T) {
	prev := tree.Dict(map[string]tree.Value{
		"leftHalf": tree.Dict(map[string]tree.Value{
			"keyCode":       tree.Int(123),
			"modifierFlags": tree.Int(786432),
		}),
		"empty": tree.Dict(nil),
	})
	curr := tree.Dict(map[string]tree.Value{
		"leftHalf": tree.Dict(map[string]tree.Value{
			"keyCode":       tree.Int(124),
			"modifierFlags": tree.Int(786432),
		}),
	})

	changes := KeyDiff(prev, curr)
	require.Len(t, changes, 2)
	assert.Equal(t, "removed", changes[0].Kind)
	assert.Equal(t, "empty", changes[0].Key)
	assert.Equal(t, "changed", changes[1].Kind)
	assert.Equal(t, "leftHalf.keyCode", changes[1].Key)
}

func TestKeyDiffSummary(t *testing.T) {
	tests := []struct {
		name    string
		changes []KeyChange
		want    string
	}{
		{
			name:    "no changes",
			changes: nil,
			want:    "no setting changes",
		},
		{
			name: "added only",
			changes: []KeyChange{
				{Kind: "added", Key: "a"},
				{Kind: "added", Key: "b"},
			},
			want: "+2 key(s) added",
		},
		{
			name: "mixed",
			changes: []KeyChange{
				{Kind: "added", Key: "a"},
				{Kind: "removed", Key: "b"},
				{Kind: "changed", Key: "c"},
			},
			want: "+1 key(s) added, -1 key(s) removed, ~1 key(s) changed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyDiffSummary(tt.changes))
		})
	}
}

// ---------------------------------------------------------------------------
// isRelevant
// ---------------------------------------------------------------------------

func TestIsRelevant(t *testing.T) {
	const base = "com.knollsoft.Rectangle.plist"

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"write", "/p/" + base, fsnotify.Write, true},
		{"create", "/p/" + base, fsnotify.Create, true},
		{"remove", "/p/" + base, fsnotify.Remove, true},
		{"rename", "/p/" + base, fsnotify.Rename, true},
		{"temp file", "/p/" + base + ".Ab12Cd", fsnotify.Create, false},
		{"other domain", "/p/com.apple.dock.plist", fsnotify.Write, false},
		{"zero op", "/p/" + base, 0, false},
		{"chmod only", "/p/" + base, fsnotify.Chmod, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: tt.path, Op: tt.op}
			assert.Equal(t, tt.want, isRelevant(event, base))
		})
	}
}

// ---------------------------------------------------------------------------
// runner
// ---------------------------------------------------------------------------

func TestRunner_ReportsSettingChanges(t *testing.T) {
	roots := []tree.Value{
		tree.Dict(map[string]tree.Value{"gapSize": tree.Int(0)}),
		tree.Dict(map[string]tree.Value{"gapSize": tree.Int(10)}),
	}

	var calls int

	var out bytes.Buffer

	r := &runner{
		opts: Options{Out: &out, Logger: logging.Discard()},
		runFn: func(_ context.Context) (*RunResult, error) {
			root := roots[calls]
			calls++

			return &RunResult{OutputPath: "/tmp/Rectangle.plist", Keys: root.Len(), Bytes: 42, Root: root}, nil
		},
	}

	r.run(context.Background(), "(initial)")
	assert.Contains(t, out.String(), "(initial) → OK (1 keys, 42 bytes) /tmp/Rectangle.plist")
	assert.NotContains(t, out.String(), "settings:")

	r.run(context.Background(), "prefs.plist (1 event(s))")
	assert.Contains(t, out.String(), "settings: ~1 key(s) changed")
}

func TestRunner_Error(t *testing.T) {
	var out bytes.Buffer

	r := &runner{
		opts: Options{Out: &out, Logger: logging.Discard()},
		runFn: func(_ context.Context) (*RunResult, error) {
			return nil, fmt.Errorf("defaults export failed for x: boom")
		},
	}

	r.run(context.Background(), "(initial)")
	assert.Contains(t, out.String(), "(initial) → ERROR: defaults export failed for x: boom")
	assert.Nil(t, r.prev)
}

// ---------------------------------------------------------------------------
// Run (integration)
// ---------------------------------------------------------------------------

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func testOptions(path string) Options {
	opts := DefaultOptions()
	opts.Path = path
	opts.Debounce = 50 * time.Millisecond
	opts.Out = io.Discard
	opts.Logger = logging.Discard()

	return opts
}

func okResult(_ context.Context) (*RunResult, error) {
	return &RunResult{Keys: 1, Root: tree.Dict(map[string]tree.Value{"a": tree.Int(1)})}, nil
}

func TestRun_GracefulShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "com.knollsoft.Rectangle.plist")

	ctx, cancel := context.WithCancel(context.Background())

	var runCount atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testOptions(path), func(ctx context.Context) (*RunResult, error) {
			runCount.Add(1)
			return okResult(ctx)
		})
	}()

	time.Sleep(200 * time.Millisecond)
	assert.GreaterOrEqual(t, runCount.Load(), int32(1))

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not shut down in time")
	}
}

func TestRun_FileChangeTriggersExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "com.knollsoft.Rectangle.plist")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runCount atomic.Int32

	out := &safeBuffer{}
	opts := testOptions(path)
	opts.Out = out

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, opts, func(ctx context.Context) (*RunResult, error) {
			runCount.Add(1)
			return okResult(ctx)
		})
	}()

	time.Sleep(200 * time.Millisecond)
	initialRuns := runCount.Load()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Greater(t, runCount.Load(), initialRuns, "file change should trigger an export")
	assert.Contains(t, out.String(), "watching "+path)

	cancel()
	<-done
}

func TestRun_OtherFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "com.knollsoft.Rectangle.plist")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runCount atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testOptions(path), func(ctx context.Context) (*RunResult, error) {
			runCount.Add(1)
			return okResult(ctx)
		})
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "com.apple.dock.plist"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, int32(1), runCount.Load())

	cancel()
	<-done
}

func TestRun_MissingDirectory(t *testing.T) {
	err := Run(context.Background(), testOptions("/nonexistent/prefs/12345/x.plist"), okResult)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching preferences directory")
}

func TestRun_EmptyPath(t *testing.T) {
	err := Run(context.Background(), testOptions(""), okResult)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch path is required")
}

func TestRun_RunFuncError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.plist")

	ctx, cancel := context.WithCancel(context.Background())

	var callCount atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testOptions(path), func(_ context.Context) (*RunResult, error) {
			callCount.Add(1)
			return nil, fmt.Errorf("export error")
		})
	}()

	time.Sleep(200 * time.Millisecond)
	assert.GreaterOrEqual(t, callCount.Load(), int32(1))

	cancel()
	<-done
}

// ---------------------------------------------------------------------------
// DefaultOptions
// ---------------------------------------------------------------------------

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 500*time.Millisecond, opts.Debounce)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Out)
	assert.Empty(t, opts.Path)
}
