package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/EbrithilNogare/frameconv/internal/infra/fsenum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestRunHandlesSettledFrames(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	done := make(chan error, 1)
	go func() {
		done <- New(50*time.Millisecond, fsenum.OrderNatural, zaptest.NewLogger(t)).Run(ctx, dir, rec.handle)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_0001.ppm"), []byte("P3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"frame_0001.ppm"}, rec.seen())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestRunSortsSettledFramesByOrder(t *testing.T) {
	for order, want := range map[fsenum.Order][]string{
		fsenum.OrderNatural: {"frame2.ppm", "frame10.ppm"},
		fsenum.OrderLexical: {"frame10.ppm", "frame2.ppm"},
	} {
		t.Run(string(order), func(t *testing.T) {
			dir := t.TempDir()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			rec := &recorder{}
			done := make(chan error, 1)
			go func() { done <- New(300*time.Millisecond, order, zaptest.NewLogger(t)).Run(ctx, dir, rec.handle) }()

			time.Sleep(100 * time.Millisecond)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "frame10.ppm"), []byte("P3\n"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "frame2.ppm"), []byte("P3\n"), 0o644))

			require.Eventually(t, func() bool { return len(rec.seen()) == 2 }, 3*time.Second, 20*time.Millisecond)
			assert.Equal(t, want, rec.seen())

			cancel()
			<-done
		})
	}
}

func TestRunStopsOnHandlerError(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	done := make(chan error, 1)
	go func() {
		done <- New(20*time.Millisecond, fsenum.OrderNatural, zaptest.NewLogger(t)).Run(context.Background(), dir,
			func(context.Context, string) error { return boom })
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ppm"), []byte("P3\n"), 0o644))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not return handler error")
	}
}

func TestRunMissingDir(t *testing.T) {
	err := New(time.Millisecond, fsenum.OrderNatural, zaptest.NewLogger(t)).Run(context.Background(),
		filepath.Join(t.TempDir(), "missing"), func(context.Context, string) error { return nil })
	assert.Error(t, err)
}
