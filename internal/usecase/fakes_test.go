package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/domain/port"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// writePPM writes a w x h P3 frame whose every sample is v.
func writePPM(t *testing.T, dir, name string, w, h, v int) string {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "P3\n%d %d\n255\n", w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fmt.Fprintf(&b, "%d %d %d ", v, v, v)
		}
		b.WriteString("\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

type fakeEncoder struct {
	frames  []*entity.Frame
	closed  bool
	aborted bool
	failAt  int
	path    string
}

func (e *fakeEncoder) Append(frame *entity.Frame) error {
	if e.failAt > 0 && len(e.frames)+1 == e.failAt {
		return fmt.Errorf("%w: broken pipe", entity.ErrEncode)
	}
	e.frames = append(e.frames, frame)
	return nil
}

func (e *fakeEncoder) Close() error {
	e.closed = true
	return os.WriteFile(e.path, []byte("mp4"), 0o644)
}

func (e *fakeEncoder) Abort() error {
	e.aborted = true
	return nil
}

type openCall struct {
	path          string
	width, height int
	frameRate     int
	codec         string
}

type fakeEncoderFactory struct {
	calls   []openCall
	enc     *fakeEncoder
	openErr error
}

func (f *fakeEncoderFactory) Open(_ context.Context, path string, width, height int, frameRate int, codec string) (port.VideoEncoder, error) {
	f.calls = append(f.calls, openCall{path, width, height, frameRate, codec})
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.enc == nil {
		f.enc = &fakeEncoder{}
	}
	f.enc.path = path
	return f.enc, nil
}

type fakeProber struct {
	info *entity.VideoInfo
	err  error
}

func (p *fakeProber) Probe(context.Context, string) (*entity.VideoInfo, error) {
	return p.info, p.err
}

// fakeWatcher reports each path once, then returns.
type fakeWatcher struct {
	paths []string
}

func (w *fakeWatcher) Run(ctx context.Context, _ string, handle port.FrameHandler) error {
	for _, p := range w.paths {
		if err := handle(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

type fakeRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]entity.Job
	findErr error
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]entity.Job)}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return &job, nil
}

func (r *fakeRepo) get(id uuid.UUID) entity.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// fakeStorage serves frames from a local directory and records uploads.
type fakeStorage struct {
	framesDir   string
	downloadErr error
	uploadErr   error
	uploaded    map[string]string
}

func (s *fakeStorage) DownloadFrames(_ context.Context, _ string, destDir string) (int, error) {
	if s.downloadErr != nil {
		return 0, s.downloadErr
	}
	entries, err := os.ReadDir(s.framesDir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(s.framesDir, e.Name()))
		if err != nil {
			return 0, err
		}
		if err := os.WriteFile(filepath.Join(destDir, e.Name()), data, 0o644); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

func (s *fakeStorage) UploadArtifact(_ context.Context, objectKey string, srcPath string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	if _, err := os.Stat(srcPath); err != nil {
		return err
	}
	if s.uploaded == nil {
		s.uploaded = make(map[string]string)
	}
	s.uploaded[objectKey] = filepath.Base(srcPath)
	return nil
}

type fakePublisher struct {
	msgs [][]byte
}

func (p *fakePublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

type dlqEntry struct {
	body   []byte
	reason string
}

type fakeDLQ struct {
	entries []dlqEntry
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	d.entries = append(d.entries, dlqEntry{msg, reason})
	return nil
}

type fakeNotifier struct {
	sent []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, to, jobID, _, _ string) error {
	n.sent = append(n.sent, to+"/"+jobID)
	return nil
}

type fakeArchiver struct {
	err error
}

func (a *fakeArchiver) CreateArchive(_ context.Context, filePaths []string, outputPath string) error {
	if a.err != nil {
		return a.err
	}
	if len(filePaths) == 0 {
		return errors.New("nothing to archive")
	}
	return os.WriteFile(outputPath, []byte("zip"), 0o644)
}
