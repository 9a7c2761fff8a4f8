package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/infra/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type workerHarness struct {
	repo     *fakeRepo
	storage  *fakeStorage
	factory  *fakeEncoderFactory
	archiver *fakeArchiver
	status   *fakePublisher
	dlq      *fakeDLQ
	notifier *fakeNotifier
	uc       *ProcessRequestUseCase
}

func newWorkerHarness(t *testing.T, framesDir string) *workerHarness {
	h := &workerHarness{
		repo:     newFakeRepo(),
		storage:  &fakeStorage{framesDir: framesDir},
		factory:  &fakeEncoderFactory{},
		archiver: &fakeArchiver{},
		status:   &fakePublisher{},
		dlq:      &fakeDLQ{},
		notifier: &fakeNotifier{},
	}
	h.uc = NewProcessRequestUseCase(
		h.repo, h.storage,
		newStillsUseCase(t),
		newVideoUseCase(t, h.factory),
		h.archiver, h.status, h.dlq, h.notifier,
		zaptest.NewLogger(t),
		ProcessRequestConfig{TempDir: t.TempDir(), MaxRetries: 3, FrameRate: 30, Codec: "avc1"},
	)
	return h
}

func request(t *testing.T, msg entity.ConversionRequestMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func lastStatus(t *testing.T, p *fakePublisher) entity.ConversionStatusMessage {
	t.Helper()
	require.NotEmpty(t, p.msgs)
	var st entity.ConversionStatusMessage
	require.NoError(t, json.Unmarshal(p.msgs[len(p.msgs)-1], &st))
	return st
}

func TestProcessRequestStills(t *testing.T) {
	frames := t.TempDir()
	writePPM(t, frames, "frame_0000.ppm", 2, 2, 5)
	writePPM(t, frames, "frame_0001.ppm", 2, 2, 6)
	h := newWorkerHarness(t, frames)
	id := uuid.New()

	before := testutil.ToFloat64(metrics.JobsProcessedTotal.WithLabelValues("completed"))

	err := h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: id, Kind: entity.PipelineStills, SourcePrefix: "scene13/",
	}))
	require.NoError(t, err)

	key := id.String() + "/" + StillsArchiveName
	assert.Equal(t, map[string]string{key: StillsArchiveName}, h.storage.uploaded)

	job := h.repo.get(id)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.FrameCount)
	assert.Equal(t, []string{key}, job.OutputKeys)
	assert.NotNil(t, job.CompletedAt)

	st := lastStatus(t, h.status)
	assert.Equal(t, entity.JobStatusCompleted, st.Status)
	assert.Equal(t, []string{key}, st.OutputKeys)
	assert.Empty(t, h.dlq.entries)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobsProcessedTotal.WithLabelValues("completed")))
}

func TestProcessRequestVideoOverrides(t *testing.T) {
	frames := t.TempDir()
	writePPM(t, frames, "frame_0000.ppm", 4, 2, 5)
	writePPM(t, frames, "frame_0001.ppm", 4, 2, 6)
	h := newWorkerHarness(t, frames)
	id := uuid.New()

	err := h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: id, Kind: entity.PipelineVideo, SourcePrefix: "scene13/", FrameRate: 24, Codec: "mp4v",
	}))
	require.NoError(t, err)

	require.Len(t, h.factory.calls, 1)
	assert.Equal(t, 24, h.factory.calls[0].frameRate)
	assert.Equal(t, "mp4v", h.factory.calls[0].codec)

	key := id.String() + "/" + entity.VideoFileName
	assert.Contains(t, h.storage.uploaded, key)
	assert.Equal(t, entity.JobStatusCompleted, h.repo.get(id).Status)
}

func TestProcessRequestMalformedMessage(t *testing.T) {
	h := newWorkerHarness(t, t.TempDir())

	require.NoError(t, h.uc.Execute(context.Background(), []byte("{not json")))
	require.Len(t, h.dlq.entries, 1)
	assert.Contains(t, h.dlq.entries[0].reason, "unmarshal_error")

	require.NoError(t, h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: uuid.New(), Kind: "gif", SourcePrefix: "x/",
	})))
	require.Len(t, h.dlq.entries, 2)
	assert.Contains(t, h.dlq.entries[1].reason, "invalid_request")
	assert.Empty(t, h.repo.jobs)
}

func TestProcessRequestFormatErrorIsPermanent(t *testing.T) {
	frames := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(frames, "frame_0000.ppm"), []byte("P3\n1 1\n255\n1 2\n"), 0o644))
	h := newWorkerHarness(t, frames)
	id := uuid.New()
	raw := request(t, entity.ConversionRequestMessage{
		JobID: id, Kind: entity.PipelineStills, SourcePrefix: "scene13/", NotifyEmail: "artist@example.com",
	})

	require.NoError(t, h.uc.Execute(context.Background(), raw), "permanent failures are acked")

	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, raw, h.dlq.entries[0].body)
	assert.Contains(t, h.dlq.entries[0].reason, "pixel count mismatch")
	assert.Equal(t, []string{"artist@example.com/" + id.String()}, h.notifier.sent)

	job := h.repo.get(id)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.False(t, job.CanRetry())
	assert.Empty(t, h.storage.uploaded)
	assert.Equal(t, entity.JobStatusFailed, lastStatus(t, h.status).Status)
}

func TestProcessRequestEmptyPrefixIsPermanent(t *testing.T) {
	h := newWorkerHarness(t, t.TempDir())
	id := uuid.New()

	require.NoError(t, h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: id, Kind: entity.PipelineVideo, SourcePrefix: "nothing/",
	})))

	require.Len(t, h.dlq.entries, 1)
	assert.Contains(t, h.dlq.entries[0].reason, "no .ppm frames found")
	assert.Empty(t, h.factory.calls)
}

func TestProcessRequestDownloadFaultIsRetried(t *testing.T) {
	h := newWorkerHarness(t, t.TempDir())
	h.storage.downloadErr = errors.New("connection reset")
	id := uuid.New()
	raw := request(t, entity.ConversionRequestMessage{JobID: id, Kind: entity.PipelineStills, SourcePrefix: "scene13/"})

	before := testutil.ToFloat64(metrics.RetryTotal.WithLabelValues("1"))

	err := h.uc.Execute(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 1/3")
	assert.Empty(t, h.dlq.entries)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RetryTotal.WithLabelValues("1")))

	job := h.repo.get(id)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)

	// Second and third deliveries exhaust the attempts.
	require.Error(t, h.uc.Execute(context.Background(), raw))
	require.NoError(t, h.uc.Execute(context.Background(), raw))
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, 3, h.repo.get(id).Attempt)

	// Later redeliveries are dropped without a second dead letter.
	require.NoError(t, h.uc.Execute(context.Background(), raw))
	assert.Len(t, h.dlq.entries, 1)
}

func TestProcessRequestFailedJobIsNotDeadLetteredTwice(t *testing.T) {
	frames := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(frames, "frame_0000.ppm"), []byte("P3\n1 1\n255\n1 2\n"), 0o644))
	h := newWorkerHarness(t, frames)
	raw := request(t, entity.ConversionRequestMessage{
		JobID: uuid.New(), Kind: entity.PipelineStills, SourcePrefix: "scene13/", NotifyEmail: "artist@example.com",
	})

	require.NoError(t, h.uc.Execute(context.Background(), raw))
	statuses := len(h.status.msgs)

	require.NoError(t, h.uc.Execute(context.Background(), raw))
	assert.Len(t, h.dlq.entries, 1)
	assert.Len(t, h.notifier.sent, 1)
	assert.Len(t, h.status.msgs, statuses)
}

func TestProcessRequestInterruptedLastAttempt(t *testing.T) {
	h := newWorkerHarness(t, t.TempDir())
	job := entity.NewJob(entity.PipelineVideo, "scene13/", 3)
	job.Attempt = 2
	job.MarkProcessing()
	require.NoError(t, h.repo.Create(context.Background(), job))

	require.NoError(t, h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: job.ID, Kind: entity.PipelineVideo, SourcePrefix: "scene13/",
	})))
	require.Len(t, h.dlq.entries, 1)
	assert.Contains(t, h.dlq.entries[0].reason, "max retries exceeded")
	assert.Empty(t, h.factory.calls)
}

func TestProcessRequestUploadFaultIsRetried(t *testing.T) {
	frames := t.TempDir()
	writePPM(t, frames, "frame_0000.ppm", 1, 1, 1)
	h := newWorkerHarness(t, frames)
	h.storage.uploadErr = errors.New("bucket unavailable")

	err := h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: uuid.New(), Kind: entity.PipelineStills, SourcePrefix: "scene13/",
	}))
	assert.ErrorContains(t, err, "upload_artifact")
}

func TestProcessRequestCompletedJobIsSkipped(t *testing.T) {
	h := newWorkerHarness(t, t.TempDir())
	job := entity.NewJob(entity.PipelineStills, "scene13/", 3)
	job.MarkCompleted([]string{"k"}, 1)
	require.NoError(t, h.repo.Create(context.Background(), job))

	require.NoError(t, h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: job.ID, Kind: entity.PipelineStills, SourcePrefix: "scene13/",
	})))
	assert.Empty(t, h.status.msgs)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessRequestRepositoryFault(t *testing.T) {
	h := newWorkerHarness(t, t.TempDir())
	h.repo.findErr = errors.New("pool closed")

	err := h.uc.Execute(context.Background(), request(t, entity.ConversionRequestMessage{
		JobID: uuid.New(), Kind: entity.PipelineStills, SourcePrefix: "scene13/",
	}))
	assert.ErrorContains(t, err, "find job")
}

func TestArtifactKey(t *testing.T) {
	id := uuid.MustParse("6f1c2b1e-6a7e-4f0f-9d3c-2b7f4c1a9e10")
	assert.Equal(t, "6f1c2b1e-6a7e-4f0f-9d3c-2b7f4c1a9e10/output.mp4", ArtifactKey(id, "output.mp4"))
}
