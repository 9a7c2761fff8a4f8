package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/domain/port"
	"github.com/EbrithilNogare/frameconv/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// StillsArchiveName is the object name of the zipped stills of one job.
const StillsArchiveName = "stills.zip"

// PipelineRunner runs one pipeline over a local directory.
type PipelineRunner interface {
	Execute(ctx context.Context, cfg entity.PipelineConfig) (*entity.RunResult, error)
}

type ProcessRequestUseCase struct {
	repo      port.JobRepository
	storage   port.FrameStorage
	stills    PipelineRunner
	video     PipelineRunner
	archiver  port.Archiver
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       ProcessRequestConfig
}

type ProcessRequestConfig struct {
	TempDir    string
	MaxRetries int
	// FrameRate and Codec apply to video requests that leave them unset.
	FrameRate int
	Codec     string
}

func NewProcessRequestUseCase(
	repo port.JobRepository,
	storage port.FrameStorage,
	stills PipelineRunner,
	video PipelineRunner,
	archiver port.Archiver,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessRequestConfig,
) *ProcessRequestUseCase {
	return &ProcessRequestUseCase{
		repo:      repo,
		storage:   storage,
		stills:    stills,
		video:     video,
		archiver:  archiver,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// Execute handles one raw conversion request. A nil return acks the message;
// an error asks the consumer to redeliver it.
func (uc *ProcessRequestUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessRequestUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.ConversionRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}
	if err := validateRequest(msg); err != nil {
		uc.logger.Error("invalid conversion request", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_request: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.kind", string(msg.Kind)),
		attribute.String("job.source_prefix", msg.SourcePrefix),
	)

	log := uc.logger.With(
		zap.String("job_id", msg.JobID.String()),
		zap.String("kind", string(msg.Kind)),
		zap.String("source_prefix", msg.SourcePrefix),
	)

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	switch {
	case errors.Is(err, entity.ErrJobNotFound):
		job = entity.NewJob(msg.Kind, msg.SourcePrefix, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	case err != nil:
		log.Error("failed to load job record", zap.Error(err))
		return fmt.Errorf("find job: %w", err)
	}

	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, dropping redelivery")
		return nil
	}

	if job.Status == entity.JobStatusFailed && !job.CanRetry() {
		log.Info("job already failed permanently, dropping redelivery")
		return nil
	}

	// A job interrupted during its last attempt is still PROCESSING here.
	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded", log)
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.processPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.RunDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func validateRequest(msg entity.ConversionRequestMessage) error {
	if msg.JobID == uuid.Nil {
		return errors.New("missing job_id")
	}
	if msg.Kind != entity.PipelineStills && msg.Kind != entity.PipelineVideo {
		return fmt.Errorf("unknown kind %q", msg.Kind)
	}
	if msg.SourcePrefix == "" {
		return errors.New("missing source_prefix")
	}
	if msg.FrameRate < 0 {
		return fmt.Errorf("invalid frame_rate %d", msg.FrameRate)
	}
	return nil
}

func (uc *ProcessRequestUseCase) processPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.ConversionRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	framesDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download frames from MinIO
	dlStart := time.Now()
	dlCtx, spanDl := tracer.Start(ctx, "download_frames")
	n, err := uc.storage.DownloadFrames(dlCtx, msg.SourcePrefix, framesDir)
	spanDl.End()
	if err != nil {
		log.Error("failed to download frames", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_frames: "+err.Error(), log)
	}
	metrics.RunDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())
	log.Info("frames downloaded", zap.Int("objects", n))

	// Run the pipeline
	pcfg := entity.PipelineConfig{
		SourceDir: framesDir,
		DestDir:   filepath.Join(workDir, "out"),
		FrameRate: uc.cfg.FrameRate,
		Codec:     uc.cfg.Codec,
	}
	if msg.FrameRate > 0 {
		pcfg.FrameRate = msg.FrameRate
	}
	if msg.Codec != "" {
		pcfg.Codec = msg.Codec
	}
	runner := uc.stills
	if msg.Kind == entity.PipelineVideo {
		runner = uc.video
	}
	result, err := runner.Execute(ctx, pcfg)
	if err != nil {
		if entity.IsConversionError(err) {
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "convert: "+err.Error(), log)
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "convert: "+err.Error(), log)
	}

	// Bundle stills; a video is already a single file
	artifact := filepath.Join(workDir, StillsArchiveName)
	if msg.Kind == entity.PipelineVideo {
		artifact = result.Outputs[0]
	} else {
		archCtx, spanArch := tracer.Start(ctx, "create_archive")
		err := uc.archiver.CreateArchive(archCtx, result.Outputs, artifact)
		spanArch.End()
		if err != nil {
			log.Error("archive creation failed", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "create_archive: "+err.Error(), log)
		}
	}

	// Upload artifact to MinIO
	upStart := time.Now()
	upCtx, spanUp := tracer.Start(ctx, "upload_artifact")
	key := ArtifactKey(job.ID, filepath.Base(artifact))
	err = uc.storage.UploadArtifact(upCtx, key, artifact)
	spanUp.End()
	if err != nil {
		log.Error("artifact upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_artifact: "+err.Error(), log)
	}
	metrics.RunDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted([]string{key}, result.FramesProcessed)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)
	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()

	log.Info("job completed successfully",
		zap.Int("frame_count", result.FramesProcessed),
		zap.String("artifact_key", key),
	)
	return nil
}

// ArtifactKey is the object key of an output of job id.
func ArtifactKey(id uuid.UUID, name string) string {
	return path.Join(id.String(), name)
}

func (uc *ProcessRequestUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.ConversionRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

// handlePermanentFailure fails the job for good: the request is dead-lettered
// and the requester, if any, is e-mailed.
func (uc *ProcessRequestUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.ConversionRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.GiveUp(errMsg)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to FAILED", zap.Error(err))
	}

	if err := uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg); err != nil {
		log.Error("failed to publish to DLQ", zap.Error(err))
	}

	uc.publishStatus(ctx, job, log)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
	log.Warn("job failed permanently", zap.String("error", errMsg))

	if msg.NotifyEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.NotifyEmail, job.ID.String(), msg.SourcePrefix, errMsg)
	}

	return nil
}

func (uc *ProcessRequestUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.ConversionStatusMessage{
		JobID:        job.ID,
		Kind:         job.Kind,
		Status:       job.Status,
		SourcePrefix: job.SourcePrefix,
		OutputKeys:   job.OutputKeys,
		FrameCount:   job.FrameCount,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
