package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/domain/port"
	"github.com/EbrithilNogare/frameconv/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ConvertStillsUseCase turns every frame of a directory into a still image
// with the same base name.
type ConvertStillsUseCase struct {
	enumerator port.FrameEnumerator
	decoder    port.FrameDecoder
	writer     port.StillWriter
	logger     *zap.Logger
}

func NewConvertStillsUseCase(
	enumerator port.FrameEnumerator,
	decoder port.FrameDecoder,
	writer port.StillWriter,
	logger *zap.Logger,
) *ConvertStillsUseCase {
	return &ConvertStillsUseCase{
		enumerator: enumerator,
		decoder:    decoder,
		writer:     writer,
		logger:     logger,
	}
}

// Execute converts frames in sequence order and stops at the first failure.
// Stills written before the failure are kept.
func (uc *ConvertStillsUseCase) Execute(ctx context.Context, cfg entity.PipelineConfig) (*entity.RunResult, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ConvertStillsUseCase.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.source_dir", cfg.SourceDir),
		attribute.String("pipeline.dest_dir", cfg.DestDir),
	)

	start := time.Now()
	log := uc.logger.With(
		zap.String("pipeline", string(entity.PipelineStills)),
		zap.String("source_dir", cfg.SourceDir),
		zap.String("dest_dir", cfg.DestDir),
	)

	result, err := uc.run(ctx, cfg, log)
	result.Elapsed = time.Since(start)
	metrics.RunDuration.WithLabelValues(string(entity.PipelineStills)).Observe(result.Elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RunsTotal.WithLabelValues(string(entity.PipelineStills), "failed").Inc()
		log.Error("stills run failed", zap.Int("frames_converted", result.FramesProcessed), zap.Error(err))
		return result, err
	}

	metrics.RunsTotal.WithLabelValues(string(entity.PipelineStills), "completed").Inc()
	log.Info("stills run completed",
		zap.Int("frames", result.FramesProcessed),
		zap.Stringer("size", sizeOf(result)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (uc *ConvertStillsUseCase) run(ctx context.Context, cfg entity.PipelineConfig, log *zap.Logger) (*entity.RunResult, error) {
	result := &entity.RunResult{Kind: entity.PipelineStills}

	seq, err := uc.enumerator.Enumerate(cfg.SourceDir)
	if err != nil {
		return result, fmt.Errorf("enumerate frames: %w", err)
	}
	if seq.Len() == 0 {
		return result, &entity.EmptyInputError{Dir: cfg.SourceDir}
	}
	log.Info("converting frames", zap.Int("frames", seq.Len()))

	if err := os.MkdirAll(cfg.DestDir, 0o755); err != nil {
		return result, fmt.Errorf("create destination dir: %w", err)
	}

	for _, path := range seq.All() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		out, frame, err := uc.convert(ctx, path, cfg.DestDir)
		if err != nil {
			return result, err
		}
		if result.FramesProcessed == 0 {
			result.Width, result.Height = frame.Width, frame.Height
		}
		result.Outputs = append(result.Outputs, out)
		result.FramesProcessed++
		log.Debug("frame converted", zap.String("frame", path), zap.String("still", out))
	}
	return result, nil
}

// ConvertFile converts a single frame into destDir and returns the still's path.
func (uc *ConvertStillsUseCase) ConvertFile(ctx context.Context, path, destDir string) (string, error) {
	out, _, err := uc.convert(ctx, path, destDir)
	return out, err
}

func (uc *ConvertStillsUseCase) convert(ctx context.Context, path, destDir string) (string, *entity.Frame, error) {
	_, span := otel.Tracer("usecase").Start(ctx, "convert_frame")
	defer span.End()
	span.SetAttributes(attribute.String("frame.path", path))

	decStart := time.Now()
	frame, err := uc.decoder.DecodeFile(path)
	if err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("decode frame: %w", err)
	}
	metrics.FrameDecodeDuration.Observe(time.Since(decStart).Seconds())

	out := StillPath(path, destDir, uc.writer.Extension())
	if err := uc.writer.WriteFile(frame, out); err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("write still %s: %w", out, err)
	}
	metrics.FramesConvertedTotal.WithLabelValues(string(entity.PipelineStills)).Inc()
	return out, frame, nil
}

// Watch converts the frames already present in cfg.SourceDir, then keeps
// converting new frames as watcher reports them until ctx is cancelled or a
// conversion fails.
func (uc *ConvertStillsUseCase) Watch(ctx context.Context, cfg entity.PipelineConfig, watcher port.FrameWatcher) error {
	log := uc.logger.With(
		zap.String("pipeline", string(entity.PipelineStills)),
		zap.String("source_dir", cfg.SourceDir),
	)

	_, err := uc.Execute(ctx, cfg)
	var empty *entity.EmptyInputError
	if err != nil && !errors.As(err, &empty) {
		return err
	}
	if err := os.MkdirAll(cfg.DestDir, 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	return watcher.Run(ctx, cfg.SourceDir, func(ctx context.Context, path string) error {
		out, err := uc.ConvertFile(ctx, path, cfg.DestDir)
		if err != nil {
			metrics.RunsTotal.WithLabelValues(string(entity.PipelineStills), "failed").Inc()
			return err
		}
		log.Info("frame converted", zap.String("frame", path), zap.String("still", out))
		return nil
	})
}

// StillPath maps a frame path to its still in destDir: same base name, new
// extension.
func StillPath(framePath, destDir, ext string) string {
	base := filepath.Base(framePath)
	return filepath.Join(destDir, strings.TrimSuffix(base, filepath.Ext(base))+ext)
}

type frameSize struct{ w, h int }

func (s frameSize) String() string { return fmt.Sprintf("%dx%d", s.w, s.h) }

func sizeOf(r *entity.RunResult) fmt.Stringer { return frameSize{r.Width, r.Height} }
