package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/domain/port"
	"github.com/EbrithilNogare/frameconv/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// EncodeVideoUseCase stitches the frames of a directory into one video.
type EncodeVideoUseCase struct {
	enumerator port.FrameEnumerator
	decoder    port.FrameDecoder
	encoders   port.VideoEncoderFactory
	prober     port.VideoProber
	logger     *zap.Logger
}

func NewEncodeVideoUseCase(
	enumerator port.FrameEnumerator,
	decoder port.FrameDecoder,
	encoders port.VideoEncoderFactory,
	logger *zap.Logger,
) *EncodeVideoUseCase {
	return &EncodeVideoUseCase{
		enumerator: enumerator,
		decoder:    decoder,
		encoders:   encoders,
		logger:     logger,
	}
}

// WithProber makes Execute probe the finished video and check its frame count.
func (uc *EncodeVideoUseCase) WithProber(p port.VideoProber) *EncodeVideoUseCase {
	uc.prober = p
	return uc
}

// Execute writes cfg.DestDir/output.mp4. The video takes its size from the
// first frame. Any failure after the encoder is opened aborts it, so a failed
// run leaves no video behind.
func (uc *EncodeVideoUseCase) Execute(ctx context.Context, cfg entity.PipelineConfig) (*entity.RunResult, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "EncodeVideoUseCase.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.source_dir", cfg.SourceDir),
		attribute.String("pipeline.codec", cfg.Codec),
		attribute.Int("pipeline.frame_rate", cfg.FrameRate),
	)

	start := time.Now()
	log := uc.logger.With(
		zap.String("pipeline", string(entity.PipelineVideo)),
		zap.String("source_dir", cfg.SourceDir),
		zap.String("codec", cfg.Codec),
		zap.Int("fps", cfg.FrameRate),
	)

	result, err := uc.run(ctx, cfg, log)
	result.Elapsed = time.Since(start)
	metrics.RunDuration.WithLabelValues(string(entity.PipelineVideo)).Observe(result.Elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RunsTotal.WithLabelValues(string(entity.PipelineVideo), "failed").Inc()
		log.Error("video run failed", zap.Int("frames_appended", result.FramesProcessed), zap.Error(err))
		return result, err
	}

	metrics.RunsTotal.WithLabelValues(string(entity.PipelineVideo), "completed").Inc()
	log.Info("video run completed",
		zap.String("output", result.Outputs[0]),
		zap.Int("frames", result.FramesProcessed),
		zap.Stringer("size", sizeOf(result)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (uc *EncodeVideoUseCase) run(ctx context.Context, cfg entity.PipelineConfig, log *zap.Logger) (*entity.RunResult, error) {
	result := &entity.RunResult{Kind: entity.PipelineVideo}

	seq, err := uc.enumerator.Enumerate(cfg.SourceDir)
	if err != nil {
		return result, fmt.Errorf("enumerate frames: %w", err)
	}
	if seq.Len() == 0 {
		return result, &entity.EmptyInputError{Dir: cfg.SourceDir}
	}
	paths := seq.Paths()

	first, err := uc.decode(paths[0])
	if err != nil {
		return result, err
	}
	result.Width, result.Height = first.Width, first.Height

	if err := os.MkdirAll(cfg.DestDir, 0o755); err != nil {
		return result, fmt.Errorf("create destination dir: %w", err)
	}
	out := filepath.Join(cfg.DestDir, entity.VideoFileName)

	log.Info("encoding video",
		zap.String("output", out),
		zap.Int("frames", len(paths)),
		zap.Stringer("size", first),
	)
	enc, err := uc.encoders.Open(ctx, out, first.Width, first.Height, cfg.FrameRate, cfg.Codec)
	if err != nil {
		return result, fmt.Errorf("open video encoder: %w", err)
	}

	if err := uc.appendAll(ctx, enc, first, paths, result); err != nil {
		if abortErr := enc.Abort(); abortErr != nil {
			log.Warn("abort video encoder", zap.Error(abortErr))
		}
		return result, err
	}

	if err := enc.Close(); err != nil {
		return result, fmt.Errorf("finalize video: %w", err)
	}

	if uc.prober != nil {
		if err := uc.verify(ctx, out, result.FramesProcessed, log); err != nil {
			if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Warn("remove unverified video", zap.String("output", out), zap.Error(rmErr))
			}
			return result, err
		}
	}
	result.Outputs = []string{out}
	return result, nil
}

func (uc *EncodeVideoUseCase) verify(ctx context.Context, out string, appended int, log *zap.Logger) error {
	info, err := uc.prober.Probe(ctx, out)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}
	if info.Frames != appended {
		return fmt.Errorf("%w: video has %d frames, appended %d", entity.ErrEncode, info.Frames, appended)
	}
	log.Debug("video probed", zap.Int("frames", info.Frames), zap.String("codec_tag", info.CodecTag))
	return nil
}

func (uc *EncodeVideoUseCase) appendAll(
	ctx context.Context,
	enc port.VideoEncoder,
	first *entity.Frame,
	paths []string,
	result *entity.RunResult,
) error {
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame := first
		if i > 0 {
			var err error
			if frame, err = uc.decode(path); err != nil {
				return err
			}
			if !frame.SameSize(first) {
				return fmt.Errorf("frame %s is %s, video is %s: %w", path, frame, first, entity.ErrFrameSizeMismatch)
			}
		}

		if err := enc.Append(frame); err != nil {
			return fmt.Errorf("append frame %s: %w", path, err)
		}
		result.FramesProcessed++
		metrics.FramesConvertedTotal.WithLabelValues(string(entity.PipelineVideo)).Inc()
	}
	return nil
}

func (uc *EncodeVideoUseCase) decode(path string) (*entity.Frame, error) {
	start := time.Now()
	frame, err := uc.decoder.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	metrics.FrameDecodeDuration.Observe(time.Since(start).Seconds())
	return frame, nil
}
