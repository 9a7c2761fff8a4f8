package port

import (
	"context"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
)

// StillWriter writes one frame as a lossless still image.
type StillWriter interface {
	WriteFile(frame *entity.Frame, path string) error
	Extension() string
}

// VideoEncoder receives frames in order. Close finalizes the container;
// Abort discards it.
type VideoEncoder interface {
	Append(frame *entity.Frame) error
	Close() error
	Abort() error
}

type VideoEncoderFactory interface {
	Open(ctx context.Context, path string, width, height int, frameRate int, codec string) (VideoEncoder, error)
}

// VideoProber inspects a finished video file.
type VideoProber interface {
	Probe(ctx context.Context, path string) (*entity.VideoInfo, error)
}
