package port

import "context"

// FrameHandler is called with the path of a frame file that is ready to read.
type FrameHandler func(ctx context.Context, path string) error

type FrameWatcher interface {
	Run(ctx context.Context, dir string, handle FrameHandler) error
}
