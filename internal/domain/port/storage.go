package port

import "context"

type FrameStorage interface {
	DownloadFrames(ctx context.Context, prefix string, destDir string) (int, error)
	UploadArtifact(ctx context.Context, objectKey string, srcPath string) error
}
