package port

import "context"

// Archiver bundles files into a single artifact at outputPath.
type Archiver interface {
	CreateArchive(ctx context.Context, filePaths []string, outputPath string) error
}
