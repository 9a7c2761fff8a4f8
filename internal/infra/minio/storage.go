package minio

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const frameExtension = ".ppm"

// Storage reads frame sets from one bucket and writes artifacts to another.
type Storage struct {
	client          *miniogo.Client
	framesBucket    string
	artifactsBucket string
}

type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	FramesBucket    string
	ArtifactsBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:          client,
		framesBucket:    cfg.FramesBucket,
		artifactsBucket: cfg.ArtifactsBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.framesBucket, s.artifactsBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// DownloadFrames copies every .ppm object directly under prefix into destDir,
// keeping base names, and returns how many were copied. Objects in deeper
// "subdirectories" are ignored.
func (s *Storage) DownloadFrames(ctx context.Context, prefix string, destDir string) (int, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	count := 0
	for obj := range s.client.ListObjects(ctx, s.framesBucket, miniogo.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return count, fmt.Errorf("list frames under %s: %w", prefix, obj.Err)
		}
		name := path.Base(obj.Key)
		if strings.HasSuffix(obj.Key, "/") || !strings.EqualFold(path.Ext(name), frameExtension) {
			continue
		}
		dest := filepath.Join(destDir, name)
		if err := s.client.FGetObject(ctx, s.framesBucket, obj.Key, dest, miniogo.GetObjectOptions{}); err != nil {
			return count, fmt.Errorf("download %s: %w", obj.Key, err)
		}
		count++
	}
	return count, nil
}

func (s *Storage) UploadArtifact(ctx context.Context, objectKey string, srcPath string) error {
	_, err := s.client.FPutObject(ctx, s.artifactsBucket, objectKey, srcPath, miniogo.PutObjectOptions{
		ContentType: contentType(srcPath),
	})
	if err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}
	return nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".zip":
		return "application/zip"
	case ".mp4":
		return "video/mp4"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
