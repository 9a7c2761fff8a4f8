// Package archive bundles converted stills into one zip artifact.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ZipArchiver stores files flat under their base names. Stills are already
// compressed, so entries are stored rather than deflated.
type ZipArchiver struct {
	method uint16
}

func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{method: zip.Store}
}

func (z *ZipArchiver) CreateArchive(ctx context.Context, filePaths []string, outputPath string) (err error) {
	if len(filePaths) == 0 {
		return errors.New("create archive: no files")
	}

	zipFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer func() {
		if cerr := zipFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close zip file: %w", cerr)
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	zw := zip.NewWriter(zipFile)
	seen := make(map[string]bool, len(filePaths))
	for _, fp := range filePaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(fp)
		if seen[name] {
			return fmt.Errorf("duplicate entry %s", name)
		}
		seen[name] = true

		if err := z.addFile(zw, fp, name); err != nil {
			return fmt.Errorf("add %s to zip: %w", fp, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

func (z *ZipArchiver) addFile(zw *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = z.method

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}
