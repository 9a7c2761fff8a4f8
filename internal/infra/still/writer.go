// Package still writes frames as lossless still images.
package still

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/domain/port"
)

type Format string

const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatPNG, FormatWebP:
		return f, nil
	default:
		return "", fmt.Errorf("invalid still format %q (expected png|webp)", s)
	}
}

// NewWriter returns the writer for format f.
func NewWriter(f Format) (port.StillWriter, error) {
	switch f {
	case FormatPNG:
		return NewPNGWriter(), nil
	case FormatWebP:
		return NewWebPWriter(), nil
	default:
		return nil, fmt.Errorf("unsupported still format %q", f)
	}
}

type encodeFunc func(w io.Writer, frame *entity.Frame) error

// writeAtomic encodes into a temp file next to path and renames it into place,
// so a failed encode never leaves a partial still behind.
func writeAtomic(path string, frame *entity.Frame, encode encodeFunc) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp still: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<16)
	if err := encode(bw, frame); err != nil {
		return fmt.Errorf("%w: %s: %w", entity.ErrEncode, filepath.Base(path), err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush still: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close still: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename still: %w", err)
	}
	committed = true
	return nil
}
