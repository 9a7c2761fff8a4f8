package still

import (
	"io"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/chai2010/webp"
)

// WebPWriter encodes lossless WebP. Exact keeps RGB values untouched.
type WebPWriter struct {
	opts *webp.Options
}

func NewWebPWriter() *WebPWriter {
	return &WebPWriter{opts: &webp.Options{Lossless: true, Exact: true}}
}

func (w *WebPWriter) Extension() string { return ".webp" }

func (w *WebPWriter) WriteFile(frame *entity.Frame, path string) error {
	return writeAtomic(path, frame, func(out io.Writer, f *entity.Frame) error {
		return webp.Encode(out, f.RGBA(), w.opts)
	})
}
