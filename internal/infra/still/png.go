package still

import (
	"image/png"
	"io"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
)

type PNGWriter struct {
	enc png.Encoder
}

func NewPNGWriter() *PNGWriter {
	return &PNGWriter{enc: png.Encoder{CompressionLevel: png.DefaultCompression}}
}

func (w *PNGWriter) Extension() string { return ".png" }

func (w *PNGWriter) WriteFile(frame *entity.Frame, path string) error {
	return writeAtomic(path, frame, func(out io.Writer, f *entity.Frame) error {
		return w.enc.Encode(out, f)
	})
}
