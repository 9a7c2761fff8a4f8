package entity

import (
	"fmt"
	"image"
	"image/color"
	"iter"
)

// Frame is one decoded image of a render sequence: a dense row-major grid of
// RGB triples, three bytes per pixel, no padding.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// RGB returns the triple at column x, row y.
func (f *Frame) RGB(x, y int) [3]uint8 {
	i := (y*f.Width + x) * 3
	return [3]uint8{f.Pix[i], f.Pix[i+1], f.Pix[i+2]}
}

func (f *Frame) SetRGB(x, y int, rgb [3]uint8) {
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = rgb[0], rgb[1], rgb[2]
}

// Rows reshapes the buffer into Height rows of Width triples.
func (f *Frame) Rows() [][][3]uint8 {
	rows := make([][][3]uint8, f.Height)
	for y := range rows {
		row := make([][3]uint8, f.Width)
		for x := range row {
			row[x] = f.RGB(x, y)
		}
		rows[y] = row
	}
	return rows
}

func (f *Frame) SameSize(other *Frame) bool {
	return f.Width == other.Width && f.Height == other.Height
}

func (f *Frame) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// Frame implements image.Image so still and video collaborators can take it
// as-is.

func (f *Frame) ColorModel() color.Model { return color.RGBAModel }

func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

func (f *Frame) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	rgb := f.RGB(x, y)
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}
}

// Opaque lets image/png pick the RGB color type instead of RGBA.
func (f *Frame) Opaque() bool { return true }

// FrameFromImage copies any image into a Frame, dropping alpha.
func FrameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			f.SetRGB(x, y, [3]uint8{c.R, c.G, c.B})
		}
	}
	return f
}

// FrameSequence is the ordered list of frame files found in one directory.
// It only holds paths; iterating it never touches the files, and it can be
// iterated any number of times.
type FrameSequence struct {
	Dir   string
	paths []string
}

func NewFrameSequence(dir string, paths []string) *FrameSequence {
	return &FrameSequence{Dir: dir, paths: append([]string(nil), paths...)}
}

func (s *FrameSequence) Len() int { return len(s.paths) }

func (s *FrameSequence) Paths() []string { return append([]string(nil), s.paths...) }

func (s *FrameSequence) All() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, p := range s.paths {
			if !yield(i, p) {
				return
			}
		}
	}
}

// RGBA copies the frame into an opaque *image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
