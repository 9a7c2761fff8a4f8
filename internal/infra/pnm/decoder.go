// Package pnm decodes frames through the gopnm image codec. The video
// pipeline reads frames this way instead of through the strict P3 parser.
//
// gopnm stops after width*height*3 samples and allocates the image straight
// from the header, so the header is checked against the pixel limit first and
// the tokens left after the raster are counted. Samples are taken as written,
// without rescaling by the max color value, and go through the same value
// policy as the strict parser. Samples gopnm cannot scan at all (negative, or
// wider than the sample depth) are invalid pixel values under every policy.
package pnm

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"unicode"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/infra/ppm"
	pnm "github.com/jbuchbinder/gopnm"
)

type Decoder struct {
	policy    ppm.ValuePolicy
	maxPixels int
}

type Option func(*Decoder)

func WithValuePolicy(p ppm.ValuePolicy) Option {
	return func(d *Decoder) { d.policy = p }
}

func WithMaxPixels(n int) Option {
	return func(d *Decoder) { d.maxPixels = n }
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{policy: ppm.PolicyReject, maxPixels: ppm.DefaultMaxPixels}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) DecodeFile(path string) (*entity.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	frame, err := d.Decode(f)
	if err != nil {
		var fe *entity.FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return frame, nil
}

// Decode reads one P3 document from r. r is read twice, so it must seek.
func (d *Decoder) Decode(r io.ReadSeeker) (*entity.Frame, error) {
	br := bufio.NewReader(r)
	hdr, err := d.readHeader(br)
	if err != nil {
		return nil, err
	}
	expected := hdr.Width * hdr.Height * 3

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind frame: %w", err)
	}
	br.Reset(r)

	img, err := pnm.Decode(br)
	if err != nil {
		n, cerr := recount(r, br)
		if cerr == nil && n != expected {
			return nil, &entity.FormatError{Reason: entity.ReasonPixelCountMismatch, Expected: expected, Actual: n}
		}
		return nil, &entity.FormatError{Reason: entity.ReasonInvalidPixelValue, Err: err}
	}

	extra, err := countTokens(br)
	if err != nil {
		return nil, fmt.Errorf("read pixel data: %w", err)
	}
	if extra > 0 {
		return nil, &entity.FormatError{Reason: entity.ReasonPixelCountMismatch, Expected: expected, Actual: expected + extra}
	}
	return d.toFrame(img, hdr.Maxval)
}

func (d *Decoder) readHeader(br *bufio.Reader) (pnm.PNMConfig, error) {
	if p, _ := br.Peek(3); len(p) < 2 || string(p[:2]) != "P3" || (len(p) == 3 && !unicode.IsSpace(rune(p[2]))) {
		return pnm.PNMConfig{}, &entity.FormatError{Reason: entity.ReasonInvalidHeader}
	}

	hdr, err := pnm.DecodeConfigPNM(br)
	// A header followed by nothing ends in io.EOF once Maxval is read.
	if err != nil && !(errors.Is(err, io.EOF) && hdr.Maxval > 0) {
		return hdr, &entity.FormatError{Reason: entity.ReasonInvalidHeader, Err: err}
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return hdr, &entity.FormatError{
			Reason: entity.ReasonInvalidDimensions,
			Err:    fmt.Errorf("%dx%d", hdr.Width, hdr.Height),
		}
	}
	if hdr.Width > d.maxPixels/hdr.Height {
		return hdr, &entity.FormatError{
			Reason: entity.ReasonInvalidDimensions,
			Err:    fmt.Errorf("%dx%d exceeds %d pixels", hdr.Width, hdr.Height, d.maxPixels),
		}
	}
	return hdr, nil
}

func (d *Decoder) toFrame(img image.Image, maxval int) (*entity.Frame, error) {
	b := img.Bounds()
	frame := entity.NewFrame(b.Dx(), b.Dy())
	limit := min(maxval, 255)

	var sample func(i int) int
	switch m := img.(type) {
	case *image.RGBA:
		sample = func(i int) int { return int(m.Pix[i/3*4+i%3]) }
	case *image.RGBA64:
		sample = func(i int) int {
			off := i/3*8 + i%3*2
			return int(m.Pix[off])<<8 | int(m.Pix[off+1])
		}
	default:
		return nil, &entity.FormatError{Reason: entity.ReasonInvalidHeader, Err: fmt.Errorf("unexpected image type %T", img)}
	}

	for i := range frame.Pix {
		v := sample(i)
		px, ok := d.policy.Apply(v, limit)
		if !ok {
			return nil, &entity.FormatError{
				Reason: entity.ReasonPixelOutOfRange,
				Err:    fmt.Errorf("token %d: %d not in [0, %d]", i, v, limit),
			}
		}
		frame.Pix[i] = px
	}
	return frame, nil
}

// recount rereads the document and returns the number of raster tokens.
func recount(r io.ReadSeeker, br *bufio.Reader) (int, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	br.Reset(r)
	if _, err := pnm.DecodeConfigPNM(br); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, err
	}
	return countTokens(br)
}

// countTokens counts whitespace separated tokens until EOF. Unlike
// bufio.Scanner it has no token length limit.
func countTokens(br *bufio.Reader) (int, error) {
	n, inToken := 0, false
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if unicode.IsSpace(rune(c)) {
			inToken = false
			continue
		}
		if !inToken {
			n++
			inToken = true
		}
	}
}
