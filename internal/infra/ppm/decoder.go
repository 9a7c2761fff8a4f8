// Package ppm decodes plain-text PPM (P3) frames as written by the renderer.
//
// The header is line oriented: the magic token alone on the first line, then
// a line with width and height, then a line with the maximum color value.
// Blank lines and lines starting with '#' are skipped between header lines.
// Everything after the header is a flat list of whitespace separated
// integers, exactly width*height*3 of them.
package ppm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
)

const (
	magic = "P3"

	// MaxColorLimit is the largest max color value the format allows.
	MaxColorLimit = 65535

	// DefaultMaxPixels bounds width*height before the pixel buffer is allocated.
	DefaultMaxPixels = 1 << 26
)

type Decoder struct {
	policy    ValuePolicy
	maxPixels int
}

type Option func(*Decoder)

func WithValuePolicy(p ValuePolicy) Option {
	return func(d *Decoder) { d.policy = p }
}

func WithMaxPixels(n int) Option {
	return func(d *Decoder) { d.maxPixels = n }
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{policy: PolicyReject, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeFile decodes the frame stored at path. Format errors carry the path.
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

// Decode reads one P3 document from r. No partial frame is returned on error.
func (d *Decoder) Decode(r io.Reader) (*entity.Frame, error) {
	br := bufio.NewReader(r)

	first, err := readLine(br)
	if err != nil {
		return nil, &entity.FormatError{Reason: entity.ReasonInvalidHeader, Err: err}
	}
	if strings.TrimSpace(first) != magic {
		return nil, &entity.FormatError{Reason: entity.ReasonInvalidHeader}
	}

	width, height, err := d.readDimensions(br)
	if err != nil {
		return nil, err
	}

	maxColor, err := readMaxColor(br)
	if err != nil {
		return nil, err
	}

	return d.readPixels(br, width, height, maxColor)
}

func (d *Decoder) readDimensions(br *bufio.Reader) (int, int, error) {
	line, err := readHeaderLine(br)
	if err != nil {
		return 0, 0, &entity.FormatError{Reason: entity.ReasonInvalidDimensions, Err: err}
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, &entity.FormatError{
			Reason: entity.ReasonInvalidDimensions,
			Err:    fmt.Errorf("expected width and height, got %q", line),
		}
	}
	width, err := strconv.Atoi(fields[0])
	if err != nil || width <= 0 {
		return 0, 0, &entity.FormatError{Reason: entity.ReasonInvalidDimensions, Err: fmt.Errorf("width %q", fields[0])}
	}
	height, err := strconv.Atoi(fields[1])
	if err != nil || height <= 0 {
		return 0, 0, &entity.FormatError{Reason: entity.ReasonInvalidDimensions, Err: fmt.Errorf("height %q", fields[1])}
	}
	if width > d.maxPixels/height {
		return 0, 0, &entity.FormatError{
			Reason: entity.ReasonInvalidDimensions,
			Err:    fmt.Errorf("%dx%d exceeds %d pixels", width, height, d.maxPixels),
		}
	}
	return width, height, nil
}

func readMaxColor(br *bufio.Reader) (int, error) {
	line, err := readHeaderLine(br)
	if err != nil {
		return 0, &entity.FormatError{Reason: entity.ReasonInvalidMaxColor, Err: err}
	}
	maxColor, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, &entity.FormatError{Reason: entity.ReasonInvalidMaxColor, Err: err}
	}
	if maxColor < 1 || maxColor > MaxColorLimit {
		return 0, &entity.FormatError{
			Reason: entity.ReasonInvalidMaxColor,
			Err:    fmt.Errorf("%d not in [1, %d]", maxColor, MaxColorLimit),
		}
	}
	return maxColor, nil
}

func (d *Decoder) readPixels(br *bufio.Reader, width, height, maxColor int) (*entity.Frame, error) {
	expected := width * height * 3
	limit := min(maxColor, 255)
	frame := entity.NewFrame(width, height)

	sc := bufio.NewScanner(br)
	sc.Split(bufio.ScanWords)

	n := 0
	for sc.Scan() {
		if n >= expected {
			// Keep counting so the mismatch reports the real total.
			n++
			continue
		}
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return nil, &entity.FormatError{
				Reason: entity.ReasonInvalidPixelValue,
				Err:    fmt.Errorf("token %d: %q", n, sc.Text()),
			}
		}
		b, ok := d.policy.Apply(v, limit)
		if !ok {
			return nil, &entity.FormatError{
				Reason: entity.ReasonPixelOutOfRange,
				Err:    fmt.Errorf("token %d: %d not in [0, %d]", n, v, limit),
			}
		}
		frame.Pix[n] = b
		n++
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &entity.FormatError{Reason: entity.ReasonInvalidPixelValue, Err: fmt.Errorf("token %d: %w", n, err)}
		}
		return nil, fmt.Errorf("read pixel data: %w", err)
	}
	if n != expected {
		return nil, &entity.FormatError{
			Reason:   entity.ReasonPixelCountMismatch,
			Expected: expected,
			Actual:   n,
		}
	}
	return frame, nil
}

// readLine returns the next line without its terminator. A final line without
// a newline is still a line.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		if err == io.EOF {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readHeaderLine(br *bufio.Reader) (string, error) {
	for {
		line, err := readLine(br)
		if err != nil {
			return "", err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return trimmed, nil
	}
}
