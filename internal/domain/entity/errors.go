package entity

import (
	"errors"
	"fmt"
)

// Reasons carried by FormatError.
const (
	ReasonInvalidHeader      = "invalid header"
	ReasonInvalidDimensions  = "invalid dimensions"
	ReasonInvalidMaxColor    = "invalid max color"
	ReasonInvalidPixelValue  = "invalid pixel value"
	ReasonPixelOutOfRange    = "pixel value out of range"
	ReasonPixelCountMismatch = "pixel count mismatch"
)

// FormatError reports a PPM document that does not follow the P3 grammar.
// Expected and Actual are set for pixel count mismatches.
type FormatError struct {
	Path     string
	Reason   string
	Expected int
	Actual   int
	Err      error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Reason == ReasonPixelCountMismatch {
		msg = fmt.Sprintf("%s: expected %d values, found %d", e.Reason, e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Path != "" {
		return "ppm " + e.Path + ": " + msg
	}
	return "ppm: " + msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// EmptyInputError reports a source directory without any frame files.
type EmptyInputError struct {
	Dir string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no .ppm frames found in %s", e.Dir)
}

// IsConversionError reports whether err comes from the frames themselves
// rather than from infrastructure. Such errors fail the same way on every
// attempt.
func IsConversionError(err error) bool {
	var fe *FormatError
	var ee *EmptyInputError
	return errors.As(err, &fe) || errors.As(err, &ee) ||
		errors.Is(err, ErrEncode) ||
		errors.Is(err, ErrFrameSizeMismatch)
}

// ErrEncode wraps failures of the still and video encoders.
var ErrEncode = errors.New("encode failed")

// ErrFrameSizeMismatch reports a video frame whose size differs from the
// first frame of the run.
var ErrFrameSizeMismatch = errors.New("frame size differs from video size")

// ErrJobNotFound is returned by job repositories for unknown ids.
var ErrJobNotFound = errors.New("job not found")
