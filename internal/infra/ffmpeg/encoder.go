package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/domain/port"
	"go.uber.org/zap"
)

var (
	ErrFrameSizeMismatch = entity.ErrFrameSizeMismatch
	ErrWriterClosed      = errors.New("video writer already closed")
)

// Encoder starts one ffmpeg process per video. Frames are streamed to it as
// raw rgb24 over stdin.
type Encoder struct {
	binary string
	logger *zap.Logger
}

func NewEncoder(binary string, logger *zap.Logger) *Encoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Encoder{binary: binary, logger: logger}
}

func BuildArgs(outputPath string, width, height, frameRate int, codec Codec, pixFmt string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(frameRate),
		"-i", "-",
		"-an",
		"-c:v", codec.Encoder,
		"-tag:v", codec.Tag,
		"-pix_fmt", pixFmt,
		"-r", strconv.Itoa(frameRate),
		"-movflags", "+faststart",
		outputPath,
	}
}

func (e *Encoder) Open(ctx context.Context, path string, width, height int, frameRate int, codecTag string) (port.VideoEncoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", width, height)
	}
	if frameRate <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", frameRate)
	}
	codec, err := LookupCodec(codecTag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrEncode, err)
	}
	pixFmt, err := codec.pixelFormat(width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrEncode, err)
	}

	args := BuildArgs(path, width, height, frameRate, codec, pixFmt)
	cmd := exec.CommandContext(ctx, e.binary, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}

	e.logger.Debug("starting ffmpeg", zap.String("cmd", e.binary+" "+strings.Join(args, " ")))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &Writer{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		path:   path,
		width:  width,
		height: height,
	}, nil
}

// Writer is one running ffmpeg process. It is not safe for concurrent use.
type Writer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	path   string
	width  int
	height int
	frames int
	done   bool
}

func (w *Writer) Append(frame *entity.Frame) error {
	if w.done {
		return ErrWriterClosed
	}
	if frame.Width != w.width || frame.Height != w.height {
		return fmt.Errorf("%w: frame %d is %s, video is %dx%d",
			ErrFrameSizeMismatch, w.frames, frame, w.width, w.height)
	}
	if _, err := w.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("%w: write frame %d: %w%s", entity.ErrEncode, w.frames, err, w.stderrSuffix())
	}
	w.frames++
	return nil
}

// Frames reports how many frames were accepted so far.
func (w *Writer) Frames() int { return w.frames }

// Close ends the input stream and waits for ffmpeg to finalize the container.
// A failed finalize removes whatever ffmpeg left behind.
func (w *Writer) Close() error {
	if w.done {
		return ErrWriterClosed
	}
	w.done = true

	closeErr := w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		os.Remove(w.path)
		return fmt.Errorf("%w: ffmpeg: %w%s", entity.ErrEncode, err, w.stderrSuffix())
	}
	if closeErr != nil {
		os.Remove(w.path)
		return fmt.Errorf("%w: close ffmpeg stdin: %w", entity.ErrEncode, closeErr)
	}
	return nil
}

// Abort kills ffmpeg and deletes the partial output.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true

	w.stdin.Close()
	if w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	w.cmd.Wait()

	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove partial video: %w", err)
	}
	return nil
}

func (w *Writer) stderrSuffix() string {
	msg := strings.TrimSpace(w.stderr.String())
	if msg == "" {
		return ""
	}
	return ", output: " + msg
}
