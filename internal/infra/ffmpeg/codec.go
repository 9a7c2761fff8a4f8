package ffmpeg

import (
	"fmt"
	"strings"
)

// Codec maps a four-character container tag to the ffmpeg encoder that
// produces it.
type Codec struct {
	Tag     string
	Encoder string
	// EvenOnly encoders cannot take odd frame sizes in any pixel format.
	EvenOnly bool
}

var codecs = map[string]Codec{
	"avc1": {Tag: "avc1", Encoder: "libx264"},
	"h264": {Tag: "avc1", Encoder: "libx264"},
	"hvc1": {Tag: "hvc1", Encoder: "libx265"},
	"mp4v": {Tag: "mp4v", Encoder: "mpeg4", EvenOnly: true},
}

const DefaultCodec = "avc1"

func LookupCodec(tag string) (Codec, error) {
	c, ok := codecs[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return Codec{}, fmt.Errorf("unsupported codec tag %q (expected avc1|h264|hvc1|mp4v)", tag)
	}
	return c, nil
}

// pixelFormat picks 4:2:0 when the frame allows it and falls back to 4:4:4
// for odd sizes, which 4:2:0 chroma subsampling cannot represent.
func (c Codec) pixelFormat(width, height int) (string, error) {
	if width%2 == 0 && height%2 == 0 {
		return "yuv420p", nil
	}
	if c.EvenOnly {
		return "", fmt.Errorf("codec %s needs even frame dimensions, got %dx%d", c.Tag, width, height)
	}
	return "yuv444p", nil
}
