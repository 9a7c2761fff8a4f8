package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
)

type Prober struct {
	binary string
}

func NewProber(binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		CodecTag     string `json:"codec_tag_string"`
		NbReadFrames string `json:"nb_read_frames"`
	} `json:"streams"`
}

// Probe counts the decoded frames of the first video stream in path.
func (p *Prober) Probe(ctx context.Context, path string) (*entity.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=width,height,codec_tag_string,nb_read_frames",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*entity.VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream")
	}
	s := out.Streams[0]
	frames, err := strconv.Atoi(s.NbReadFrames)
	if err != nil {
		return nil, fmt.Errorf("parse frame count %q: %w", s.NbReadFrames, err)
	}
	return &entity.VideoInfo{
		Width:    s.Width,
		Height:   s.Height,
		Frames:   frames,
		CodecTag: s.CodecTag,
	}, nil
}
