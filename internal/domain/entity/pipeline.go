package entity

import "time"

type PipelineKind string

const (
	PipelineStills PipelineKind = "stills"
	PipelineVideo  PipelineKind = "video"
)

// VideoFileName is the container written by the video pipeline inside DestDir.
const VideoFileName = "output.mp4"

// PipelineConfig is everything a pipeline run needs to know. Codec is a
// four-character tag such as "avc1" or "mp4v"; FrameRate and Codec are
// ignored by the stills pipeline.
type PipelineConfig struct {
	SourceDir string
	DestDir   string
	FrameRate int
	Codec     string
}

// VideoInfo describes a written video as reported by a prober.
type VideoInfo struct {
	Width    int
	Height   int
	Frames   int
	CodecTag string
}

type RunResult struct {
	Kind            PipelineKind
	FramesProcessed int
	Outputs         []string
	Width           int
	Height          int
	Elapsed         time.Duration
}
