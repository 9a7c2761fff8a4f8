package entity

import "github.com/google/uuid"

// ConversionRequestMessage is the inbound message from the frames.convert queue.
// SourcePrefix names the object prefix holding the .ppm frames. FrameRate and
// Codec override the worker defaults for video jobs when set.
type ConversionRequestMessage struct {
	JobID        uuid.UUID    `json:"job_id"`
	Kind         PipelineKind `json:"kind"`
	SourcePrefix string       `json:"source_prefix"`
	FrameRate    int          `json:"frame_rate,omitempty"`
	Codec        string       `json:"codec,omitempty"`
	NotifyEmail  string       `json:"notify_email,omitempty"`
}

// ConversionStatusMessage is published on the frames.status routing key.
type ConversionStatusMessage struct {
	JobID        uuid.UUID    `json:"job_id"`
	Kind         PipelineKind `json:"kind"`
	Status       JobStatus    `json:"status"`
	SourcePrefix string       `json:"source_prefix"`
	OutputKeys   []string     `json:"output_keys,omitempty"`
	FrameCount   int          `json:"frame_count,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Attempt      int          `json:"attempt"`
	MaxAttempts  int          `json:"max_attempts"`
}
