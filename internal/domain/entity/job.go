package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job is one conversion request handled by the worker.
type Job struct {
	ID           uuid.UUID
	Kind         PipelineKind
	SourcePrefix string
	OutputKeys   []string
	Status       JobStatus
	FrameCount   int
	Attempt      int
	MaxAttempts  int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewJob(kind PipelineKind, sourcePrefix string, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           uuid.New(),
		Kind:         kind,
		SourcePrefix: sourcePrefix,
		Status:       JobStatusPending,
		MaxAttempts:  maxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(outputKeys []string, frameCount int) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.OutputKeys = outputKeys
	j.FrameCount = frameCount
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

// GiveUp exhausts the remaining attempts so the job is never redelivered.
func (j *Job) GiveUp(errMsg string) {
	j.MarkFailed(errMsg)
	j.Attempt = j.MaxAttempts
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
