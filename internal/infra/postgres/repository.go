package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO conversion_jobs (
			id, kind, source_prefix, output_keys, status, frame_count,
			attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Kind), job.SourcePrefix, outputKeys(job), string(job.Status),
		job.FrameCount, job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE conversion_jobs SET
			status=$2, output_keys=$3, frame_count=$4,
			attempt=$5, error_message=$6, updated_at=$7, completed_at=$8
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), outputKeys(job), job.FrameCount,
		job.Attempt, job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, entity.ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `
		SELECT id, kind, source_prefix, output_keys, status, frame_count,
			attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		FROM conversion_jobs WHERE id=$1`

	job := &entity.Job{}
	var kind, status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &kind, &job.SourcePrefix, &job.OutputKeys, &status,
		&job.FrameCount, &job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Kind = entity.PipelineKind(kind)
	job.Status = entity.JobStatus(status)
	if len(job.OutputKeys) == 0 {
		job.OutputKeys = nil
	}
	return job, nil
}

func outputKeys(job *entity.Job) []string {
	if job.OutputKeys == nil {
		return []string{}
	}
	return job.OutputKeys
}
