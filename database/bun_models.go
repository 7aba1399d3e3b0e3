package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunConversion represents the conversions table for Bun ORM
type BunConversion struct {
	bun.BaseModel `bun:"table:conversions,alias:c"`

	ID         string    `bun:"id,pk"` // ULID as string
	JobID      string    `bun:"job_id,nullzero"`
	Name       string    `bun:"name,notnull"`
	Engine     string    `bun:"engine,notnull"`
	Format     string    `bun:"format,notnull"`
	Scale      float64   `bun:"scale,notnull"`
	PageCount  int       `bun:"page_count,notnull"`
	PagesDone  int       `bun:"pages_done,notnull"`
	SourceSize int64     `bun:"source_size,notnull"`
	Status     string    `bun:"status,notnull"`
	Error      string    `bun:"error,nullzero"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// ToConversion converts BunConversion to Conversion
func (bc *BunConversion) ToConversion() (*Conversion, error) {
	parsedULID, err := ulid.Parse(bc.ID)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		ID:         parsedULID,
		JobID:      bc.JobID,
		Name:       bc.Name,
		Engine:     bc.Engine,
		Format:     bc.Format,
		Scale:      bc.Scale,
		PageCount:  bc.PageCount,
		PagesDone:  bc.PagesDone,
		SourceSize: bc.SourceSize,
		Status:     ConversionStatus(bc.Status),
		Error:      bc.Error,
		CreatedAt:  bc.CreatedAt,
		UpdatedAt:  bc.UpdatedAt,
	}, nil
}

// FromConversion converts Conversion to BunConversion
func FromConversion(conv *Conversion) *BunConversion {
	return &BunConversion{
		ID:         conv.ID.String(),
		JobID:      conv.JobID,
		Name:       conv.Name,
		Engine:     conv.Engine,
		Format:     conv.Format,
		Scale:      conv.Scale,
		PageCount:  conv.PageCount,
		PagesDone:  conv.PagesDone,
		SourceSize: conv.SourceSize,
		Status:     string(conv.Status),
		Error:      conv.Error,
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
	}
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Progress    int        `bun:"progress,default:0"`
	CurrentStep string     `bun:"current_step,default:''"`
	TotalSteps  int        `bun:"total_steps,default:0"`
	Message     string     `bun:"message,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
