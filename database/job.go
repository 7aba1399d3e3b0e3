package database

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the job has reached a terminal status
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobType represents the type of job
type JobType string

const (
	JobTypeConversion JobType = "conversion"
	JobTypeArchive    JobType = "archive"
	JobTypeCleanup    JobType = "cleanup"
)

// Job represents a background job or operation
type Job struct {
	ID          ulid.ULID  `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`         // 0-100
	CurrentStep string     `json:"currentStep"`      // Human-readable current step
	TotalSteps  int        `json:"totalSteps"`       // Total number of steps
	Message     string     `json:"message"`          // Status message
	Error       string     `json:"error,omitempty"`  // Error message if failed
	Result      string     `json:"result,omitempty"` // JSON result data
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobSummary is stored as the result of conversion and archive jobs
type JobSummary struct {
	FilesProcessed int      `json:"filesProcessed"`
	FilesTotal     int      `json:"filesTotal"`
	PagesRendered  int      `json:"pagesRendered"`
	BytesProcessed int64    `json:"bytesProcessed"`
	Errors         int      `json:"errors"`
	Conversions    []string `json:"conversions,omitempty"`
	Details        string   `json:"details,omitempty"`
}

// Percent converts done/total into a 0-100 job progress value
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	p := done * 100 / total
	return max(0, min(p, 100))
}
