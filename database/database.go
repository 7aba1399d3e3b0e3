package database

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ConversionStatus is the outcome of converting one uploaded document
type ConversionStatus string

const (
	ConversionStatusRunning   ConversionStatus = "running"
	ConversionStatusCompleted ConversionStatus = "completed"
	ConversionStatusFailed    ConversionStatus = "failed"
)

// Conversion is one uploaded document and the page images rendered from it
type Conversion struct {
	ID         ulid.ULID        `json:"id"`
	JobID      string           `json:"jobId,omitempty"`
	Name       string           `json:"name"` // original file name
	Engine     string           `json:"engine"`
	Format     string           `json:"format"` // png or jpeg
	Scale      float64          `json:"scale"`
	PageCount  int              `json:"pageCount"`  // pages in the document
	PagesDone  int              `json:"pagesDone"`  // images written to disk
	SourceSize int64            `json:"sourceSize"` // upload size in bytes
	Status     ConversionStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Extension returns the image file extension for the conversion
func (c *Conversion) Extension() string {
	if c.Format == "jpeg" {
		return "jpg"
	}
	return "png"
}

// ImageName is the file name of the zero-based page image
func (c *Conversion) ImageName(index int) string {
	return fmt.Sprintf("%d.%s", index, c.Extension())
}

// ImageURLs returns the public URLs of the images written so far under prefix
func (c *Conversion) ImageURLs(prefix string) []string {
	urls := make([]string, 0, c.PagesDone)
	for i := range c.PagesDone {
		urls = append(urls, path.Join(prefix, c.ID.String(), c.ImageName(i)))
	}
	return urls
}

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Repository defines database operations
type Repository interface {
	Close() error
	// Conversion methods
	SaveConversion(conv *Conversion) error
	GetConversion(id ulid.ULID) (*Conversion, error)
	GetRecentConversions(limit, offset int) ([]Conversion, error)
	GetConversionsOlderThan(age time.Duration) ([]Conversion, error)
	DeleteConversion(id ulid.ULID) error
	FailStaleConversions(olderThan time.Duration, reason string) (int, error)
	// Job tracking methods
	CreateJob(jobType JobType, message string) (*Job, error)
	UpdateJobProgress(jobID ulid.ULID, progress int, currentStep string) error
	UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(jobID ulid.ULID, errorMsg string) error
	CompleteJob(jobID ulid.ULID, result string) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteOldJobs(olderThan time.Duration) (int, error)
}

// NewConversion builds a running conversion with a fresh ULID
func NewConversion(name, engine, format string, scale float64) (*Conversion, error) {
	now := time.Now()
	id, err := CalculateUUID(now)
	if err != nil {
		return nil, err
	}
	return &Conversion{
		ID:        id,
		Name:      name,
		Engine:    engine,
		Format:    format,
		Scale:     scale,
		Status:    ConversionStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ulidEntropy is shared by every ID this process generates so that IDs minted
// in the same millisecond still differ and stay ordered
var (
	ulidEntropyMu sync.Mutex
	ulidEntropy   = ulid.Monotonic(rand.Reader, 0)
)

// CalculateUUID generates a time ordered ULID that is unique within the process
func CalculateUUID(t time.Time) (ulid.ULID, error) {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.New(ulid.Timestamp(t), ulidEntropy)
}
