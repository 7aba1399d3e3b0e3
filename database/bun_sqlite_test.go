package database

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/HardCoreQual/pdf2png/config"
	"github.com/oklog/ulid/v2"
)

func newTestRepository(t *testing.T) *BunDB {
	t.Helper()
	if Logger == nil {
		Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	db, err := NewRepository(config.ServerConfig{DatabaseType: "sqlite", DatabaseDbname: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to create sqlite repository: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBunSQLiteDatabase(t *testing.T) {
	db := newTestRepository(t)
	t.Log("Bun SQLite database setup successfully")

	t.Run("Create and retrieve conversion", func(t *testing.T) {
		conv, err := NewConversion("report.pdf", "pdfium", "png", 1.0)
		if err != nil {
			t.Fatalf("NewConversion failed: %v", err)
		}
		conv.SourceSize = 1234

		if err := db.SaveConversion(conv); err != nil {
			t.Fatalf("Failed to save conversion: %v", err)
		}

		retrieved, err := db.GetConversion(conv.ID)
		if err != nil {
			t.Fatalf("Failed to get conversion: %v", err)
		}
		if retrieved.Name != "report.pdf" || retrieved.Engine != "pdfium" {
			t.Errorf("Unexpected conversion %+v", retrieved)
		}
		if retrieved.Status != ConversionStatusRunning {
			t.Errorf("Expected running, got %s", retrieved.Status)
		}

		// Update through the upsert path
		conv.PageCount = 3
		conv.PagesDone = 3
		conv.Status = ConversionStatusCompleted
		if err := db.SaveConversion(conv); err != nil {
			t.Fatalf("Failed to update conversion: %v", err)
		}
		updated, err := db.GetConversion(conv.ID)
		if err != nil {
			t.Fatalf("Failed to get updated conversion: %v", err)
		}
		if updated.PagesDone != 3 || updated.Status != ConversionStatusCompleted {
			t.Errorf("Update not persisted: %+v", updated)
		}
		if updated.SourceSize != 1234 {
			t.Errorf("Expected source size 1234, got %d", updated.SourceSize)
		}
	})

	t.Run("Missing conversion", func(t *testing.T) {
		_, err := db.GetConversion(ulid.Make())
		if !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("Expected sql.ErrNoRows, got %v", err)
		}
		if err := db.DeleteConversion(ulid.Make()); !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("Expected sql.ErrNoRows on delete, got %v", err)
		}
	})

	t.Run("Create and retrieve job", func(t *testing.T) {
		job, err := db.CreateJob(JobTypeConversion, "Converting report.pdf")
		if err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}

		if job.ID.String() == "" {
			t.Error("Job ID was not set after create")
		}

		retrievedJob, err := db.GetJob(job.ID)
		if err != nil {
			t.Fatalf("Failed to get job: %v", err)
		}

		if retrievedJob.Message != job.Message {
			t.Errorf("Expected message %s, got %s", job.Message, retrievedJob.Message)
		}

		if err := db.UpdateJobStatus(job.ID, JobStatusRunning, "Rendering"); err != nil {
			t.Fatalf("Failed to update job status: %v", err)
		}

		err = db.UpdateJobProgress(job.ID, 50, "Page 1 of 2")
		if err != nil {
			t.Fatalf("Failed to update job progress: %v", err)
		}

		active, err := db.GetActiveJobs()
		if err != nil {
			t.Fatalf("Failed to get active jobs: %v", err)
		}
		if len(active) != 1 || active[0].Progress != 50 {
			t.Errorf("Expected one active job at 50%%, got %+v", active)
		}

		err = db.CompleteJob(job.ID, `{"pagesRendered": 2}`)
		if err != nil {
			t.Fatalf("Failed to complete job: %v", err)
		}

		completedJob, err := db.GetJob(job.ID)
		if err != nil {
			t.Fatalf("Failed to get completed job: %v", err)
		}

		if completedJob.Status != JobStatusCompleted {
			t.Errorf("Expected status %s, got %s", JobStatusCompleted, completedJob.Status)
		}

		if completedJob.Progress != 100 {
			t.Errorf("Expected progress 100, got %d", completedJob.Progress)
		}
		if completedJob.StartedAt == nil || completedJob.CompletedAt == nil {
			t.Error("Expected started and completed timestamps")
		}
	})

	t.Run("Failed job", func(t *testing.T) {
		job, err := db.CreateJob(JobTypeArchive, "Exporting images.zip")
		if err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}
		if err := db.UpdateJobError(job.ID, "fetch failed"); err != nil {
			t.Fatalf("Failed to set job error: %v", err)
		}
		failed, err := db.GetJob(job.ID)
		if err != nil {
			t.Fatalf("Failed to get job: %v", err)
		}
		if failed.Status != JobStatusFailed || failed.Error != "fetch failed" {
			t.Errorf("Unexpected failed job %+v", failed)
		}
	})
}

func TestRecentConversionsOrderAndDelete(t *testing.T) {
	db := newTestRepository(t)

	var ids []ulid.ULID
	base := time.Now().Add(-time.Hour)
	for i := range 3 {
		conv, err := NewConversion("doc.pdf", "fitz", "png", 1.0)
		if err != nil {
			t.Fatal(err)
		}
		conv.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		conv.Status = ConversionStatusCompleted
		if err := db.SaveConversion(conv); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, conv.ID)
	}

	recent, err := db.GetRecentConversions(2, 0)
	if err != nil {
		t.Fatalf("GetRecentConversions failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != ids[2] || recent[1].ID != ids[1] {
		t.Errorf("Expected newest first, got %v", recent)
	}

	if err := db.DeleteConversion(ids[0]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	all, err := db.GetRecentConversions(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 conversions after delete, got %d", len(all))
	}
}

func TestConversionsOlderThanSkipsRunning(t *testing.T) {
	db := newTestRepository(t)

	old, _ := NewConversion("old.pdf", "fitz", "png", 1.0)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	old.Status = ConversionStatusCompleted
	running, _ := NewConversion("running.pdf", "fitz", "png", 1.0)
	running.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh, _ := NewConversion("fresh.pdf", "fitz", "png", 1.0)
	fresh.Status = ConversionStatusFailed

	for _, c := range []*Conversion{old, running, fresh} {
		if err := db.SaveConversion(c); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	expired, err := db.GetConversionsOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("GetConversionsOlderThan failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != old.ID {
		t.Errorf("Expected only old.pdf, got %+v", expired)
	}
}

func TestFailStaleConversions(t *testing.T) {
	db := newTestRepository(t)

	stuck, _ := NewConversion("stuck.pdf", "fitz", "png", 1.0)
	done, _ := NewConversion("done.pdf", "fitz", "png", 1.0)
	done.Status = ConversionStatusCompleted
	for _, c := range []*Conversion{stuck, done} {
		if err := db.SaveConversion(c); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	// Still fresh
	n, err := db.FailStaleConversions(time.Hour, "interrupted")
	if err != nil {
		t.Fatalf("FailStaleConversions failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 updates, got %d", n)
	}

	time.Sleep(10 * time.Millisecond)
	n, err = db.FailStaleConversions(time.Millisecond, "interrupted")
	if err != nil {
		t.Fatalf("FailStaleConversions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 update, got %d", n)
	}

	got, err := db.GetConversion(stuck.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ConversionStatusFailed || got.Error != "interrupted" {
		t.Errorf("Expected failed/interrupted, got %s/%q", got.Status, got.Error)
	}
	if got, _ := db.GetConversion(done.ID); got.Status != ConversionStatusCompleted {
		t.Errorf("Completed conversion changed to %s", got.Status)
	}

	// A failed conversion is now eligible for expiry
	expired, err := db.GetConversionsOlderThan(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 2 {
		t.Errorf("Expected 2 expiry candidates, got %d", len(expired))
	}
}

func TestCalculateUUIDSameInstant(t *testing.T) {
	now := time.Now()
	seen := make(map[ulid.ULID]bool)
	var prev ulid.ULID
	for i := range 100 {
		id, err := CalculateUUID(now)
		if err != nil {
			t.Fatalf("CalculateUUID failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("Duplicate ULID %s on call %d", id, i)
		}
		if i > 0 && id.Compare(prev) <= 0 {
			t.Errorf("ULID %s not after %s", id, prev)
		}
		seen[id] = true
		prev = id
	}
}

func TestNewConversionIDsDiffer(t *testing.T) {
	a, err := NewConversion("a.pdf", "fitz", "png", 1.0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewConversion("a.pdf", "fitz", "png", 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Errorf("Two conversions share ID %s", a.ID)
	}
}

func TestDeleteOldJobs(t *testing.T) {
	db := newTestRepository(t)

	done, _ := db.CreateJob(JobTypeConversion, "done")
	db.CompleteJob(done.ID, "")
	pending, _ := db.CreateJob(JobTypeConversion, "pending")

	// Nothing is older than an hour yet
	n, err := db.DeleteOldJobs(time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldJobs failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 deletions, got %d", n)
	}

	time.Sleep(10 * time.Millisecond)
	n, err = db.DeleteOldJobs(time.Millisecond)
	if err != nil {
		t.Fatalf("DeleteOldJobs failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deletion, got %d", n)
	}
	if _, err := db.GetJob(pending.ID); err != nil {
		t.Errorf("Pending job should survive cleanup: %v", err)
	}
}

func TestConversionImageURLs(t *testing.T) {
	conv, _ := NewConversion("a.pdf", "fitz", "jpeg", 1.0)
	conv.PagesDone = 2
	urls := conv.ImageURLs("/uploads")
	want := []string{
		"/uploads/" + conv.ID.String() + "/0.jpg",
		"/uploads/" + conv.ID.String() + "/1.jpg",
	}
	if len(urls) != 2 || urls[0] != want[0] || urls[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, urls)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct{ done, total, want int }{
		{0, 4, 0},
		{1, 4, 25},
		{4, 4, 100},
		{5, 4, 100},
		{0, 0, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.done, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestUnknownDatabaseType(t *testing.T) {
	if Logger == nil {
		Logger = slog.Default()
	}
	if _, err := NewRepository(config.ServerConfig{DatabaseType: "oracle"}); err == nil {
		t.Error("Expected error for unknown database type")
	}
}
