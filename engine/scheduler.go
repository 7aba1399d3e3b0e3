package engine

import (
	"fmt"
	"log/slog"

	"github.com/HardCoreQual/pdf2png/database"
	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// InitializeSchedules starts the cleanup cron job. The returned scheduler is
// nil when CleanupInterval is not positive.
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.CleanupInterval
	if interval <= 0 {
		Logger.Info("Cleanup schedule disabled")
		return nil
	}

	c := cron.New()
	var cleanupJob cron.Job
	cleanupJob = cron.FuncJob(serverHandler.runScheduledCleanup)
	cleanupJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cleanupJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %s", interval), cleanupJob); err != nil {
		Logger.Error("Failed to add cleanup job", "interval", interval, "error", err)
		return nil
	}
	Logger.Info("Adding Cleanup Job scheduler", "interval", interval)
	c.Start()
	return c
}

func (serverHandler *ServerHandler) runScheduledCleanup() {
	job, err := serverHandler.DB.CreateJob(database.JobTypeCleanup, "Scheduled cleanup")
	if err != nil {
		Logger.Error("Failed to create scheduled cleanup job", "error", err)
		return
	}
	serverHandler.cleanupJobFuncWithTracking(job.ID)
}
