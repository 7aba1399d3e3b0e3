package engine

import (
	"fmt"
	"os"
)

// StartupChecks makes sure the upload, staging and archive directories exist
func (serverHandler *ServerHandler) StartupChecks() error {
	if serverHandler.ServerConfig.UploadPath == "" {
		return fmt.Errorf("upload path not configured")
	}
	for _, dir := range []string{
		serverHandler.ServerConfig.UploadPath,
		serverHandler.stagingPath(),
		serverHandler.archivesPath(),
	} {
		if err := directoryCheck(dir); err != nil {
			return err
		}
	}
	if n := serverHandler.removeStaleStaging(0); n > 0 {
		Logger.Info("Removed staged uploads left by a previous run", "count", n)
	}
	// Nothing is converting yet, so every running record belongs to a previous process
	n, err := serverHandler.DB.FailStaleConversions(0, interruptedConversion)
	if err != nil {
		return fmt.Errorf("failed to close interrupted conversions: %w", err)
	}
	if n > 0 {
		Logger.Info("Marked conversions interrupted by a previous run as failed", "count", n)
	}
	return nil
}

// directoryCheck ensures path exists and is a directory
func directoryCheck(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating directory", "path", path)
			if err := os.MkdirAll(path, 0755); err != nil {
				Logger.Error("Failed to create directory", "path", path, "error", err)
				return err
			}
			return nil
		}
		Logger.Error("Error checking directory", "path", path, "error", err)
		return err
	}

	if !info.IsDir() {
		Logger.Error("Path exists but is not a directory", "path", path)
		return fmt.Errorf("path is not a directory: %s", path)
	}

	Logger.Info("Directory exists", "path", path)
	return nil
}
