package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
)

// FileJanitor deletes remote files that an interrupted extraction left behind.
// Only files carrying the extractor's filename prefix and older than MaxAge are touched.
type FileJanitor struct {
	client   RemoteFileLister
	prefix   string
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

func NewFileJanitor(client RemoteFileLister, cfg *config.JanitorConfig, prefix string) *FileJanitor {
	return &FileJanitor{
		client:   client,
		prefix:   prefix,
		maxAge:   cfg.MaxAge,
		schedule: cfg.Schedule,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start schedules the sweep. ctx is passed to every sweep.
func (j *FileJanitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.Sweep(ctx); err != nil {
			slog.Warn("remote file sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	slog.Info("remote file janitor started", "schedule", j.schedule, "max_age", j.maxAge.String())
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish
func (j *FileJanitor) Stop() {
	<-j.cron.Stop().Done()
	slog.Info("remote file janitor stopped")
}

// Sweep deletes stale files once and returns how many were deleted
func (j *FileJanitor) Sweep(ctx context.Context) (int, error) {
	if j.prefix == "" {
		// without a prefix every assistants file would qualify
		return 0, errors.New("janitor requires a file prefix")
	}

	files, err := j.client.ListFiles(ctx, PurposeAssistants)
	if err != nil {
		return 0, fmt.Errorf("failed to list remote files: %w", err)
	}

	cutoff := j.now().Add(-j.maxAge)
	deleted := 0
	var errs []error
	for _, f := range files {
		if !strings.HasPrefix(f.Filename, j.prefix) {
			continue
		}
		if time.Unix(f.CreatedAt, 0).After(cutoff) {
			continue
		}
		if err := j.client.DeleteFile(ctx, f.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", f.ID, err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		slog.Info("stale remote files deleted", "count", deleted)
	}
	return deleted, errors.Join(errs...)
}
