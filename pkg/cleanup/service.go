// Package cleanup provides data retention for the run history archive.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaosbench/chaosbench/pkg/archive"
	"github.com/chaosbench/chaosbench/pkg/config"
)

// Service periodically prunes scenario_runs rows older than the
// configured retention window. Safe to run from a single coordinator
// instance; pruning is idempotent.
type Service struct {
	config  config.RetentionConfig
	archive *archive.Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, archiveClient *archive.Client) *Service {
	return &Service{
		config:  cfg,
		archive: archiveClient,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"run_retention_days", s.config.RunRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneOldRuns(ctx)
}

func (s *Service) pruneOldRuns(_ context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.RunRetentionDays)
	count, err := s.archive.Prune(context.Background(), cutoff)
	if err != nil {
		slog.Error("Retention: prune old runs failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned old runs", "count", count)
	}
}
