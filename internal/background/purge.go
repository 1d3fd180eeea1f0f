package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudytech/loginguard/internal/models"
	"github.com/cloudytech/loginguard/internal/repositories"
)

// SettingsProvider supplies the settings snapshot for each purge run
type SettingsProvider interface {
	Current(ctx context.Context) models.ProtectionSettings
}

// PurgeManager periodically removes stale attempt rows left behind by
// addresses that never retried. The request path only cleans rows for
// the address it is writing; this sweep is the administrative backstop
// and is entirely optional.
type PurgeManager struct {
	ledger   *repositories.AttemptLedgerRepository
	settings SettingsProvider
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewPurgeManager creates a new purge manager
func NewPurgeManager(
	ledger *repositories.AttemptLedgerRepository,
	settings SettingsProvider,
	logger *slog.Logger,
	interval time.Duration,
) *PurgeManager {
	return &PurgeManager{
		ledger:   ledger,
		settings: settings,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic purge task
func (pm *PurgeManager) Start(ctx context.Context) {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.runPurge(ctx)

	for {
		select {
		case <-ticker.C:
			pm.runPurge(ctx)
		case <-pm.stopCh:
			pm.logger.Info("ledger purge manager stopped")
			return
		case <-ctx.Done():
			pm.logger.Info("ledger purge manager context cancelled")
			return
		}
	}
}

// runPurge removes rows that can no longer influence any lockout
// decision: older than twice the reset window and not carrying a live lock
func (pm *PurgeManager) runPurge(ctx context.Context) {
	purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	settings := pm.settings.Current(purgeCtx)
	cutoff := time.Now().Add(-2 * settings.ResetWindow())

	rowsDeleted, err := pm.ledger.PurgeAllOlderThan(purgeCtx, cutoff)
	if err != nil {
		pm.logger.Error("failed to purge stale attempt rows", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		pm.logger.Info("stale attempt rows purged", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the purge manager to stop
func (pm *PurgeManager) Stop() {
	close(pm.stopCh)
}
