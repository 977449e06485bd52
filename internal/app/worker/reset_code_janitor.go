package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"social_auth/internal/common"
	"social_auth/internal/common/security"
	"social_auth/internal/domain/repository"
	"social_auth/internal/platform/metrics"
)

// ResetCodeJanitor clears reset codes that can no longer be redeemed.
// Redemption checks expiry on its own.
type ResetCodeJanitor struct {
	codes   repository.ResetCodeRepository
	clock   common.Clock
	logger  zerolog.Logger
	metrics *metrics.AuthMetrics
}

func NewResetCodeJanitor(codes repository.ResetCodeRepository, clock common.Clock, logger zerolog.Logger, m *metrics.AuthMetrics) *ResetCodeJanitor {
	return &ResetCodeJanitor{
		codes:   codes,
		clock:   clock,
		logger:  logger.With().Str("component", "reset_code_janitor").Logger(),
		metrics: m,
	}
}

// RunOnce clears every code older than security.ResetCodeTTL.
func (j *ResetCodeJanitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.clock.Now().Add(-security.ResetCodeTTL)
	n, err := j.codes.PurgeIssuedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error().Err(err).Msg("Failed to purge expired reset codes")
		return 0, err
	}
	j.metrics.ObserveCodesPurged(n)
	if n > 0 {
		j.logger.Info().Int64("purged", n).Msg("Expired reset codes purged")
	}
	return n, nil
}

// Start runs RunOnce on the given standard cron schedule and blocks until
// ctx is cancelled and any in-flight run has finished.
func (j *ResetCodeJanitor) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		_, _ = j.RunOnce(ctx)
	}); err != nil {
		return err
	}

	j.logger.Info().Str("schedule", schedule).Msg("Reset code janitor started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info().Msg("Reset code janitor stopped")
	return nil
}
