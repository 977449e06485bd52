package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"social_auth/internal/app/worker"
	"social_auth/internal/platform/metrics"
)

// NewMailerCmd creates the mailer subcommand, a standalone outbox consumer.
func NewMailerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mailer",
		Short: "Deliver queued mail",
		Long:  `Drain the Redis mail outbox and deliver each message over SMTP, retrying failed deliveries.`,
		RunE:  runMailer,
	}
}

func runMailer(cmd *cobra.Command, _ []string) error {
	rt, err := loadResources()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.openRedis(ctx); err != nil {
		return err
	}
	sender, err := rt.deliverySender()
	if err != nil {
		return oops.Code("MAILER_INIT_FAILED").Wrap(err)
	}

	worker.NewMailWorker(rt.outbox(), sender, rt.logger, metrics.NewAuthMetrics()).Start(ctx)
	return nil
}

// startMailWorker runs the outbox consumer in-process until ctx is done.
// The returned channel closes once the worker has stopped.
func startMailWorker(ctx context.Context, rt *resources, m *metrics.AuthMetrics) (<-chan struct{}, error) {
	sender, err := rt.deliverySender()
	if err != nil {
		return nil, oops.Code("MAILER_INIT_FAILED").Wrap(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.NewMailWorker(rt.outbox(), sender, rt.logger, m).Start(ctx)
	}()
	return done, nil
}
