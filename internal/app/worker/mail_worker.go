package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"social_auth/internal/domain/model"
	"social_auth/internal/platform/mailer"
	"social_auth/internal/platform/metrics"
)

const (
	// MaxDeliveryAttempts bounds how often one message is tried.
	MaxDeliveryAttempts = 3

	popTimeout   = 5 * time.Second
	errorBackoff = 5 * time.Second

	requeueRetries = 2
	requeueBackoff = 50 * time.Millisecond
)

// MailQueue is the outbox the worker drains.
type MailQueue interface {
	Queue() string
	Pop(ctx context.Context, timeout time.Duration) (*model.MailMessage, error)
	Requeue(ctx context.Context, msg *model.MailMessage) error
}

// MailWorker delivers queued mail one message at a time.
type MailWorker struct {
	queue   MailQueue
	sender  mailer.Sender
	logger  zerolog.Logger
	metrics *metrics.AuthMetrics
	backoff time.Duration
}

func NewMailWorker(queue MailQueue, sender mailer.Sender, logger zerolog.Logger, m *metrics.AuthMetrics) *MailWorker {
	return &MailWorker{
		queue:   queue,
		sender:  sender,
		logger:  logger.With().Str("component", "mail_worker").Logger(),
		metrics: m,
		backoff: errorBackoff,
	}
}

// Start blocks until ctx is cancelled.
func (w *MailWorker) Start(ctx context.Context) {
	w.logger.Info().Str("queue", w.queue.Queue()).Msg("Mail worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Mail worker stopping")
			return
		default:
			w.processNext(ctx)
		}
	}
}

// processNext handles at most one message and returns its resulting status,
// or "" when nothing was popped.
func (w *MailWorker) processNext(ctx context.Context) string {
	msg, err := w.queue.Pop(ctx, popTimeout)
	if err != nil {
		if errors.Is(err, mailer.ErrOutboxEmpty) || ctx.Err() != nil {
			return ""
		}
		w.logger.Error().Err(err).Str("queue", w.queue.Queue()).Msg("Failed to pop from mail outbox")
		w.sleep(ctx)
		return ""
	}
	status := w.deliver(ctx, msg)
	w.logger.Debug().Str("message_id", msg.ID).Str("status", status).Int("attempts", msg.Attempts).Msg("Mail processed")
	return status
}

// deliver sends msg and returns its resulting status.
func (w *MailWorker) deliver(ctx context.Context, msg *model.MailMessage) string {
	msg.Attempts++
	log := w.logger.With().Str("message_id", msg.ID).Int("attempt", msg.Attempts).Logger()

	err := w.sender.Send(ctx, msg.To, msg.Subject, msg.Body)
	if err == nil {
		w.metrics.ObserveMailDelivery(metrics.OutcomeSuccess)
		log.Info().Msg("Mail delivered")
		return model.MailStatusDelivered
	}

	errMsg := err.Error()
	msg.LastError = &errMsg
	if msg.Attempts >= MaxDeliveryAttempts {
		w.metrics.ObserveMailDelivery(metrics.OutcomeDropped)
		log.Error().Err(err).Msg("Mail delivery failed; attempts exhausted, dropping")
		return model.MailStatusDropped
	}

	if rqErr := w.requeue(ctx, msg); rqErr != nil {
		w.metrics.ObserveMailDelivery(metrics.OutcomeDropped)
		log.Error().Err(rqErr).Msg("Failed to requeue mail")
		return model.MailStatusDropped
	}
	w.metrics.ObserveMailDelivery(metrics.OutcomeRequeue)
	log.Warn().Err(err).Msg("Mail delivery failed; requeued")
	w.sleep(ctx)
	return model.MailStatusRequeued
}

// requeue pushes msg back, retrying transient push failures.
func (w *MailWorker) requeue(ctx context.Context, msg *model.MailMessage) error {
	b := retry.WithMaxRetries(requeueRetries, retry.NewExponential(requeueBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := w.queue.Requeue(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (w *MailWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
