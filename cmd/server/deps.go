package main

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"social_auth/internal/common"
	"social_auth/internal/platform/config"
	"social_auth/internal/platform/database"
	"social_auth/internal/platform/logger"
	"social_auth/internal/platform/mailer"
	"social_auth/internal/platform/queue"
)

// resources holds the process-wide resources opened by a subcommand.
type resources struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *sql.DB
	rdb    *redis.Client
}

func loadResources() (*resources, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &resources{cfg: cfg, logger: logger.Init(cfg.LogLevel, !cfg.IsProduction())}, nil
}

func (rt *resources) openDB(ctx context.Context) error {
	db, err := database.Connect(ctx, rt.cfg)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	rt.db = db
	return nil
}

func (rt *resources) openRedis(ctx context.Context) error {
	rdb, err := queue.Connect(ctx, rt.cfg)
	if err != nil {
		return oops.Code("REDIS_CONNECT_FAILED").With("operation", "connect to redis").Wrap(err)
	}
	rt.rdb = rdb
	return nil
}

func (rt *resources) close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Error().Err(err).Msg("Error closing database")
		} else {
			rt.logger.Info().Msg("Database connection closed")
		}
	}
	queue.Close(rt.rdb)
}

// outbox returns the Redis-backed mail queue. Requires openRedis.
func (rt *resources) outbox() *mailer.Outbox {
	return mailer.NewOutbox(rt.rdb, rt.cfg.MailQueueName, common.SystemClock{})
}

// deliverySender returns the sender that actually hands mail off: SMTP, or
// the log in development.
func (rt *resources) deliverySender() (mailer.Sender, error) {
	if rt.cfg.MailTransport == config.MailTransportLog {
		return mailer.NewLogSender(rt.logger), nil
	}
	return mailer.NewSMTPSender(rt.cfg)
}

// requestSender returns the sender used on the request path.
func (rt *resources) requestSender() (mailer.Sender, error) {
	if rt.cfg.MailTransport == config.MailTransportQueue {
		return rt.outbox(), nil
	}
	return rt.deliverySender()
}
