package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"social_auth/internal/api"
	"social_auth/internal/api/handler"
	"social_auth/internal/api/middleware"
	"social_auth/internal/app/service"
	"social_auth/internal/app/worker"
	"social_auth/internal/common"
	"social_auth/internal/common/security"
	"social_auth/internal/domain/repository"
	"social_auth/internal/platform/config"
	"social_auth/internal/platform/metrics"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var withMailer bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. With --with-mailer and MAIL_TRANSPORT=queue the
outbox consumer runs in the same process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, withMailer)
		},
	}
	cmd.Flags().BoolVar(&withMailer, "with-mailer", false, "run the mail outbox worker in-process")
	return cmd
}

func runServe(cmd *cobra.Command, withMailer bool) error {
	rt, err := loadResources()
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.openDB(ctx); err != nil {
		return err
	}
	if cfg.MailTransport == config.MailTransportQueue {
		if err := rt.openRedis(ctx); err != nil {
			return err
		}
	}

	clock := common.SystemClock{}
	authMetrics := metrics.NewAuthMetrics()

	hasher, err := security.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	codec, err := security.NewTokenCodec(cfg.JWTKey, cfg.JWTExp, clock)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	sender, err := rt.requestSender()
	if err != nil {
		return oops.Code("MAILER_INIT_FAILED").Wrap(err)
	}

	userRepo := repository.NewPgUserRepository(rt.db)
	followRepo := repository.NewPgFollowRepository(rt.db)

	authService, err := service.NewAuthService(service.AuthDeps{
		Users:             userRepo,
		Follows:           followRepo,
		Hasher:            hasher,
		Tokens:            codec,
		Codes:             security.NewResetCodeGenerator(),
		Mail:              sender,
		Clock:             clock,
		Logger:            rt.logger,
		Metrics:           authMetrics,
		PlatformAccountID: cfg.PlatformAccountID,
	})
	if err != nil {
		return oops.Code("AUTH_INIT_FAILED").Wrap(err)
	}
	userService := service.NewUserService(userRepo)

	gate := middleware.NewGate(codec, userRepo, rt.logger)
	router := api.NewRouter(api.RouterDeps{
		Logger: rt.logger,
		Gate:   gate,
		AuthHandler: handler.NewAuthHandler(authService, handler.CookieConfig{
			TTL:    cfg.JWTCookieExpiry,
			Secure: cfg.IsProduction(),
			Clock:  clock,
		}),
		UserHandler:    handler.NewUserHandler(userService),
		MetricsHandler: authMetrics.Handler(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	var workerDone <-chan struct{}
	if withMailer && cfg.MailTransport == config.MailTransportQueue {
		if workerDone, err = startMailWorker(workerCtx, rt, authMetrics); err != nil {
			return err
		}
	}
	var janitorDone chan struct{}
	if cfg.ResetCodePurgeSchedule != "" {
		janitor := worker.NewResetCodeJanitor(repository.NewPgResetCodeRepository(rt.db), clock, rt.logger, authMetrics)
		janitorDone = make(chan struct{})
		go func() {
			defer close(janitorDone)
			if err := janitor.Start(workerCtx, cfg.ResetCodePurgeSchedule); err != nil {
				rt.logger.Error().Err(err).Msg("Reset code janitor failed")
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		rt.logger.Info().Str("port", cfg.APIPort).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		rt.logger.Info().Msg("Shutting down server...")
	case err := <-serveErr:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("port", cfg.APIPort).Wrap(err)
		}
	}

	workerCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	if workerDone != nil {
		<-workerDone
	}
	if janitorDone != nil {
		<-janitorDone
	}

	rt.logger.Info().Msg("Server stopped gracefully")
	return nil
}
