package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/texresolve/accounts-api/internal/api"
	"github.com/texresolve/accounts-api/internal/api/handler"
	"github.com/texresolve/accounts-api/internal/core/ports"
	"github.com/texresolve/accounts-api/internal/core/service"
	"github.com/texresolve/accounts-api/internal/infrastructure/config"
	mongodb "github.com/texresolve/accounts-api/internal/infrastructure/db/mongo"
	redisdb "github.com/texresolve/accounts-api/internal/infrastructure/db/redis"
	"github.com/texresolve/accounts-api/internal/infrastructure/events"
	"github.com/texresolve/accounts-api/internal/infrastructure/mail"
	"github.com/texresolve/accounts-api/internal/infrastructure/queue"
	"github.com/texresolve/accounts-api/internal/infrastructure/security"
	"github.com/texresolve/accounts-api/internal/infrastructure/tracing"
	"github.com/texresolve/accounts-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: cfg.Telemetry.ServiceName,
	})

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Stdout:       cfg.Telemetry.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("tracer shutdown")
		}
	}()

	// --- Storage ---
	client, db, err := mongodb.ConnectWithRetry(ctx, mongodb.Config{
		URI:           cfg.Mongo.URI,
		Database:      cfg.Mongo.Database,
		Timeout:       cfg.Mongo.Timeout,
		RetryInterval: cfg.Mongo.RetryInterval,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongo disconnect")
		}
	}()

	users := mongodb.NewUserRepository(db, cfg.Mongo.Timeout)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("could not ensure user indexes")
	}

	health := map[string]handler.Pinger{"mongodb": mongodb.NewPinger(db)}
	var ledger ports.CredentialLedger
	if cfg.Redis.Addr != "" {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		health["redis"] = redisdb.NewPinger(rdb)
		if cfg.Auth.RevokeOnCredentialChange {
			ledger = redisdb.NewCredentialLedger(rdb, cfg.Auth.TokenTTL)
		}
	}

	// --- Notifications ---
	sender, err := newMailSender(cfg.Mail, log)
	if err != nil {
		return err
	}
	renderer, err := mail.NewRenderer()
	if err != nil {
		return err
	}
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, sender, log)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	var publisher ports.EventPublisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		np, err := events.NewNatsPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return err
		}
		defer np.Close()
		publisher = np
	}

	// --- Accounts ---
	tokens := security.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	accounts := service.NewAccountService(service.AccountDependencies{
		Users:    users,
		Hasher:   security.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:   tokens,
		Renderer: renderer,
		Mail:     dispatcher,
		Events:   publisher,
		Ledger:   ledger,
	}, log)

	e := api.NewRouter(api.Dependencies{
		Accounts:    accounts,
		Tokens:      tokens,
		Ledger:      ledger,
		Health:      health,
		Logger:      log,
		BodyLimit:   cfg.BodyLimit,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           otelhttp.NewHandler(e, "accounts-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newMailSender(cfg config.MailConfig, log zerolog.Logger) (ports.MailSender, error) {
	if cfg.Host == "" {
		log.Info().Msg("SMTP_HOST not set, activation mail is logged instead of sent")
		return mail.NewLogSender(log), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.From,
		Password: cfg.Password,
		From:     cfg.From,
	})
}
