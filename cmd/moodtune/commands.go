package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodtune/internal/auth"
	"moodtune/internal/cache"
	"moodtune/internal/config"
	"moodtune/internal/database"
	"moodtune/internal/mailer"
	"moodtune/internal/server"
	"moodtune/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 15 * time.Second

func serveCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := bootstrap(ctx, cmd.String("config"), logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.server.ScanInbox(); err != nil {
				logger.WithError(err).Warn("Inbox scan failed")
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- rt.server.Start()
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)

			select {
			case err := <-errCh:
				return err
			case <-sig:
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return rt.server.Shutdown(shutdownCtx)
		},
	}
}

func backfillCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "backfill-counters",
		Usage: "Set missing play and like counters on existing songs to zero",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := bootstrap(ctx, cmd.String("config"), logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			changed, err := rt.server.Admin().BackfillCounters(ctx)
			if err != nil {
				return err
			}
			logger.WithField("songs_updated", changed).Info("Counter backfill complete")
			return nil
		},
	}
}

func promoteCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "promote",
		Usage: "Grant the admin role to an existing account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Email of the account to promote",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := bootstrap(ctx, cmd.String("config"), logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			user, err := rt.server.Auth().Promote(ctx, cmd.String("email"))
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"user_id": user.ID,
				"email":   user.Email,
			}).Info("User promoted to admin")
			return nil
		},
	}
}

// runtime holds everything a command needs and releases it on Close.
type runtime struct {
	server  *server.APIServer
	store   database.Store
	cache   cache.Cache
	logFile *os.File
}

func (rt *runtime) Close() {
	if rt.cache != nil {
		rt.cache.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.logFile != nil {
		rt.logFile.Close()
	}
}

func bootstrap(ctx context.Context, configPath string, logger *logrus.Logger) (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	rt := &runtime{}
	if rt.logFile, err = configureLogger(logger, cfg.Logging); err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Database.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rt.store, err = database.Open(connectCtx, cfg.Database.Driver, database.Options{
		URI:            cfg.Database.URI,
		Name:           cfg.Database.Name,
		Path:           cfg.Database.Path,
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	media, err := storage.New(connectCtx, storage.Options{
		Driver:         cfg.Storage.Driver,
		LocalPath:      cfg.Storage.LocalPath,
		MinioEndpoint:  cfg.Storage.MinioEndpoint,
		MinioAccessKey: cfg.Storage.MinioAccessKey,
		MinioSecretKey: cfg.Storage.MinioSecretKey,
		MinioBucket:    cfg.Storage.MinioBucket,
		MinioUseSSL:    cfg.Storage.MinioUseSSL,
		PublicURL:      cfg.Storage.PublicURL,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error initializing media storage: %w", err)
	}

	rt.cache, err = cache.New(connectCtx, cache.Options{
		Driver:        cfg.Cache.Driver,
		TTL:           cfg.CacheTTL(),
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error initializing cache: %w", err)
	}

	deps := server.Deps{
		Store:  rt.store,
		Media:  media,
		Cache:  rt.cache,
		Mailer: newMailer(cfg, logger),
	}
	if cfg.GoogleEnabled() {
		deps.Google = auth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleCallbackURL)
	} else {
		logger.Info("Google sign-in disabled: client id or secret not set")
	}

	rt.server, err = server.NewAPIServer(cfg, deps, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error creating API server: %w", err)
	}
	return rt, nil
}

func newMailer(cfg *config.Config, logger *logrus.Logger) mailer.Mailer {
	if !cfg.Mail.Enabled {
		logger.Warn("Mail delivery disabled, OTP codes will be written to the log")
		return mailer.NewLogMailer(logger)
	}
	return mailer.NewSMTPMailer(mailer.Options{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Subject:  cfg.Mail.Subject,
	}, logger)
}

// configureLogger applies level, format and optional file output. The
// returned file, if any, must be closed by the caller.
func configureLogger(logger *logrus.Logger, cfg config.LoggingConfig) (*os.File, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.File == "" {
		return nil, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}
