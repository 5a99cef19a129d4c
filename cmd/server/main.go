package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/rueidis"
	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/bounty/api"
	dbfs "github.com/garnizeh/bounty/db"
	"github.com/garnizeh/bounty/internal/auth"
	"github.com/garnizeh/bounty/internal/auth/challenge"
	"github.com/garnizeh/bounty/internal/badges"
	"github.com/garnizeh/bounty/internal/bounty"
	"github.com/garnizeh/bounty/internal/config"
	"github.com/garnizeh/bounty/internal/db"
	"github.com/garnizeh/bounty/internal/jobs"
	"github.com/garnizeh/bounty/internal/repository/sqlite"
	"github.com/garnizeh/bounty/internal/reputation"
	"github.com/garnizeh/bounty/internal/users"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bounty: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting bounty server", slog.String("version", version), slog.String("build_time", buildTime), slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("close db", slog.Any("err", err))
		}
	}()
	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store, closeStore, err := newChallengeStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	repo := sqlite.New(database, logger)
	awarder := badges.NewAwarder(repo, logger)
	rep := reputation.NewEngine(repo, repo, repo, logger)
	userSvc := users.NewService(repo, repo, awarder, rep, logger)

	pool := jobs.NewWorkerPool(jobs.NewRepository(database), nil, logger, cfg.Jobs.Workers)
	bounties := bounty.NewEngine(repo, repo, awarder, rep, pool, logger)
	pool.Register(bounty.JobAccepted, bounties.AcceptedJobHandler())

	tokens := auth.NewTokenCodec(cfg.JWTSecret, cfg.TokenDuration)
	insecure := cfg.AllowInsecureLogin && cfg.IsDevelopment()
	if insecure {
		logger.Warn("insecure dev login is enabled")
	}
	authEngine := auth.NewEngine(store, userSvc, tokens, auth.Config{
		ChallengeTTL:       cfg.ChallengeTTL,
		AllowInsecureLogin: insecure,
	}, logger)

	handler := api.SetupRoutes(version, buildTime, api.Services{
		Auth:     authEngine,
		Tokens:   tokens,
		Bounties: bounties,
		Users:    userSvc,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pool.Start(gctx)
		<-gctx.Done()
		pool.Stop()
		return nil
	})
	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

// newChallengeStore builds the configured challenge store. Entries are kept
// for twice the challenge TTL so a late answer is reported as expired rather
// than unknown.
func newChallengeStore(cfg *config.Config) (challenge.Store, func(), error) {
	retention := 2 * cfg.ChallengeTTL
	switch cfg.ChallengeStore.Backend {
	case config.StoreRedis:
		client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{cfg.ChallengeStore.RedisAddr}})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return challenge.NewRedisStore(client, retention), client.Close, nil
	default:
		s := challenge.NewMemoryStore(retention, time.Minute)
		return s, s.Close, nil
	}
}
