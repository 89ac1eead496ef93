package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "voting-platform/docs"
	"voting-platform/internal/cache"
	"voting-platform/internal/config"
	"voting-platform/internal/domain/election"
	"voting-platform/internal/domain/user"
	"voting-platform/internal/domain/vote"
	api "voting-platform/internal/http"
	"voting-platform/internal/metrics"
	"voting-platform/internal/platform/database"
	jwtpkg "voting-platform/internal/platform/jwt"
	"voting-platform/internal/repository/postgres"
	"voting-platform/internal/worker"
)

// @title           Voting Platform API
// @version         1.0
// @description     Online elections with fingerprint-gated voting and JWT auth
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.DB_DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	userRepo := postgres.NewUserRepo(db)
	electionRepo := postgres.NewElectionRepo(db)
	voteRepo := postgres.NewVoteRepo(db)

	var tallies vote.TallyCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, results will be computed on every request", "addr", cfg.RedisAddr, "error", err)
		} else {
			tallies = cache.NewTallyCache(rdb, cfg.ResultsCacheTTL)
			logger.Info("tally cache enabled", "addr", cfg.RedisAddr)
		}
	}

	userSvc := user.NewService(userRepo)
	electionOpts := []election.Option{election.WithLogger(logger)}
	if tallies != nil {
		electionOpts = append(electionOpts, election.WithInvalidator(tallies))
	}
	electionSvc := election.NewService(electionRepo, voteRepo, electionOpts...)
	voteSvc := vote.NewService(voteRepo, userRepo, electionSvc,
		vote.WithTallyCache(tallies),
		vote.WithLogger(logger),
	)

	if cfg.AdminUsername != "" {
		admin, created, err := userSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("bootstrap admin created", "user_id", admin.ID, "username", admin.Username)
		}
	}

	jwtMgr := jwtpkg.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)

	voteCh := make(chan worker.VoteEvent, 100)
	auditWorker := worker.NewAuditWorker(voteCh, logger)

	router := api.NewRouter(userSvc, electionSvc, voteSvc, jwtMgr, voteCh, db, api.VoteLimits{
		PerMinute: cfg.VoteRatePerMinute,
		Burst:     cfg.VoteRateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go auditWorker.Run(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	cancelWorker()

	logger.Info("server stopped")
	return nil
}
