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

	"code_dojo/internal/api"
	"code_dojo/internal/app/reward"
	"code_dojo/internal/app/service"
	"code_dojo/internal/app/worker"
	"code_dojo/internal/common/security"
	"code_dojo/internal/domain/repository"
	"code_dojo/internal/platform/config"
	"code_dojo/internal/platform/database"
	"code_dojo/internal/platform/judge"
	"code_dojo/internal/platform/logger"
	"code_dojo/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("configuration loaded", "port", cfg.APIPort, "judge", cfg.JudgeAPIURL)

	// 2. Initialize JWT
	security.InitJWT()

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	if cfg.ApplySchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.ApplySchema(ctx, database.DB)
		cancel()
		if err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()
	events := queue.NewEventQueue(queue.RDB, cfg.ProgressEventsQueue)

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	exerciseRepo := repository.NewCachedExerciseRepository(
		repository.NewPgExerciseRepository(database.DB), queue.RDB, cfg.ExerciseCacheTTL)
	categoryRepo := repository.NewPgCategoryRepository(database.DB)
	progressRepo := repository.NewPgProgressRepository(database.DB)
	badgeRepo := repository.NewPgBadgeRepository(database.DB)

	// 6. Initialize Services
	judgeClient := judge.NewClient(cfg)
	rewards := reward.NewEngine(userRepo, progressRepo, badgeRepo)
	leaderboardService := service.NewLeaderboardService(userRepo, queue.RDB, cfg.LeaderboardKey)
	services := api.Services{
		Auth:      service.NewAuthService(userRepo),
		Exercises: service.NewExerciseService(exerciseRepo, categoryRepo, progressRepo),
		Verification: service.NewVerificationService(
			exerciseRepo, progressRepo, judgeClient, rewards, database.NewTxRunner(database.DB), events),
		Users:       service.NewUserService(userRepo, exerciseRepo, progressRepo, badgeRepo),
		Leaderboard: leaderboardService,
		Admin:       service.NewAdminService(userRepo, exerciseRepo, categoryRepo, progressRepo),
	}

	// 7. Initialize Progress Worker (as a goroutine)
	progressWorker := worker.NewProgressWorker(events, leaderboardService)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		progressWorker.Start(workerCtx)
		close(workerDone)
	}()

	// 8. Initialize Router & HTTP Server
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      api.NewRouter(services, cfg.CORSAllowedOrigins, cfg.RequestTimeout()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("could not listen", "addr", server.Addr, "error", err)
			os.Exit(1)
		}
	}()

	<-stop

	slog.Info("shutting down server")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		slog.Warn("progress worker did not stop in time")
	}
	slog.Info("server and worker stopped")
}
