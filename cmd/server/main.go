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

	"classroom-poll-backend/internal/classroom"
	"classroom-poll-backend/internal/config"
	"classroom-poll-backend/internal/database"
	"classroom-poll-backend/internal/jobs"
	"classroom-poll-backend/internal/router"
	"classroom-poll-backend/internal/services"

	_ "classroom-poll-backend/docs"

	"github.com/gin-gonic/gin"
)

// @title           Classroom Poll API
// @version         1.0
// @description     REST fallback for the live classroom polling room
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	room := classroom.New(db, classroom.Options{
		TickInterval:     cfg.TickInterval,
		PresenceTTL:      cfg.PresenceTTL,
		Stateless:        cfg.Stateless,
		ChatHistoryLimit: cfg.ChatHistoryLimit,
	})
	if err := room.Resume(context.Background()); err != nil {
		slog.Warn("could not resume active poll", "error", err)
	}

	sweeper, err := jobs.NewSweeper(cfg.SweepSchedule, room)
	if err != nil {
		slog.Error("sweeper setup failed", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	authService := services.NewAuthService(cfg.JWTSecret, nil)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router.New(db, room, authService, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.ServerPort, "driver", cfg.DBDriver, "stateless", cfg.Stateless)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// signal.Notify requires the channel to be buffered
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sweeper.Stop()
	room.Close()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
