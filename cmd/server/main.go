package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jedib0t/go-pretty/v6/text"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/screen-relay/backend/api/handlers"
	"github.com/screen-relay/backend/internal/config"
	"github.com/screen-relay/backend/internal/db"
	"github.com/screen-relay/backend/internal/repository"
	"github.com/screen-relay/backend/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}

	// Ensure the sqlite directory exists
	if dialect == db.DialectSQLite && cfg.DBDSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if _, err := db.InitDB(dialect, cfg.DBDSN); err != nil {
		return err
	}
	defer db.CloseDB()

	positions := repository.NewPositionRepository(db.GetDB(), db.GetDialect(), ws.RoomID(cfg.RoomName))

	// Client ids restart at zero, so positions left by a previous run
	// would be attributed to new viewers.
	cleared, err := positions.Clear(context.Background())
	if err != nil {
		return err
	}
	if cleared > 0 {
		slog.Info("cleared stale positions", "room", positions.RoomID(), "count", cleared)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := ws.NewService(positions, ws.ServiceConfig{
		RoomID:        positions.RoomID(),
		ScreenSegment: cfg.ScreenSegment,
		Heartbeat: ws.HeartbeatConfig{
			PongTimeout:    cfg.PongTimeout,
			PingInterval:   cfg.PingInterval,
			MaxMissedPings: cfg.MaxMissedPings,
		},
	})
	if len(cfg.AllowedOrigins) > 0 {
		ws.SetCheckOrigin(ws.AllowOrigins(cfg.AllowedOrigins))
	}

	service.Start(ctx)
	defer service.Close()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		handlers.NewRoomHandler(service).RegisterRoutes(api)
	}

	handlers.NewRelayHandler(service.Handler()).RegisterRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "room", positions.RoomID(), "screenSegment", cfg.ScreenSegment, "store", db.GetDialect())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.ShowQR {
		printJoinCode(cfg.ViewerURL())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; the room
	// closes them when the service stops.
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

func setupLogger(levelName string) {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// printJoinCode prints the viewer URL as a terminal QR code.
func printJoinCode(url string) {
	if url == "" {
		slog.Warn("--qr needs --public-url or PUBLIC_URL")
		return
	}

	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		slog.Error("failed to generate QR code", "error", err)
		return
	}

	fmt.Println()
	fmt.Println(text.Bold.Sprint("Scan to join:"))
	fmt.Println(qr.ToSmallString(false))
	fmt.Println(text.FgCyan.Sprint(url))
	fmt.Println()
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
