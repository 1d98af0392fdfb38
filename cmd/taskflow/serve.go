package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	boardapi "github.com/taskflow/taskflow/internal/board/api"
	"github.com/taskflow/taskflow/internal/board/repository"
	"github.com/taskflow/taskflow/internal/board/service"
	"github.com/taskflow/taskflow/internal/common/httpmw"
	"github.com/taskflow/taskflow/internal/common/tracing"
	"github.com/taskflow/taskflow/internal/events/bus"
	gatewayws "github.com/taskflow/taskflow/internal/gateway/websocket"
	"github.com/taskflow/taskflow/internal/identity"
	identityapi "github.com/taskflow/taskflow/internal/identity/api"
)

const sessionPurgeInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	log.Info("Starting TaskFlow...")

	if err := tracing.Init(ctx, cfg.Tracing); err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracing shutdown error", zap.Error(err))
		}
	}()

	repo, err := repository.Open(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to open entity store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Entity store close error", zap.Error(err))
		}
	}()

	eventBus, err := bus.New(cfg.NATS, log)
	if err != nil {
		return fmt.Errorf("failed to connect event bus: %w", err)
	}
	defer eventBus.Close()

	boardSvc := service.NewService(repo, eventBus, log, service.Options{
		AllowMemberSelfRemoval: cfg.Board.AllowMemberSelfRemoval,
		RecentlyViewedLimit:    cfg.Board.RecentlyViewedLimit,
	})
	identitySvc := identity.NewService(repo, eventBus, log, identity.Options{
		TokenDuration: cfg.Auth.TokenDurationTime(),
		BcryptCost:    cfg.Auth.BcryptCost,
	})

	sessionSub, err := identitySvc.OnSessionChanged(func(change identity.SessionChange) {
		log.Debug("Session changed", zap.String("type", change.Type), zap.String("user_id", change.UserID))
	})
	if err != nil {
		return fmt.Errorf("failed to watch sessions: %w", err)
	}
	defer func() { _ = sessionSub.Unsubscribe() }()
	go purgeSessions(ctx, identitySvc)

	activitySub, err := service.WatchActivity(eventBus, log, nil)
	if err != nil {
		return fmt.Errorf("failed to watch board activity: %w", err)
	}
	defer func() { _ = activitySub.Unsubscribe() }()

	hub := gatewayws.NewHub(log)
	go hub.Run(ctx)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		httpmw.Recovery(log),
		httpmw.RequestLogger(log),
		httpmw.Tracing(cfg.Tracing.ServiceName),
		httpmw.CORS(),
		httpmw.RateLimit(cfg.Server.RateLimit),
		httpmw.ErrorHandler(log),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "taskflow",
			"event_bus": eventBus.IsConnected(),
		})
	})

	v1 := router.Group("/api/v1")
	identityapi.SetupRoutes(v1, identitySvc, log)

	authed := v1.Group("", httpmw.Authenticate(identitySvc))
	boardapi.SetupRoutes(authed, boardSvc, log)
	gatewayws.SetupRoutes(authed, gatewayws.NewHandler(hub, boardSvc, nil, log))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	log.Info("Shutting down TaskFlow...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("TaskFlow stopped")
	return nil
}

func purgeSessions(ctx context.Context, svc *identity.Service) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.PurgeExpired(); n > 0 {
				log.Debug("Purged expired sessions", zap.Int("count", n))
			}
		}
	}
}
