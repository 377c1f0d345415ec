package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"social-realtime/internal/auth"
	"social-realtime/internal/cluster"
	"social-realtime/internal/config"
	"social-realtime/internal/db"
	"social-realtime/internal/grpcserver"
	"social-realtime/internal/handlers"
	applog "social-realtime/internal/log"
	"social-realtime/internal/maintenance"
	"social-realtime/internal/middleware"
	"social-realtime/internal/observability"
	"social-realtime/internal/rabbitmq"
	"social-realtime/internal/repositories"
	"social-realtime/internal/telemetry"
	"social-realtime/internal/ws"
)

const serviceName = "social-realtime"

func main() {
	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Realtime presence and messaging service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			applog.Init(cfg.Env, cfg.LogLevel, serviceName)
			database, err := db.Connect(cmd.Context(), cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.Migrate(cmd.Context(), database); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config.Load())
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	applog.Init(cfg.Env, cfg.LogLevel, serviceName)

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	friendRepo := repositories.NewFriendshipRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)
	settingsRepo := repositories.NewSettingsRepo(database)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Str("reason", rabbitmq.PublisherNoopReason(publisher)).Msg("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, telemetry.AuditRoutingKey, serviceName, cfg.Env)

	grpcSrv := grpcserver.New()
	gate := maintenance.NewGate(settingsRepo, cfg.MaintenanceTTL, maintenance.WithNotifier(func(ctx context.Context, enabled bool) {
		grpcSrv.SetMaintenance(enabled)
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		audit.Emit(ctx, "WARN", "maintenance mode "+state, "", 0)
	}))

	var mirror ws.PresenceMirror
	var clusterCounter handlers.ClusterCounter
	if cfg.RedisAddr != "" {
		redisMirror, err := cluster.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nodeName())
		if err != nil {
			log.Warn().Err(err).Msg("redis presence mirror disabled")
		} else {
			defer redisMirror.Close()
			mirror = redisMirror
			clusterCounter = redisMirror
		}
	}

	hub := ws.NewHub()
	registry := ws.NewRegistry()
	dispatcher := ws.NewDispatcher(
		registry,
		hub,
		ws.NewRooms(hub, groupRepo),
		ws.NewPresence(registry, hub, friendRepo),
		ws.NewRelay(hub, messageRepo, userRepo, audit),
		userRepo,
		mirror,
		gate,
	)
	wsHandler := ws.NewHandler(dispatcher, auth.NewVerifier(cfg.JWTSecret), cfg.WSEventsPerSecond, cfg.WSEventBurst)
	realtime := handlers.NewRealtimeHandler(userRepo, gate, registry, clusterCounter, audit)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.HTTPRatePerSecond), cfg.HTTPRateBurst, 10*time.Minute)
	defer limiter.Stop()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(otelgin.Middleware(serviceName))
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.Authenticate(auth.NewVerifier(cfg.JWTSecret)))
	router.Use(middleware.RateLimit(limiter))
	router.Use(maintenance.Middleware(gate, func(c *gin.Context) bool {
		return middleware.ClaimsFrom(c).IsAdmin()
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	realtime.RegisterRoutes(router, wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, audit, registry, cfg.Env == "dev")

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	defer grpcSrv.Stop()

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("grpc_port", cfg.GRPCPort).Msg("realtime service listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func nodeName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}
