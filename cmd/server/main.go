package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"choregate/internal/audit"
	"choregate/internal/login"
	oauthhandler "choregate/internal/oauth/handler"
	oauthservice "choregate/internal/oauth/service"
	codestore "choregate/internal/oauth/store/authorizationcode"
	"choregate/internal/oauth/token"
	"choregate/internal/platform/config"
	"choregate/internal/platform/httpserver"
	"choregate/internal/platform/logger"
	"choregate/internal/platform/metrics"
	"choregate/internal/platform/middleware"
	platformredis "choregate/internal/platform/redis"
	"choregate/internal/session"
	"choregate/internal/tasks"
	"choregate/internal/user"
)

// sweepInterval is how often expired authorization codes are purged.
const sweepInterval = 5 * time.Minute

// main wires dependencies and runs the server. Business logic lives in the
// internal packages; everything here is composition and lifecycle.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Session store: Redis when configured, process memory otherwise.
	var sessions session.Store = session.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		sessions = session.NewRedisStore(redisClient.Client)
		defer redisClient.Close()
		log.Info("session store", "backend", "redis")
	} else {
		log.Info("session store", "backend", "memory")
	}

	// User and task stores: Postgres when configured.
	users := user.Store(user.NewInMemoryStore())
	taskStore := tasks.Store(tasks.NewInMemoryStore())
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("postgres unreachable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		users = user.NewPostgresStore(db)
		taskStore = tasks.NewPostgresStore(db)
		log.Info("persistent store", "backend", "postgres")
	} else {
		log.Info("persistent store", "backend", "memory")
	}

	// Audit pipeline: Kafka sink when brokers are configured, in-memory
	// sink otherwise so the worker and events stay exercised in dev.
	publisher := audit.NewChannelPublisher(1024)
	var sink audit.Sink = audit.NewMemorySink()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit sink", "backend", "kafka", "topic", cfg.Kafka.Topic)
	} else {
		log.Info("audit sink", "backend", "memory")
	}
	auditWorker := audit.NewWorker(publisher, sink, log)

	scope := strings.Join(cfg.Scopes, " ")
	codec := token.NewCodec(cfg.JWTSigningKey, cfg.BaseURL, cfg.ClientID)
	codes := codestore.New()
	flow := oauthservice.New(cfg.ClientID, codes, codec, m, publisher, log)

	secureCookies := strings.HasPrefix(cfg.BaseURL, "https://")
	cookies := session.NewManager(secureCookies)

	oauthH := oauthhandler.New(flow, sessions, cookies, cfg.ClientID, cfg.BaseURL, cfg.Scopes, log)
	loginH := login.New(users, sessions, cookies, m, publisher, cfg.AdminPassword, log)
	tasksH := tasks.NewHandler(tasks.NewService(taskStore, log), log)

	challenge := middleware.Challenge{
		ResourceMetadataURL: cfg.BaseURL + "/.well-known/oauth-protected-resource",
		Scope:               scope,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(m))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	oauthH.Register(r)
	loginH.Register(r)

	r.Route("/mcp", func(r chi.Router) {
		r.Use(middleware.RequireAuth(token.NewMiddlewareAdapter(codec), challenge, m, publisher, log))
		tasksH.Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting choregate", "addr", cfg.Addr, "issuer", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Periodic purge of expired authorization codes. Expired codes are also
	// rejected at exchange time; the sweep just keeps the store bounded.
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				removed, err := flow.DeleteExpired(ctx)
				if err != nil {
					log.Error("code sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					log.Info("purged expired authorization codes", "count", removed)
				}
			}
		}
	})

	g.Go(func() error {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("audit worker: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
