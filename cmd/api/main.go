package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clubattend/internal/api"
	"clubattend/internal/attendance"
	"clubattend/internal/config"
	"clubattend/internal/httpmiddleware"
	"clubattend/internal/identity"
	"clubattend/internal/metrics"
	"clubattend/internal/queue"
	"clubattend/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.JWTSigningKey == config.DefaultJWTSigningKey {
		log.Println("WARNING: using the default JWT signing key; set JWT_SIGNING_KEY")
	}

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()
	b, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var events queue.Queue
	if cfg.QueueBackend == "redis" {
		events = queue.NewRedisQueue(b.Redis.Client, "clubattend:events")
	} else {
		log.Println("check-in events disabled; the worker only reconciles on its schedule")
	}

	membership := identity.Membership{Domain: cfg.OrgDomain}
	var resolver identity.Resolver
	if cfg.IdentityBackend == "http" {
		client := identity.NewClient(cfg.IdentityServiceURL, membership)
		if err := client.Health(ctx); err != nil {
			log.Printf("WARNING: identity service not available: %v", err)
		}
		resolver = client
	} else {
		resolver = identity.NewTokenResolver(cfg.JWTSigningKey, cfg.JWTIssuer, membership)
	}

	allow, err := attendance.ParseAllowlist(cfg.IPAllowlist)
	if err != nil {
		return err
	}
	policy := attendance.DefaultPolicy()
	policy.Allowlist = allow

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := attendance.NewService(attendance.NewRepository(b.Docs), resolver, attendance.Options{
		Policy:          policy,
		Membership:      membership,
		CodeLength:      cfg.SessionCodeLength,
		CodeMaxAttempts: cfg.SessionCodeMaxAttempts,
		Observer:        m,
	})

	var dev *api.DevTokens
	if cfg.DevTokensEnabled() {
		dev = &api.DevTokens{Issuer: cfg.JWTIssuer, Key: cfg.JWTSigningKey, TTL: cfg.TokenTTL}
		log.Println("WARNING: dev token endpoint enabled at POST /v1/dev/tokens; anyone can mint identities")
	}

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(b.Redis.Client, "clubattend:ratelimit", cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	r := api.NewRouter(api.Deps{
		Handler:        api.NewHandler(svc, events, b.Checks(), dev),
		Limiter:        limiter,
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s (store=%s identity=%s)", cfg.HTTPPort, cfg.StoreBackend, cfg.IdentityBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}
