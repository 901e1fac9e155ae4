package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sitter-link/internal/airtable"
	"sitter-link/internal/config"
	"sitter-link/internal/db"
	"sitter-link/internal/email"
	apihttp "sitter-link/internal/http"
	"sitter-link/internal/metrics"
	"sitter-link/internal/repository"
	"sitter-link/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		sessionStore  = service.NewSQLSessionStore(repository.NewPgSessionRepository(pool), 24*cfg.SessionTimeout)
		verifyLimiter = service.NewMemoryVerifyLimiter(cfg.VerifyWindow, cfg.VerifyMaxAttempts)
		redisClient   *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using postgres sessions", zap.Error(err))
		} else {
			sessionStore = service.NewRedisSessionStore(redisClient, 24*cfg.SessionTimeout)
			verifyLimiter = service.NewRedisVerifyLimiter(redisClient, cfg.VerifyWindow, cfg.VerifyMaxAttempts)
		}
		cancel()
		defer redisClient.Close()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.SessionTimeout*12)
	monitor := service.NewSessionMonitor(logger, sessionStore, cfg.SessionTimeout, collector)
	go monitor.Run(ctx)

	store, err := airtable.NewClient(airtable.Options{
		BaseURL:          cfg.AirtableBaseURL,
		BaseID:           cfg.AirtableBaseID,
		APIKey:           cfg.AirtableAPIKey,
		RequestsTable:    cfg.AirtableRequestsTable,
		BabysittersTable: cfg.AirtableBabysittersTable,
		ReadRetries:      cfg.AirtableReadRetries,
	}, logger)
	if err != nil {
		logger.Fatal("airtable client", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	userSvc := service.NewUserService(logger, userRepo, emailSender, jwtSvc, cfg.PublicBaseURL)
	babysitterSvc := service.NewBabysitterService(logger, store, cfg.FreePlanBabysitterLimit, cfg.AirtableCacheTTL, collector)
	requestSvc := service.NewRequestService(logger, store, babysitterSvc, emailSender, cfg.PublicBaseURL)

	guard := apihttp.NewGuard(logger, jwtSvc, monitor, cfg.CookieSecure)
	publicLimiter := apihttp.NewIPRateLimiter(logger, cfg.PublicRatePerMinute)
	defer publicLimiter.Stop()

	router := apihttp.NewRouter(logger, apihttp.RouterDeps{
		Guard:         guard,
		Users:         apihttp.NewUserHandler(logger, userSvc, jwtSvc, monitor, guard),
		Parents:       apihttp.NewParentHandler(logger, userSvc, babysitterSvc, requestSvc),
		Responder:     apihttp.NewResponderHandler(logger, store, jwtSvc, verifyLimiter, requestSvc, collector),
		Shell:         apihttp.NewShellHandler(guard),
		PublicLimiter: publicLimiter,
		Recorder:      collector,
		Metrics:       metrics.Handler(registry),
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
