package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"ops_gateway/internal/config"
	"ops_gateway/internal/logging"
	"ops_gateway/internal/middleware"
	"ops_gateway/internal/models"
	"ops_gateway/internal/notify"
	"ops_gateway/internal/ops"
	"ops_gateway/internal/providers"
	"ops_gateway/internal/queue"
	"ops_gateway/internal/ratelimit"
	"ops_gateway/internal/storage"
)

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	// Initialize database
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		APIKeyCacheSize: cfg.Cache.APIKeyCacheSize,
		APIKeyCacheTTL:  cfg.Cache.APIKeyCacheTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	apiKeyRepo := db.NewAPIKeyRepository()
	adminUserRepo := db.NewAdminUserRepository()
	runRepo := db.NewRunRepository()

	// Initialize the provider dispatcher from environment credentials
	dispatcher, err := providers.FromConfig(cfg.Dispatch)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	// Redis backs the queues and the rate limiter when configured
	useRedis := cfg.Redis.Address != ""

	var redisClient *redis.Client
	var rateLimiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if useRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		rateLimiter = ratelimit.NewRateLimiter(redisClient)
	}

	// Create the run record queue
	runQueueCfg := queue.DefaultConfig("runs")
	var runQueue queue.Queue[*models.RunRecord]
	var runDLQ queue.DeadLetterQueue[*models.RunRecord]
	if useRedis {
		runQueue = queue.NewRedisQueue[*models.RunRecord](redisClient, runQueueCfg)
		runDLQ = queue.NewRedisDeadLetterQueue[*models.RunRecord](redisClient, runQueueCfg)
	} else {
		runQueue = queue.NewMemoryQueue[*models.RunRecord](runQueueCfg)
		runDLQ = queue.NewMemoryDeadLetterQueue[*models.RunRecord]()
	}

	// Create the notification pipeline. Without a webhook URL there is
	// nowhere to deliver, so the whole pipeline stays off.
	var notifier *notify.Notifier
	var notifyWorker *notify.NotifyWorker
	if cfg.Notify.WebhookURL != "" {
		notifyQueueCfg := queue.DefaultConfig("notifications")
		var notifyQueue queue.Queue[*models.Notification]
		var notifyDLQ queue.DeadLetterQueue[*models.Notification]
		if useRedis {
			notifyQueue = queue.NewRedisQueue[*models.Notification](redisClient, notifyQueueCfg)
			notifyDLQ = queue.NewRedisDeadLetterQueue[*models.Notification](redisClient, notifyQueueCfg)
		} else {
			notifyQueue = queue.NewMemoryQueue[*models.Notification](notifyQueueCfg)
			notifyDLQ = queue.NewMemoryDeadLetterQueue[*models.Notification]()
		}
		notifier = notify.NewNotifier(notifyQueue)
		notifyWorker = notify.NewNotifyWorker(notifyQueue, notifyDLQ, cfg.Notify.WebhookURL, cfg.Notify.RequestTimeout, notifyQueueCfg)
		notifyWorker.Start(context.Background())
	}

	// Create and start the run record worker
	runWorker := storage.NewRunQueueWorker(runQueue, runDLQ, runRepo, runQueueCfg)
	runWorker.Start(context.Background())

	// Initialize request logger
	requestLogger, err := logging.NewRequestLogger(
		cfg.RequestLogger.FilePathTemplate,
		cfg.RequestLogger.MaxSize,
		cfg.RequestLogger.MaxFiles,
		cfg.RequestLogger.BufferSize,
		cfg.RequestLogger.FlushInterval,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize request logger: %w", err)
	}

	// Initialize the audit sink (S3 export is optional)
	var auditSink logging.Sink = logging.NewNoopSink()
	if cfg.AuditSink.Enabled {
		auditSink, err = logging.NewS3Sink(context.Background(), logging.S3SinkConfig{
			BufferSize:    cfg.AuditSink.BufferSize,
			FlushSize:     cfg.AuditSink.FlushSize,
			FlushInterval: cfg.AuditSink.FlushInterval,
			S3Bucket:      cfg.AuditSink.S3Bucket,
			S3Region:      cfg.AuditSink.S3Region,
			S3Prefix:      cfg.AuditSink.S3Prefix,
			PodName:       cfg.AuditSink.PodName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize audit sink: %w", err)
		}
	}

	// Create dependencies
	deps := &Dependencies{
		APIKeys:       NewDatabaseAPIKeyStore(apiKeyRepo),
		AdminStore:    adminUserRepo,
		Dispatcher:    dispatcher,
		RateLimit:     rateLimiter,
		Sim:           ops.NewDefaultSimulator(),
		Audit:         auditSink,
		Notifier:      notifier,
		RequestLogger: requestLogger,
		Runs:          runRepo,
		RunRecorder:   runWorker,
		RunWorker:     runWorker,
		NotifyWorker:  notifyWorker,
	}

	// Create router
	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	return mux, deps, nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	// Automation endpoints - API key + rate limit protected
	requestID := middleware.RequestIDMiddleware()
	apiKey := middleware.APIKeyMiddleware(deps.APIKeys)
	rateLimit := middleware.RateLimitMiddleware(deps.RateLimit)

	protect := func(h http.HandlerFunc) http.Handler {
		return requestID(apiKey(rateLimit(deps.logRequests(h))))
	}

	mux.Handle("/v1/generate", protect(deps.handleGenerate))
	mux.Handle("/v1/code/review", protect(deps.handleCodeReview))
	mux.Handle("/v1/deploy", protect(deps.handleDeploy))
	mux.Handle("/v1/deploy/rollback", protect(deps.handleRollback))
	mux.Handle("/v1/monitor/analyze", protect(deps.handleMonitorAnalyze))
	mux.Handle("/v1/security/scan", protect(deps.handleSecurityScan))

	// Health check endpoint - public
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Admin authentication endpoint - public (no middleware)
	adminAuthHandler := NewAdminAuthHandler(deps.AdminStore, cfg)
	mux.HandleFunc("/admin/auth/login", adminAuthHandler.Login)

	// Run history and pipeline stats - protected with
	// AdminJWTMiddleware, "viewer" role or above
	viewer := middleware.AdminJWTMiddleware(cfg, "viewer")
	mux.Handle("/admin/runs", requestID(viewer(http.HandlerFunc(deps.handleAdminRuns))))
	mux.Handle("/admin/stats", requestID(viewer(http.HandlerFunc(deps.handleAdminStats))))
}

// logRequests appends the request to the rotating JSONL request log
// before invoking the handler.
func (d *Dependencies) logRequests(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.RequestLogger != nil {
			d.RequestLogger.LogRequest(r)
		}
		next(w, r)
	})
}
