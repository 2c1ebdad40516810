package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/api/handlers"
	mw "github.com/Harshitk-cp/psychograph/internal/api/middleware"
	"github.com/Harshitk-cp/psychograph/internal/buildconfig"
	"github.com/Harshitk-cp/psychograph/internal/config"
	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/guard"
	"github.com/Harshitk-cp/psychograph/internal/llm"
	"github.com/Harshitk-cp/psychograph/internal/metrics"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
	"github.com/Harshitk-cp/psychograph/internal/service"
	"github.com/Harshitk-cp/psychograph/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Retention    *service.AuditRetentionService
	Breakers     *resilience.BreakerRegistry
	Registry     *prometheus.Registry
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	tenantStore := store.NewTenantStore(db)
	eventStore := store.NewEventStore(db)
	profileStore := store.NewProfileStore(db)
	profileAuditStore := store.NewProfileAuditStore(db)
	creditStore := store.NewCreditStore(db)
	auditStore := store.NewAuditStore(db)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Governance primitives
	operation := config.LLMOperation()
	clock := resilience.SystemClock{}

	buckets := resilience.NewTokenBuckets(resilience.BucketConfig{}, clock)
	buckets.Configure(operation, resilience.BucketConfig{
		Capacity:        config.LLMBucketCapacity(),
		RefillPerMinute: config.LLMBucketRefillPerMinute(),
	})

	breakers := resilience.NewBreakerRegistry(resilience.BreakerConfig{
		FailureThreshold: config.BreakerThreshold(),
		Window:           config.BreakerWindow(),
		RecoveryTimeout:  config.BreakerRecoveryTimeout(),
	}, clock, func(name string, from, to resilience.State) {
		m.ObserveBreakerTransition(name, string(to))
		logger.Warn("circuit breaker state change",
			zap.String("operation", name),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	})

	retry := resilience.RetryPolicy{
		MaxAttempts:    config.RetryMaxAttempts(),
		BaseDelay:      config.RetryBaseDelay(),
		MaxDelay:       config.RetryMaxDelay(),
		AttemptTimeout: config.LLMAttemptTimeout(),
	}

	promptGuard := guard.New(guard.Config{
		MinLength:       config.PromptMinLength(),
		MaxLength:       config.PromptMaxLength(),
		StrictInjection: config.PromptStrictInjection(),
	})

	// External clients via provider factory
	llmProvider := config.LLMProvider()
	llmClient, err := llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed, using mock", zap.String("provider", llmProvider), zap.Error(err))
		llmClient = llm.NewMockClient()
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider), zap.String("model", llmClient.Model()))
	}

	// Services
	creditSvc := service.NewCreditService(creditStore, clock, m, logger)
	auditSvc := service.NewAuditService(auditStore, clock, m, logger)
	tenantSvc := service.NewTenantService(tenantStore, creditSvc, config.DefaultMonthlyAllotment(), logger)
	profileSvc := service.NewProfileService(profileStore, profileAuditStore)
	retentionSvc := service.NewAuditRetentionService(auditStore, config.AuditRetention(), clock, m, logger)

	gateway := service.NewGateway(service.GatewayDeps{
		Client:   llmClient,
		Credits:  creditSvc,
		Buckets:  buckets,
		Breakers: breakers,
		Retry:    retry,
		Guard:    promptGuard,
		Audit:    auditSvc,
		Clock:    clock,
		Metrics:  m,
		Logger:   logger,
	})

	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Events:       eventStore,
		Profiles:     profileStore,
		ProfileAudit: profileAuditStore,
		Heuristic:    service.NewHeuristicLayer(),
		ML:           service.NewMLLayer(service.DefaultLinearPredictor(), logger),
		Gateway:      gateway,
		Clock:        clock,
		Metrics:      m,
		Logger:       logger,
	}, service.OrchestratorConfig{
		EventWindow: config.EventWindowSize(),
		Operation:   operation,
		CallCost:    config.LLMCallCost(),
	})

	// Handlers
	tenantHandler := handlers.NewTenantHandler(tenantSvc)
	inferenceHandler := handlers.NewInferenceHandler(orchestrator)
	profileHandler := handlers.NewProfileHandler(profileSvc)
	creditsHandler := handlers.NewCreditsHandler(creditSvc)
	auditHandler := handlers.NewAuditHandler(auditSvc)
	governanceHandler := handlers.NewGovernanceHandler(breakers)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Retention: retentionSvc,
		Breakers:  breakers,
		Registry:  reg,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount, m)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                // Generate/extract request ID first
	r.Use(middleware.RealIP)           // Extract real IP
	r.Use(metricsCollector.Middleware) // Collect metrics
	r.Use(mw.Logging(logger))          // Log all requests
	r.Use(middleware.Recoverer)        // Recover from panics
	r.Use(mw.RateLimit(mw.IPBuckets(config.RateLimitRPS(), config.RateLimitBurst()), m))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())
	r.Handle("/metrics/prometheus", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Tenant creation (no auth, bootstrap endpoint)
	r.Post("/v1/tenants", tenantHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(tenantStore))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/inference", inferenceHandler.Run)
			r.Get("/profile", profileHandler.Get)
			r.Get("/profile/history", profileHandler.History)
			r.Get("/profile/similar", profileHandler.Similar)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/", creditsHandler.Balance)
			r.Put("/", creditsHandler.Provision)
			r.Post("/consume", creditsHandler.Consume)
			r.Get("/usage", creditsHandler.Usage)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/logs", auditHandler.Logs)
			r.Get("/report", auditHandler.Report)
		})

		r.Get("/governance/breakers", governanceHandler.Breakers)
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		resp := map[string]string{"status": "ok"}
		for k, v := range buildconfig.VersionInfo() {
			resp[k] = v
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		breakers := make(map[string]string)
		for _, s := range app.Breakers.Snapshots() {
			breakers[s.Name] = string(s.State)
		}

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"breakers":       breakers,
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.TenantStore       = (*store.TenantStore)(nil)
	_ domain.EventStore        = (*store.EventStore)(nil)
	_ domain.ProfileStore      = (*store.ProfileStore)(nil)
	_ domain.ProfileAuditStore = (*store.ProfileAuditStore)(nil)
	_ domain.CreditStore       = (*store.CreditStore)(nil)
	_ domain.AuditStore        = (*store.AuditStore)(nil)
	_ domain.LLMClient         = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient         = (*llm.AnthropicClient)(nil)
	_ domain.LLMClient         = (*llm.GeminiClient)(nil)
	_ domain.LLMClient         = (*llm.CerebrasClient)(nil)
	_ domain.LLMClient         = (*llm.MockClient)(nil)
	_ service.CreditConsumer   = (*service.CreditService)(nil)
	_ service.AuditRecorder    = (*service.AuditService)(nil)
	_ service.LLMInvoker       = (*service.Gateway)(nil)
)
