package router

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/calensync/backend/internal/config"
	"github.com/calensync/backend/internal/handler"
	"github.com/calensync/backend/internal/middleware"
	"github.com/calensync/backend/internal/pkg/retry"
	"github.com/calensync/backend/internal/pkg/vault"
	"github.com/calensync/backend/internal/repository/postgres"
	"github.com/calensync/backend/internal/service/auth"
	"github.com/calensync/backend/internal/service/calendarapi"
	"github.com/calensync/backend/internal/service/eventstore"
	"github.com/calensync/backend/internal/service/oauthflow"
	"github.com/calensync/backend/internal/service/sync"
	"github.com/calensync/backend/internal/service/token"
	"github.com/calensync/backend/internal/service/webhook"
	"github.com/calensync/backend/internal/service/writethrough"

	_ "github.com/calensync/backend/docs" // Swagger docs
)

// New creates a new router with all routes configured.
func New(cfg *config.Config, logger *slog.Logger, db *sql.DB, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(cfg.CorsAllowedOrigins))

	if cfg.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
			httpSwagger.DeepLinking(true),
			httpSwagger.DocExpansion("list"),
			httpSwagger.DomID("swagger-ui"),
		))
	}

	vlt, err := vault.New(cfg.VaultSecret)
	if err != nil {
		logger.Error("failed to initialize credential vault", "error", err)
	}
	executor := retry.NewExecutor()
	calendarClient := calendarapi.NewGoogleClient(cfg.UpstreamClientID, cfg.UpstreamClientSecret, cfg.UpstreamRedirectURL)
	jwtService := auth.NewJWTService(cfg.SessionSecret, cfg.JWTLifetime)
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)

	userRepo := postgres.NewUserRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	oauthStateRepo := postgres.NewOAuthStateRepository(db)
	cursorRepo := postgres.NewSyncCursorRepository(db)
	webhookRepo := postgres.NewWebhookSubscriptionRepository(db)

	tokenManager := token.NewManager(userRepo, vlt, calendarClient, executor)
	orchestrator := oauthflow.NewOrchestrator(oauthStateRepo, userRepo, calendarClient, tokenManager, jwtService)
	eventService := eventstore.NewStore(eventRepo)
	syncEngine := sync.NewEngine(cursorRepo, eventRepo, calendarClient, tokenManager, executor)
	mediator := writethrough.NewMediator(db, eventRepo, calendarClient, tokenManager, executor)
	demux := webhook.NewDemultiplexer(webhookRepo, tokenManager, calendarClient, syncEngine, cfg.WebhookBaseURL)

	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.Env)
	authHandler := handler.NewAuthHandler(orchestrator, tokenManager, userRepo, middleware.SessionCookieName, cfg.IsProduction(), cfg.FrontendURL)
	eventsHandler := handler.NewEventsHandler(eventService, mediator)
	syncHandler := handler.NewSyncHandler(syncEngine)
	webhookHandler := handler.NewWebhookHandler(demux, demux, webhookRepo)

	rateLimiter := middleware.NewRateLimiter(redisClient)
	authMiddleware := middleware.Auth(jwtService, tokenBlacklist)

	r.With(rateLimiter.Public(cfg.RateLimitMax, cfg.RateLimitWindow)).Get("/health", healthHandler.Health)
	r.With(rateLimiter.Public(cfg.RateLimitMax, cfg.RateLimitWindow)).Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(rateLimiter.Public(cfg.RateLimitMax, cfg.RateLimitWindow)).Get("/info", healthHandler.Info)

		// Push notifications arrive with no session; the caller is
		// authenticated by channel token, not cookie.
		r.With(rateLimiter.Public(cfg.RateLimitMax, cfg.RateLimitWindow)).Post("/calendar/webhook", webhookHandler.Notify)

		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimiter.Public(cfg.RateLimitMax, cfg.RateLimitWindow)).Get("/google", authHandler.InitiateGoogle)
			r.With(rateLimiter.Public(cfg.RateLimitMax, cfg.RateLimitWindow)).Get("/google/callback", authHandler.Callback)
			r.With(rateLimiter.Public(cfg.RateLimitMax, cfg.RateLimitWindow), middleware.OptionalAuth(jwtService, tokenBlacklist)).Get("/status", authHandler.Status)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(rateLimiter.General(cfg.RateLimitMax, cfg.RateLimitWindow))
				r.Post("/refresh", authHandler.Refresh)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(rateLimiter.General(cfg.RateLimitMax, cfg.RateLimitWindow))

			r.Route("/calendar", func(r chi.Router) {
				r.Route("/events", func(r chi.Router) {
					r.Get("/", eventsHandler.List)
					r.Post("/", eventsHandler.Create)
					r.Get("/range/{window}", eventsHandler.Range)
					r.Get("/{id}", eventsHandler.Get)
					r.Put("/{id}", eventsHandler.Update)
					r.Delete("/{id}", eventsHandler.Delete)
				})
				r.Get("/search", eventsHandler.Search)

				r.With(rateLimiter.SyncTrigger()).Post("/sync", syncHandler.Trigger)
				r.With(rateLimiter.SyncTrigger()).Post("/batch-sync", syncHandler.BatchSync)

				r.Post("/webhook/subscribe", webhookHandler.Subscribe)
				r.Post("/webhook/unsubscribe", webhookHandler.Unsubscribe)
			})
		})
	})

	return r
}
