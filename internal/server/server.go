// Package server contains the HTTP handlers for the blog API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/drafts"
	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	drafts         *drafts.Store
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	limiter        *middleware.Limiter
	featureFlags   *featureflags.Manager
	notifier       *notifications.Notifier
	relayCancel    context.CancelFunc

	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	followRepo       repository.FollowRepository
	notificationRepo repository.NotificationRepository

	identityService     *service.IdentityService
	postService         *service.PostService
	socialService       *service.SocialService
	notificationService *service.NotificationService
	draftService        *service.DraftService
}

// NewServer connects the database, Redis and the draft store and wires the services.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; without it there is no cache, revocation or realtime fan-out.
	cache.InitRedis(cfg.RedisURL)

	store, err := OpenDraftStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("draft store: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.GetClient(), store)
}

// OpenDraftStore opens the badger draft store described by cfg.
func OpenDraftStore(cfg *config.Config) (*drafts.Store, error) {
	if cfg.DraftsInMemory {
		return drafts.OpenInMemory()
	}
	return drafts.Open(drafts.Options{
		Dir:    cfg.DraftsDir,
		TTL:    time.Duration(cfg.DraftTTLHours) * time.Hour,
		Logger: middleware.Logger,
	})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil draft store is replaced by an in-memory one.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store *drafts.Store) (*Server, error) {
	if store == nil {
		var err error
		if store, err = drafts.OpenInMemory(); err != nil {
			return nil, fmt.Errorf("draft store: %w", err)
		}
	}

	flags, err := featureflags.Parse(cfg.FeatureFlags)
	if err != nil {
		middleware.Logger.Warn("ignoring malformed feature flags", slog.String("error", err.Error()))
	}
	if unknown := flags.Unknown(); len(unknown) > 0 {
		middleware.Logger.Warn("unknown feature flags configured", slog.Any("flags", unknown))
	}

	s := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		drafts:           store,
		promMiddleware:   middleware.InitMetrics("inkwell-api"),
		limiter:          middleware.NewLimiter(redisClient, cfg.Env),
		featureFlags:     flags,
		userRepo:         repository.NewUserRepository(db),
		postRepo:         repository.NewPostRepository(db),
		followRepo:       repository.NewFollowRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
	}

	var publisher service.Publisher
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
		publisher = s.notifier
	}

	s.notificationService = service.NewNotificationService(s.notificationRepo, publisher, s.featureFlags)
	s.identityService = service.NewIdentityService(s.userRepo, s.postRepo, s.followRepo, store)
	s.postService = service.NewPostService(s.postRepo, s.userRepo, s.followRepo, s.notificationService, s.featureFlags)
	s.socialService = service.NewSocialService(s.followRepo, s.userRepo, s.notificationService)
	s.draftService = service.NewDraftService(store, s.featureFlags)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	auth := s.AuthRequired()
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Inkwell Metrics Dashboard",
	}))

	authGroup := api.Group("/auth")
	authGroup.Post("/register", s.limiter.Handler(middleware.RegisterRule), s.Register)
	authGroup.Post("/login", s.limiter.Handler(middleware.LoginRule), s.Login)
	authGroup.Post("/logout", auth, s.Logout)

	// Specific /:id/:resource routes are registered before the generic /:id routes.
	posts := api.Group("/posts")
	posts.Get("/", s.ListPosts)
	posts.Post("/", auth, s.limiter.Handler(middleware.PostRule), s.CreatePost)
	posts.Post("/sync", auth, s.SyncPosts)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", auth, s.limiter.Handler(middleware.CommentRule), s.AddComment)
	posts.Get("/:id/share", s.SharePost)
	posts.Post("/:id/like", auth, s.ToggleLike)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", auth, s.UpdatePost)
	posts.Delete("/:id", auth, s.DeletePost)

	draftRoutes := api.Group("/drafts", auth)
	draftRoutes.Get("/", s.ListDrafts)
	draftRoutes.Post("/", s.AutosaveDraft)
	draftRoutes.Get("/:id", s.GetDraft)
	draftRoutes.Delete("/:id", s.DeleteDraft)

	users := api.Group("/users")
	users.Get("/me", auth, s.GetMyProfile)
	users.Put("/me", auth, s.UpdateMyProfile)
	users.Put("/me/password", auth, s.ChangePassword)
	users.Delete("/me", auth, s.DeleteMyAccount)
	users.Get("/:username/posts", s.GetUserPosts)
	users.Get("/:username/followers", s.GetFollowers)
	users.Get("/:username/following", s.GetFollowing)
	users.Post("/:username/follow", auth, s.limiter.Handler(middleware.FollowRule), s.ToggleFollow)
	users.Get("/:username", s.GetUserProfile)

	notes := api.Group("/notifications", auth)
	notes.Get("/", s.GetNotifications)
	notes.Post("/mark-read", s.MarkNotificationsRead)
	notes.Post("/clear", s.ClearNotifications)

	api.Get("/feature-flags", auth, s.GetFeatureFlags)
}

// App builds the Fiber application once and returns it.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Inkwell API",
		UnescapePath: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, models.NewValidationError(fe.Message))
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional, so
// a missing client does not fail readiness but an unreachable one does.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"dialect":  s.db.Dialector.Name(),
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()

	ctx, cancel := context.WithCancel(context.Background())
	s.relayCancel = cancel
	if err := s.StartRealtimeRelay(ctx); err != nil {
		middleware.Logger.Warn("realtime relay unavailable", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.relayCancel != nil {
		s.relayCancel()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.drafts != nil {
		if err := s.drafts.Close(); err != nil {
			middleware.Logger.Error("error closing draft store", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
