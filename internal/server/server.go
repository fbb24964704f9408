// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"socialapp/internal/auth"
	"socialapp/internal/cache"
	"socialapp/internal/config"
	"socialapp/internal/database"
	"socialapp/internal/middleware"
	"socialapp/internal/models"
	"socialapp/internal/notifications"
	"socialapp/internal/observability"
	"socialapp/internal/repository"
	"socialapp/internal/service"
	"socialapp/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Deps are the already-initialized dependencies a Server is built from.
type Deps struct {
	// Mongo is used for readiness checks and closed on shutdown. May be nil in tests.
	Mongo    *mongo.Client
	Posts    repository.PostRepository
	Users    repository.UserRepository
	Blobs    storage.BlobStore
	Redis    *redis.Client
	Verifier auth.Verifier
}

// Server holds all dependencies and provides handlers
type Server struct {
	config              *config.Config
	mongo               *mongo.Client
	redis               *redis.Client
	blobs               storage.BlobStore
	verifier            auth.Verifier
	rateLimiter         *middleware.Limiter
	app                 *fiber.App
	promMiddleware      *fiberprometheus.FiberPrometheus
	shutdownCtx         context.Context
	shutdownFn          context.CancelFunc
	notifier            *notifications.Notifier
	hub                 *notifications.Hub
	likeService         *service.LikeService
	commentService      *service.CommentService
	notificationService *service.NotificationService
	postService         *service.PostService
	userService         *service.UserService
}

// Per-route limits. Like toggles are budgeted per target so a burst on one
// post or comment does not block the caller elsewhere.
var (
	createPostLimit    = middleware.Rule{Name: "create_post", Limit: 5, Window: 5 * time.Minute}
	createUserLimit    = middleware.Rule{Name: "create_user", Limit: 3, Window: 10 * time.Minute, FailClosed: true}
	createCommentLimit = middleware.Rule{Name: "create_comment", Limit: 10, Window: time.Minute}
	postLikeLimit      = middleware.Rule{Name: "post_like", Limit: 20, Window: time.Minute, Params: []string{"id"}}
	commentLikeLimit   = middleware.Rule{Name: "comment_like", Limit: 20, Window: time.Minute, Params: []string{"id", "commentId"}}
)

// NewServer connects to Mongo, Redis and the blob store and builds a Server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	client, db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}

	// Redis is optional: without it there is no cache, revocation list or
	// cross-instance fan-out.
	redisClient := cache.Connect(cfg.RedisURL)

	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store init failed: %w", err)
	}

	verifier, err := auth.NewJWTVerifierFromConfig(cfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("identity verifier init failed: %w", err)
	}

	return NewServerWithDeps(cfg, Deps{
		Mongo:    client,
		Posts:    repository.NewPostRepository(db),
		Users:    repository.NewUserRepository(db),
		Blobs:    blobs,
		Redis:    redisClient,
		Verifier: verifier,
	}), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes the stores.
func NewServerWithDeps(cfg *config.Config, deps Deps) *Server {
	hub := notifications.NewHub()
	notifier := notifications.NewNotifier(deps.Redis)
	notifier.SetLocalHub(hub)

	directory := service.NewUserDirectory(deps.Users, cache.New(deps.Redis))
	maxUpload := int64(cfg.ImageMaxUploadSizeMB) << 20

	return &Server{
		config:              cfg,
		mongo:               deps.Mongo,
		redis:               deps.Redis,
		blobs:               deps.Blobs,
		verifier:            deps.Verifier,
		rateLimiter:         middleware.NewLimiter(deps.Redis, cfg.RateLimitsEnabled()),
		promMiddleware:      middleware.InitMetrics("socialapp"),
		notifier:            notifier,
		hub:                 hub,
		likeService:         service.NewLikeService(deps.Posts, directory, notifier),
		commentService:      service.NewCommentService(deps.Posts, directory, notifier),
		notificationService: service.NewNotificationService(deps.Posts),
		postService:         service.NewPostService(deps.Posts, directory, deps.Blobs, maxUpload),
		userService:         service.NewUserService(deps.Users, directory, deps.Posts),
	}
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "socialapp",
		BodyLimit: (s.config.ImageMaxUploadSizeMB + 1) << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error",
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			return models.Respond(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID into the request context
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: s.config.AllowedOrigins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
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

	app.Use(middleware.Identity(s.verifier))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	requireSubject := middleware.RequireSubject()

	// Feed and images
	api.Get("/home", s.GetHome)
	api.Get("/home/:imageId", s.GetImage)
	api.Get("/profile/:imageId", s.GetImage)

	// Posts
	api.Get("/post/:id", s.GetPost)
	api.Post("/post", requireSubject, s.rateLimiter.Handler(createPostLimit), s.CreatePost)
	api.Delete("/post/:id", requireSubject, s.DeletePost)

	// Users and profiles
	api.Get("/user-check/:username", s.CheckUserName)
	api.Post("/create-user", requireSubject, s.rateLimiter.Handler(createUserLimit), s.CreateUser)
	api.Get("/profile", requireSubject, s.GetProfile)
	api.Get("/profile-visitor/:userName", s.GetVisitorProfile)

	// Likes and comments
	posts := api.Group("/posts/:id")
	postLike := s.rateLimiter.Handler(postLikeLimit)
	commentLike := s.rateLimiter.Handler(commentLikeLimit)
	posts.Put("/like", requireSubject, postLike, s.LikePost)
	posts.Put("/unlike", requireSubject, postLike, s.UnlikePost)
	posts.Get("/comments", s.GetComments)
	posts.Post("/comments", requireSubject, s.rateLimiter.Handler(createCommentLimit), s.CreateComment)
	posts.Delete("/comments/:commentId", requireSubject, s.DeleteComment)
	posts.Put("/comments/:commentId/like", requireSubject, commentLike, s.LikeComment)
	posts.Put("/comments/:commentId/unlike", requireSubject, commentLike, s.UnlikeComment)

	// Notifications
	api.Get("/user-notifications", requireSubject, s.GetUserNotifications)
	api.Get("/ws", requireSubject, websocketUpgradeRequired, s.WebsocketHandler())
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional, so
// only the document store decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.mongo); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the realtime hub and starts listening.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		observability.Logger.Error("failed to start hub wiring",
			slog.String("hub", s.hub.Name()),
			slog.String("error", err.Error()),
		)
	}

	observability.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Stop the Redis subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		observability.Logger.Error("error shutting down hub",
			slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	if closer, ok := s.blobs.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			observability.Logger.Error("error closing blob store", slog.String("error", err.Error()))
		}
	}

	if s.mongo != nil {
		if err := s.mongo.Disconnect(ctx); err != nil {
			observability.Logger.Error("error disconnecting mongo", slog.String("error", err.Error()))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			observability.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	observability.Logger.Info("Server shutdown complete")
	return nil
}
