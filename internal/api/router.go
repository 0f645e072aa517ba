package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/keyforge/license-panel/internal/api/handler"
	"github.com/keyforge/license-panel/internal/api/middleware"
	"github.com/keyforge/license-panel/internal/core/domain"
	"github.com/keyforge/license-panel/internal/core/ports"
	"github.com/keyforge/license-panel/internal/core/service"
	mongorepo "github.com/keyforge/license-panel/internal/infrastructure/db/mongo"
	redisinfra "github.com/keyforge/license-panel/internal/infrastructure/db/redis"
	"github.com/keyforge/license-panel/pkg/logger"
)

// Options carries everything the router needs beyond the datastores.
type Options struct {
	CookieName       string
	ResetTokenSecret string
	Throttle         service.ThrottleConfig
	Bootstrap        service.BootstrapConfig
	Connect          service.ConnectConfig
	Mailer           ports.Mailer
	Broadcaster      ports.Broadcaster
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	log := logger.Get()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("panel"))

	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Repositories ---
	userRepo := mongorepo.NewUserRepository(db)
	sessionRepo := mongorepo.NewSessionRepository(db)
	securityRepo := mongorepo.NewSecurityRepository(db)
	referralRepo := mongorepo.NewReferralRepository(db)
	keyRepo := mongorepo.NewKeyRepository(db)
	activityRepo := mongorepo.NewActivityRepository(db)
	settingsRepo := mongorepo.NewSettingsRepository(db)
	otpStore := redisinfra.NewOTPStore(rdb)

	// --- Services ---
	authService := service.NewAuthService(
		userRepo, sessionRepo, securityRepo, referralRepo, activityRepo,
		otpStore, opts.Mailer, opts.Throttle, opts.Bootstrap,
		opts.ResetTokenSecret, log,
	)
	keyService := service.NewKeyService(keyRepo, userRepo, settingsRepo, activityRepo, opts.Connect, log)
	referralService := service.NewReferralService(referralRepo, userRepo, activityRepo, log)
	userService := service.NewUserService(userRepo, activityRepo, log)
	activityService := service.NewActivityService(activityRepo, keyRepo, userRepo, log)
	settingsService := service.NewSettingsService(settingsRepo, log)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(authService, opts.CookieName)
	keyHandler := handler.NewKeyHandler(keyService)
	referralHandler := handler.NewReferralHandler(referralService)
	userHandler := handler.NewUserHandler(userService)
	activityHandler := handler.NewActivityHandler(activityService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	broadcastHandler := handler.NewBroadcastHandler(opts.Broadcaster, activityService, log)

	sessionMW := middleware.Session(authService, opts.CookieName)
	managers := middleware.RBAC(domain.RoleSuperOwner, domain.RoleOwner, domain.RoleAdmin)
	ownersUp := middleware.RBAC(domain.RoleSuperOwner, domain.RoleOwner)

	// --- Public routes ---
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/register", authHandler.Register)
	e.GET("/auth/status", authHandler.Status)
	e.POST("/auth/forgot-password/send-otp", authHandler.SendOTP)
	e.POST("/auth/forgot-password/verify-otp", authHandler.VerifyOTP)
	e.POST("/auth/forgot-password/reset", authHandler.ResetPassword)
	// Logout stays outside the session gate so a stale cookie still clears.
	e.POST("/auth/logout", authHandler.Logout)

	// The downstream product boundary authenticates with X-API-Key, not a
	// session cookie.
	e.POST("/api/connect", keyHandler.Connect)

	// --- Authenticated routes ---
	authed := e.Group("", sessionMW)
	authed.POST("/generate-key", keyHandler.Issue)
	authed.GET("/keys", keyHandler.List)
	authed.PUT("/keys", keyHandler.Edit)
	authed.DELETE("/keys", keyHandler.Delete)
	authed.POST("/keys/reset-uuids", keyHandler.ResetUUIDs)

	authed.GET("/activities", activityHandler.List)
	authed.GET("/analytics", activityHandler.Analytics)

	// Reading one's own balance is open to every role; top-ups are not.
	authed.GET("/balance", userHandler.Balances)

	// Management surfaces: resellers are read-only consumers of their own keys
	// and never see these.
	mgmt := authed.Group("", managers)
	mgmt.POST("/referrals", referralHandler.Generate)
	mgmt.GET("/referrals", referralHandler.List)
	mgmt.DELETE("/referrals", referralHandler.Delete)

	mgmt.POST("/balance", userHandler.AddBalance)
	mgmt.GET("/users-server-status", userHandler.ServerStatuses)
	mgmt.POST("/users-server-status", userHandler.SetServerStatus)

	owners := authed.Group("", ownersUp)
	owners.GET("/settings", settingsHandler.Get)
	owners.POST("/settings", settingsHandler.Update)
	owners.GET("/blocked-ips", authHandler.BlockedIPs)
	owners.DELETE("/blocked-ips", authHandler.Unblock)
	owners.POST("/broadcast", broadcastHandler.Broadcast)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
