package routes

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sarvbloom/sarv-api/internal/auth"
	"github.com/sarvbloom/sarv-api/internal/cache"
	"github.com/sarvbloom/sarv-api/internal/config"
	"github.com/sarvbloom/sarv-api/internal/identity"
	"github.com/sarvbloom/sarv-api/internal/middleware"
	"github.com/sarvbloom/sarv-api/internal/otp"
	"github.com/sarvbloom/sarv-api/internal/rbac"
	"github.com/sarvbloom/sarv-api/internal/sms"
	"github.com/sarvbloom/sarv-api/internal/user"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Stores. Tests and redis-less development fall back to in-memory
	// implementations; production wiring requires both backends.
	var (
		users     identity.Repository
		roles     rbac.Repository
		challenge cache.Store
	)
	if d.DB != nil {
		users = identity.NewPostgresRepository(d.DB)
		roles = rbac.NewPostgresRepository(d.DB)
	} else {
		users = identity.NewMemoryRepository()
		roles = rbac.NewMemoryRepository()
		if err := rbac.Seed(context.Background(), roles); err != nil {
			return err
		}
	}
	if d.Cache != nil {
		challenge = cache.NewRedisStore(d.Cache)
	} else {
		challenge = cache.NewMemoryStore()
	}

	// Services.
	tokens := auth.NewTokenService(d.Cfg.AccessSecret, d.Cfg.RefreshSecret, d.Cfg.AccessTTL, d.Cfg.RefreshTTL, challenge)
	otpMgr := otp.NewManager(challenge, d.Cfg.OTPTTL)
	authSvc := auth.NewService(users, roles, otpMgr, tokens, d.Logger)
	roleSvc := rbac.NewService(roles)
	guard := rbac.NewGuard(roles)
	userSvc := user.NewService(users, roles, otpMgr, tokens)
	sender := sms.Sender(sms.NewLogSender(d.Logger))

	echoOTP := !d.Cfg.IsProduction()
	authHandler := auth.NewHandler(authSvc, sender, d.Logger, echoOTP)
	userHandler := user.NewHandler(userSvc, sender, d.Logger, echoOTP)
	roleHandler := NewRoleHandler(roleSvc)

	api := app.Group("/api/v1")

	rateLimiter := middleware.OTPRateLimit(d.Cache, d.Cfg.OTPPerMinute)
	requireAuth := middleware.RequireAuth(authSvc)

	RegisterAuthRoutes(api, authHandler, requireAuth, rateLimiter)
	RegisterUserRoutes(api, userHandler, requireAuth, guard)
	RegisterRoleRoutes(api, roleHandler, requireAuth, guard)

	return nil
}
