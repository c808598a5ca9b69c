// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, email provider)
// and composes the IAM and rate-limiting modules. This is the only place
// that knows about ALL modules.
package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/config"
	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/iam/authsrv"
	"github.com/Abraxas-365/gatekit/pkg/iam/authz"
	"github.com/Abraxas-365/gatekit/pkg/iam/authz/authzinfra"
	"github.com/Abraxas-365/gatekit/pkg/iam/iamhttp"
	"github.com/Abraxas-365/gatekit/pkg/iam/member/memberinfra"
	"github.com/Abraxas-365/gatekit/pkg/iam/onetime/onetimeinfra"
	"github.com/Abraxas-365/gatekit/pkg/iam/onetime/onetimesrv"
	"github.com/Abraxas-365/gatekit/pkg/iam/plan"
	"github.com/Abraxas-365/gatekit/pkg/iam/session"
	"github.com/Abraxas-365/gatekit/pkg/iam/tenant/tenantinfra"
	"github.com/Abraxas-365/gatekit/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/gatekit/pkg/limitx"
	"github.com/Abraxas-365/gatekit/pkg/limitx/limitxpg"
	"github.com/Abraxas-365/gatekit/pkg/limitx/limitxredis"
	"github.com/Abraxas-365/gatekit/pkg/logx"
	"github.com/Abraxas-365/gatekit/pkg/notifx"
	"github.com/Abraxas-365/gatekit/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/gatekit/pkg/notifx/notifxses"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and composed module services.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB       *sqlx.DB
	Redis    *redis.Client
	Notifier *notifx.Client

	// Modules
	Sessions       *session.Manager
	Gate           *authz.Gate
	AuthMiddleware *authz.Middleware
	PlanMiddleware *plan.Middleware
	Limiter        *limitx.Limiter
	TokenService   *onetimesrv.TokenService
	Handlers       *iamhttp.Handlers
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initSchemas()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — DB, Redis, email
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	// 2. Redis (only when the rate limiter runs on it)
	if c.Config.RateLimit.Backend == "redis" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Address(),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
			logx.Fatalf("Failed to connect to Redis: %v (required by RATELIMIT_BACKEND=redis)", err)
		}
		logx.Info("  ✅ Redis connected")
	}

	// 3. Email provider
	c.initEmailProvider()

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initEmailProvider() {
	var provider notifx.EmailSender

	switch c.Config.Notifx.Provider {
	case "ses":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.TODO(),
			awsConfig.WithRegion(c.Config.Notifx.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		provider = notifxses.NewSESProvider(ses.NewFromConfig(awsCfg), c.Config.Notifx.FromAddress)
		logx.Infof("  ✅ SES email provider configured (region: %s)", c.Config.Notifx.AWSRegion)

	case "console":
		provider = notifxconsole.NewConsoleProvider()
		logx.Info("  ✅ Console email provider configured (dev mode)")

	default:
		logx.Fatalf("Unknown NOTIFX_PROVIDER: %s (use 'console' or 'ses')", c.Config.Notifx.Provider)
	}

	c.Notifier = notifx.NewClient(provider)
	if err := onetimesrv.RegisterTemplates(c.Notifier); err != nil {
		logx.Fatalf("Failed to register email templates: %v", err)
	}
}

// initSchemas runs the idempotent schema bootstrap for every module, once,
// at startup. Modules never create their own tables lazily.
func (c *Container) initSchemas() {
	logx.Info("🗄️ Ensuring storage schemas...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, ensure := range []func(context.Context, *sqlx.DB) error{
		userinfra.EnsureSchema,
		tenantinfra.EnsureSchema,
		memberinfra.EnsureSchema,
		onetimeinfra.EnsureSchema,
		limitxpg.EnsureSchema,
	} {
		if err := ensure(ctx, c.DB); err != nil {
			logx.Fatalf("Schema bootstrap failed: %v", err)
		}
	}
	logx.Info("✅ Storage schemas ready")
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	// 1. Session manager
	secret := c.Config.Session.Secret
	if secret == "" {
		if c.Config.App.IsProduction() {
			logx.Fatal("SESSION_SECRET is required in production")
		}
		generated, err := cryptox.GenerateSecret()
		if err != nil {
			logx.Fatalf("Failed to generate session secret: %v", err)
		}
		secret = generated
		logx.Warn("  ⚠️ SESSION_SECRET not set, using ephemeral secret (sessions die on restart)")
	}
	signer := cryptox.NewIdentitySigner(secret, c.Config.Session.Issuer)
	c.Sessions = session.NewManager(signer, c.Config.Session.TTL, c.Config.App.IsProduction())
	logx.Info("  ✅ Session manager ready")

	// 2. Repositories
	users := userinfra.NewPostgresUserRepository(c.DB)
	tenants := tenantinfra.NewPostgresTenantRepository(c.DB)
	members := memberinfra.NewPostgresMembershipRepository(c.DB)
	grants := onetimeinfra.NewPostgresGrantRepository(c.DB)

	// 3. Authorization gate + middlewares
	c.Gate = authz.NewGate(c.Sessions, members, authzinfra.NewLogxAuditService())
	c.AuthMiddleware = authz.NewMiddleware(c.Gate)
	c.PlanMiddleware = plan.NewMiddleware(tenants)
	logx.Info("  ✅ Authorization gate ready")

	// 4. Rate limiter
	var counter limitx.Counter
	switch c.Config.RateLimit.Backend {
	case "redis":
		counter = limitxredis.NewRedisCounter(c.Redis, maxProfileWindow())
	case "memory":
		counter = limitx.NewMemoryCounter()
	default:
		counter = limitxpg.NewPostgresCounter(c.DB)
	}
	c.Limiter = limitx.NewLimiter(counter)
	logx.Infof("  ✅ Rate limiter ready (backend: %s)", c.Config.RateLimit.Backend)

	// 5. One-time token service + auth
	c.TokenService = onetimesrv.NewTokenService(
		grants,
		users,
		members,
		onetimeinfra.NewPostgresStateApplier(),
		c.Notifier,
		c.Config.App.BaseURL,
	)
	auth := authsrv.NewAuthService(users, members, c.Sessions)
	c.Handlers = iamhttp.NewHandlers(auth, c.TokenService, c.Sessions, tenants)
	logx.Info("  ✅ IAM services ready")
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartBackgroundServices launches the housekeeping loop that sweeps
// expired one-time tokens.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.TokenService.CleanExpired(ctx); err != nil {
					logx.WithError(err).Warn("one-time token sweep failed")
				}
			}
		}
	}()
}

// maxProfileWindow is the key expiry used by the Redis counter: long
// enough for the widest configured quota window.
func maxProfileWindow() time.Duration {
	window := limitx.StrictLimit.Window
	for _, cfg := range []limitx.Config{limitx.ModerateLimit, limitx.LenientLimit, limitx.PublicLimit} {
		if cfg.Window > window {
			window = cfg.Window
		}
	}
	return window
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
