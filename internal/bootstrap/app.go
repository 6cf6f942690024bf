package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clytar/clytar-backend/config"
	httpapi "github.com/clytar/clytar-backend/internal/api/http"
	"github.com/clytar/clytar-backend/internal/api/http/routes"
	"github.com/clytar/clytar-backend/internal/auth"
	"github.com/clytar/clytar-backend/internal/auth/session"
	"github.com/clytar/clytar-backend/internal/generation"
	notifrepo "github.com/clytar/clytar-backend/internal/notifications/repository"
	notifservice "github.com/clytar/clytar-backend/internal/notifications/service"
	projectrepo "github.com/clytar/clytar-backend/internal/projects/repository"
	"github.com/clytar/clytar-backend/internal/store"
	usersrepo "github.com/clytar/clytar-backend/internal/users/repository"
	usersservice "github.com/clytar/clytar-backend/internal/users/service"
	"github.com/clytar/clytar-backend/internal/workflow"
)

// App holds the wired services. The API server and the CLI both build one.
type App struct {
	Config        *config.Config
	Log           *zap.Logger
	DB            *sql.DB
	Redis         *redis.Client
	Sessions      *session.Manager
	Users         *usersservice.UserService
	Engine        *workflow.Engine
	Events        workflow.Subscriber
	Notifications *notifservice.Service
	Cookies       *auth.CookieCodec
}

type AppOptions struct {
	// Migrate applies pending schema migrations when Postgres is in use.
	Migrate bool
}

type repos struct {
	users    usersrepo.Repository
	projects projectrepo.Repository
	notifs   notifrepo.Repository
}

// NewApp opens the configured backends and wires the services. With
// DB_DSN set every repository is Postgres-backed; otherwise they share one
// table store, in memory or in Redis.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger, opt AppOptions) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if cfg.Redis.Addr != "" {
		rdb, err := OpenRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
	}

	r, err := a.openRepos(ctx, opt)
	if err != nil {
		a.closeBackends()
		return nil, err
	}

	if err := a.wire(ctx, r); err != nil {
		a.closeBackends()
		return nil, err
	}
	return a, nil
}

func (a *App) openRepos(ctx context.Context, opt AppOptions) (repos, error) {
	cfg := a.Config
	if cfg.Database.DSN != "" {
		db, err := OpenDB(ctx, &cfg.Database, DBOptions{Migrate: opt.Migrate}, a.Log)
		if err != nil {
			return repos{}, err
		}
		a.DB = db
		return repos{
			users:    usersrepo.NewPostgresRepository(db),
			projects: projectrepo.NewPostgresRepository(db),
			notifs:   notifrepo.NewPostgresRepository(db),
		}, nil
	}

	var st store.Store
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		if a.Redis == nil {
			return repos{}, errors.New("STORAGE_BACKEND=redis needs REDIS_ADDR")
		}
		st = store.NewRedisStore(a.Redis, store.DefaultSchema())
	default:
		a.Log.Warn("using in-memory storage, data is lost on restart")
		st = store.NewMemoryStore(store.DefaultSchema())
	}
	return repos{
		users:    usersrepo.NewTableRepository(st),
		projects: projectrepo.NewTableRepository(st),
		notifs:   notifrepo.NewTableRepository(st),
	}, nil
}

func (a *App) wire(ctx context.Context, r repos) error {
	cfg := a.Config

	var backend session.Backend = session.NewMemoryBackend()
	if a.Redis != nil {
		backend = session.NewRedisBackend(a.Redis)
	}

	var provider session.ProviderVerifier
	if cfg.Auth.FirebaseCredentialsPath != "" {
		client, err := auth.InitializeFirebase(ctx, &cfg.Auth)
		if err != nil {
			return err
		}
		provider = auth.NewFirebaseVerifier(client)
	}

	a.Sessions = session.NewManager(r.users, backend, session.Options{
		TTL:         cfg.Auth.SessionTTL,
		AdminEmails: cfg.Auth.AdminEmails,
		Provider:    provider,
		Logger:      a.Log.Named("session"),
	})

	cookies, err := auth.NewCookieCodec(cfg.Auth.CookieHashKey, cfg.Auth.CookieBlockKey,
		cfg.Auth.SessionTTL, cfg.App.Environment == "production")
	if err != nil {
		return err
	}
	a.Cookies = cookies

	gen, err := NewGenerator(ctx, &cfg.Generation)
	if err != nil {
		return err
	}

	var pub workflow.Publisher
	if a.Redis != nil {
		rp := workflow.NewRedisPublisher(a.Redis, a.Log.Named("events"))
		pub, a.Events = rp, rp
	} else {
		mp := workflow.NewMemoryPublisher()
		pub, a.Events = mp, mp
	}

	a.Engine = workflow.NewEngine(r.projects, gen, workflow.Options{
		GenerationTimeout: cfg.Generation.Timeout,
		Publisher:         pub,
		Logger:            a.Log.Named("workflow"),
	})
	a.Users = usersservice.NewUserService(r.users, a.Log.Named("users"))
	a.Notifications = notifservice.NewService(r.notifs, r.users, a.Log.Named("notifications"))
	return nil
}

// NewGenerator builds the configured generator behind the rate limiter.
func NewGenerator(ctx context.Context, cfg *config.GenerationConfig) (generation.Generator, error) {
	var gen generation.Generator
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := generation.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		gen = g
	default:
		lib, err := generation.LoadLibrary(cfg.TemplatesPath)
		if err != nil {
			return nil, err
		}
		gen = generation.NewTemplateGenerator(lib, cfg.Delay)
	}

	if cfg.RatePerSecond <= 0 {
		return gen, nil
	}
	return generation.Limited(gen, rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.Burst, 1))), nil
}

// Router builds the HTTP handler over the wired services.
func (a *App) Router() *gin.Engine {
	var db, rdb httpapi.Pinger
	if a.DB != nil {
		db = a.DB
	}
	if a.Redis != nil {
		rdb = redisPinger{rdb: a.Redis}
	}
	return BuildRouter(RouterDeps{
		ServiceName:    "clytar-api",
		Version:        a.Config.App.Version,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Logger:         a.Log,
		DB:             db,
		Redis:          rdb,
		V1: routes.V1Deps{
			Sessions:      a.Sessions,
			Cookies:       a.Cookies,
			Users:         a.Users,
			Engine:        a.Engine,
			Events:        a.Events,
			Notifications: a.Notifications,
		},
	})
}

// Close stops running generation tasks and then releases the backends.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Engine != nil {
		if err := a.Engine.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("engine shutdown: %w", err))
		}
	}
	errs = append(errs, a.closeBackends())
	return errors.Join(errs...)
}

func (a *App) closeBackends() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
