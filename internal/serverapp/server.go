package serverapp

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"

	"savequest/internal/auth"
	"savequest/internal/badge"
	"savequest/internal/circle"
	"savequest/internal/clock"
	"savequest/internal/config"
	"savequest/internal/curriculum"
	"savequest/internal/gamify"
	"savequest/internal/httpmw"
	"savequest/internal/ledger"
	"savequest/internal/notification"
	"savequest/internal/progression"
	"savequest/internal/server"
	"savequest/internal/store"
	"savequest/internal/telemetry"
	"savequest/internal/tips"
)

type Options struct {
	Config *config.Config
	Logger *log.Logger
	Clock  clock.Clock
	// Store overrides the config-driven store; tests inject a MemoryStore.
	Store store.Store
}

// App is the assembled service: handler plus the resources that need
// closing on shutdown.
type App struct {
	Handler http.Handler
	Events  telemetry.Repository

	closers []func() error
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if cfg.Auth.Secret == "" {
		return nil, errors.New("auth secret is required (set JWT_SECRET)")
	}

	app := &App{}

	st := opts.Store
	if st == nil {
		switch cfg.Store.Driver {
		case "sqlite":
			sq, err := store.OpenSQLite(cfg.Store.Path)
			if err != nil {
				return nil, fmt.Errorf("open store: %w", err)
			}
			app.closers = append(app.closers, sq.Close)
			st = sq
		default:
			st = store.NewMemoryStore()
		}
	}

	catalog := badge.DefaultCatalog()
	if cfg.Gamify.BadgeCatalogPath != "" {
		loaded, err := badge.LoadCatalog(cfg.Gamify.BadgeCatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	plan := curriculum.Default()
	if cfg.Gamify.CurriculumPath != "" {
		loaded, err := curriculum.Load(cfg.Gamify.CurriculumPath)
		if err != nil {
			return nil, err
		}
		plan = loaded
	}

	events := telemetry.NewMemoryRepository()
	notes := notification.NewStoreRepo(st)
	progress := progression.NewStoreRepo(st)

	engine := &gamify.Engine{
		Ledger:     ledger.NewRepo(st),
		Progress:   progress,
		Curriculum: curriculum.NewStoreRepo(st),
		Plan:       plan,
		Badges:     catalog,
		Notes:      notes,
		Events:     events,
		Clock:      opts.Clock,
		Policy:     gamify.Policy{RevokeXPOnCancel: cfg.Gamify.RevokeXPOnCancel},
	}

	var leaderboard circle.Leaderboard = circle.NewMemoryLeaderboard()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.closers = append(app.closers, client.Close)
		leaderboard = circle.NewRedisLeaderboard(client)
		opts.Logger.Printf("leaderboards backed by redis at %s", cfg.Redis.Addr)
	}
	circles := circle.NewService(st, leaderboard, engine, events, opts.Clock)

	authService := auth.NewService(st, opts.Clock, cfg.Auth.Secret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour, opts.Logger)
	authHandler := auth.NewHandler(authService)
	authHandler.OnLogin = func(r *http.Request, userID string) {
		if _, err := engine.RecordLogin(r.Context(), userID); err != nil {
			opts.Logger.Printf("record login for %s: %v", userID, err)
		}
	}

	router := server.NewRouter(&server.App{
		Engine:   engine,
		Circles:  circles,
		Auth:     authHandler,
		Notes:    notes,
		Progress: progress,
		Badges:   catalog,
		Tips:     tips.Default(),
		Events:   events,
		BootTime: opts.Clock.Now(),
	})

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-Id"}),
	)

	app.Handler = httpmw.Chain(
		handlers.CombinedLoggingHandler(opts.Logger.Writer(), router),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
		cors,
	)
	app.Events = events
	return app, nil
}
