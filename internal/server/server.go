// Package server wires configuration, storage and handlers into a gin engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propgate/propgate/handlers"
	"github.com/propgate/propgate/internal/config"
	"github.com/propgate/propgate/internal/database"
	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/listing/handler"
	"github.com/propgate/propgate/internal/listing/service"
	"github.com/propgate/propgate/internal/listing/view"
	"github.com/propgate/propgate/internal/oidc"
	"github.com/propgate/propgate/internal/sessions"
	"github.com/propgate/propgate/internal/storage"
	"github.com/propgate/propgate/internal/tokens"
	"github.com/propgate/propgate/internal/users"
	"github.com/propgate/propgate/pkg/logger"
	"github.com/propgate/propgate/pkg/metrics"
	"github.com/propgate/propgate/pkg/middleware"
)

// Options selects which surfaces are mounted.
type Options struct {
	// Pages mounts the HTML frontend.
	Pages bool
	// Auth mounts /auth/* and /api/v1/me.
	Auth bool
	// MongoRetry overrides database.DefaultRetry.
	MongoRetry *database.Retry
}

// App is a fully wired service.
type App struct {
	Engine   *gin.Engine
	Listings service.Service
	Views    *view.Service
	Users    *users.Service
	Sessions *sessions.Service
	Redis    *redis.Client
	Assets   *storage.MinIOStorage
	Verifier middleware.Verifier

	cfg     *config.Config
	started time.Time
	mongo   *mongo.Client
	oidcOK  bool
}

// New connects the configured backends and builds the routes. Optional
// backends that cannot be reached are logged and replaced by in-memory
// stores; an unreadable field table is an error.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{cfg: cfg, started: time.Now()}

	table := fieldspec.Listing
	if cfg.FieldSpec.Path != "" {
		t, err := fieldspec.LoadYAML(cfg.FieldSpec.Path)
		if err != nil {
			return nil, fmt.Errorf("field table: %w", err)
		}
		table = t
		logger.Infof("loaded field table from %s (%d fields)", cfg.FieldSpec.Path, t.Len())
	}

	a.Redis = connectRedis(ctx, cfg.Redis)
	blacklist := sessions.NewBlacklist(a.Redis)

	if cfg.MongoDB.URI != "" {
		retry := database.DefaultRetry
		if opts.MongoRetry != nil {
			retry = *opts.MongoRetry
		}
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, retry)
		if err != nil {
			logger.Warnf("MongoDB unavailable, using in-memory stores: %v", err)
		} else {
			a.mongo = client
		}
	}
	if err := a.buildStores(ctx, table); err != nil {
		a.Close(ctx)
		return nil, err
	}

	viewOpts := []view.Option{view.WithTable(table)}
	if cfg.MinIO.Enabled() {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("MinIO unavailable, asset uploads disabled: %v", err)
		} else {
			a.Assets = s
			viewOpts = append(viewOpts, view.WithPresigner(s))
		}
	}
	views, err := view.New(a.Listings, a.Users, viewOpts...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Views = views

	oidcVer, idTokens := a.buildVerifiers(ctx)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if h := corsHandler(cfg.CORS); h != nil {
		r.Use(h)
		r.OPTIONS("/*any", h)
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(a.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/ready", a.ready)

	viewer := middleware.OptionalAuthMiddleware(a.Verifier, blacklist)
	editor := middleware.AuthMiddleware(a.Verifier, blacklist)

	lh := &handler.Handler{Store: a.Listings, Views: a.Views, Viewer: viewer, Editor: editor}
	if a.Assets != nil {
		lh.Assets = a.Assets
	}
	lh.Register(&r.RouterGroup)

	if opts.Pages {
		(&handlers.Pages{Views: a.Views, Viewer: viewer}).Register(r)
	}
	if opts.Auth {
		var kc *oidc.Client
		if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
			kc = oidc.NewClient(cfg.Keycloak.Issuer(), cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret)
		}
		ah := handlers.NewAuthHandler(cfg, a.Users, a.Sessions, blacklist, kc, idTokens)
		ah.Register(r.Group("/"))
		r.Group("/api/v1").GET("/me", editor, ah.Me)
	}
	handlers.RegisterSwagger(r)

	a.oidcOK = cfg.Keycloak.URL == "" || oidcVer != nil
	a.Engine = r
	return a, nil
}

func connectRedis(ctx context.Context, rc config.RedisConfig) *redis.Client {
	if rc.Host == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: rc.Addr(), Password: rc.Password, DB: rc.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s): %v", rc.Addr(), err)
		_ = client.Close()
		return nil
	}
	logger.Infof("connected to Redis: %s", rc.Addr())
	return client
}

func (a *App) buildStores(ctx context.Context, table fieldspec.Table) error {
	if a.mongo == nil {
		a.Listings = service.NewMemoryService(table)
		a.Users = users.NewService(users.NewMemoryUserRepository())
	} else {
		db := a.mongo.Database(a.cfg.MongoDB.Database)
		ls, err := service.NewMongoService(ctx, db.Collection("listings"), table)
		if err != nil {
			return fmt.Errorf("listing store: %w", err)
		}
		a.Listings = ls
		a.Users = users.NewService(users.NewMongoUserRepository(db.Collection("users")))
	}

	switch {
	case a.Redis != nil:
		a.Sessions = sessions.NewService(sessions.NewRedisRepository(a.Redis, "session:"))
		logger.Infof("using Redis for session storage")
	case a.mongo != nil:
		repo, err := sessions.NewMongoRepository(ctx, a.mongo.Database(a.cfg.MongoDB.Database).Collection("sessions"))
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		a.Sessions = sessions.NewService(repo)
	default:
		a.Sessions = sessions.NewService(sessions.NewMemoryRepository())
	}
	return nil
}

// buildVerifiers sets a.Verifier for access tokens and returns the Keycloak
// verifier (nil when unavailable) and the verifier used on login id tokens.
func (a *App) buildVerifiers(ctx context.Context) (*oidc.Verifier, middleware.Verifier) {
	var chain middleware.Chain
	if a.cfg.JWT.Secret != "" {
		chain = append(chain, tokens.NewVerifier(a.cfg.JWT.Secret))
	}

	var oidcVer *oidc.Verifier
	var idTokens middleware.Verifier
	if a.cfg.Keycloak.URL != "" && a.cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, a.cfg.Keycloak.Issuer(), a.cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			oidcVer = ver
			idTokens = ver
			chain = append(chain, ver)
		}
	}
	if oidcVer == nil && a.cfg.Keycloak.AllowInsecureToken {
		logger.Warn("enabling insecure token verifier (integration mode)")
		insecure := oidc.NewInsecureVerifier()
		idTokens = insecure
		chain = append(chain, insecure)
	}
	a.Verifier = chain
	return oidcVer, idTokens
}

func corsHandler(cc config.CORSConfig) gin.HandlerFunc {
	if len(cc.AllowedOrigins) == 0 {
		return nil
	}
	c := cors.DefaultConfig()
	if slices.Contains(cc.AllowedOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cc.AllowedOrigins
		c.AllowCredentials = true
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	c.ExposeHeaders = []string{"Content-Length", "Retry-After"}
	c.MaxAge = 12 * time.Hour
	return cors.New(c)
}

// ready reports 200 only when every configured dependency is reachable.
func (a *App) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	ok := true
	check := func(name string, configured bool, probe func() error) {
		if !configured {
			deps[name] = "disabled"
			return
		}
		if err := probe(); err != nil {
			deps[name] = "down"
			ok = false
			return
		}
		deps[name] = "up"
	}
	check("mongodb", a.cfg.MongoDB.URI != "", func() error {
		if a.mongo == nil {
			return errors.New("not connected")
		}
		return a.mongo.Ping(ctx, nil)
	})
	check("redis", a.cfg.Redis.Host != "", func() error {
		if a.Redis == nil {
			return errors.New("not connected")
		}
		return a.Redis.Ping(ctx).Err()
	})
	check("minio", a.cfg.MinIO.Enabled(), func() error {
		if a.Assets == nil {
			return errors.New("not connected")
		}
		return a.Assets.Ping(ctx)
	})
	check("oidc", a.cfg.Keycloak.URL != "", func() error {
		if !a.oidcOK {
			return errors.New("verifier not initialized")
		}
		return nil
	})

	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(a.started).String()})
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:      a.Engine,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close releases backend connections.
func (a *App) Close(ctx context.Context) {
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
