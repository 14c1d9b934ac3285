package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/sirupsen/logrus"

	"storefront.dev/internal/auth"
	"storefront.dev/internal/cache"
	"storefront.dev/internal/catalog"
	"storefront.dev/internal/catalog/remote"
	"storefront.dev/internal/config"
	"storefront.dev/internal/httpapi"
	"storefront.dev/internal/obs"
	"storefront.dev/internal/store/pg"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml (default: search ./config and .)")
	flag.Parse()

	var loadOpts []config.Option
	if *configFile != "" {
		loadOpts = append(loadOpts, config.WithFile(*configFile))
	}
	cfg := config.MustLoad(loadOpts...)
	if cfg.Service.Version == "dev" {
		cfg.Service.Version = version
	}

	obs.ConfigureLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	log := obs.Logger().WithField("service", cfg.Service.Name)
	obs.Init()
	obs.InitBuildInfo(cfg.Service.Name, cfg.Service.Version, commit)

	ctx := context.Background()
	if _, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName: cfg.Service.Name,
		EndpointURL: cfg.Observability.TracingEndpointURL,
		Enabled:     cfg.Observability.TraceEnabled,
		SampleRatio: cfg.Observability.TraceSampleRatio,
		Insecure:    cfg.Observability.TraceInsecure,
	}); err != nil {
		log.WithError(err).Fatal("init tracer")
	}

	codec, err := auth.NewCodec(cfg.JWT.Secret, cfg.CodecOptions()...)
	if err != nil {
		log.WithError(err).Fatal("jwt codec")
	}

	var store *pg.Store
	if cfg.Database.DSN != "" {
		store, err = pg.Open(cfg.Database.DSN, pg.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		defer store.Close()
	} else if cfg.Service.Name == httpapi.UserService {
		log.Fatal("database.dsn is required for the user service")
	}

	checks := []*health.Config{}
	var denylist auth.Denylist = auth.NewMemoryDenylist()
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.PoolSize)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer client.Close()
		rd := cache.NewDenylist(client)
		denylist = rd
		checks = append(checks, obs.PingCheck("redis", rd))
	}

	var creds auth.CredentialStore
	if store != nil {
		creds = store
		checks = append(checks, obs.DatabaseCheck(store.DB()))
	}
	svc, err := auth.NewService(creds, codec, auth.WithDenylist(denylist))
	if err != nil {
		log.WithError(err).Fatal("auth service")
	}

	var policy *auth.Policy
	if store != nil {
		fallback, _ := auth.ParseDefaultPolicy(cfg.Security.DefaultPolicy)
		public := append([]string{cfg.Login.URL}, cfg.Security.PublicPaths...)
		bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		policy, err = auth.BuildPolicy(bootCtx, store, cfg.Service.Name, auth.WithDefault(fallback), auth.WithPublicPaths(public...))
		cancel()
		if err != nil {
			log.WithError(err).Fatal("load permissions")
		}
		log.WithField("rules", len(policy.Rules())).Info("permissions loaded")
	} else {
		log.Warn("no database configured; every path is permitted")
	}

	opts := httpapi.Options{
		Service:        cfg.Service.Name,
		Version:        cfg.Service.Version,
		Port:           cfg.Server.Port,
		LoginPath:      cfg.Login.URL,
		CookieName:     cfg.JWT.Cookie.Name,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		LoginBurst:     cfg.Login.RateBurst,
		LoginPerSecond: cfg.Login.RatePerS,
		TrustedProxies: cfg.Server.TrustedProxies,
		Auth:           svc,
		Policy:         policy,
	}
	switch cfg.Service.Name {
	case httpapi.ProductService:
		var cs catalog.Store = catalog.NewInMemory()
		if store != nil {
			cs = store
		}
		opts.Catalog = catalog.NewService(cs)
	case httpapi.OrderService:
		opts.Products = remote.New(cfg.Catalog.ProductServiceURL,
			remote.WithTimeout(cfg.Catalog.Timeout),
			remote.WithRetryCount(cfg.Catalog.RetryCount),
			remote.WithCookieName(cfg.JWT.Cookie.Name),
		)
	}
	opts.Health, err = obs.NewHealth(cfg.Service.Name, cfg.Service.Version, checks...)
	if err != nil {
		log.WithError(err).Fatal("health registry")
	}

	api, err := httpapi.New(opts)
	if err != nil {
		log.WithError(err).Fatal("build api")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	log.WithFields(logrus.Fields{"addr": srv.Addr, "version": cfg.Service.Version}).Info("starting")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = obs.ShutdownTracer(shutdownCtx)
	log.Info("stopped")
}
