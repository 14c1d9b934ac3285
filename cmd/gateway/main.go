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
	"storefront.dev/internal/config"
	"storefront.dev/internal/gateway"
	"storefront.dev/internal/obs"
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
	name := cfg.Service.Name
	if name == "" || name == "user-service" {
		name = "gateway"
	}

	obs.ConfigureLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	log := obs.Logger().WithField("service", name)
	obs.Init()
	obs.InitBuildInfo(name, version, commit)

	ctx := context.Background()
	if _, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName: name,
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

	var checks []*health.Config
	var svcOpts []auth.ServiceOption
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.PoolSize)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer client.Close()
		rd := cache.NewDenylist(client)
		svcOpts = append(svcOpts, auth.WithDenylist(rd))
		checks = append(checks, obs.PingCheck("redis", rd))
	}
	verifier, err := auth.NewService(nil, codec, svcOpts...)
	if err != nil {
		log.WithError(err).Fatal("auth service")
	}
	h, err := obs.NewHealth(name, version, checks...)
	if err != nil {
		log.WithError(err).Fatal("health registry")
	}

	gw, err := gateway.New(gateway.Options{
		Name:         name,
		Version:      version,
		Mode:         cfg.Server.Mode,
		TraceEnabled: cfg.Observability.TraceEnabled,
		CookieName:   cfg.JWT.Cookie.Name,
		Routes:       cfg.Gateway.Routes,
		Verifier:     verifier,
		Health:       h,
	})
	if err != nil {
		log.WithError(err).Fatal("build gateway")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:       60 * time.Second,
	}

	log.WithFields(logrus.Fields{"addr": srv.Addr, "routes": len(cfg.Gateway.Routes)}).Info("starting")
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
