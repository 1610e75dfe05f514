package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/studentportal/internal/infra/config"
	"github.com/mkrupp/studentportal/internal/infra/logging"
	"github.com/mkrupp/studentportal/internal/infra/metrics"
	"github.com/mkrupp/studentportal/internal/infra/transport/http"
	"github.com/mkrupp/studentportal/internal/repo/account"
	"github.com/mkrupp/studentportal/internal/repo/docstore"
	"github.com/mkrupp/studentportal/internal/svc/portalsvc"
	"github.com/mkrupp/studentportal/internal/util/password"
)

const (
	appName = "portal"
	svcName = "portalsvc"
)

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig          `envPrefix:"LOG_"`
	HTTP     portalsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	Store    docstore.Config               `envPrefix:"STORE_"`
	Session  portalsvc.SessionConfig       `envPrefix:"SESSION_"`
	Password password.Config               `envPrefix:"PASSWORD_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	// PORT is set by most PaaS runtimes and takes precedence over the configured port.
	if port := os.Getenv("PORT"); port != "" {
		host, _, _ := net.SplitHostPort(cfg.HTTP.ServerAddr)
		cfg.HTTP.ServerAddr = net.JoinHostPort(host, port)
	}

	if err := logging.Configure(ctx, cfg.Log, loggerName); err != nil {
		panic(err)
	}

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.portalsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	log.InfoContext(ctx, "starting",
		"namespace", cfg.Namespace(),
		"addr", cfg.HTTP.ServerAddr,
		"store", cfg.Store.Driver,
	)

	store, err := docstore.Open(ctx, cfg.Store)
	if err != nil {
		if store == nil {
			return fmt.Errorf("open store: %w", err)
		}

		// Keep serving; every store-backed route answers "try again later".
		log.ErrorContext(ctx, "document store unavailable", "driver", cfg.Store.Driver, "error", err)
	}

	m := metrics.New()

	portalSvc, err := portalsvc.NewPortalService(
		ctx,
		account.DocumentAccountRepositoryFactory(store, password.NewHasher(cfg.Password)),
		cfg.Session,
		m,
	)
	if err != nil {
		_ = store.Close()

		return fmt.Errorf("new portal service: %w", err)
	}

	defer func() {
		if cerr := portalSvc.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close portal service: %w", cerr))
		}
	}()

	views, err := portalsvc.NewRenderer()
	if err != nil {
		return fmt.Errorf("new renderer: %w", err)
	}

	httpTransport := portalsvc.NewHTTPTransport(portalSvc, views, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig, http.Options{
		Sessions: portalSvc.Sessions,
		Metrics:  m,
	}); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
