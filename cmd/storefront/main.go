// Command storefront drives the storefront client core from a terminal:
// browse the catalog, manage the cart, log in and check out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mmynk/storefront/internal/api"
	"github.com/mmynk/storefront/internal/apperr"
	"github.com/mmynk/storefront/internal/cache"
	"github.com/mmynk/storefront/internal/cart"
	"github.com/mmynk/storefront/internal/checkout"
	"github.com/mmynk/storefront/internal/config"
	"github.com/mmynk/storefront/internal/service"
	"github.com/mmynk/storefront/internal/session"
	"github.com/mmynk/storefront/internal/storage"
	"github.com/mmynk/storefront/internal/storage/memory"
	redisstore "github.com/mmynk/storefront/internal/storage/redis"
	"github.com/mmynk/storefront/internal/storage/sqlite"
	"github.com/mmynk/storefront/pkg/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	logging.SetupWithLevel(logging.Parse(cfg.LogLevel))

	flag.Usage = usage
	printMetrics := flag.Bool("metrics", false, "print cache metrics to stderr on exit")
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, cleanup, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		return 1
	}
	defer cleanup()

	if *printMetrics {
		defer a.dumpMetrics(os.Stderr)
	}

	if err := a.dispatch(ctx, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			return 2
		}
		slog.Debug("Command failed", "command", flag.Arg(0), "error", err)
		fmt.Fprintln(os.Stderr, apperr.UserMessage(err))
		return 1
	}
	return 0
}

type app struct {
	out      io.Writer
	store    storage.Store
	sessions *session.Store
	authz    *session.Authorizer
	cart     *cart.Store
	cache    *cache.Cache
	svc      *service.Services
	checkout *checkout.Checkout
	registry *prometheus.Registry
}

func newApp(ctx context.Context, cfg config.Config, out io.Writer) (*app, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		cleanups = append(cleanups, func() { _ = tp.Shutdown(context.Background()) })
	}

	fail := func(err error) (*app, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	})
	slog.Debug("Storage initialized", "backend", cfg.Storage)

	sessions, err := session.Load(ctx, store)
	if err != nil {
		return fail(err)
	}
	cartStore, err := cart.Load(ctx, store)
	if err != nil {
		return fail(err)
	}

	// Assigned below; the handler only runs during calls made through svc.
	var svc *service.Services
	client, err := api.New(cfg.APIBaseURL, sessions,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithUnauthorizedHandler(func(ctx context.Context) {
			if err := svc.Users.SessionRejected(ctx); err != nil {
				slog.Error("Failed to clear session", "error", err)
			}
		}),
	)
	if err != nil {
		return fail(err)
	}

	registry := prometheus.NewRegistry()
	c := cache.New(client, cache.WithRegisterer(registry))
	cleanups = append(cleanups, c.Close)

	svc = service.New(c, sessions, service.KeepAlive{
		Volatile: cfg.VolatileKeepAlive,
		Config:   cfg.ConfigKeepAlive,
	})

	return &app{
		out:      out,
		store:    store,
		sessions: sessions,
		authz:    session.NewAuthorizer(sessions),
		cart:     cartStore,
		cache:    c,
		svc:      svc,
		checkout: checkout.New(cartStore, sessions, svc.Orders),
		registry: registry,
	}, cleanup, nil
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.BackendRedis:
		return redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}

func (a *app) dumpMetrics(w io.Writer) {
	families, err := a.registry.Gather()
	if err != nil {
		slog.Error("Failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			slog.Error("Failed to write metrics", "error", err)
			return
		}
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: storefront [-metrics] <command> [args]

Catalog:
  products [-keyword k] [-page n]   list products
  product <id>                      show one product

Cart:
  cart add <product-id> <qty>       put a product in the cart (replaces its quantity)
  cart remove <product-id>          remove a product
  cart show                         show the cart and its totals
  cart clear                        empty the cart

Account:
  login [-redirect path] <email> <password>
  register <name> <email> <password> <confirm>
  logout

Checkout:
  checkout                          show where checkout continues
  shipping <address> <city> <postal-code> <country>
  payment [method]                  default PayPal
  review                            summary before submitting
  place-order
  orders                            list your orders
  order <id>                        show one order

Configuration is read from the environment (and an optional .env file):
STOREFRONT_API_URL, STOREFRONT_STORAGE, STOREFRONT_SQLITE_PATH,
STOREFRONT_REDIS_ADDR, STOREFRONT_TRACE, LOG_LEVEL.
`)
}
