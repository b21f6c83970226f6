package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	ghandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"golang.org/x/net/netutil"

	"mediastream/config"
	"mediastream/handlers"
	"mediastream/internal/catalog"
	"mediastream/internal/logging"
	"mediastream/internal/media"
	"mediastream/services/streaming"
	"mediastream/utils"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := run(*envFile); err != nil {
		slog.Error("server.failed", "err", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	settings, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(settings.LogLevel, settings.LogFile)
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("config.loaded", "settings", settings.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, fileStore, err := openStore(ctx, settings, logger)
	if err != nil {
		return err
	}

	checks := map[string]handlers.Pinger{"store": store}
	var resolver media.Resolver = media.NewDirResolver(store)

	var db *catalog.DB
	if settings.CatalogDB != "" {
		db, err = catalog.NewDB(catalog.Config{DatabasePath: settings.CatalogDB, Logger: logger})
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer db.Close()
		checks["catalog"] = db
		resolver = catalog.NewResolver(db.Repository, store)
	}

	// Background goroutines stop with ctx and are joined before the
	// catalog closes.
	var wg conc.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	if db != nil && settings.CatalogWatch && fileStore != nil {
		watcher, err := startCatalogWatch(ctx, settings.MediaRoot, fileStore, db, logger)
		if err != nil {
			return err
		}
		wg.Go(func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("catalog.watch.stopped", "err", err)
			}
		})
	}

	tracker := streaming.NewTracker()
	svc, err := streaming.NewService(resolver, store, settings.StreamingConfig(), tracker, logger)
	if err != nil {
		return err
	}

	server, closeAccessLog := setupHTTPServer(settings, svc, checks, logger)
	defer closeAccessLog()

	listener, err := net.Listen("tcp", settings.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", settings.Addr, err)
	}
	if settings.MaxConns > 0 {
		listener = netutil.LimitListener(listener, settings.MaxConns)
	}

	serveErr := make(chan error, 1)
	wg.Go(func() {
		logger.Info("server.started", "addr", listener.Addr().String(), "chunk_bytes", settings.ChunkSizeBytes())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server.error", "err", err)
			serveErr <- err
			stop()
		}
	})

	var metricsServer *http.Server
	if settings.MetricsAddr != "" {
		metricsServer = newMetricsServer(settings.MetricsAddr)
		wg.Go(func() {
			logger.Info("metrics.started", "addr", settings.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics.error", "err", err)
			}
		})
	}

	<-ctx.Done()
	gracefulShutdown(settings.ShutdownTimeout, logger, server, metricsServer)
	return serveResult(serveErr)
}

// serveResult returns the error that stopped the server, if any.
func serveResult(serveErr <-chan error) error {
	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	default:
		return nil
	}
}

// openStore builds the configured backend and waits for it to answer.
// The FileStore is returned separately when the backend is local.
func openStore(ctx context.Context, settings config.Settings, logger *slog.Logger) (media.Store, *media.FileStore, error) {
	var (
		store     media.Store
		fileStore *media.FileStore
	)
	switch settings.StorageBackend {
	case config.BackendS3:
		objectStore, err := media.NewObjectStore(settings.ObjectStoreConfig(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create object store: %w", err)
		}
		store = objectStore
	default:
		fileStore = media.NewOSFileStore(settings.MediaRoot, logger)
		store = fileStore
	}

	err := retry.Do(
		func() error { return store.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("store.ping_retry", "attempt", n+1, "backend", settings.StorageBackend, "err", err)
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("media store not ready: %w", err)
	}
	return store, fileStore, nil
}

// startCatalogWatch imports the media root once, then returns a watcher for
// subsequent changes.
func startCatalogWatch(ctx context.Context, root string, fileStore *media.FileStore, db *catalog.DB, logger *slog.Logger) (*catalog.Watcher, error) {
	importer := catalog.NewImporter(fileStore.Fs(), db.Repository, logger)
	if _, err := importer.Import(ctx, "/"); err != nil {
		return nil, fmt.Errorf("initial catalog import: %w", err)
	}
	watcher, err := catalog.NewWatcher(root, importer, logger)
	if err != nil {
		return nil, fmt.Errorf("watch media root: %w", err)
	}
	return watcher, nil
}

// Sets up the public HTTP server. The returned func closes the access log.
func setupHTTPServer(settings config.Settings, svc *streaming.Service, checks map[string]handlers.Pinger, logger *slog.Logger) (*http.Server, func()) {
	router := utils.NewRouter(utils.Routes{
		Stream: handlers.NewStreamHandler(svc, settings.StreamTimeout, logger),
		Health: handlers.NewHealthHandler(checks, logger),
		Admin:  handlers.NewAdminHandler(svc.Tracker()),
	})

	var handler http.Handler = router
	closeFn := func() {}
	if settings.AccessLog != "" {
		var accessLog io.WriteCloser = logging.RotatingFile(settings.AccessLog)
		handler = ghandlers.CombinedLoggingHandler(accessLog, router)
		closeFn = func() { _ = accessLog.Close() }
	}

	return &http.Server{
		Addr:              settings.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}, closeFn
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Stops accepting requests and waits for in-flight streams up to timeout.
func gracefulShutdown(timeout time.Duration, logger *slog.Logger, servers ...*http.Server) {
	logger.Info("server.shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, server := range servers {
		if server == nil {
			continue
		}
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server.forced_shutdown", "addr", server.Addr, "err", err)
			_ = server.Close()
		}
	}
	logger.Info("server.exited")
}
