package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/okian/ageguess/internal/adapters/http/api"
	"github.com/okian/ageguess/internal/adapters/http/swagger"
	"github.com/okian/ageguess/internal/adapters/http/web"
	"github.com/okian/ageguess/internal/adapters/live"
	service "github.com/okian/ageguess/internal/app"
	"github.com/okian/ageguess/internal/config"
	"github.com/okian/ageguess/internal/console"
	"github.com/okian/ageguess/pkg/logger"
	"github.com/okian/ageguess/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

type runOptions struct {
	port       int
	configFile string
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
}

func run(parent context.Context, o runOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(logger.WithWriter(o.errOut)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(ctx, o.configFile)
	if err != nil {
		return err
	}
	if cfg.LogJSON {
		if err := logger.Init(logger.WithWriter(o.errOut), logger.WithJSON(true)); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	handler, cleanup, err := buildHandler(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	go startSystemMetricsUpdater(ctx)

	return serve(ctx, stop, cfg, handler, o, log)
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(ctx, path)
	}
	return config.Load(ctx)
}

// buildHandler wires stores, the game service, the live hub and the routes.
// The returned cleanup stops the service and closes the stores.
func buildHandler(ctx context.Context, cfg *config.Config, log logger.Logger) (http.Handler, func(), error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	source, err := subjectSource(ctx, cfg, st, log)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	hubOpts := []live.Option{live.WithLogger(log.Named("live"))}
	if cfg.PublicURL != "" {
		hubOpts = append(hubOpts, live.WithCheckOrigin(live.AllowOrigins(cfg.PublicURL)))
	}
	hub := live.NewHub(hubOpts...)
	go hub.Run(ctx)

	svc := service.New(append(source,
		service.WithSessionStore(st.sessions),
		service.WithLeaderboard(st.leaderboard),
		service.WithPublisher(hub),
		service.WithStoreTimeout(cfg.StoreTimeout()),
		service.WithLeaderboardSize(cfg.LeaderboardSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithLogger(log.Named("game")),
	)...)
	if err := svc.Start(ctx); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("start service: %w", err)
	}
	cleanup := func() {
		svc.Stop()
		if err := st.Close(); err != nil {
			log.Error(context.Background(), "closing stores", logger.Error(err))
		}
	}

	if top, err := svc.Leaderboard(ctx, cfg.LeaderboardSize); err == nil {
		hub.Publish(top)
	}

	pages, err := web.New(svc,
		web.WithLogger(log.Named("web")),
		web.WithCookieName(cfg.SessionCookie),
		web.WithSecureCookies(strings.HasPrefix(cfg.PublicURL, "https://")),
		web.WithPublicURL(cfg.PublicURL),
		web.WithLive(http.HandlerFunc(hub.ServeWS)),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	router := httprouter.New()
	pages.Register(router)
	api.NewServer(svc, svc, cfg.MaxLeaderboardLimit, api.WithLogger(log.Named("api"))).Register(router)
	swagger.Register(router)
	return router, cleanup, nil
}

// serve listens on the port, announces the address, runs the console and
// blocks until ctx is done, stop is typed or the server fails.
func serve(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, handler http.Handler, o runOptions, log logger.Logger) error {
	addr := net.JoinHostPort(cfg.Bind, strconv.Itoa(o.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	fmt.Fprintf(o.out, "Web server started and running at http://localhost:%d\n", o.port)
	go func() {
		if err := console.Run(ctx, o.in, o.out, cancel, console.WithLogger(log.Named("console"))); err != nil &&
			!errors.Is(err, context.Canceled) {
			log.Warn(ctx, "console stopped", logger.Error(err))
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(runErr))
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return runErr
}

// startSystemMetricsUpdater refreshes the runtime gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
