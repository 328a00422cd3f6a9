package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/treeline-dev/treeline/internal/config"
	"github.com/treeline-dev/treeline/pkg/middleware"
	"github.com/treeline-dev/treeline/pkg/server"
	"github.com/treeline-dev/treeline/pkg/session"
)

func serveCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync server",
		Long: `Start the websocket sync server with the built-in demo app.

Routes:
  /live     websocket endpoint
  /healthz  liveness probe
  /metrics  Prometheus metrics (when enabled)

Examples:
  treeline serve
  treeline serve --port=8080
  treeline serve --host=0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from treeline.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from treeline.json)")

	return cmd
}

func runServe(port int, host string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	store, err := newSnapshotStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sessCfg := &server.SessionConfig{
		ReadTimeout:      cfg.ReadTimeout(),
		WriteTimeout:     cfg.WriteTimeout(),
		IdleTimeout:      cfg.IdleTimeout(),
		HandshakeTimeout: cfg.HandshakeTimeout(),
		ResumeWindow:     cfg.ResumeWindow(),
		MaxMessageSize:   cfg.Session.MaxMessageSize,
		MaxEventQueue:    cfg.Session.MaxEventQueue,
		MaxSessions:      cfg.Session.MaxSessions,
	}

	opts := []server.ManagerOption{
		server.WithLogger(logger),
		server.WithSnapshotStore(store),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(
			server.NewMetrics(server.WithNamespace(cfg.Metrics.Namespace))))
	}
	manager := server.NewManager(demoApp(), sessCfg, opts...)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.OpenTelemetry())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Prometheus(middleware.WithNamespace(cfg.Metrics.Namespace)))
	}
	var handlerOpts []server.HandlerOption
	if len(cfg.Server.AllowedOrigins) > 0 {
		handlerOpts = append(handlerOpts, server.WithCheckOrigin(originChecker(cfg.Server.AllowedOrigins)))
	}
	r.Handle("/live", server.NewHandler(manager, handlerOpts...))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	success("Serving on http://%s", cfg.Address())
	info("websocket endpoint /live")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	manager.Shutdown(ctx)
	return srv.Shutdown(ctx)
}

// originChecker allows upgrades from the listed origins. Requests
// without an Origin header (non-browser clients) pass.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(origin)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return set[strings.ToLower(origin)]
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func newSnapshotStore(cfg *config.Config) (session.SnapshotStore, error) {
	switch cfg.Snapshot.Backend {
	case "s3":
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Snapshot.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Snapshot.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg)
		return session.NewS3Store(client, cfg.Snapshot.Bucket, cfg.Snapshot.Prefix, cfg.ResumeWindow()), nil
	default:
		return session.NewMemoryStore(), nil
	}
}
