package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/pack-calculator/internal/api"
	"github.com/eugenenazirov/pack-calculator/internal/calculator"
	"github.com/eugenenazirov/pack-calculator/internal/config"
	"github.com/eugenenazirov/pack-calculator/internal/metrics"
	"github.com/eugenenazirov/pack-calculator/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage    storage.Storage
	calculator calculator.Calculator
	metrics    *metrics.Metrics
	handler    *api.Handler
	router     http.Handler
	logger     *zap.Logger
	server     *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New("")
	}

	calc := calculator.New(calculator.WithMaxAmount(cfg.MaxOrderAmount))
	handler := api.NewHandler(calc, store,
		api.WithLogger(logger),
		api.WithMetrics(m),
		api.WithCalculationTimeout(cfg.WriteTimeout),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}

	rootHandler, err := BuildRootHandler(apiRouter, metricsHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	return &App{
		storage:    store,
		calculator: calc,
		metrics:    m,
		handler:    handler,
		router:     apiRouter,
		logger:     logger,
		server:     NewServer(cfg, rootHandler),
	}, nil
}

// newStorage builds the pack-size registry, persisting it to cfg.StorageFile
// when one is configured.
func newStorage(cfg config.Config, logger *zap.Logger) (*storage.Registry, error) {
	var opts []storage.Option
	if cfg.StorageFile != "" {
		opts = append(opts, storage.WithSnapshotter(storage.NewFileSnapshotter(cfg.StorageFile)))
	}

	store, err := storage.NewRegistry(cfg.InitialPackSizes, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pack sizes: %w", err)
	}

	sizes, err := store.GetPackSizes()
	if err != nil {
		return nil, fmt.Errorf("failed to read pack sizes: %w", err)
	}
	logger.Info("pack size registry ready",
		zap.Ints("pack_sizes", sizes),
		zap.String("storage_file", cfg.StorageFile),
	)
	return store, nil
}

// BuildRootHandler constructs the root HTTP handler that serves static files,
// routes API requests and the root /health check to apiHandler and, when
// metricsHandler is non-nil, exposes /metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) (http.Handler, error) {
	mux := http.NewServeMux()

	staticPath, err := resolveProjectPath(filepath.Join("web", "static"))
	if err != nil {
		return nil, err
	}
	staticDir := http.Dir(staticPath)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(staticDir)))
	mux.Handle("/api/", apiHandler)
	mux.Handle("GET /health", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	indexPath, err := resolveProjectPath(filepath.Join("web", "templates", "index.html"))
	if err != nil {
		return nil, err
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	}))

	return mux, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
