package application

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/pack-calculator/internal/config"
	"github.com/eugenenazirov/pack-calculator/internal/storage"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	cfg.InitialPackSizes = []int{400, 150}
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	sizes, err := app.storage.GetPackSizes()
	if err != nil {
		t.Fatalf("GetPackSizes returned error: %v", err)
	}
	if want := []int{150, 400}; !slices.Equal(sizes, want) {
		t.Fatalf("expected pack sizes %v, got %v", want, sizes)
	}
	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.metrics != nil {
		t.Fatalf("expected metrics to be disabled")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestNewExposesMetricsWhenEnabled(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.MetricsEnabled = true

	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calculate?amount=12001", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from calculate, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `packcalc_calculations_total{outcome="success"} 1`) {
		t.Fatalf("expected calculation counter in metrics output")
	}
}

func TestNewWithoutMetricsHidesEndpoint(t *testing.T) {
	app, err := New(baseTestConfig(":0"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for /metrics when disabled, got %d", rec.Code)
	}
}

func TestRootHandlerServesHealthAtRoot(t *testing.T) {
	app, err := New(baseTestConfig(":0"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	for _, path := range []string{"/health", "/api/health"} {
		rec := httptest.NewRecorder()
		app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
			t.Fatalf("%s: unexpected body %s", path, rec.Body.String())
		}
	}
}

func TestNewPersistsRegistryToStorageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack-sizes.yaml")
	cfg := baseTestConfig(":0")
	cfg.StorageFile = path

	app, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := app.storage.AddPackSize(1000); err != nil {
		t.Fatalf("AddPackSize returned error: %v", err)
	}

	stored, ok, err := storage.NewFileSnapshotter(path).Load()
	if err != nil || !ok {
		t.Fatalf("expected snapshot to exist, ok=%v err=%v", ok, err)
	}
	if want := []int{250, 500, 1000}; !slices.Equal(stored, want) {
		t.Fatalf("expected stored sizes %v, got %v", want, stored)
	}

	cfg.InitialPackSizes = []int{7}
	restarted, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error on restart: %v", err)
	}
	sizes, _ := restarted.storage.GetPackSizes()
	if want := []int{250, 500, 1000}; !slices.Equal(sizes, want) {
		t.Fatalf("expected persisted sizes %v after restart, got %v", want, sizes)
	}
}

func TestNewReturnsErrorForCorruptStorageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack-sizes.yaml")
	if err := os.WriteFile(path, []byte("pack_sizes: ["), 0o600); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	cfg := baseTestConfig(":0")
	cfg.StorageFile = path

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for corrupt storage file")
	}
}

func TestResolveProjectPathFindsGoMod(t *testing.T) {
	path, err := resolveProjectPath("go.mod")
	if err != nil {
		t.Fatalf("resolveProjectPath returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected go.mod to exist at %s: %v", path, err)
	}
}

func TestNewReturnsErrorForInvalidPackSizes(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.InitialPackSizes = nil

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for invalid pack sizes")
	}
}

func TestResolveProjectPathUnknownTarget(t *testing.T) {
	if _, err := resolveProjectPath("definitely-not-a-real-file"); err == nil {
		t.Fatalf("expected error for missing resource")
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                 port,
		InitialPackSizes:     []int{250, 500},
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
		MaxOrderAmount:       100_000,
		LogLevel:             "info",
	}
}
