package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/version"
)

func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}

func TestStartMetricsServer_Endpoints(t *testing.T) {
	logger := log.WithField("test", "http")

	port := findFreePort(t)
	addr := fmt.Sprintf(":%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	srv := startMetricsServer(ctx, addr, logger, healthHandler)
	if srv == nil {
		t.Fatal("startMetricsServer should not return nil")
	}

	// Даём время на запуск
	time.Sleep(100 * time.Millisecond)

	for _, path := range []string{"/metrics", "/healthz", "/livez", "/readyz"} {
		url := fmt.Sprintf("http://localhost:%d%s", port, path)
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("failed to get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
		if len(body) == 0 {
			t.Errorf("%s should return non-empty response", path)
		}
	}
}

func TestStartMetricsServer_Shutdown(t *testing.T) {
	logger := log.WithField("test", "http-shutdown")

	port := findFreePort(t)
	addr := fmt.Sprintf(":%d", port)

	ctx, cancel := context.WithCancel(context.Background())

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	startMetricsServer(ctx, addr, logger, healthHandler)

	time.Sleep(100 * time.Millisecond)

	url := fmt.Sprintf("http://localhost:%d/livez", port)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("server should be running: %v", err)
	}
	resp.Body.Close()

	cancel()
	time.Sleep(200 * time.Millisecond)

	if _, err := http.Get(url); err == nil {
		t.Error("server should be stopped after context cancellation")
	}
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	// Не должно паниковать
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

func TestStartAPIServer_ServesAndStops(t *testing.T) {
	logger := log.WithField("test", "api-server")

	port := findFreePort(t)
	addr := fmt.Sprintf(":%d", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	errCh := make(chan error, 1)
	srv := startAPIServer(addr, mux, logger, errCh)

	time.Sleep(100 * time.Millisecond)

	url := fmt.Sprintf("http://localhost:%d/ping", port)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("server should be running: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("expected 'pong', got %q", string(body))
	}

	shutdownHTTP(srv, logger)
	time.Sleep(100 * time.Millisecond)

	if _, err := http.Get(url); err == nil {
		t.Error("server should be stopped after shutdownHTTP")
	}

	select {
	case err := <-errCh:
		t.Fatalf("graceful shutdown must not report an error, got %v", err)
	default:
	}
}

func TestStartAPIServer_InvalidAddrReportsError(t *testing.T) {
	logger := log.WithField("test", "api-invalid")

	// Занимаем порт заранее, чтобы запуск упал.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer listener.Close()

	errCh := make(chan error, 1)
	startAPIServer(listener.Addr().String(), http.NewServeMux(), logger, errCh)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected bind error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected bind error to be reported")
	}
}
