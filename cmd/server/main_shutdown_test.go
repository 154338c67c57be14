package main

import (
	"errors"
	"net"
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// deliverSignal makes shutdown receive sig as soon as it subscribes.
func deliverSignal(t *testing.T, sig os.Signal) {
	t.Helper()
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	signalNotify = func(ch chan<- os.Signal, _ ...os.Signal) {
		go func() {
			ch <- sig
		}()
	}
}

func TestShutdownDrainsIdleServer(t *testing.T) {
	deliverSignal(t, syscall.SIGTERM)

	server := &http.Server{}
	drained := make(chan struct{}, 1)
	server.RegisterOnShutdown(func() {
		drained <- struct{}{}
	})

	shutdown(server, time.Second, zaptest.NewLogger(t))

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatalf("expected graceful shutdown on SIGTERM")
	}
}

func TestShutdownForcesCloseAfterGracePeriod(t *testing.T) {
	deliverSignal(t, syscall.SIGINT)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	inFlight := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	server := &http.Server{Handler: http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(inFlight)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})}
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(ln)
	}()

	clientErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/calculate?amount=1")
		if err == nil {
			resp.Body.Close()
		}
		clientErr <- err
	}()

	select {
	case <-inFlight:
	case <-time.After(2 * time.Second):
		t.Fatalf("request never reached the handler")
	}

	core, logs := observer.New(zap.WarnLevel)
	done := make(chan struct{})
	go func() {
		shutdown(server, 20*time.Millisecond, zap.New(core))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not return after the grace period")
	}

	if got := logs.FilterMessage("graceful shutdown failed").Len(); got != 1 {
		t.Fatalf("expected one graceful shutdown warning, got %d", got)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("expected ErrServerClosed from Serve, got %v", err)
	}

	select {
	case err := <-clientErr:
		if err == nil {
			t.Fatalf("expected the in-flight request to be cut off")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("in-flight request was not closed")
	}
}
