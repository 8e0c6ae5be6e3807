package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServeUntilLogsShutdownTimeout(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewTextHandler(&buf, nil))
	t.Cleanup(func() { logger = slog.New(slog.NewTextHandler(io.Discard, nil)) })

	entered := make(chan struct{})
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- serveUntil(ctx, srv, ln, 20*time.Millisecond) }()

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean return, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveUntil did not return")
	}
	close(release)

	if !strings.Contains(buf.String(), "price feed shutdown") {
		t.Errorf("expected the shutdown error to be logged, got %q", buf.String())
	}
}

func TestServeUntilCleanShutdown(t *testing.T) {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serveUntil(ctx, &http.Server{Handler: http.NotFoundHandler()}, ln, time.Second) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean return, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveUntil did not return")
	}
}
