package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/pricefeed"
)

func init() {
	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "WebSocket price feed",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local price book over WebSocket",
		Run:   runFeedServe,
	}
	serve.Flags().String("addr", "127.0.0.1:8088", "Listen address")
	serve.Flags().String("path", "/feed", "WebSocket endpoint path")

	feedCmd.AddCommand(serve)
	RootCmd.AddCommand(feedCmd)
}

func runFeedServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	path, _ := cmd.Flags().GetString("path")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mux := http.NewServeMux()
	mux.Handle(path, pricefeed.NewServer(s, s, logger))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.Close()
		exitErr("listen", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("price feed listening", "addr", ln.Addr().String(), "path", path, "db", getDBPath())
	if err := serveUntil(ctx, srv, ln, shutdownGrace); err != nil {
		s.Close()
		exitErr("serve", err)
	}
}

const shutdownGrace = 5 * time.Second

// serveUntil serves on ln until ctx is done, then shuts srv down, giving
// in-flight requests grace to finish.
func serveUntil(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("price feed shutdown", "error", err)
		}
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
