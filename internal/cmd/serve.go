package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/offlinefirst/tiptap/pkg/metrics"
	"github.com/offlinefirst/tiptap/pkg/surface"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() command {
	return command{
		name:        "serve",
		description: "Host live recognizers over a websocket touch surface",
		configure: func(fs *flag.FlagSet) {
			fs.String("addr", "", "Listen address (overrides server.listen_addr)")
		},
		run: runServe,
	}
}

// listen is extracted for testability.
var listen = func(addr string) (net.Listener, error) { return net.Listen("tcp", addr) }

func runServe(fs *flag.FlagSet, args []string, ctx *AppContext, stdout io.Writer, stderr io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("application context unavailable")
	}
	return serve(ctx.Done(), fs, ctx, stdout)
}

func serve(runCtx context.Context, fs *flag.FlagSet, ctx *AppContext, stdout io.Writer) error {
	addr := ctx.Config.Server.ListenAddr
	if override := stringFlag(fs, "addr"); override != "" {
		addr = override
	}

	opts, err := ctx.Config.Recognizer.Options()
	if err != nil {
		return fmt.Errorf("resolve recognizer options: %w", err)
	}
	srv, err := surface.New(surface.Options{
		Gesture:         opts,
		AutoReset:       ctx.Config.Replay.AutoReset,
		Metrics:         metrics.NewRecorder(),
		Logger:          ctx.Logger,
		EventsPerSecond: ctx.Config.Server.MaxEventsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("build surface: %w", err)
	}

	ln, err := listen(addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	ctx.Logger.Info("surface listening", "addr", ln.Addr().String())
	fmt.Fprintf(stdout, "Listening on %s (websocket: /ws, metrics: /metrics)\n", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-runCtx.Done():
	}

	ctx.Logger.Info("surface shutting down", "sessions", srv.Sessions())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
