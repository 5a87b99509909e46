package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/firedesk/internal/listen"
	"github.com/roach88/firedesk/internal/metrics"
	"github.com/roach88/firedesk/internal/query"
	"github.com/roach88/firedesk/internal/wire"
)

// ListenOptions holds flags for the listen command.
type ListenOptions struct {
	*RootOptions
	SpecPath       string
	MetricsAddr    string
	Subcollections bool
	Snapshots      int // exit after this many snapshots; 0 runs until interrupted
}

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen <collection>",
		Short: "Watch a query and print every snapshot",
		Long: `Subscribe to a query and print the full result set each time it changes.
The first snapshot is printed as soon as the subscription opens.

Each document is printed flattened: its fields plus "id", and with
--subcollections a "_subcollections" list of its subcollection names.
JSON output writes one response object per snapshot.

Stream errors are logged and the subscription reopens with exponential
backoff. Press Ctrl-C to stop.

Examples:
  firedesk listen users
  firedesk listen users --spec adults.yaml --format json
  firedesk listen users --metrics-addr :9090 --subcollections`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.SpecPath, "spec", "", "query spec file (.json, .yaml, .cue, or - for JSON on stdin)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.Subcollections, "subcollections", false, "list each document's subcollections (default from config)")
	cmd.Flags().IntVar(&opts.Snapshots, "snapshots", 0, "exit after this many snapshots")

	return cmd
}

func runListen(cmd *cobra.Command, opts *ListenOptions, collection string) error {
	if opts.Snapshots < 0 {
		return NewExitError(ExitCommandError, "--snapshots must not be negative")
	}
	qopts := &QueryOptions{RootOptions: opts.RootOptions, SpecPath: opts.SpecPath}
	spec, err := qopts.loadSpec()
	if err != nil {
		return err
	}

	e, err := setup(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	m := metrics.New()
	if opts.MetricsAddr != "" {
		srv := serveMetrics(opts.MetricsAddr, m, e.logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				e.logger.Error("error stopping metrics server", "error", err)
			}
		}()
	}

	l := listen.New(e.store,
		listen.WithLogger(e.logger),
		listen.WithMetrics(m),
		listen.WithRetry(e.cfg.Listen.RetryInitial, e.cfg.Listen.RetryMax))
	defer l.Close()

	subOpts := []listen.SubscribeOption{
		listen.WithErrorHandler(func(err error) {
			e.logger.Warn("listen error, reopening", "collection", collection, "error", err)
		}),
	}
	if opts.Subcollections || e.cfg.Listen.IncludeSubcollections {
		subOpts = append(subOpts, listen.WithSubcollections())
	}

	var delivered atomic.Int64
	reached := make(chan struct{})
	onSnapshot := func(docs []query.Document) {
		n := delivered.Add(1)
		if opts.Snapshots > 0 && n > int64(opts.Snapshots) {
			return
		}
		if err := printSnapshot(e.out, n, docs); err != nil {
			e.logger.Error("failed to print snapshot", "error", err)
		}
		if opts.Snapshots > 0 && n == int64(opts.Snapshots) {
			close(reached)
		}
	}

	sub, err := l.Subscribe(ctx, collection, spec, onSnapshot, subOpts...)
	if err != nil {
		return wrapOpError("failed to subscribe", err)
	}
	e.out.VerboseLog("subscription %s on %s", sub.ID(), sub.Collection())

	select {
	case <-ctx.Done():
	case <-reached:
	case <-sub.Done():
		if ctx.Err() == nil {
			return NewExitError(ExitFailure, "subscription ended: store closed")
		}
	}
	sub.Unsubscribe()
	<-sub.Done()
	return nil
}

// printSnapshot writes snapshot n of docs in the formatter's format.
func printSnapshot(out *OutputFormatter, n int64, docs []query.Document) error {
	flat := make([]wire.Map, len(docs))
	var b strings.Builder
	fmt.Fprintf(&b, "-- snapshot %d (%d documents)", n, len(docs))
	for i, d := range docs {
		flat[i] = d.Flatten()
		data, err := wire.Marshal(flat[i])
		if err != nil {
			return err
		}
		b.WriteString("\n")
		b.WriteString(d.Path + " " + string(data))
	}
	return out.Success(flat, b.String())
}

// serveMetrics starts an HTTP server exposing m on /metrics.
func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
