package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/firedesk/internal/batch"
	"github.com/roach88/firedesk/internal/config"
	"github.com/roach88/firedesk/internal/session"
	"github.com/roach88/firedesk/internal/store"
)

// env is the per-invocation state shared by commands: the logger, the
// loaded config, the selected target's store and the output formatter.
type env struct {
	cfg    *config.Config
	pool   *session.Pool
	store  store.Store
	target config.Target
	logger *slog.Logger
	out    *OutputFormatter
}

// newLogger configures slog on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// setup loads the config, applies environment overrides and opens the
// selected target.
func setup(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeConfig, Message: "failed to load config", Err: err}
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.ApplyEnv(getenv)

	target, err := cfg.Target(opts.Target)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeConfig, Message: "failed to select target", Err: err}
	}

	pool := session.NewPool(cfg, session.WithLogger(logger))
	s, err := pool.Get(commandContext(cmd), target.Name)
	if err != nil {
		_ = pool.Close()
		return nil, &ExitError{Code: ExitCommandError, ErrCode: ErrCodeConfig, Message: "failed to open target", Err: err}
	}
	out.VerboseLog("target %s (%s)", target.Name, target.Driver)

	return &env{
		cfg:    cfg,
		pool:   pool,
		store:  s,
		target: target,
		logger: logger,
		out:    out,
	}, nil
}

// Close releases the target's store.
func (e *env) Close() {
	if err := e.pool.Close(); err != nil {
		e.logger.Error("error closing target", "target", e.target.Name, "error", err)
	}
}

// batchOptions merges command flags over the config's batch settings.
func (e *env) batchOptions(limit, maxConcurrent int) batch.Options {
	o := batch.Options{
		Limit:               e.cfg.Batch.Limit,
		MaxConcurrentChunks: e.cfg.Batch.MaxConcurrentChunks,
	}
	if limit > 0 {
		o.Limit = limit
	}
	if maxConcurrent > 0 {
		o.MaxConcurrentChunks = maxConcurrent
	}
	return o
}

// writer builds a batch writer over the target's store.
func (e *env) writer(limit, maxConcurrent int) *batch.Writer {
	return batch.NewWriter(e.store,
		batch.WithLogger(e.logger),
		batch.WithOptions(e.batchOptions(limit, maxConcurrent)))
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// inputError reports an unreadable or malformed input file.
func inputError(message string, err error) error {
	code, _, _ := Classify(err)
	if code == ErrCodeSchemaViolation {
		return WrapExitError(ExitCommandError, message, err)
	}
	return &ExitError{Code: ExitCommandError, ErrCode: ErrCodeInput, Message: message, Err: err}
}
