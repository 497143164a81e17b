// Command icmsnap extracts the ICMS rate matrix from the configured sources
// and serves the imported rates.
//
// Usage:
//
//	icmsnap run    -config icmsnap.yaml [-out file.json] [-ingest]
//	icmsnap import -config icmsnap.yaml file.json
//	icmsnap serve  -config icmsnap.yaml [-addr :5004]
//	icmsnap mcp    -config icmsnap.yaml          # MCP tools over stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/icmsnap/config"
	"github.com/hazyhaar/icmsnap/icms"
	"github.com/hazyhaar/icmsnap/navigator"
	"github.com/hazyhaar/icmsnap/ratesapi"
	"github.com/hazyhaar/icmsnap/runner"
	"github.com/hazyhaar/icmsnap/store"
)

const usage = "usage: icmsnap run|import|serve|mcp -config <file> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "icmsnap.yaml", "path to the YAML config file")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	out := fs.String("out", "", "snapshot path (run; overrides output.path)")
	ingest := fs.Bool("ingest", false, "import the snapshot into the store after writing it (run)")
	addr := fs.String("addr", "", "listen address (serve; overrides api.addr)")
	fs.Parse(args)

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Error("icmsnap: fatal", "error", err)
		os.Exit(1)
	}
	if *out != "" {
		cfg.Output.Path = *out
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}

	switch cmd {
	case "run":
		err = runExtract(ctx, logger, cfg, *ingest)
	case "import":
		err = runImport(ctx, logger, cfg, fs.Args())
	case "serve":
		err = runServe(ctx, logger, cfg)
	case "mcp":
		err = runMCP(ctx, logger, cfg)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("icmsnap: fatal", "cmd", cmd, "error", err)
		os.Exit(1)
	}
}

func newRunner(logger *slog.Logger, cfg *config.Config) *runner.Runner {
	return &runner.Runner{
		Open: func(ctx context.Context) (navigator.Session, error) {
			s, err := navigator.Open(ctx, cfg.Navigator(logger))
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Adapters: cfg.Adapters(),
		Priority: cfg.Priority,
		Output:   cfg.Output.Path,
		Logger:   logger,
	}
}

func runExtract(ctx context.Context, logger *slog.Logger, cfg *config.Config, ingest bool) error {
	r := newRunner(logger, cfg)
	if ingest {
		st, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
		if err != nil {
			return err
		}
		defer st.Close()
		r.Ingester = st
	}

	rep, err := r.Run(ctx)
	if errors.Is(err, icms.ErrNoSourceAvailable) {
		for _, run := range rep.Runs {
			logger.Error("icmsnap: source failed", "source", run.Source, "error", run.Err)
		}
	}
	if err != nil {
		return err
	}
	md := rep.Snapshot.Metadata
	logger.Info("icmsnap: done", "path", rep.Path, "used", md.Used,
		"states", md.TotalStates, "rates", md.TotalRates, "warnings", len(md.Errors))
	return nil
}

func runImport(ctx context.Context, logger *slog.Logger, cfg *config.Config, args []string) error {
	path := cfg.Output.Path
	if len(args) > 0 {
		path = args[0]
	}
	st, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := st.ImportFile(ctx, path)
	if err != nil {
		return err
	}
	logger.Info("icmsnap: imported", "path", path, "success", res.Success,
		"internas", res.TotalIntrastate, "interestaduais", res.TotalInterstate, "errors", len(res.Errors))
	if !res.Success {
		return fmt.Errorf("import %s: %d errors", path, len(res.Errors))
	}
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	update := func(ctx context.Context) (*runner.Report, error) {
		r := newRunner(logger, cfg)
		r.Ingester = st
		return r.Run(ctx)
	}
	api := ratesapi.New(st, logger, ratesapi.WithUpdater(update))

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Minute, // POST /api/admin/atualizar drives the browser
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("icmsnap: server starting", "addr", cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("icmsnap: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "icmsnap", Version: "1.0.0"}, nil)
	ratesapi.New(st, logger).RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
