package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/hybridindex/internal/httpapi"
	"github.com/dshills/hybridindex/internal/mcp"
	"github.com/dshills/hybridindex/internal/watcher"
	"github.com/dshills/hybridindex/pkg/types"
)

const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve command
func newServeCmd(a *app) *cobra.Command {
	var httpAddr string
	var watch, noInitial bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server over stdin/stdout for the workspace named by --root.

The workspace is indexed in the background on startup and kept current by a
file watcher. With --http an HTTP JSON API is served alongside.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("watch") {
				watch = a.cfg.Watch.Enabled
			}
			return a.serve(cmd, serveOptions{httpAddr: httpAddr, watch: watch, initialBuild: !noInitial})
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "Also serve the HTTP API on this address (e.g. 127.0.0.1:7420)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Watch the workspace for changes (default from config)")
	cmd.Flags().BoolVar(&noInitial, "no-initial-index", false, "Skip the background index on startup")
	return cmd
}

type serveOptions struct {
	httpAddr     string
	watch        bool
	initialBuild bool
}

func (a *app) serve(cmd *cobra.Command, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := a.workspace()
	if err != nil {
		return fmt.Errorf("failed to open workspace %s: %w", a.root, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.initialBuild {
		g.Go(func() error {
			if _, err := rt.BuildFullIndex(ctx); err != nil && !types.IsCancellation(err) {
				a.logger.Warn("initial index failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if opts.watch {
		w, err := watcher.New(a.root, rt, watcher.Options{
			Debounce: a.cfg.Watch.Debounce,
			Exclude:  a.cfg.Indexing.Exclude,
			Logger:   a.logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := w.Run(ctx); err != nil {
				a.logger.Warn("file watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if opts.httpAddr != "" {
		ln, err := net.Listen("tcp", opts.httpAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", opts.httpAddr, err)
		}
		srv := &http.Server{
			Handler:           httpapi.NewRouter(&httpapi.Deps{Service: rt, Logger: a.logger}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("HTTP API listening", slog.String("addr", ln.Addr().String()))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The MCP session owns the process lifetime: when the client goes away
	// everything else is stopped.
	g.Go(func() error {
		defer cancel()
		server := mcp.NewServer(a.workspaces(), a.root, a.logger)
		if err := server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
