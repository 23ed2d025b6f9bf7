package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahi1722/ticketflow/internal/cli"
	"github.com/mahi1722/ticketflow/internal/presentation/tui"
	httpAdapter "github.com/mahi1722/ticketflow/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts ticketflow in server mode, accepting tickets on POST /api/task.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd)
		if err != nil {
			return err
		}
		rt, err := cli.Build(cmd.Context(), cfg, opts)
		if err != nil {
			return err
		}
		defer rt.Close()

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(rt.Logger),
			httpAdapter.WithMetrics(rt.Metrics),
			httpAdapter.WithRequestTimeout(cfg.App.RequestTimeout()),
		}
		if cfg.Auth.JWTSecret != "" {
			handlerOpts = append(handlerOpts, httpAdapter.WithAuth([]byte(cfg.Auth.JWTSecret)))
		}

		srv := &http.Server{
			Addr:              cfg.App.Addr(),
			Handler:           httpAdapter.NewHandler(rt.Service, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		tui.PrintBanner(cmd.ErrOrStderr())

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			rt.Logger.Info("starting ticketflow server", "addr", srv.Addr, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			rt.Logger.Info("shutting down", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			timeout := cfg.App.ShutdownTimeout()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				rt.Logger.Warn("graceful shutdown did not complete", "timeout", timeout, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			rt.Logger.Info("ticketflow server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addBuildFlags(serveCmd)
}

// addBuildFlags registers the collaborator switches shared by serve and run.
func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "Run actions and ticket updates in memory only")
	cmd.Flags().String("decisions", "", "Replay decisions from a YAML script instead of calling the model")
}

func buildOptions(cmd *cobra.Command) (cli.BuildOptions, error) {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return cli.BuildOptions{}, err
	}
	script, err := cmd.Flags().GetString("decisions")
	if err != nil {
		return cli.BuildOptions{}, err
	}
	return cli.BuildOptions{DryRun: dryRun, DecisionScript: script}, nil
}
