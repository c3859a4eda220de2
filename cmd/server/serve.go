package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"organograma/internal/platform/httpserver"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log, prometheus.DefaultRegisterer, migrate)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error("failed to release resources", "error", err)
				}
			}()

			srv := httpserver.New(cfg.Server, a.router)
			g, gctx := errgroup.WithContext(ctx)

			for _, r := range a.runners {
				g.Go(func() error {
					err := r.run(gctx)
					if err != nil && !errors.Is(err, context.Canceled) {
						log.ErrorContext(gctx, "background task stopped", "task", r.name, "error", err)
						return err
					}
					return nil
				})
			}

			g.Go(func() error {
				log.Info("starting organograma", "addr", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply database migrations on startup")
	return cmd
}
