package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/armchr/junitmig/internal/controller"
	"github.com/armchr/junitmig/internal/handler"
	"github.com/armchr/junitmig/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the migration API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if port != 0 {
				cfg.App.Port = port
			}

			metrics := service.NewMetrics()
			svc, err := newService(cfg, metrics, logger)
			if err != nil {
				return err
			}
			migrationController := controller.NewMigrationController(svc, logger)
			router := handler.SetupRouter(migrationController, metrics, cfg, logger)

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.App.Port),
				Handler: router,
			}

			ctx, stop := signal.NotifyContext(cobraCmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("Failed to shut down server", zap.Error(err))
				}
			}()

			logger.Info("Starting server", zap.Int("port", cfg.App.Port))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start server: %w", err)
			}
			logger.Info("Server stopped")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides the config)")
	return cmd
}
