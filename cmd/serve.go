package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/sitewarden/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan ingestion and report API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		authToken, _ := cmd.Flags().GetString("auth-token")
		collectorName, _ := cmd.Flags().GetString("collector")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")

		svcs, err := buildServices(cmd.Context(), collectorName)
		if err != nil {
			return err
		}
		defer svcs.close()

		server := api.NewServer(api.Config{
			Aggregator:  svcs.aggregator,
			Scanner:     svcs.scanner,
			AuthToken:   authToken,
			Ready:       svcs.ready,
			Logger:      logger,
			CORSOrigins: corsOrigins,
			RateLimit:   rateLimit,
			RateBurst:   rateBurst,
		})

		httpServer := &http.Server{
			Addr:         addr,
			Handler:      server,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("%s API server listening on %s (data dir: %s)\n", colorInfo("→"), addr, dataDir)
			fmt.Printf("%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Printf("\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Printf("%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Address for the API server")
	serveCmd.Flags().String("auth-token", "", "Shared secret for operator API requests")
	serveCmd.Flags().String("collector", "probe", "Active scan collector: probe or browser")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origins", nil, "Allowed CORS origins for operator routes (empty = allow all)")
	serveCmd.Flags().Int("rate-limit", 0, "Requests per second per IP (0 = disabled)")
	serveCmd.Flags().Int("rate-burst", 10, "Burst size for the rate limiter")
}
