package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for interactive drawing sessions",
	Long: `Start an HTTP server hosting interactive contour drawing over WebSocket.

The server provides the following endpoints:
  GET    /ws       - Drawing session (slice, pointer, cancel and settings messages)
  GET    /contours - Committed contours (json, csv or text)
  DELETE /contours - Remove the contour of a time step
  GET    /health   - Health check endpoint
  GET    /metrics  - Prometheus metrics

Examples:
  lumentrace serve
  lumentrace serve --port 8080
  lumentrace serve --host 0.0.0.0 --port 3000 --sessions-per-minute 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
		cfg := GetConfig()
		if err := applyOverrides(cmd, cfg); err != nil {
			return err
		}

		// Extract server configuration with CLI flag overrides
		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxSliceSize := cfg.Server.MaxSliceMB
		if cmd.Flags().Changed("max-slice-size") {
			maxSliceSize, _ = cmd.Flags().GetInt("max-slice-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		sessionsPerMinute := cfg.Server.SessionsPerMinute
		if cmd.Flags().Changed("sessions-per-minute") {
			sessionsPerMinute, _ = cmd.Flags().GetInt("sessions-per-minute")
		}

		sessionsPerHour := cfg.Server.SessionsPerHour
		if cmd.Flags().Changed("sessions-per-hour") {
			sessionsPerHour, _ = cmd.Flags().GetInt("sessions-per-hour")
		}

		maxSlicesPerDay := cfg.Server.MaxSlicesPerDay
		if cmd.Flags().Changed("max-slices-per-day") {
			maxSlicesPerDay, _ = cmd.Flags().GetInt("max-slices-per-day")
		}

		maxSliceMBPerDay := cfg.Server.MaxSliceMBPerDay
		if cmd.Flags().Changed("max-slice-mb-per-day") {
			maxSliceMBPerDay, _ = cmd.Flags().GetInt("max-slice-mb-per-day")
		}

		// Validate port number
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		group := contour.NewGroup()
		group.OnSet(func(timeStep int, c *contour.Contour) {
			if c == nil {
				slog.Info("Contour removed", "time_step", timeStep)
				return
			}
			slog.Info("Contour stored", "time_step", timeStep, "points", c.Len(), "area", c.Area())
		})

		serverConfig := server.Config{
			Host:              host,
			Port:              port,
			CORSOrigin:        corsOrigin,
			MaxSliceMB:        int64(maxSliceSize),
			TimeoutSec:        timeout,
			Engine:            cfg.ToEngineConfig(),
			Sampler:           cfg.ToSamplerOptions(),
			PathPoint:         cfg.ToPathPoint(),
			Group:             group,
			SessionsPerMinute: sessionsPerMinute,
			SessionsPerHour:   sessionsPerHour,
			MaxSlicesPerDay:   maxSlicesPerDay,
			MaxSliceMBPerDay:  int64(maxSliceMBPerDay),
		}

		// Initialize server
		drawServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		mux := http.NewServeMux()
		drawServer.SetupRoutes(mux)

		// No write timeout: drawing sessions are long-lived websocket connections
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			slog.Info("Starting drawing server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		// Drawing sessions are hijacked connections, Shutdown does not wait for them
		slog.Info("Closing drawing sessions", "active", drawServer.ActiveSessions())
		if err := drawServer.Close(); err != nil {
			slog.Error("Session cleanup error", "error", err)
		}

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed", "contours", group.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-slice-size", 16, "maximum slice image size in MB")
	serveCmd.Flags().Int("timeout", 30, "idle session timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags, zero disables
	serveCmd.Flags().Int("sessions-per-minute", 0, "maximum drawing sessions opened per minute per client")
	serveCmd.Flags().Int("sessions-per-hour", 0, "maximum drawing sessions opened per hour per client")
	serveCmd.Flags().Int("max-slices-per-day", 0, "maximum slices uploaded per day per client")
	serveCmd.Flags().Int("max-slice-mb-per-day", 0, "maximum slice data uploaded per day per client (MB)")
	addEngineFlags(serveCmd)
}
