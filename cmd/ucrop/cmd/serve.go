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

	"github.com/MeKo-Tech/ucrop/internal/config"
	"github.com/MeKo-Tech/ucrop/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the crop API",
	Long: `Start an HTTP server that crops uploaded images and hosts interactive
crop sessions.

The server provides the following endpoints:
  POST   /crop                           - Crop an uploaded image in one request
  POST   /sessions                       - Start an interactive session
  GET    /sessions/{id}                  - Inspect a session
  DELETE /sessions/{id}                  - End a session
  GET    /sessions/{id}/ws               - Drive a session over WebSocket
  GET    /sessions/{id}/results/{result} - Download a session crop
  GET    /health                         - Health check endpoint
  GET    /metrics                        - Prometheus metrics

Examples:
  ucrop serve
  ucrop serve --port 8080
  ucrop serve --host 0.0.0.0 --port 3000 --requests-per-minute 120`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
		cfg := GetConfig()
		applyServeFlags(cmd, cfg)

		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		serverConfig, err := serverConfigFrom(cfg)
		if err != nil {
			return err
		}

		cropServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = cropServer.Close() }()

		mux := http.NewServeMux()
		cropServer.SetupRoutes(mux)

		// WriteTimeout stays unset so websocket sessions are not cut off.
		host, port := cfg.Server.Host, cfg.Server.Port
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go cropServer.Run(ctx)

		go func() {
			slog.Info("Starting crop server", "host", host, "port", port, "work_dir", cropServer.WorkDir())
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

		shutdownTimeout := cfg.Server.ShutdownTimeout
		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		// Close sessions first so websocket loops return and Shutdown can finish.
		slog.Info("Cleaning up server resources")
		if err := cropServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "crop timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("work-dir", "", "directory for session crops (default a temporary directory)")
	serveCmd.Flags().Int("session-ttl", 600, "idle session lifetime in seconds")
	serveCmd.Flags().Int("requests-per-minute", 0, "maximum crop and session requests per minute per client (0 = unlimited)")
}

// applyServeFlags overrides the server section with explicitly set flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("work-dir") {
		cfg.Server.WorkDir, _ = flags.GetString("work-dir")
	}
	if flags.Changed("session-ttl") {
		cfg.Server.SessionTTLSec, _ = flags.GetInt("session-ttl")
	}
	if flags.Changed("requests-per-minute") {
		cfg.Server.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
}

func serverConfigFrom(cfg *config.Config) (server.Config, error) {
	engineCfg, err := cfg.ToEngineConfig()
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		CORSOrigin:        cfg.Server.CORSOrigin,
		MaxUploadMB:       int64(cfg.Server.MaxUploadMB),
		TimeoutSec:        cfg.Server.TimeoutSec,
		WorkDir:           cfg.Server.WorkDir,
		SessionTTL:        time.Duration(cfg.Server.SessionTTLSec) * time.Second,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		Engine:            engineCfg,
		Budget:            cfg.ToBudget(),
		Crop: server.CropDefaults{
			Format:    cfg.Crop.Format,
			Quality:   cfg.Crop.Quality,
			MaxWidth:  cfg.Crop.MaxResultWidth,
			MaxHeight: cfg.Crop.MaxResultHeight,
		},
		Logger: slog.Default(),
	}, nil
}
