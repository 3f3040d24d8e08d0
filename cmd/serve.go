package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"curator/internal/apihandlers"
)

var (
	serveAddr string
	servePort int
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run Curator as an HTTP API server",
	Long: `Starts an HTTP server exposing classification, strategy switching and the
moderator review queue via a RESTful API, plus /metrics and /health.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config

		if !log.IsLevelEnabled(log.DebugLevel) {
			gin.SetMode(gin.ReleaseMode)
		}
		router := apihandlers.NewRouter(apihandlers.NewAPIHandler(appInstance))

		addr := cfg.Server.Address
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		srv := &http.Server{
			Addr:              addr + ":" + strconv.Itoa(port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", srv.Addr).Info("starting Curator API server")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to run API server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutdown signal received, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		log.Info("Curator API server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost", "Address to listen on (e.g., '0.0.0.0' for all interfaces); overrides server.address")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on; overrides server.port")
}
