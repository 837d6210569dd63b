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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"licensetable/internal/logger"
	"licensetable/internal/pipeline"
	"licensetable/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction pipeline over HTTP",
	Long: `Load the models once and serve extractions over HTTP.

Endpoints:
  GET  /healthz           liveness check
  POST /v1/extract        multipart upload, field "file"
  GET  /v1/extractions    recent results (only when DATABASE_URL is set)`,
	Example: `  licensetable serve --addr :9000`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr / HTTP_ADDR)")
	serveCmd.Flags().Int("shutdown-timeout", 15, "Seconds to wait for in-flight requests on shutdown")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	shutdownSecs, _ := cmd.Flags().GetInt("shutdown-timeout")
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.Load(ctx, cfg)
	if err != nil {
		return handleExtractError(err, log)
	}
	defer p.Close()

	opts := server.Options{MaxUploadBytes: cfg.HTTP.MaxUploadMB << 20}
	if st, ok := p.Store(); ok {
		opts.History = st
	}

	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.New(p, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.HTTP.Addr).
			Bool("history", opts.History != nil).
			Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
