package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lexanalyzer/api/handler"
	"lexanalyzer/api/router"
	"lexanalyzer/job"
	"lexanalyzer/metrics"
	"lexanalyzer/pkg/logger"
	"lexanalyzer/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewDefault()
	b, err := newBackend(ctx, cfg, m, true)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.repo != nil {
		c, err := job.StartCronJob(b.repo, cfg.History.Cron, cfg.History.Retention)
		if err != nil {
			return err
		}
		defer c.Stop()
	}

	uploader, err := service.NewUploadService(ctx)
	if err != nil {
		return err
	}
	analysisSvc := service.NewAnalysisService(b.analyzer, b.history(), m)
	h := handler.NewContractHandler(analysisSvc, b.index, uploader, b.gateway)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	router.RegisterRoutes(r, h, m, cfg.Server)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("addr", cfg.Server.Addr), zap.String("provider", string(b.gateway.Provider())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
