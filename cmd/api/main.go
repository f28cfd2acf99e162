// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/sumqueue/internal/config"
	"github.com/yourusername/sumqueue/internal/jobs"
	"github.com/yourusername/sumqueue/internal/logging"
	"github.com/yourusername/sumqueue/internal/metrics"
	"github.com/yourusername/sumqueue/internal/middleware"
	"github.com/yourusername/sumqueue/internal/sum"
)

const (
	serviceName = "sumqueue-api"
	version     = "0.1.0"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var port string

	runServe := func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context(), port)
	}

	root := &cobra.Command{
		Use:           "sumqueue",
		Short:         "Asynchronous sum job API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the job worker",
		RunE:  runServe,
	})
	root.AddCommand(newComputeCommand())
	return root
}

func serve(ctx context.Context, port string) error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	logger, cleanup, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	log := logging.Named(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(log.Infof)); err != nil {
		log.WithError(err).Warn("failed to set GOMAXPROCS")
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	jobMetrics := metrics.New()
	manager, err := setupJobs(cfg, log, jobMetrics)
	if err != nil {
		log.WithError(err).Error("failed to set up jobs")
		return err
	}

	router := gin.New()
	setupRoutes(router, cfg, log, manager, jobMetrics)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		log.Infof("Starting API server on %s (mode: %s)", srv.Addr, cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		return err
	}
	log.Info("server stopped")
	return nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := manager.Status()
		status := http.StatusOK
		state := "ok"
		if !st.WorkerAlive {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":  state,
			"service": serviceName,
			"version": version,
			"worker": gin.H{
				"alive":    st.WorkerAlive,
				"restarts": st.Restarts,
			},
			"queue": gin.H{
				"length":   st.QueueLength,
				"capacity": st.QueueCapacity,
			},
			"progress": gin.H{
				"tracked": st.Tracked,
			},
		})
	}
}

// setupRoutes はミドルウェアとルーティングの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, log logrus.FieldLogger, manager *jobs.Manager, jobMetrics *metrics.Jobs) {
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(log),
		middleware.Recovery(log),
	)

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	origins := cfg.AllowedOrigins()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		middleware.RequestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handleHealth(manager))
	if cfg.MetricsEnabled && jobMetrics != nil {
		router.GET("/metrics", gin.WrapH(jobMetrics.Handler()))
	}

	var limiter *middleware.RateLimiter
	if cfg.SubmitRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.SubmitRateLimit, cfg.SubmitRateBurst)
	}

	router.POST("/sum", middleware.Limit(limiter), sum.SubmitHandler(manager, log.WithField("component", "api")))
	router.GET("/request_progress", sum.ProgressHandler(manager))
	router.GET("/queue_data", sum.QueueDataHandler(manager))
}
