package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketpulse/internal/bootstrap"
	"marketpulse/internal/config"
	"marketpulse/internal/httpx"
	"marketpulse/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New("metrics-api", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.LoadAdapters(); err != nil {
		log.Fatal("load adapters", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("build engine", zap.Error(err))
	}
	defer rt.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.NewRequestMetrics(prometheus.DefaultRegisterer, "metrics_api").Handler())
	router.Use(httpx.CORS(cfg.CORSAllowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api := httpx.NewAPI(rt.Engine, 15*time.Second)
	api.Register(router)
	api.RegisterPush(router, httpx.RequireAdapter(cfg.Credentials()))

	server := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: router,
	}

	go func() {
		log.Info("starting metrics API", zap.String("addr", cfg.APIAddr), zap.String("provider", cfg.DataProvider))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics api failed", zap.Error(err))
		}
	}()

	waitForSignal()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
