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

	"marketpulse/internal/config"
	"marketpulse/internal/httpx"
	ikafka "marketpulse/internal/kafka"
	"marketpulse/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New("ingest-api", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.LoadAdapters(); err != nil {
		log.Fatal("load adapters", zap.Error(err))
	}
	adapters := cfg.Credentials()

	log.Info("starting ingest API", zap.String("addr", cfg.IngestAddr), zap.Int("adapters", len(adapters)))
	writer := ikafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicRaw)
	defer writer.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.NewRequestMetrics(prometheus.DefaultRegisterer, "ingest_api").Handler())
	router.Use(httpx.CORS(cfg.CORSAllowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	httpx.NewIngest(adapters, ikafka.NewPublisher(writer, 5*time.Second), log).Register(router)

	server := &http.Server{
		Addr:    cfg.IngestAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ingest server failed", zap.Error(err))
		}
	}()

	graceful(server, log)
}

func graceful(server *http.Server, log *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down ingest API")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
