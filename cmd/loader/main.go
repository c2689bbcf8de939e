package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketpulse/internal/ch"
	"marketpulse/internal/config"
	ikafka "marketpulse/internal/kafka"
	"marketpulse/internal/logging"
	"marketpulse/internal/model"
	"marketpulse/pkg/batcher"
)

var (
	batchSizeHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loader_batch_size",
		Help:    "Histogram of ClickHouse batch sizes",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
	})
	insertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loader_insert_duration_seconds",
		Help:    "Duration of ClickHouse insert operations",
		Buckets: prometheus.DefBuckets,
	})
	insertErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loader_insert_errors_total",
		Help: "Total ClickHouse insert failures",
	})
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New("loader", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ch.New(ctx, cfg.ClickHouseDSN)
	if err != nil {
		log.Fatal("clickhouse", zap.Error(err))
	}
	defer client.Close()
	if err := client.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	reader := ikafka.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicCanonical, ikafka.GroupLoader)
	defer reader.Close()

	flusher := func(ctx context.Context, envs []model.CanonicalEnvelope) error {
		err := insertWithRetry(ctx, client, envs)
		if err != nil {
			log.Error("insert batch failed", zap.Int("size", len(envs)), zap.Error(err))
		}
		return err
	}
	b := batcher.New[model.CanonicalEnvelope](context.Background(), cfg.BatchSize, cfg.BatchInterval, flusher)
	defer b.Close()

	go serveMetrics(cfg.LoaderMetricsAddr, log)
	go handleSignals(cancel)

	log.Info("loader started", zap.String("topic", cfg.KafkaTopicCanonical), zap.Int("batch_size", cfg.BatchSize))
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("read canonical message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var env model.CanonicalEnvelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			log.Warn("decode canonical envelope", zap.Error(err))
			continue
		}
		if err := b.Add(env); err != nil {
			log.Warn("batch add failed", zap.Error(err))
		}
	}
	log.Info("loader shutdown complete")
}

func insertWithRetry(ctx context.Context, client *ch.Client, envs []model.CanonicalEnvelope) error {
	const maxAttempts = 5
	backoff := 200 * time.Millisecond
	start := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		insertCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := client.InsertBatch(insertCtx, envs)
		cancel()
		if err == nil {
			insertDuration.Observe(time.Since(start).Seconds())
			batchSizeHistogram.Observe(float64(len(envs)))
			return nil
		}
		insertErrors.Inc()
		if attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
	}
	return nil
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("loader metrics server failed", zap.Error(err))
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
