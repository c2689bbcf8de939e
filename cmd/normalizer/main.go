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

	"marketpulse/internal/apperr"
	"marketpulse/internal/config"
	ikafka "marketpulse/internal/kafka"
	"marketpulse/internal/logging"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
	"marketpulse/internal/pipeline"
)

var (
	msgsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normalizer_msgs_consumed_total",
		Help: "Total messages consumed from the raw topic",
	})
	msgsProduced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normalizer_msgs_produced_total",
		Help: "Total messages produced to the canonical topic",
	})
	rejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "normalizer_rejected_total",
		Help: "Envelopes dropped because they could not be canonicalized",
	}, []string{"code"})
	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "normalizer_errors_total",
		Help: "Number of read, decode and produce failures",
	})
	consumerLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "normalizer_consumer_lag",
		Help: "Current consumer lag reported by kafka-go",
	})
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New("normalizer", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	reg := normalize.NewRegistry()
	if err := cfg.LoadSources(reg); err != nil {
		log.Fatal("load sources", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := ikafka.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicRaw, ikafka.GroupNormalizer)
	writer := ikafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicCanonical)
	defer reader.Close()
	defer writer.Close()
	pub := ikafka.NewPublisher(writer, 10*time.Second)

	go serveMetrics(cfg.NormalizerMetricsAddr, log)
	go handleSignals(cancel)

	log.Info("normalizer started", zap.String("topic", cfg.KafkaTopicRaw), zap.Strings("sources", reg.Sources()))
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			errorsTotal.Inc()
			log.Warn("read kafka", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		msgsConsumed.Inc()
		consumerLag.Set(float64(reader.Stats().Lag))

		var env model.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			errorsTotal.Inc()
			log.Warn("decode envelope", zap.Error(err))
			continue
		}
		canonical, err := pipeline.Canonicalize(env, reg, time.Now())
		if err != nil {
			code := "unknown"
			if e, ok := apperr.As(err); ok {
				code = e.Code
			}
			rejected.WithLabelValues(code).Inc()
			log.Warn("envelope rejected",
				zap.String("envelope_id", env.ID),
				zap.String("source_id", env.SourceID),
				zap.String("campaign_id", env.CampaignID),
				zap.Error(err))
			continue
		}
		if err := pub.Publish(ctx, string(m.Key), canonical); err != nil {
			errorsTotal.Inc()
			log.Error("produce canonical envelope", zap.String("envelope_id", env.ID), zap.Error(err))
			continue
		}
		msgsProduced.Inc()
	}
	log.Info("normalizer shutdown complete")
}

func handleSignals(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("metrics server failed", zap.Error(err))
	}
}
