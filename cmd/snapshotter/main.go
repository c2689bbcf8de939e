package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marketpulse/internal/apperr"
	"marketpulse/internal/bootstrap"
	"marketpulse/internal/config"
	"marketpulse/internal/engine"
	"marketpulse/internal/logging"
	"marketpulse/internal/snapshot"
)

var (
	snapshotsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshotter_recorded_total",
		Help: "Snapshots written",
	})
	snapshotsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshotter_duplicates_total",
		Help: "Snapshots skipped because the period was already recorded",
	})
	snapshotFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshotter_failures_total",
		Help: "Campaigns whose snapshot could not be recorded",
	}, []string{"reason"})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshotter_run_duration_seconds",
		Help:    "Duration of one snapshot run across all active campaigns",
		Buckets: prometheus.DefBuckets,
	})
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New("snapshotter", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("build engine", zap.Error(err))
	}
	defer rt.Close()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SnapshotSchedule, func() { run(ctx, rt.Engine, log) }); err != nil {
		log.Fatal("invalid snapshot schedule", zap.String("schedule", cfg.SnapshotSchedule), zap.Error(err))
	}
	scheduler.Start()
	log.Info("snapshotter started", zap.String("schedule", cfg.SnapshotSchedule), zap.Duration("bucket", cfg.SnapshotBucket))

	go serveMetrics(cfg.SnapshotMetricsAddr, log)

	waitForSignal()
	cancel()
	<-scheduler.Stop().Done()
	log.Info("snapshotter shutdown complete")
}

func run(ctx context.Context, svc *engine.Service, log *zap.Logger) {
	start := time.Now()
	defer func() { runDuration.Observe(time.Since(start).Seconds()) }()

	campaigns, err := svc.ActiveCampaigns(ctx)
	if err != nil {
		log.Error("list active campaigns", zap.Error(err))
		return
	}
	for _, c := range campaigns {
		if ctx.Err() != nil {
			return
		}
		snapCtx, cancel := context.WithTimeout(ctx, time.Minute)
		snap, err := svc.RecordSnapshot(snapCtx, c.ID)
		cancel()
		switch {
		case errors.Is(err, snapshot.ErrDuplicateSnapshot):
			snapshotsSkipped.Inc()
			log.Debug("snapshot already recorded", zap.String("campaign_id", c.ID))
		case apperr.IsKind(err, apperr.KindSource):
			snapshotFailures.WithLabelValues("source").Inc()
			log.Warn("source unavailable, snapshot skipped", zap.String("campaign_id", c.ID), zap.Error(err))
		case err != nil:
			snapshotFailures.WithLabelValues("internal").Inc()
			log.Error("record snapshot", zap.String("campaign_id", c.ID), zap.Error(err))
		default:
			snapshotsRecorded.Inc()
			log.Info("snapshot recorded", zap.String("campaign_id", c.ID), zap.String("snapshot_id", snap.ID))
		}
	}
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
		log.Fatal("snapshotter metrics server failed", zap.Error(err))
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
