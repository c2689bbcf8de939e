// Package engine exposes the campaign operations served to reporting clients: aggregated
// totals, revenue crosswalk preview and save, health score, comparisons, trend series and
// snapshot recording.
package engine

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"marketpulse/internal/apperr"
	"marketpulse/internal/crosswalk"
	"marketpulse/internal/model"
	"marketpulse/internal/normalize"
	"marketpulse/internal/provider"
	"marketpulse/internal/snapshot"
	"marketpulse/internal/store"
)

var sourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "engine_source_failures_total",
	Help: "External source failures surfaced to callers",
}, []string{"source", "code"})

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	MaxLookbackDays int
	Now             func() time.Time
	Logger          *zap.Logger
}

// Service is safe for concurrent use; every call recomputes from its collaborators.
type Service struct {
	provider  provider.DataProvider
	config    store.ConfigStore
	snapshots snapshot.Store
	registry  *normalize.Registry

	maxLookbackDays int
	now             func() time.Time
	log             *zap.Logger
}

// New wires a Service.
func New(p provider.DataProvider, cfg store.ConfigStore, snaps snapshot.Store, reg *normalize.Registry, opts Options) *Service {
	if opts.MaxLookbackDays <= 0 {
		opts.MaxLookbackDays = crosswalk.DefaultMaxLookbackDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		provider:        p,
		config:          cfg,
		snapshots:       snaps,
		registry:        reg,
		maxLookbackDays: opts.MaxLookbackDays,
		now:             opts.Now,
		log:             opts.Logger,
	}
}

// MaxLookbackDays is the longest revenue window the service will scan.
func (s *Service) MaxLookbackDays() int { return s.maxLookbackDays }

func (s *Service) campaign(ctx context.Context, campaignID string) (model.Campaign, error) {
	return s.config.Campaign(ctx, campaignID)
}

// observe counts and logs source failures; err is returned unchanged.
func (s *Service) observe(err error, fields ...zap.Field) error {
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindSource {
		sourceFailures.WithLabelValues(e.Source, e.Code).Inc()
		s.log.Warn("source failure", append(fields, zap.String("source", e.Source), zap.String("code", e.Code))...)
	}
	return err
}
