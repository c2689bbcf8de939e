// Package bootstrap assembles the engine and its collaborators for the API and
// snapshotter binaries.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketpulse/internal/ch"
	"marketpulse/internal/config"
	"marketpulse/internal/engine"
	"marketpulse/internal/normalize"
	"marketpulse/internal/provider"
	"marketpulse/internal/snapshot"
	"marketpulse/internal/store"
)

// Runtime is a wired engine plus the resources to release on shutdown.
type Runtime struct {
	Engine  *engine.Service
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires the engine. The live provider reads ClickHouse and keeps snapshots there;
// the fixture provider serves a YAML file, seeds its campaigns into the config store and
// keeps snapshots in memory.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*Runtime, error) {
	rt := &Runtime{}
	reg := normalize.NewRegistry()
	if err := cfg.LoadSources(reg); err != nil {
		return nil, err
	}

	configStore, err := store.OpenSQL(ctx, cfg.ConfigDBDriver, cfg.ConfigDBDSN)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	rt.closers = append(rt.closers, configStore.Close)

	var (
		p     provider.DataProvider
		snaps snapshot.Store
	)
	switch cfg.DataProvider {
	case config.ProviderFixture:
		file, err := provider.LoadFixture(cfg.FixturesPath)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		fx := provider.NewFixture(file, reg, nil)
		for _, c := range fx.Campaigns() {
			if err := configStore.PutCampaign(ctx, c); err != nil {
				_ = rt.Close()
				return nil, fmt.Errorf("seed campaign %s: %w", c.ID, err)
			}
		}
		p = fx
		snaps = snapshot.NewMemoryStore(cfg.SnapshotBucket)
		log.Info("using fixture provider", zap.String("path", cfg.FixturesPath), zap.Int("campaigns", len(file.Campaigns)))
	default:
		client, err := ch.New(ctx, cfg.ClickHouseDSN)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		if err := client.EnsureSchema(ctx); err != nil {
			_ = rt.Close()
			return nil, err
		}
		p = ch.NewLiveProvider(client, reg)
		snaps = ch.NewSnapshotStore(client, cfg.SnapshotBucket)
		log.Info("using live provider")
	}

	rt.Engine = engine.New(p, configStore, snaps, reg, engine.Options{
		MaxLookbackDays: cfg.MaxLookbackDays,
		Logger:          log,
	})
	return rt, nil
}
