package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketpulse/internal/apperr"
	"marketpulse/internal/model"
)

var t0 = time.Date(2025, 6, 30, 10, 5, 0, 0, time.UTC)

func at(d time.Duration, clicks float64) model.Snapshot {
	return model.Snapshot{
		CampaignID: "c-1",
		RecordedAt: t0.Add(d),
		Values:     model.MetricValues{model.MetricClicks: clicks},
	}
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	require.NoError(t, s.Append(ctx, at(0, 1)))
	require.NoError(t, s.Append(ctx, at(time.Hour, 2)))

	got, err := s.List(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotEmpty(t, got[0].ID)
	require.Equal(t, 2.0, got[1].Values.Get(model.MetricClicks))

	empty, err := s.List(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestAppendRejectsDuplicatesAndOutOfOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	require.NoError(t, s.Append(ctx, at(time.Hour, 1)))

	err := s.Append(ctx, at(time.Hour+30*time.Minute, 2))
	require.ErrorIs(t, err, ErrDuplicateSnapshot)

	err = s.Append(ctx, at(-2*time.Hour, 3))
	require.True(t, apperr.IsKind(err, apperr.KindValidation))

	require.Error(t, s.Append(ctx, model.Snapshot{RecordedAt: t0}))
	got, _ := s.List(ctx, "c-1")
	require.Len(t, got, 1)
}

func TestListIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	require.NoError(t, s.Append(ctx, at(0, 1)))

	got, _ := s.List(ctx, "c-1")
	got[0].CampaignID = "mutated"

	again, _ := s.List(ctx, "c-1")
	require.Equal(t, "c-1", again[0].CampaignID)
}

func TestConcurrentAppendsOnePerBucket(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, dup := 0, 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Append(ctx, at(time.Duration(i)*time.Second, float64(i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateSnapshot):
				dup++
			}
		}(i)
		// Readers run alongside writers.
		go func() { _, _ = s.List(ctx, "c-1") }()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, 31, dup)
	got, err := s.List(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestBucketOf(t *testing.T) {
	require.Equal(t, time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC), BucketOf(t0, time.Hour))
	require.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), BucketOf(t0, 24*time.Hour))
	require.Equal(t, BucketOf(t0, DefaultBucket), BucketOf(t0, 0))
}
