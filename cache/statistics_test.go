package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatisticsTrackerRatio(t *testing.T) {
	tracker := &StatisticsTracker{}
	require.Equal(t, float64(0), tracker.Ratio())

	for i := 0; i < 3; i++ {
		tracker.Hit()
	}
	tracker.Miss()

	require.InDelta(t, 0.75, tracker.Ratio(), 1e-9)

	hits, misses := tracker.Counts()
	require.Equal(t, int64(3), hits)
	require.Equal(t, int64(1), misses)
}

func TestStatisticsTrackerConcurrentIncrements(t *testing.T) {
	tracker := &StatisticsTracker{}

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				tracker.Hit()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				tracker.Miss()
			}
		}()
	}
	wg.Wait()

	hits, misses := tracker.Counts()
	require.Equal(t, int64(workers*perWorker), hits)
	require.Equal(t, int64(workers*perWorker), misses)
	require.InDelta(t, 0.5, tracker.Ratio(), 1e-9)
}
