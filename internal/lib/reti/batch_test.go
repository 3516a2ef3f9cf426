package reti

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchInBatchesPreservesInputOrder(t *testing.T) {
	ids := make([]uint64, 0, 25)
	for id := uint64(1); id <= 25; id++ {
		ids = append(ids, id)
	}

	results, err := fetchInBatches(context.Background(), ids, 10, func(_ context.Context, id uint64) (uint64, error) {
		if id == 5 {
			// make an early key resolve well after later ones
			time.Sleep(30 * time.Millisecond)
		}
		return id * 2, nil
	})
	require.NoError(t, err)
	require.Len(t, results, len(ids))
	for i, id := range ids {
		assert.Equal(t, id*2, results[i])
	}
}

func TestFetchInBatchesBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64

	ids := make([]int, 35)
	for i := range ids {
		ids[i] = i
	}
	_, err := fetchInBatches(context.Background(), ids, 10, func(_ context.Context, id int) (int, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return id, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(10))
}

func TestFetchInBatchesStopsAfterFailedBatch(t *testing.T) {
	var calls atomic.Int64
	boom := errors.New("boom")

	ids := make([]int, 25)
	for i := range ids {
		ids[i] = i + 1
	}
	results, err := fetchInBatches(context.Background(), ids, 10, func(_ context.Context, id int) (int, error) {
		calls.Add(1)
		if id == 13 {
			return 0, boom
		}
		return id, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, results)
	// the batch containing the failure runs to completion, later batches never start
	assert.Equal(t, int64(20), calls.Load())
}

func TestFetchInBatchesEmptyAndDefaultWidth(t *testing.T) {
	results, err := fetchInBatches(context.Background(), nil, 0, func(_ context.Context, id int) (int, error) {
		return id, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
