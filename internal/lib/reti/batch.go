package reti

import (
	"context"

	"github.com/mailgun/holster/v4/syncutil"
)

// DefaultBatchSize is the fan-out width used when the config doesn't set one -
// wide enough to hide round-trip latency, narrow enough to not hammer the node.
const DefaultBatchSize = 10

// fetchInBatches runs fetch over keys in successive batches of at most
// batchSize.  Within a batch everything runs concurrently; batches themselves
// run one after another.  Results land at the index of their key, so output
// order always equals input order no matter which fetch finishes first.  The
// first error inside a batch aborts the whole operation (work from earlier
// batches needs no undo - these are reads).
func fetchInBatches[K, T any](ctx context.Context, keys []K, batchSize int, fetch func(ctx context.Context, key K) (T, error)) ([]T, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	results := make([]T, len(keys))
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))

		var wg syncutil.WaitGroup
		for i := start; i < end; i++ {
			wg.Run(func(val any) error {
				idx := val.(int)
				fetched, err := fetch(ctx, keys[idx])
				if err != nil {
					return err
				}
				results[idx] = fetched
				return nil
			}, i)
		}
		if errs := wg.Wait(); errs != nil {
			return nil, errs[0]
		}
	}
	return results, nil
}
