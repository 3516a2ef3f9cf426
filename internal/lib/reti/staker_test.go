package reti

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolRecord(validatorID, poolID, balance, rewarded, tokenBal, entryTime uint64) StakerPoolData {
	return StakerPoolData{
		StakedInfo: StakedInfo{
			Account:            DummyAlgoSender,
			Balance:            balance,
			TotalRewarded:      rewarded,
			RewardTokenBalance: tokenBal,
			EntryTime:          entryTime,
		},
		PoolKey: ValidatorPoolKey{ID: validatorID, PoolID: poolID, PoolAppID: validatorID*1000 + poolID},
	}
}

func TestMergeStakerPoolDataSums(t *testing.T) {
	merged := MergeStakerPoolData([]StakerPoolData{
		poolRecord(1, 1, 10, 3, 7, 100),
		poolRecord(1, 2, 20, 4, 1, 50),
	})
	require.Len(t, merged, 1)

	agg := merged[0]
	assert.EqualValues(t, 1, agg.ValidatorID)
	assert.EqualValues(t, 30, agg.Balance)
	assert.EqualValues(t, 7, agg.TotalRewarded)
	assert.EqualValues(t, 8, agg.RewardTokenBalance)
	// entry time is the earliest join across the validator's pools
	assert.EqualValues(t, 50, agg.EntryTime)
	assert.Len(t, agg.Pools, 2)
}

func TestMergeStakerPoolDataOrder(t *testing.T) {
	merged := MergeStakerPoolData([]StakerPoolData{
		poolRecord(7, 1, 1, 0, 0, 10),
		poolRecord(3, 1, 1, 0, 0, 20),
		poolRecord(7, 2, 1, 0, 0, 30),
		poolRecord(9, 1, 1, 0, 0, 40),
	})
	require.Len(t, merged, 3)
	// validators come back in first-appearance order, not sorted
	assert.EqualValues(t, 7, merged[0].ValidatorID)
	assert.EqualValues(t, 3, merged[1].ValidatorID)
	assert.EqualValues(t, 9, merged[2].ValidatorID)
	assert.EqualValues(t, 2, merged[0].Balance)
	assert.Len(t, merged[0].Pools, 2)
}

func TestMergeStakerPoolDataEmpty(t *testing.T) {
	assert.Empty(t, MergeStakerPoolData(nil))
}

func TestPoolAvailableRewardsNeverUnderflows(t *testing.T) {
	poolBalance := uint64(1_000_000)
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/accounts/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"amount":%d,"min-balance":300000}`, poolBalance)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	algoClient, err := algod.MakeClient(srv.URL, "")
	require.NoError(t, err)
	r, err := New(Config{RetiAppID: 1234}, slog.Default(), algoClient, testSigner{})
	require.NoError(t, err)

	// stake + MBR exceed the account balance - reads as zero, not a wrapped uint64
	rewards, err := r.PoolAvailableRewards(context.Background(), 1001, 900_000)
	require.NoError(t, err)
	assert.Zero(t, rewards)

	poolBalance = 2_000_000
	rewards, err = r.PoolAvailableRewards(context.Background(), 1001, 900_000)
	require.NoError(t, err)
	assert.EqualValues(t, 800_000, rewards)
}

func TestStakedInfoFromABIReturn(t *testing.T) {
	info, err := StakedInfoFromABIReturn([]any{
		DummyAlgoSender[:],
		uint64(5_000_000),
		uint64(120),
		uint64(9),
		uint64(1_700_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, DummyAlgoSender, info.Account)
	assert.EqualValues(t, 5_000_000, info.Balance)
	assert.EqualValues(t, 120, info.TotalRewarded)
	assert.EqualValues(t, 9, info.RewardTokenBalance)
	assert.EqualValues(t, 1_700_000_000, info.EntryTime)
}

func TestStakedInfoFromABIReturnRejectsBadShape(t *testing.T) {
	_, err := StakedInfoFromABIReturn([]any{DummyAlgoSender[:], uint64(1)})
	require.Error(t, err)

	_, err = StakedInfoFromABIReturn("not a tuple")
	require.Error(t, err)

	// right arity, wrong element type
	_, err = StakedInfoFromABIReturn([]any{DummyAlgoSender[:], "ten", uint64(0), uint64(0), uint64(0)})
	require.Error(t, err)
}
