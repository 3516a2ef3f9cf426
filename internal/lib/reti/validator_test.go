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

func testAddrBytes() []any {
	// an ABI address decodes as 32 raw bytes
	return []any{DummyAlgoSender[:]}
}

func validConfigTuple() []any {
	return []any{
		uint64(4),
		DummyAlgoSender[:],
		DummyAlgoSender[:],
		uint64(0),
		uint16(7),
		uint32(50000),
		DummyAlgoSender[:],
		uint64(1_000_000),
		uint64(200_000_000_000),
		uint8(3),
	}
}

func TestValidatorConfigFromABIReturn(t *testing.T) {
	config, err := ValidatorConfigFromABIReturn(validConfigTuple())
	require.NoError(t, err)

	assert.EqualValues(t, 4, config.ID)
	assert.Equal(t, DummyAlgoSender.String(), config.Owner)
	assert.Equal(t, DummyAlgoSender.String(), config.Manager)
	assert.Zero(t, config.NFDForInfo)
	assert.Equal(t, 7, config.PayoutEveryXDays)
	assert.Equal(t, 50000, config.PercentToValidator)
	assert.EqualValues(t, 1_000_000, config.MinEntryStake)
	assert.EqualValues(t, 200_000_000_000, config.MaxAlgoPerPool)
	assert.Equal(t, 3, config.PoolsPerNode)
}

func TestValidatorConfigFromABIReturnRejectsBadShape(t *testing.T) {
	_, err := ValidatorConfigFromABIReturn(uint64(42))
	require.Error(t, err)

	short := validConfigTuple()[:9]
	_, err = ValidatorConfigFromABIReturn(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10 elements")

	// owner isn't 32 address bytes
	bad := validConfigTuple()
	bad[1] = []byte{0x01, 0x02}
	_, err = ValidatorConfigFromABIReturn(bad)
	require.Error(t, err)

	// width mismatch on the payout field
	bad = validConfigTuple()
	bad[4] = uint64(7)
	_, err = ValidatorConfigFromABIReturn(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 4")
}

func TestValidatorCurStateFromABIReturn(t *testing.T) {
	state, err := ValidatorCurStateFromABIReturn([]any{uint16(2), uint64(15), uint64(900_000_000)})
	require.NoError(t, err)
	assert.Equal(t, 2, state.NumPools)
	assert.EqualValues(t, 15, state.TotalStakers)
	assert.EqualValues(t, 900_000_000, state.TotalAlgoStaked)

	_, err = ValidatorCurStateFromABIReturn([]any{uint16(2)})
	require.Error(t, err)
}

func TestValidatorPoolKeyFromABIReturn(t *testing.T) {
	key, err := ValidatorPoolKeyFromABIReturn([]any{uint64(1), uint64(2), uint64(1002)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, key.ID)
	assert.EqualValues(t, 2, key.PoolID)
	assert.EqualValues(t, 1002, key.PoolAppID)

	_, err = ValidatorPoolKeyFromABIReturn(nil)
	require.ErrorIs(t, err, ErrCantFetchPoolKey)
}

func TestValidatorPoolsFromABIReturn(t *testing.T) {
	pools, err := ValidatorPoolsFromABIReturn([]any{
		[]any{uint64(1001), uint16(3), uint64(500)},
		[]any{uint64(1002), uint16(0), uint64(0)},
	})
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.EqualValues(t, 1001, pools[0].PoolAppID)
	assert.Equal(t, 3, pools[0].TotalStakers)
	assert.EqualValues(t, 500, pools[0].TotalAlgoStaked)

	_, err = ValidatorPoolsFromABIReturn([]any{[]any{uint64(1001)}})
	require.Error(t, err)
}

func TestTokenPayoutRatioFromABIReturn(t *testing.T) {
	pcts := make([]any, MaxPools)
	for i := range pcts {
		pcts[i] = uint64(0)
	}
	pcts[0] = uint64(750_000)
	pcts[1] = uint64(250_000)

	ratio, err := TokenPayoutRatioFromABIReturn([]any{pcts, uint64(41_000_000)})
	require.NoError(t, err)
	require.Len(t, ratio.PoolPctOfWhole, MaxPools)
	assert.EqualValues(t, 750_000, ratio.PoolPctOfWhole[0])
	assert.EqualValues(t, 41_000_000, ratio.UpdatedForPayout)
}

func TestNodePoolAssignmentFromABIReturn(t *testing.T) {
	nodes := make([]any, MaxNodes)
	for i := range nodes {
		slots := make([]any, MaxPoolsPerNode)
		for j := range slots {
			slots[j] = uint64(0)
		}
		nodes[i] = []any{slots}
	}
	// node 0 runs two pools, node 2 runs one, the rest are empty
	nodes[0].([]any)[0].([]any)[0] = uint64(1001)
	nodes[0].([]any)[0].([]any)[1] = uint64(1002)
	nodes[2].([]any)[0].([]any)[0] = uint64(1003)

	assignments, err := NodePoolAssignmentFromABIReturn([]any{nodes})
	require.NoError(t, err)
	require.Len(t, assignments.Nodes, MaxNodes)
	assert.Equal(t, []uint64{1001, 1002}, assignments.Nodes[0].PoolAppIDs)
	assert.Empty(t, assignments.Nodes[1].PoolAppIDs)
	assert.Equal(t, []uint64{1003}, assignments.Nodes[2].PoolAppIDs)
}

func TestMbrAmountsFromABIReturn(t *testing.T) {
	mbrs, err := MbrAmountsFromABIReturn([]any{uint64(1_002_000), uint64(2_101_000), uint64(398_900), uint64(100_000)})
	require.NoError(t, err)
	assert.EqualValues(t, 1_002_000, mbrs.AddValidatorMbr)
	assert.EqualValues(t, 2_101_000, mbrs.AddPoolMbr)
	assert.EqualValues(t, 398_900, mbrs.PoolInitMbr)
	assert.EqualValues(t, 100_000, mbrs.AddStakerMbr)

	_, err = MbrAmountsFromABIReturn([]any{uint64(1), uint64(2), uint64(3)})
	require.Error(t, err)
}

// newStubNodeClient wires a Reti client to a stub algod node that knows the
// registry's global state and fails every simulate call with the given status.
func newStubNodeClient(t *testing.T, numValidators uint64) *Reti {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/transactions/params", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"consensus-version":"future","fee":0,`+
			`"genesis-hash":"SGO1GKSzyE7IEPItTxCByw9x8FmnrCDexi9/cOUJOiI=",`+
			`"genesis-id":"testnet-v1.0","last-round":1000,"min-fee":1000}`)
	})
	mux.HandleFunc("/v2/applications/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// "bnVtVg==" is base64("numV")
		fmt.Fprintf(w, `{"id":1234,"params":{"global-state":[{"key":"bnVtVg==","value":{"type":2,"uint":%d}}]}}`, numValidators)
	})
	mux.HandleFunc("/v2/transactions/simulate", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "box reads unavailable", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	algoClient, err := algod.MakeClient(srv.URL, "")
	require.NoError(t, err)
	r, err := New(Config{RetiAppID: 1234}, slog.Default(), algoClient, testSigner{})
	require.NoError(t, err)
	return r
}

func TestGetValidatorOutOfRangeIsNotFound(t *testing.T) {
	r := newStubNodeClient(t, 2)

	v, err := r.GetValidator(context.Background(), 3)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, v)

	// id 0 is never assigned by the registry
	v, err = r.GetValidator(context.Background(), 0)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, v)
}

func TestGetValidatorFailedSubQueryYieldsNoPartialResult(t *testing.T) {
	r := newStubNodeClient(t, 2)

	// id is in range but every constituent query errors out - the composite
	// fetch must fail whole, never hand back a partial Validator
	v, err := r.GetValidator(context.Background(), 1)
	require.Error(t, err)
	assert.Nil(t, v)
	assert.Contains(t, err.Error(), "unable to Get")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestProtocolConstraintsFromABIReturn(t *testing.T) {
	constraints, err := ProtocolConstraintsFromABIReturn([]any{
		uint64(1), uint64(1_000_000), uint64(0), uint64(1_000_000),
		uint64(1_000_000), uint64(70_000_000_000_000), uint64(700_000_000_000_000),
		uint64(MaxNodes), uint64(MaxPoolsPerNode), uint64(200),
	})
	require.NoError(t, err)
	assert.EqualValues(t, MaxNodes, constraints.MaxNodes)
	assert.EqualValues(t, MaxPoolsPerNode, constraints.MaxPoolsPerNode)
	assert.EqualValues(t, 200, constraints.MaxStakersPerPool)
}
