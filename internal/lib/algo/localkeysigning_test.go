package algo

import (
	"context"
	"log/slog"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalKeyStoreLoadsMnemonicsFromEnvironment(t *testing.T) {
	account := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	require.NoError(t, err)
	t.Setenv("ALGO_MNEMONIC_TEST1", phrase)

	keyStore := NewLocalKeyStore(slog.Default())
	assert.True(t, keyStore.HasAccount(account.Address.String()))
	assert.False(t, keyStore.HasAccount(types.ZeroAddress.String()))
}

func TestLocalKeyStoreSignWithAccount(t *testing.T) {
	account := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	require.NoError(t, err)
	t.Setenv("ALGO_MNEMONIC", phrase)

	keyStore := NewLocalKeyStore(slog.Default())

	params := types.SuggestedParams{
		Fee:             transaction.MinTxnFee,
		MinFee:          transaction.MinTxnFee,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FirstRoundValid: 1000,
		LastRoundValid:  1100,
		FlatFee:         true,
	}
	txn, err := transaction.MakePaymentTxn(account.Address.String(), account.Address.String(), 0, nil, "", params)
	require.NoError(t, err)

	txid, stx, err := keyStore.SignWithAccount(context.Background(), txn, account.Address.String())
	require.NoError(t, err)
	assert.NotEmpty(t, txid)
	assert.NotEmpty(t, stx)

	_, _, err = keyStore.SignWithAccount(context.Background(), txn, types.ZeroAddress.String())
	require.Error(t, err)
}
