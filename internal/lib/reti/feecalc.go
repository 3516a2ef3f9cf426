package reti

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/reti-client/internal/lib/algo"
)

// RequiredFee converts the app budget a simulated group consumed into the flat
// fee the real submission must carry.  baseCalls covers the per-transaction fee
// floor for every call in the group; consumed budget is rounded UP to whole
// budget units so the group can never come up short.  Zero extra budget still
// pays the baseCalls floor.
func RequiredFee(baseCalls uint64, appBudgetAdded uint64) types.MicroAlgos {
	extraCalls := (appBudgetAdded + AppBudgetPerCall - 1) / AppBudgetPerCall
	return types.MicroAlgos(transaction.MinTxnFee * (baseCalls + extraCalls))
}

// groupBuilder builds the full transaction group with the given flat fee on its
// primary call.  It is called twice per operation: once for the dry run and once
// for the real submission.  Returning a freshly composed group each time matters -
// the dry run stamps a group id into its transactions, and reusing those for the
// real submission would corrupt it.
type groupBuilder func(feeToUse types.MicroAlgos) (transaction.AtomicTransactionComposer, error)

// simulateThenExecute is the estimate-then-commit protocol every mutating
// operation runs through:
//  1. build the group with the configured fee ceiling and simulate it
//     (no signatures checked, no state committed),
//  2. read how much app budget the group actually consumed,
//  3. rebuild the identical group carrying the computed sufficient fee,
//  4. sign and execute for real.
func (r *Reti) simulateThenExecute(ctx context.Context, baseCalls uint64, build groupBuilder) (*transaction.ExecuteResult, error) {
	atc, err := build(types.MicroAlgos(r.cfg.SimFeeCeiling))
	if err != nil {
		return nil, err
	}
	simResult, err := atc.Simulate(ctx, r.algoClient, models.SimulateRequest{
		AllowEmptySignatures:  true,
		AllowUnnamedResources: true,
	})
	if err != nil {
		return nil, err
	}
	if msg := simResult.SimulateResponse.TxnGroups[0].FailureMessage; msg != "" {
		return nil, simFailureToError(msg)
	}

	atc, err = build(RequiredFee(baseCalls, simResult.SimulateResponse.TxnGroups[0].AppBudgetAdded))
	if err != nil {
		return nil, err
	}
	result, err := atc.Execute(r.algoClient, ctx, 4)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// addGasCall appends one of the no-op budget-extension calls to the group.
// These MUST precede the primary call of their segment so the primary call can
// draw on the pooled budget - and they're also where we stack box/app
// references for resource pooling.
func (r *Reti) addGasCall(atc *transaction.AtomicTransactionComposer, contract *abi.Contract, appID uint64, params types.SuggestedParams, sender types.Address, foreignApps []uint64, boxes []types.AppBoxReference) error {
	gasMethod, err := contract.GetMethodByName("gas")
	if err != nil {
		return err
	}
	gasParams := params
	gasParams.FlatFee = true
	gasParams.Fee = 0
	return atc.AddMethodCall(transaction.AddMethodCallParams{
		AppID:           appID,
		Method:          gasMethod,
		ForeignApps:     foreignApps,
		BoxReferences:   boxes,
		SuggestedParams: gasParams,
		OnComplete:      types.NoOpOC,
		Sender:          sender,
		Signer:          algo.SignWithAccountForATC(r.signer, sender.String()),
	})
}
