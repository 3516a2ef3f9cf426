package reti

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/reti-client/internal/lib/algo"
	"github.com/TxnLab/reti-client/internal/lib/misc"
)

type StakedInfo struct {
	Account            types.Address
	Balance            uint64
	TotalRewarded      uint64
	RewardTokenBalance uint64
	EntryTime          uint64
}

func StakedInfoFromABIReturn(returnVal any) (*StakedInfo, error) {
	d, err := newTupleDecoder(returnVal, 5, "StakedInfo")
	if err != nil {
		return nil, err
	}
	info := &StakedInfo{
		Account:            d.addressAt(0),
		Balance:            d.uint64At(1),
		TotalRewarded:      d.uint64At(2),
		RewardTokenBalance: d.uint64At(3),
		EntryTime:          d.uint64At(4),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return info, nil
}

// StakerPoolData is a staker's position in one specific pool.
type StakerPoolData struct {
	StakedInfo
	PoolKey ValidatorPoolKey
}

// StakerValidatorData is a staker's aggregate position with one validator -
// balances summed across the validator's pools, entry time the earliest join,
// with the constituent per-pool records retained.
type StakerValidatorData struct {
	ValidatorID        uint64
	Balance            uint64
	TotalRewarded      uint64
	RewardTokenBalance uint64
	EntryTime          uint64
	Pools              []StakerPoolData
}

// MergeStakerPoolData groups per-pool records by owning validator, summing the
// amounts and taking the minimum entry time.  Aggregates come back in the order
// their validator first appears in the input.
func MergeStakerPoolData(pools []StakerPoolData) []StakerValidatorData {
	var (
		byValidator = map[uint64]*StakerValidatorData{}
		order       []uint64
	)
	for _, pool := range pools {
		agg, found := byValidator[pool.PoolKey.ID]
		if !found {
			agg = &StakerValidatorData{
				ValidatorID: pool.PoolKey.ID,
				EntryTime:   pool.EntryTime,
			}
			byValidator[pool.PoolKey.ID] = agg
			order = append(order, pool.PoolKey.ID)
		}
		agg.Balance += pool.Balance
		agg.TotalRewarded += pool.TotalRewarded
		agg.RewardTokenBalance += pool.RewardTokenBalance
		if pool.EntryTime < agg.EntryTime {
			agg.EntryTime = pool.EntryTime
		}
		agg.Pools = append(agg.Pools, pool)
	}
	merged := make([]StakerValidatorData, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byValidator[id])
	}
	return merged
}

// GetStakedPoolsForAccount returns every pool the staker currently has a
// position in, across all validators.
func (r *Reti) GetStakedPoolsForAccount(ctx context.Context, staker types.Address) ([]ValidatorPoolKey, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getStakedPoolsForAccount", []any{staker}, queryOpts{
		sender: staker,
	})
	if err != nil {
		return nil, err
	}
	arrReturn, ok := retVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unknown value returned from abi for staked pool list, type:%T", retVal)
	}
	var retPools []ValidatorPoolKey
	for _, poolKeyAny := range arrReturn {
		poolKey, err := ValidatorPoolKeyFromABIReturn(poolKeyAny)
		if err != nil {
			return nil, err
		}
		retPools = append(retPools, *poolKey)
	}
	return retPools, nil
}

// GetStakerInfoForPool reads a staker's position inside one pool contract.
func (r *Reti) GetStakerInfoForPool(ctx context.Context, poolAppID uint64, staker types.Address) (*StakedInfo, error) {
	retVal, err := r.runReadQuery(ctx, r.poolContract, poolAppID, "getStakerInfo", []any{staker}, queryOpts{
		sender: staker,
		boxes: []types.AppBoxReference{
			{AppID: 0, Name: GetStakerLedgerBoxName()},
			{AppID: 0, Name: nil}, // extra i/o
		},
	})
	if err != nil {
		return nil, err
	}
	return StakedInfoFromABIReturn(retVal)
}

func (r *Reti) DoesStakerNeedToPayMbr(ctx context.Context, staker types.Address) (bool, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "doesStakerNeedToPayMBR", []any{staker}, queryOpts{
		sender: staker,
	})
	if err != nil {
		return false, err
	}
	needsMbr, ok := retVal.(bool)
	if !ok {
		return false, fmt.Errorf("unknown value returned from abi for doesStakerNeedToPayMBR, type:%T", retVal)
	}
	return needsMbr, nil
}

// GetStakedInfoForAccount is the full read path for a staker: all their pool
// positions fetched in bounded batches, then merged into per-validator
// aggregates.
func (r *Reti) GetStakedInfoForAccount(ctx context.Context, staker types.Address) ([]StakerValidatorData, error) {
	poolKeys, err := r.GetStakedPoolsForAccount(ctx, staker)
	if err != nil {
		return nil, err
	}
	poolData, err := fetchInBatches(ctx, poolKeys, r.cfg.BatchSize, func(ctx context.Context, poolKey ValidatorPoolKey) (StakerPoolData, error) {
		info, err := r.GetStakerInfoForPool(ctx, poolKey.PoolAppID, staker)
		if err != nil {
			return StakerPoolData{}, fmt.Errorf("error getting staker info for %s: %w", poolKey.String(), err)
		}
		return StakerPoolData{StakedInfo: *info, PoolKey: poolKey}, nil
	})
	if err != nil {
		return nil, err
	}
	return MergeStakerPoolData(poolData), nil
}

// AddStake stakes amount with the given validator, topping the payment up with
// the one-time staker MBR if this account has never staked before.  The group
// is simulated first to learn its compute cost, then resubmitted with the
// computed fee.
func (r *Reti) AddStake(ctx context.Context, validatorID uint64, staker types.Address, amount uint64) (*ValidatorPoolKey, error) {
	if err := r.requireSigner(staker); err != nil {
		return nil, err
	}

	params := algo.SuggestedParams(ctx, r.Logger, r.algoClient)

	amountToStake := amount

	mbrs, err := r.GetMbrAmounts(ctx)
	if err != nil {
		return nil, err
	}
	needsMbr, err := r.DoesStakerNeedToPayMbr(ctx, staker)
	if err != nil {
		return nil, err
	}
	if needsMbr {
		misc.Infof(r.Logger, "Adding %s ALGO to stake to cover first-time MBR", algo.FormattedAlgoAmount(mbrs.AddStakerMbr))
		amountToStake += mbrs.AddStakerMbr
	}

	// We have to supply the box/app references ourselves, which means knowing in
	// advance which pool the stake will land in - so ask the registry.
	futurePoolKey, _, err := r.FindPoolForStaker(ctx, validatorID, staker, amount)
	if err != nil {
		return nil, err
	}

	buildGroup := func(feeToUse types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
		atc := transaction.AtomicTransactionComposer{}

		err := r.addGasCall(&atc, r.validatorContract, r.RetiAppID, params, staker, nil, []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(validatorID)},
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: GetStakerPoolSetBoxName(staker)},
		})
		if err != nil {
			return atc, err
		}

		stakeMethod, err := r.validatorContract.GetMethodByName("addStake")
		if err != nil {
			return atc, err
		}
		paymentTxn, err := transaction.MakePaymentTxn(staker.String(), crypto.GetApplicationAddress(r.RetiAppID).String(), amountToStake, nil, "", params)
		if err != nil {
			return atc, err
		}
		payTxWithSigner := transaction.TransactionWithSigner{
			Txn:    paymentTxn,
			Signer: algo.SignWithAccountForATC(r.signer, staker.String()),
		}

		stakeParams := params
		stakeParams.FlatFee = true
		stakeParams.Fee = feeToUse
		err = atc.AddMethodCall(transaction.AddMethodCallParams{
			AppID:  r.RetiAppID,
			Method: stakeMethod,
			MethodArgs: []any{
				// stake payment (+ staker mbr if first time)
				payTxWithSigner,
				// --
				validatorID,
			},
			ForeignApps: []uint64{futurePoolKey.PoolAppID},
			BoxReferences: []types.AppBoxReference{
				{AppID: futurePoolKey.PoolAppID, Name: GetStakerLedgerBoxName()},
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
			},
			SuggestedParams: stakeParams,
			OnComplete:      types.NoOpOC,
			Sender:          staker,
			Signer:          algo.SignWithAccountForATC(r.signer, staker.String()),
		})
		return atc, err
	}

	result, err := r.simulateThenExecute(ctx, 2, buildGroup)
	if err != nil {
		return nil, err
	}
	return ValidatorPoolKeyFromABIReturn(result.MethodResults[1].ReturnValue)
}

// RemoveStake unstakes amount from a specific pool (0 amount means everything).
func (r *Reti) RemoveStake(ctx context.Context, poolKey ValidatorPoolKey, staker types.Address, amount uint64) error {
	if err := r.requireSigner(staker); err != nil {
		return err
	}

	params := algo.SuggestedParams(ctx, r.Logger, r.algoClient)

	buildGroup := func(feeToUse types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
		atc := transaction.AtomicTransactionComposer{}

		err := r.addGasCall(&atc, r.poolContract, poolKey.PoolAppID, params, staker, []uint64{r.RetiAppID}, []types.AppBoxReference{
			{AppID: r.RetiAppID, Name: GetValidatorListBoxName(poolKey.ID)},
			{AppID: r.RetiAppID, Name: GetStakerPoolSetBoxName(staker)},
			{AppID: 0, Name: GetStakerLedgerBoxName()},
			{AppID: 0, Name: nil}, // extra i/o
		})
		if err != nil {
			return atc, err
		}

		removeMethod, err := r.poolContract.GetMethodByName("removeStake")
		if err != nil {
			return atc, err
		}
		removeParams := params
		removeParams.FlatFee = true
		removeParams.Fee = feeToUse
		err = atc.AddMethodCall(transaction.AddMethodCallParams{
			AppID:      poolKey.PoolAppID,
			Method:     removeMethod,
			MethodArgs: []any{amount},
			BoxReferences: []types.AppBoxReference{
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
			},
			SuggestedParams: removeParams,
			OnComplete:      types.NoOpOC,
			Sender:          staker,
			Signer:          algo.SignWithAccountForATC(r.signer, staker.String()),
		})
		return atc, err
	}

	_, err := r.simulateThenExecute(ctx, 2, buildGroup)
	return err
}

// ClaimTokens claims pending reward tokens from every pool the staker is in,
// as one all-or-nothing group: an ordered (gas, claim) segment per pool.
func (r *Reti) ClaimTokens(ctx context.Context, staker types.Address) error {
	if err := r.requireSigner(staker); err != nil {
		return err
	}

	poolKeys, err := r.GetStakedPoolsForAccount(ctx, staker)
	if err != nil {
		return err
	}
	if len(poolKeys) == 0 {
		return fmt.Errorf("account:%s has no staked pools: %w", staker.String(), ErrNotFound)
	}

	params := algo.SuggestedParams(ctx, r.Logger, r.algoClient)

	_, err = r.simulateThenExecute(ctx, uint64(2*len(poolKeys)), func(feeToUse types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
		return r.buildClaimTokensGroup(poolKeys, staker, params, feeToUse)
	})
	return err
}

// buildClaimTokensGroup assembles one ordered (gas, claimTokens) segment per
// pool into a single atomic group - the budget-extension call of each segment
// precedes its claim so the claim can draw on the pooled budget.
func (r *Reti) buildClaimTokensGroup(poolKeys []ValidatorPoolKey, staker types.Address, params types.SuggestedParams, feeToUse types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
	atc := transaction.AtomicTransactionComposer{}

	claimMethod, err := r.poolContract.GetMethodByName("claimTokens")
	if err != nil {
		return atc, err
	}
	for i, poolKey := range poolKeys {
		err := r.addGasCall(&atc, r.poolContract, poolKey.PoolAppID, params, staker, []uint64{r.RetiAppID}, []types.AppBoxReference{
			{AppID: r.RetiAppID, Name: GetValidatorListBoxName(poolKey.ID)},
			{AppID: 0, Name: GetStakerLedgerBoxName()},
			{AppID: 0, Name: nil}, // extra i/o
		})
		if err != nil {
			return atc, err
		}

		claimParams := params
		claimParams.FlatFee = true
		claimParams.Fee = 0
		if i == 0 {
			// first primary call carries the pooled fee for the whole group
			claimParams.Fee = feeToUse
		}
		err = atc.AddMethodCall(transaction.AddMethodCallParams{
			AppID:  poolKey.PoolAppID,
			Method: claimMethod,
			BoxReferences: []types.AppBoxReference{
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
			},
			SuggestedParams: claimParams,
			OnComplete:      types.NoOpOC,
			Sender:          staker,
			Signer:          algo.SignWithAccountForATC(r.signer, staker.String()),
		})
		if err != nil {
			return atc, err
		}
	}
	return atc, nil
}

// EpochBalanceUpdate triggers a pool's epoch payout accounting - a heavy call,
// so two budget-extension calls precede it and its fee comes from simulation.
func (r *Reti) EpochBalanceUpdate(ctx context.Context, poolKey ValidatorPoolKey) error {
	config, err := r.GetValidatorConfig(ctx, poolKey.ID)
	if err != nil {
		return err
	}
	managerAddr, err := types.DecodeAddress(config.Manager)
	if err != nil {
		return newValidationError("invalid manager address: %v", err)
	}
	if err := r.requireSigner(managerAddr); err != nil {
		return err
	}

	params := algo.SuggestedParams(ctx, r.Logger, r.algoClient)

	buildGroup := func(feeToUse types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
		atc := transaction.AtomicTransactionComposer{}

		// we need to stack up references in these two gas methods for resource pooling
		err := r.addGasCall(&atc, r.poolContract, poolKey.PoolAppID, params, managerAddr, []uint64{r.RetiAppID}, []types.AppBoxReference{
			{AppID: r.RetiAppID, Name: GetValidatorListBoxName(poolKey.ID)},
			{AppID: 0, Name: GetStakerLedgerBoxName()},
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
		})
		if err != nil {
			return atc, err
		}
		var extraApps []uint64
		if config.NFDForInfo != 0 {
			extraApps = append(extraApps, config.NFDForInfo)
		}
		err = r.addGasCall(&atc, r.poolContract, poolKey.PoolAppID, params, managerAddr, extraApps, nil)
		if err != nil {
			return atc, err
		}

		epochUpdateMethod, err := r.poolContract.GetMethodByName("epochBalanceUpdate")
		if err != nil {
			return atc, err
		}
		epochParams := params
		epochParams.FlatFee = true
		epochParams.Fee = feeToUse
		err = atc.AddMethodCall(transaction.AddMethodCallParams{
			AppID:  poolKey.PoolAppID,
			Method: epochUpdateMethod,
			ForeignAccounts: []string{
				config.ValidatorCommissionAddress,
				config.Manager,
			},
			BoxReferences: []types.AppBoxReference{
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
				{AppID: 0, Name: nil}, // extra i/o
			},
			SuggestedParams: epochParams,
			OnComplete:      types.NoOpOC,
			Sender:          managerAddr,
			Signer:          algo.SignWithAccountForATC(r.signer, managerAddr.String()),
		})
		return atc, err
	}

	_, err = r.simulateThenExecute(ctx, 3, buildGroup)
	return err
}

// PoolAvailableRewards is the algo sitting in a pool's account beyond stake and
// MBR - ie what the next epoch payout has to work with.
func (r *Reti) PoolAvailableRewards(ctx context.Context, poolAppID uint64, totalAlgoStaked uint64) (uint64, error) {
	acctInfo, err := algo.GetBareAccount(ctx, r.algoClient, crypto.GetApplicationAddress(poolAppID).String())
	if err != nil {
		return 0, err
	}
	// guard the subtraction - a pool mid-payout can momentarily hold less than
	// stake + MBR and that must read as zero rewards, not a wrapped uint64
	if acctInfo.Amount <= totalAlgoStaked+acctInfo.MinBalance {
		return 0, nil
	}
	return acctInfo.Amount - totalAlgoStaked - acctInfo.MinBalance, nil
}
