package reti

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/mailgun/holster/v4/syncutil"

	"github.com/TxnLab/reti-client/internal/lib/algo"
	"github.com/TxnLab/reti-client/internal/lib/misc"
)

type ValidatorConfig struct {
	// ID of this validator (sequentially assigned)
	ID uint64
	// Account that controls config - presumably cold-wallet
	Owner string
	// Account that triggers/pays for payouts and keyreg transactions - needs to be hotwallet as node has to sign for the transactions
	Manager string
	// Optional NFD AppID which the validator uses to describe their validator pool
	NFDForInfo uint64

	// Payout frequency - ie: 7, 30, etc.
	PayoutEveryXDays int
	// Payout percentage expressed w/ four decimals - ie: 50000 = 5% -> .0005 -
	PercentToValidator int
	// account that receives the validation commission each epoch payout (can be ZeroAddress)
	ValidatorCommissionAddress string
	// minimum stake required to enter pool - but must withdraw all if want to go below this amount as well(!)
	MinEntryStake uint64
	// maximum stake allowed per pool (to keep under incentive limits)
	MaxAlgoPerPool uint64
	// Number of pools to allow per node (max of 3 is recommended)
	PoolsPerNode int
}

func ValidatorConfigFromABIReturn(returnVal any) (*ValidatorConfig, error) {
	d, err := newTupleDecoder(returnVal, 10, "ValidatorConfig")
	if err != nil {
		return nil, err
	}
	config := &ValidatorConfig{
		ID:                         d.uint64At(0),
		Owner:                      d.addressStringAt(1),
		Manager:                    d.addressStringAt(2),
		NFDForInfo:                 d.uint64At(3),
		PayoutEveryXDays:           int(d.uint16At(4)),
		PercentToValidator:         int(d.uint32At(5)),
		ValidatorCommissionAddress: d.addressStringAt(6),
		MinEntryStake:              d.uint64At(7),
		MaxAlgoPerPool:             d.uint64At(8),
		PoolsPerNode:               int(d.uint8At(9)),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return config, nil
}

func (v *ValidatorConfig) String() string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("ID: %d\n", v.ID))
	out.WriteString(fmt.Sprintf("Owner: %s\n", v.Owner))
	out.WriteString(fmt.Sprintf("Manager: %s\n", v.Manager))
	out.WriteString(fmt.Sprintf("Validator Commission Address: %s\n", v.ValidatorCommissionAddress))
	out.WriteString(fmt.Sprintf("%% to Validator: %.04f\n", float64(v.PercentToValidator)/10_000.0))
	if v.NFDForInfo != 0 {
		out.WriteString(fmt.Sprintf("NFD ID: %d\n", v.NFDForInfo))
	}
	out.WriteString(fmt.Sprintf("Payout Every %d days\n", v.PayoutEveryXDays))
	out.WriteString(fmt.Sprintf("Min Entry Stake: %s\n", algo.FormattedAlgoAmount(v.MinEntryStake)))
	out.WriteString(fmt.Sprintf("Max Algo Per Pool: %s\n", algo.FormattedAlgoAmount(v.MaxAlgoPerPool)))
	out.WriteString(fmt.Sprintf("Max Pools per Node: %d\n", v.PoolsPerNode))

	return out.String()
}

type ValidatorCurState struct {
	NumPools        int    // current number of pools this validator has - capped at MaxPools
	TotalStakers    uint64 // total number of stakers across all pools
	TotalAlgoStaked uint64 // total amount staked to this validator across ALL of its pools
}

func (v *ValidatorCurState) String() string {
	return fmt.Sprintf("NumPools: %d, TotalStakers: %d, TotalAlgoStaked: %d", v.NumPools, v.TotalStakers, v.TotalAlgoStaked)
}

func ValidatorCurStateFromABIReturn(returnVal any) (*ValidatorCurState, error) {
	d, err := newTupleDecoder(returnVal, 3, "ValidatorCurState")
	if err != nil {
		return nil, err
	}
	state := &ValidatorCurState{
		NumPools:        int(d.uint16At(0)),
		TotalStakers:    d.uint64At(1),
		TotalAlgoStaked: d.uint64At(2),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return state, nil
}

type ValidatorPoolKey struct {
	ID        uint64 // 0 is invalid - should start at 1 (but is direct key in box)
	PoolID    uint64 // 0 means INVALID ! - so 1 is index, technically of [0]
	PoolAppID uint64
}

func (v *ValidatorPoolKey) String() string {
	return fmt.Sprintf("ValidatorPoolKey{ID: %d, PoolID: %d, PoolAppID: %d}", v.ID, v.PoolID, v.PoolAppID)
}

func ValidatorPoolKeyFromABIReturn(returnVal any) (*ValidatorPoolKey, error) {
	d, err := newTupleDecoder(returnVal, 3, "ValidatorPoolKey")
	if err != nil {
		return nil, ErrCantFetchPoolKey
	}
	key := &ValidatorPoolKey{
		ID:        d.uint64At(0),
		PoolID:    d.uint64At(1),
		PoolAppID: d.uint64At(2),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return key, nil
}

type PoolInfo struct {
	PoolAppID       uint64 // The App ID of this staking pool contract instance
	TotalStakers    int
	TotalAlgoStaked uint64
}

func PoolInfoFromABIReturn(returnVal any) (*PoolInfo, error) {
	d, err := newTupleDecoder(returnVal, 3, "PoolInfo")
	if err != nil {
		return nil, err
	}
	info := &PoolInfo{
		PoolAppID:       d.uint64At(0),
		TotalStakers:    int(d.uint16At(1)),
		TotalAlgoStaked: d.uint64At(2),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return info, nil
}

func ValidatorPoolsFromABIReturn(returnVal any) ([]PoolInfo, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unknown value returned from abi for pool list, type:%T", returnVal)
	}
	var retPools []PoolInfo
	for _, poolInfoAny := range arrReturn {
		info, err := PoolInfoFromABIReturn(poolInfoAny)
		if err != nil {
			return nil, err
		}
		retPools = append(retPools, *info)
	}
	return retPools, nil
}

// TokenPayoutRatio is the snapshot of how an epoch's token rewards are split
// across a validator's pools, by fraction of total stake.
type TokenPayoutRatio struct {
	PoolPctOfWhole   []uint64
	UpdatedForPayout uint64
}

func TokenPayoutRatioFromABIReturn(returnVal any) (*TokenPayoutRatio, error) {
	d, err := newTupleDecoder(returnVal, 2, "TokenPayoutRatio")
	if err != nil {
		return nil, err
	}
	ratio := &TokenPayoutRatio{
		PoolPctOfWhole:   d.uint64SliceAt(0),
		UpdatedForPayout: d.uint64At(1),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return ratio, nil
}

type NodeConfig struct {
	PoolAppIDs []uint64 // pools assigned to this node, unassigned slots trimmed
}

type NodePoolAssignmentConfig struct {
	Nodes []NodeConfig
}

func NodePoolAssignmentFromABIReturn(returnVal any) (*NodePoolAssignmentConfig, error) {
	d, err := newTupleDecoder(returnVal, 1, "NodePoolAssignmentConfig")
	if err != nil {
		return nil, err
	}
	nodesArr, ok := d.anyAt(0).([]any)
	if !ok {
		return nil, fmt.Errorf("unknown value returned from abi for node list, type:%T", d.anyAt(0))
	}
	var assignments NodePoolAssignmentConfig
	for _, nodeAny := range nodesArr {
		nd, err := newTupleDecoder(nodeAny, 1, "NodeConfig")
		if err != nil {
			return nil, err
		}
		appIDs := nd.uint64SliceAt(0)
		if err := nd.finish(); err != nil {
			return nil, err
		}
		var node NodeConfig
		for _, appID := range appIDs {
			if appID != 0 {
				node.PoolAppIDs = append(node.PoolAppIDs, appID)
			}
		}
		assignments.Nodes = append(assignments.Nodes, node)
	}
	return &assignments, nil
}

// ProtocolConstraints are the protocol-wide numeric bounds the registry
// enforces - fetched, never assumed.
type ProtocolConstraints struct {
	EpochPayoutRoundsMin           uint64
	EpochPayoutRoundsMax           uint64
	MinPctToValidatorWFourDecimals uint64
	MaxPctToValidatorWFourDecimals uint64
	MinEntryStake                  uint64
	MaxAlgoPerPool                 uint64
	MaxAlgoPerValidator            uint64
	MaxNodes                       uint64
	MaxPoolsPerNode                uint64
	MaxStakersPerPool              uint64
}

func ProtocolConstraintsFromABIReturn(returnVal any) (*ProtocolConstraints, error) {
	d, err := newTupleDecoder(returnVal, 10, "ProtocolConstraints")
	if err != nil {
		return nil, err
	}
	constraints := &ProtocolConstraints{
		EpochPayoutRoundsMin:           d.uint64At(0),
		EpochPayoutRoundsMax:           d.uint64At(1),
		MinPctToValidatorWFourDecimals: d.uint64At(2),
		MaxPctToValidatorWFourDecimals: d.uint64At(3),
		MinEntryStake:                  d.uint64At(4),
		MaxAlgoPerPool:                 d.uint64At(5),
		MaxAlgoPerValidator:            d.uint64At(6),
		MaxNodes:                       d.uint64At(7),
		MaxPoolsPerNode:                d.uint64At(8),
		MaxStakersPerPool:              d.uint64At(9),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return constraints, nil
}

type MbrAmounts struct {
	AddValidatorMbr uint64
	AddPoolMbr      uint64
	PoolInitMbr     uint64
	AddStakerMbr    uint64
}

func MbrAmountsFromABIReturn(returnVal any) (MbrAmounts, error) {
	d, err := newTupleDecoder(returnVal, 4, "MbrAmounts")
	if err != nil {
		return MbrAmounts{}, err
	}
	mbrs := MbrAmounts{
		AddValidatorMbr: d.uint64At(0),
		AddPoolMbr:      d.uint64At(1),
		PoolInitMbr:     d.uint64At(2),
		AddStakerMbr:    d.uint64At(3),
	}
	if err := d.finish(); err != nil {
		return MbrAmounts{}, err
	}
	return mbrs, nil
}

// Validator is the full merged view of one validator id.  Only ever produced
// whole: if any constituent query fails the whole fetch fails.
type Validator struct {
	Config              ValidatorConfig
	State               ValidatorCurState
	Pools               []PoolInfo
	TokenPayoutRatio    TokenPayoutRatio
	NodePoolAssignments NodePoolAssignmentConfig
}

// GetNumValidators returns the count of validators the registry has assigned so
// far, straight from contract global state.
func (r *Reti) GetNumValidators(ctx context.Context) (uint64, error) {
	appInfo, err := r.algoClient.GetApplicationByID(r.RetiAppID).Do(ctx)
	if err != nil {
		return 0, err
	}
	numV, err := algo.GetUint64FromGlobalState(appInfo.Params.GlobalState, VldtrNumValidators)
	if err != nil {
		return 0, ErrCantFetchValidators
	}
	return numV, nil
}

func (r *Reti) GetValidatorConfig(ctx context.Context, id uint64) (*ValidatorConfig, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getValidatorConfig", []any{id}, queryOpts{
		boxes: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(id)},
			{AppID: 0, Name: nil}, // extra i/o
		},
	})
	if err != nil {
		return nil, err
	}
	return ValidatorConfigFromABIReturn(retVal)
}

func (r *Reti) GetValidatorState(ctx context.Context, id uint64) (*ValidatorCurState, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getValidatorState", []any{id}, queryOpts{
		boxes: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(id)},
			{AppID: 0, Name: nil}, // extra i/o
		},
	})
	if err != nil {
		return nil, err
	}
	return ValidatorCurStateFromABIReturn(retVal)
}

func (r *Reti) GetValidatorPools(ctx context.Context, id uint64) ([]PoolInfo, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getPools", []any{id}, queryOpts{
		boxes: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(id)},
			{AppID: 0, Name: nil}, // extra i/o
		},
	})
	if err != nil {
		return nil, err
	}
	return ValidatorPoolsFromABIReturn(retVal)
}

func (r *Reti) GetValidatorPoolInfo(ctx context.Context, poolKey ValidatorPoolKey) (*PoolInfo, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getPoolInfo", []any{[]any{poolKey.ID, poolKey.PoolID, poolKey.PoolAppID}}, queryOpts{
		foreignApps: []uint64{poolKey.PoolAppID},
		boxes: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(poolKey.ID)},
			{AppID: 0, Name: nil}, // extra i/o
		},
	})
	if err != nil {
		return nil, err
	}
	return PoolInfoFromABIReturn(retVal)
}

func (r *Reti) GetTokenPayoutRatio(ctx context.Context, id uint64) (*TokenPayoutRatio, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getTokenPayoutRatio", []any{id}, queryOpts{
		boxes: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(id)},
			{AppID: 0, Name: nil}, // extra i/o
		},
	})
	if err != nil {
		return nil, err
	}
	return TokenPayoutRatioFromABIReturn(retVal)
}

func (r *Reti) GetNodePoolAssignments(ctx context.Context, id uint64) (*NodePoolAssignmentConfig, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getNodePoolAssignments", []any{id}, queryOpts{
		boxes: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(id)},
			{AppID: 0, Name: nil}, // extra i/o
		},
	})
	if err != nil {
		return nil, err
	}
	return NodePoolAssignmentFromABIReturn(retVal)
}

func (r *Reti) GetProtocolConstraints(ctx context.Context) (*ProtocolConstraints, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getProtocolConstraints", nil, queryOpts{})
	if err != nil {
		return nil, err
	}
	return ProtocolConstraintsFromABIReturn(retVal)
}

func (r *Reti) GetMbrAmounts(ctx context.Context) (MbrAmounts, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "getMbrAmounts", nil, queryOpts{})
	if err != nil {
		return MbrAmounts{}, err
	}
	return MbrAmountsFromABIReturn(retVal)
}

// FindPoolForStaker asks the registry which pool a staker's new stake would
// land in, and whether they'd be a first-time staker for the validator.
func (r *Reti) FindPoolForStaker(ctx context.Context, id uint64, staker types.Address, amount uint64) (*ValidatorPoolKey, bool, error) {
	retVal, err := r.runReadQuery(ctx, r.validatorContract, r.RetiAppID, "findPoolForStaker", []any{id, staker, amount}, queryOpts{
		sender: staker,
	})
	if err != nil {
		return nil, false, err
	}
	d, err := newTupleDecoder(retVal, 2, "findPoolForStaker")
	if err != nil {
		return nil, false, err
	}
	poolKey, err := ValidatorPoolKeyFromABIReturn(d.anyAt(0))
	if err != nil {
		return nil, false, err
	}
	isNewStaker := d.boolAt(1)
	if err := d.finish(); err != nil {
		return nil, false, err
	}
	return poolKey, isNewStaker, nil
}

// GetValidator assembles the full view of one validator.  The five constituent
// queries have no ordering dependency so they're issued concurrently; they
// write disjoint fields and are joined at the single Wait below.  Any failure
// fails the whole fetch - a partially populated Validator is never returned.
func (r *Reti) GetValidator(ctx context.Context, id uint64) (*Validator, error) {
	numV, err := r.GetNumValidators(ctx)
	if err != nil {
		return nil, err
	}
	if id == 0 || id > numV {
		return nil, fmt.Errorf("validator id:%d of %d known validators: %w", id, numV, ErrNotFound)
	}

	var (
		wg syncutil.WaitGroup
		v  Validator
	)
	wg.Run(func(_ any) error {
		config, err := r.GetValidatorConfig(ctx, id)
		if err != nil {
			return fmt.Errorf("unable to GetValidatorConfig: %w", err)
		}
		v.Config = *config
		return nil
	}, nil)
	wg.Run(func(_ any) error {
		state, err := r.GetValidatorState(ctx, id)
		if err != nil {
			return fmt.Errorf("unable to GetValidatorState: %w", err)
		}
		v.State = *state
		return nil
	}, nil)
	wg.Run(func(_ any) error {
		pools, err := r.GetValidatorPools(ctx, id)
		if err != nil {
			return fmt.Errorf("unable to GetValidatorPools: %w", err)
		}
		v.Pools = pools
		return nil
	}, nil)
	wg.Run(func(_ any) error {
		ratio, err := r.GetTokenPayoutRatio(ctx, id)
		if err != nil {
			return fmt.Errorf("unable to GetTokenPayoutRatio: %w", err)
		}
		v.TokenPayoutRatio = *ratio
		return nil
	}, nil)
	wg.Run(func(_ any) error {
		assignments, err := r.GetNodePoolAssignments(ctx, id)
		if err != nil {
			return fmt.Errorf("unable to GetNodePoolAssignments: %w", err)
		}
		v.NodePoolAssignments = *assignments
		return nil
	}, nil)

	if errs := wg.Wait(); errs != nil {
		return nil, errs[0]
	}
	return &v, nil
}

// GetAllValidators fetches the full view of every registered validator, fanning
// out in bounded batches.  Output order is ascending validator id.
func (r *Reti) GetAllValidators(ctx context.Context) ([]*Validator, error) {
	numV, err := r.GetNumValidators(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, numV)
	for id := uint64(1); id <= numV; id++ {
		ids = append(ids, id)
	}
	validators, err := fetchInBatches(ctx, ids, r.cfg.BatchSize, r.GetValidator)
	if err != nil {
		return nil, err
	}

	var totalPools, totalStakers, totalStaked uint64
	for _, v := range validators {
		totalPools += uint64(v.State.NumPools)
		totalStakers += v.State.TotalStakers
		totalStaked += v.State.TotalAlgoStaked
	}
	promNumValidators.Set(float64(len(validators)))
	promNumPools.Set(float64(totalPools))
	promNumStakers.Set(float64(totalStakers))
	promTotalStaked.Set(float64(totalStaked) / 1e6)

	return validators, nil
}

// AddValidator registers a brand-new validator, paying its MBR in the same
// group.  Returns the id the registry assigned.
func (r *Reti) AddValidator(ctx context.Context, config *ValidatorConfig) (uint64, error) {
	ownerAddr, err := types.DecodeAddress(config.Owner)
	if err != nil {
		return 0, newValidationError("invalid owner address: %v", err)
	}
	managerAddr, err := types.DecodeAddress(config.Manager)
	if err != nil {
		return 0, newValidationError("invalid manager address: %v", err)
	}
	commissionAddr, err := types.DecodeAddress(config.ValidatorCommissionAddress)
	if err != nil {
		return 0, newValidationError("invalid commission address: %v", err)
	}
	if err := r.requireSigner(ownerAddr); err != nil {
		return 0, err
	}

	params := algo.SuggestedParams(ctx, r.Logger, r.algoClient)

	// first determine how much we have to add in MBR to the validator
	mbrs, err := r.GetMbrAmounts(ctx)
	if err != nil {
		return 0, err
	}
	misc.Debugf(r.Logger, "mbr to add validator:%s", algo.FormattedAlgoAmount(mbrs.AddValidatorMbr))

	method, err := r.validatorContract.GetMethodByName("addValidator")
	if err != nil {
		return 0, err
	}
	// We need to set the box references ourselves, so we need the id of the 'next' validator.
	// We do the next two just to be safe (for race condition of someone else adding validator before us)
	curNumValidators, err := r.GetNumValidators(ctx)
	if err != nil {
		return 0, err
	}

	paymentTxn, err := transaction.MakePaymentTxn(ownerAddr.String(), crypto.GetApplicationAddress(r.RetiAppID).String(), mbrs.AddValidatorMbr, nil, "", params)
	if err != nil {
		return 0, err
	}
	payTxWithSigner := transaction.TransactionWithSigner{
		Txn:    paymentTxn,
		Signer: algo.SignWithAccountForATC(r.signer, ownerAddr.String()),
	}

	atc := transaction.AtomicTransactionComposer{}
	err = atc.AddMethodCall(transaction.AddMethodCallParams{
		AppID:  r.RetiAppID,
		Method: method,
		MethodArgs: []any{
			// MBR payment
			payTxWithSigner,
			// --
			[]any{
				0, // id is ignored and assigned by contract
				ownerAddr,
				managerAddr,
				config.NFDForInfo,
				uint16(config.PayoutEveryXDays),
				uint32(config.PercentToValidator),
				commissionAddr,
				config.MinEntryStake,
				config.MaxAlgoPerPool,
				uint8(config.PoolsPerNode),
			},
		},
		BoxReferences: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(curNumValidators + 1)},
			{AppID: 0, Name: GetValidatorListBoxName(curNumValidators + 2)},
			{AppID: 0, Name: nil}, // extra i/o
		},
		SuggestedParams: params,
		OnComplete:      types.NoOpOC,
		Sender:          ownerAddr,
		Signer:          algo.SignWithAccountForATC(r.signer, ownerAddr.String()),
	})
	if err != nil {
		return 0, err
	}

	result, err := atc.Execute(r.algoClient, ctx, 4)
	if err != nil {
		return 0, err
	}
	if validatorID, ok := result.MethodResults[0].ReturnValue.(uint64); ok {
		return validatorID, nil
	}
	return 0, fmt.Errorf("unknown result type:%#v", result.MethodResults)
}

// AddStakingPool adds a pool to a validator (paying the registry MBR), then
// funds and initializes the new pool's staker ledger storage - two separate
// groups because the pool app id doesn't exist until the first commits.
func (r *Reti) AddStakingPool(ctx context.Context, validatorID uint64) (*ValidatorPoolKey, error) {
	config, err := r.GetValidatorConfig(ctx, validatorID)
	if err != nil {
		return nil, err
	}
	managerAddr, err := types.DecodeAddress(config.Manager)
	if err != nil {
		return nil, newValidationError("invalid manager address: %v", err)
	}
	if err := r.requireSigner(managerAddr); err != nil {
		return nil, err
	}

	params := algo.SuggestedParams(ctx, r.Logger, r.algoClient)

	mbrs, err := r.GetMbrAmounts(ctx)
	if err != nil {
		return nil, err
	}

	method, err := r.validatorContract.GetMethodByName("addPool")
	if err != nil {
		return nil, err
	}
	// We have to pay MBR into the Validator contract itself for adding a pool
	paymentTxn, err := transaction.MakePaymentTxn(managerAddr.String(), crypto.GetApplicationAddress(r.RetiAppID).String(), mbrs.AddPoolMbr, nil, "", params)
	if err != nil {
		return nil, err
	}
	payTxWithSigner := transaction.TransactionWithSigner{
		Txn:    paymentTxn,
		Signer: algo.SignWithAccountForATC(r.signer, managerAddr.String()),
	}

	params.FlatFee = true
	params.Fee = types.MicroAlgos(max(uint64(params.Fee), transaction.MinTxnFee) + params.MinFee)

	atc := transaction.AtomicTransactionComposer{}
	err = atc.AddMethodCall(transaction.AddMethodCallParams{
		AppID:  r.RetiAppID,
		Method: method,
		MethodArgs: []any{
			// MBR payment
			payTxWithSigner,
			// --
			validatorID,
		},
		ForeignApps: []uint64{r.poolTemplateAppID(ctx)},
		BoxReferences: []types.AppBoxReference{
			{AppID: 0, Name: GetValidatorListBoxName(validatorID)},
			{AppID: 0, Name: nil}, // extra i/o
		},
		SuggestedParams: params,
		OnComplete:      types.NoOpOC,
		Sender:          managerAddr,
		Signer:          algo.SignWithAccountForATC(r.signer, managerAddr.String()),
	})
	if err != nil {
		return nil, err
	}
	result, err := atc.Execute(r.algoClient, ctx, 4)
	if err != nil {
		return nil, err
	}

	poolKey, err := ValidatorPoolKeyFromABIReturn(result.MethodResults[0].ReturnValue)
	if err != nil {
		return nil, err
	}

	// Now we have to pay MBR into the staking pool itself (!) and tell it to initialize itself
	initMethod, err := r.poolContract.GetMethodByName("initStorage")
	if err != nil {
		return nil, err
	}

	atc = transaction.AtomicTransactionComposer{}
	paymentTxn, err = transaction.MakePaymentTxn(managerAddr.String(), crypto.GetApplicationAddress(poolKey.PoolAppID).String(), mbrs.PoolInitMbr, nil, "", params)
	if err != nil {
		return nil, err
	}
	payTxWithSigner = transaction.TransactionWithSigner{
		Txn:    paymentTxn,
		Signer: algo.SignWithAccountForATC(r.signer, managerAddr.String()),
	}
	err = atc.AddMethodCall(transaction.AddMethodCallParams{
		AppID:      poolKey.PoolAppID,
		Method:     initMethod,
		MethodArgs: []any{payTxWithSigner},
		BoxReferences: []types.AppBoxReference{
			{AppID: 0, Name: GetStakerLedgerBoxName()},
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
			{AppID: 0, Name: nil}, // extra i/o
		},
		SuggestedParams: params,
		OnComplete:      types.NoOpOC,
		Sender:          managerAddr,
		Signer:          algo.SignWithAccountForATC(r.signer, managerAddr.String()),
	})
	if err != nil {
		return nil, err
	}
	_, err = atc.Execute(r.algoClient, ctx, 4)
	if err != nil {
		return nil, err
	}

	return poolKey, nil
}

func (r *Reti) poolTemplateAppID(ctx context.Context) uint64 {
	r.oneTimeInit.Do(func() {
		appInfo, err := r.algoClient.GetApplicationByID(r.RetiAppID).Do(ctx)
		if err != nil {
			misc.Errorf(r.Logger, "unable to fetch registry app info: %v", err)
			return
		}
		r.poolTmplAppID, _ = algo.GetUint64FromGlobalState(appInfo.Params.GlobalState, VldtrPoolTmplID)
	})
	return r.poolTmplAppID
}
