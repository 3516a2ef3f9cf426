package reti

import (
	"context"
	"embed"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/reti-client/internal/lib/algo"
	"github.com/TxnLab/reti-client/internal/lib/misc"
)

// Config is the explicit configuration for a Reti client instance - built once
// at startup and passed in, never read ambiently.
type Config struct {
	// RetiAppID is the master validator registry contract id
	RetiAppID uint64

	// SimFeeCeiling is the provisional flat fee attached to the primary call of a
	// dry-run group - high enough that any realistic compute budget is covered.
	// The real fee is computed from the simulated budget afterwards.
	SimFeeCeiling uint64

	// BatchSize caps how many entity fetches run concurrently per batch
	BatchSize int
}

const DefaultSimFeeCeiling = 240 * transaction.MinTxnFee

func (c *Config) setDefaults() {
	if c.SimFeeCeiling == 0 {
		c.SimFeeCeiling = DefaultSimFeeCeiling
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

type Reti struct {
	Logger     *slog.Logger
	algoClient *algod.Client
	signer     algo.MultipleWalletSigner
	cfg        Config

	// RetiAppID is simply the master validator contract id
	RetiAppID uint64

	oneTimeInit   sync.Once
	poolTmplAppID uint64

	validatorContract *abi.Contract
	poolContract      *abi.Contract
}

func New(
	cfg Config,
	logger *slog.Logger,
	algoClient *algod.Client,
	signer algo.MultipleWalletSigner,
) (*Reti, error) {
	if cfg.RetiAppID == 0 {
		return nil, newValidationError("reti App ID not defined")
	}
	cfg.setDefaults()

	retReti := &Reti{
		Logger:     logger,
		algoClient: algoClient,
		signer:     signer,
		cfg:        cfg,
		RetiAppID:  cfg.RetiAppID,
	}
	validatorContract, err := loadContract("artifacts/contracts/ValidatorRegistry.arc32.json")
	if err != nil {
		return nil, err
	}
	poolContract, err := loadContract("artifacts/contracts/StakingPool.arc32.json")
	if err != nil {
		return nil, err
	}
	retReti.validatorContract = validatorContract
	retReti.poolContract = poolContract

	misc.Infof(logger, "client initialized, Protocol App ID:%d", cfg.RetiAppID)

	return retReti, nil
}

// requireSigner is the pre-network validation for every mutating operation -
// if we can't sign for the sender there is no point building a group at all.
func (r *Reti) requireSigner(sender types.Address) error {
	if r.signer == nil || !r.signer.HasAccount(sender.String()) {
		return newValidationError("no signing keys present for account:%s", sender.String())
	}
	return nil
}

type queryOpts struct {
	sender      types.Address
	foreignApps []uint64
	boxes       []types.AppBoxReference
}

// runReadQuery issues a single read-only method call under simulate - no
// signature, no state commit.  Returns the raw ABI return value; simulate
// failures are classified (missing state becomes ErrNotFound).
func (r *Reti) runReadQuery(ctx context.Context, contract *abi.Contract, appID uint64, methodName string, args []any, opts queryOpts) (any, error) {
	params := algo.SuggestedParams(ctx, r.Logger, r.algoClient)
	method, err := contract.GetMethodByName(methodName)
	if err != nil {
		return nil, err
	}
	sender := opts.sender
	if sender == (types.Address{}) {
		sender = DummyAlgoSender
	}
	atc := transaction.AtomicTransactionComposer{}
	err = atc.AddMethodCall(transaction.AddMethodCallParams{
		AppID:           appID,
		Method:          method,
		MethodArgs:      args,
		ForeignApps:     opts.foreignApps,
		BoxReferences:   opts.boxes,
		SuggestedParams: params,
		OnComplete:      types.NoOpOC,
		Sender:          sender,
		Signer:          transaction.EmptyTransactionSigner{},
	})
	if err != nil {
		return nil, err
	}
	result, err := atc.Simulate(ctx, r.algoClient, models.SimulateRequest{
		AllowEmptySignatures:  true,
		AllowUnnamedResources: true,
	})
	if err != nil {
		return nil, err
	}
	if msg := result.SimulateResponse.TxnGroups[0].FailureMessage; msg != "" {
		return nil, simFailureToError(msg)
	}
	return result.MethodResults[0].ReturnValue, nil
}

//go:embed artifacts/contracts/ValidatorRegistry.arc32.json
//go:embed artifacts/contracts/StakingPool.arc32.json
var embeddedF embed.FS

func loadContract(fname string) (*abi.Contract, error) {
	data, err := embeddedF.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return loadContractFromArc32(data)
}

// ABIContractWrap struct is just so we can unmarshal an arc32 document into the abi.contract type
// we ignore everything else in arc32
type ABIContractWrap struct {
	Contract abi.Contract `json:"contract"`
}

func loadContractFromArc32(arc32 []byte) (*abi.Contract, error) {
	var contractWrap ABIContractWrap
	err := json.Unmarshal(arc32, &contractWrap)
	if err != nil {
		return nil, err
	}
	return &contractWrap.Contract, nil
}
