package reti

import (
	"bytes"
	"encoding/binary"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

const (
	MaxNodes        = 8
	MaxPoolsPerNode = 3
	MaxPools        = MaxNodes * MaxPoolsPerNode
)

const (
	// Global state keys in Validator registry contract
	VldtrNumValidators = "numV"
	VldtrPoolTmplID    = "poolTemplateAppID"
)

// AppBudgetPerCall is the opcode budget each application call contributes to the
// group's pooled budget - the unit the fee estimator rounds consumed budget up to.
const AppBudgetPerCall = 700

// Algorand address to use as sender for read-only simulate calls (not signed but still has to be valid address)
var DummyAlgoSender, _ = types.DecodeAddress("DUMMYE34NWB6LZ6QGVLHE6N43M6TN65VRBI4LSITTEIHCF4ILVMRCB42ZE")

func GetValidatorListBoxName(id uint64) []byte {
	prefix := []byte("v")
	ibytes := make([]byte, 8)
	binary.BigEndian.PutUint64(ibytes, id)
	return bytes.Join([][]byte{prefix, ibytes[:]}, nil)
}

func GetStakerPoolSetBoxName(stakerAccount types.Address) []byte {
	return bytes.Join([][]byte{[]byte("sps"), stakerAccount[:]}, nil)
}

func GetStakerLedgerBoxName() []byte {
	return []byte("stakers")
}
