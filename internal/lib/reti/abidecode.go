package reti

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// tupleDecoder pulls positional fields out of an ABI return tuple with the
// arity and element types checked up front - a schema drift in the contracts
// fails with a real error instead of a panic or garbage fields.
type tupleDecoder struct {
	what string
	vals []any
	err  error
}

func newTupleDecoder(returnVal any, arity int, what string) (*tupleDecoder, error) {
	arrReturn, ok := returnVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unknown value returned from abi for %s, type:%T", what, returnVal)
	}
	if len(arrReturn) != arity {
		return nil, fmt.Errorf("should be %d elements returned in %s response, got %d", arity, what, len(arrReturn))
	}
	return &tupleDecoder{what: what, vals: arrReturn}, nil
}

func (d *tupleDecoder) setTypeErr(i int, want string) {
	if d.err == nil {
		d.err = fmt.Errorf("element %d of %s response should be %s, got %T", i, d.what, want, d.vals[i])
	}
}

func (d *tupleDecoder) uint64At(i int) uint64 {
	v, ok := d.vals[i].(uint64)
	if !ok {
		d.setTypeErr(i, "uint64")
	}
	return v
}

func (d *tupleDecoder) uint32At(i int) uint32 {
	v, ok := d.vals[i].(uint32)
	if !ok {
		d.setTypeErr(i, "uint32")
	}
	return v
}

func (d *tupleDecoder) uint16At(i int) uint16 {
	v, ok := d.vals[i].(uint16)
	if !ok {
		d.setTypeErr(i, "uint16")
	}
	return v
}

func (d *tupleDecoder) uint8At(i int) uint8 {
	v, ok := d.vals[i].(uint8)
	if !ok {
		d.setTypeErr(i, "uint8")
	}
	return v
}

func (d *tupleDecoder) boolAt(i int) bool {
	v, ok := d.vals[i].(bool)
	if !ok {
		d.setTypeErr(i, "bool")
	}
	return v
}

func (d *tupleDecoder) addressAt(i int) types.Address {
	pk, ok := d.vals[i].([]uint8)
	if !ok || len(pk) != 32 {
		d.setTypeErr(i, "address")
		return types.Address{}
	}
	var addr types.Address
	copy(addr[:], pk)
	return addr
}

func (d *tupleDecoder) addressStringAt(i int) string {
	return d.addressAt(i).String()
}

func (d *tupleDecoder) uint64SliceAt(i int) []uint64 {
	arr, ok := d.vals[i].([]any)
	if !ok {
		d.setTypeErr(i, "uint64[]")
		return nil
	}
	out := make([]uint64, 0, len(arr))
	for _, el := range arr {
		v, ok := el.(uint64)
		if !ok {
			d.setTypeErr(i, "uint64[]")
			return nil
		}
		out = append(out, v)
	}
	return out
}

// anyAt hands back the raw element for nested decoding.
func (d *tupleDecoder) anyAt(i int) any {
	return d.vals[i]
}

func (d *tupleDecoder) finish() error {
	return d.err
}
