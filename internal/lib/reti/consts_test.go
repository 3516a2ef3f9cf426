package reti

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoxNames(t *testing.T) {
	assert.Equal(t, []byte{'v', 0, 0, 0, 0, 0, 0, 0, 1}, GetValidatorListBoxName(1))
	assert.Equal(t, []byte{'v', 0, 0, 0, 0, 0, 0, 1, 0}, GetValidatorListBoxName(256))

	spsName := GetStakerPoolSetBoxName(DummyAlgoSender)
	assert.Len(t, spsName, 3+32)
	assert.Equal(t, []byte("sps"), spsName[:3])
	assert.Equal(t, DummyAlgoSender[:], spsName[3:])

	assert.Equal(t, []byte("stakers"), GetStakerLedgerBoxName())
}

func TestDummyAlgoSenderIsValid(t *testing.T) {
	assert.False(t, DummyAlgoSender.IsZero())
}
