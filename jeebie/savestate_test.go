package jeebie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStateLoadStateRoundTrip(t *testing.T) {
	dmg := New()

	for i := 0; i < 200; i++ {
		dmg.stepMachineCycle()
	}

	buf := dmg.SaveState()
	require.NotEmpty(t, buf)

	wantRegs := dmg.GetCPU().Regs
	wantFrame := append([]uint32(nil), dmg.GetCurrentFrame().ToSlice()...)

	for i := 0; i < 500; i++ {
		dmg.stepMachineCycle()
	}
	assert.NotEqual(t, wantRegs.PC, dmg.GetCPU().Regs.PC, "PC should have advanced past the saved state")

	err := dmg.LoadState(buf)
	require.NoError(t, err)

	assert.Equal(t, wantRegs, dmg.GetCPU().Regs)
	assert.Equal(t, wantFrame, dmg.GetCurrentFrame().ToSlice())
}

func TestLoadStateRejectsForeignROM(t *testing.T) {
	a := New()
	b := New()

	buf := a.SaveState()

	// Corrupt the header's ROMChecksum field (offset 35: 27-byte name field
	// plus MagicToken and Version, each a uint32) to simulate a state file
	// saved against a different ROM.
	buf[35] ^= 0xFF

	err := b.LoadState(buf)
	assert.Error(t, err)
}
