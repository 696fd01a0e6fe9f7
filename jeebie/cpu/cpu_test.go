package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valerio/go-jeebie/jeebie/addr"
)

// fakeBus is a flat 64KB RAM backing the Bus interface, enough to drive
// the instruction engine without a real MMU.
type fakeBus struct {
	mem [0x10000]uint8
}

func (b *fakeBus) Read(address uint16) uint8             { return b.mem[address] }
func (b *fakeBus) Write(address uint16, value uint8)      { b.mem[address] = value }
func (b *fakeBus) WriteDirect(address uint16, value uint8) { b.mem[address] = value }

// stepInstruction runs Step until the CPU has fetched a new instruction,
// i.e. until the one that was current when it was called has finished.
func stepInstruction(c *CPU, bus Bus) {
	start := c.current
	for {
		c.Step(bus)
		if c.current != start {
			return
		}
	}
}

func TestRegisters_PairsAndFlags(t *testing.T) {
	var r Registers
	r.SetBC(0x1234)
	assert.Equal(t, uint16(0x1234), r.BC())
	assert.Equal(t, uint8(0x12), r.B)
	assert.Equal(t, uint8(0x34), r.C)

	r.SetHL(0xABCD)
	assert.Equal(t, uint16(0xABCD), r.HL())

	r.A = 0xFF
	r.SetAF(0x1234)
	assert.Equal(t, uint8(0x12), r.A)
	assert.Equal(t, uint8(0x30), r.F, "AF write must mask F's low nibble to zero")

	r.SetFlags(true, false, true, false)
	assert.True(t, r.HasFlag(FlagZ))
	assert.False(t, r.HasFlag(FlagN))
	assert.True(t, r.HasFlag(FlagH))
	assert.False(t, r.HasFlag(FlagC))
}

func TestCPU_New_PostBootState(t *testing.T) {
	c := New()
	assert.Equal(t, uint16(0x0100), c.Regs.PC)
	assert.Equal(t, uint16(0xFFFE), c.Regs.SP)
	assert.Equal(t, Running, c.Lifecycle)
}

func TestCPU_Step_LDBImmAndINC(t *testing.T) {
	bus := &fakeBus{}
	// LD B,0x05 ; INC B
	bus.mem[0x0100] = 0x06
	bus.mem[0x0101] = 0x05
	bus.mem[0x0102] = 0x04

	c := New()
	stepInstruction(c, bus) // dummy boot instruction finishes, selects LD B,n
	stepInstruction(c, bus) // executes LD B,n, selects INC B
	assert.Equal(t, uint8(0x05), c.Regs.B)

	stepInstruction(c, bus) // executes INC B
	assert.Equal(t, uint8(0x06), c.Regs.B)
}

func TestCPU_Halt_WakesOnPendingInterrupt(t *testing.T) {
	bus := &fakeBus{}
	bus.mem[0x0100] = 0x76 // HALT

	c := New()
	c.Regs.IME = true
	stepInstruction(c, bus) // dummy boot instruction finishes, selects HALT
	stepInstruction(c, bus) // executes HALT
	assert.Equal(t, Halt, c.Lifecycle)

	bus.Write(addr.IE, addr.JoypadInterrupt)
	bus.Write(addr.IF, addr.JoypadInterrupt)

	c.Step(bus)
	assert.Equal(t, Running, c.Lifecycle)
}

func TestCPU_InterruptDispatch_PushesReturnAddress(t *testing.T) {
	bus := &fakeBus{}
	bus.mem[0x0100] = 0x00 // NOP

	c := New()
	c.Regs.IME = true
	c.Regs.SP = 0xFFFE
	bus.Write(addr.IE, addr.JoypadInterrupt)
	bus.Write(addr.IF, addr.JoypadInterrupt)

	stepInstruction(c, bus) // NOP, then dispatch becomes current
	assert.Equal(t, uint16(0x200), c.scratch.Opcode, "ITR pseudo-instruction should be selected")
	assert.False(t, c.Regs.IME, "dispatch must clear IME before running the handler")

	stepInstruction(c, bus)
	assert.Equal(t, uint16(0x0060), c.scratch.AtPC, "dispatch should land on the joypad interrupt vector")

	returnAddr := uint16(bus.Read(c.Regs.SP)) | uint16(bus.Read(c.Regs.SP+1))<<8
	assert.Equal(t, uint16(0x0101), returnAddr)
}
