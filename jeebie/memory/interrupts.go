package memory

import "github.com/valerio/go-jeebie/jeebie/addr"

// InterruptController is a pure collection of helpers over the IE
// (0xFFFF) and IF (0xFF0F) registers, grounded directly on the original
// engine's Interrupts.cpp: Request ORs in the type's bit, Clear ANDs it
// out, and JumpAddrAndClear finds the lowest set bit of (IE & IF & 0x1F)
// and returns the matching vector while clearing that bit in IF.
type InterruptController struct {
	bus interruptBus
}

// interruptBus is the minimal surface InterruptController needs; MMU
// satisfies it directly.
type interruptBus interface {
	Read(address uint16) byte
	WriteDirect(address uint16, value byte)
}

var jumpAddresses = [5]uint16{0x0040, 0x0048, 0x0050, 0x0058, 0x0060}

func newInterruptController(bus interruptBus) *InterruptController {
	return &InterruptController{bus: bus}
}

// Request ORs the given interrupt's bit into IF.
func (ic *InterruptController) Request(interrupt addr.Interrupt) {
	iflag := ic.bus.Read(addr.IF)
	ic.bus.WriteDirect(addr.IF, iflag|uint8(interrupt))
}

// Clear ANDs the given interrupt's bit out of IF.
func (ic *InterruptController) Clear(interrupt addr.Interrupt) {
	iflag := ic.bus.Read(addr.IF)
	ic.bus.WriteDirect(addr.IF, iflag&^uint8(interrupt))
}

// Pending reports whether any interrupt is both enabled (IE) and
// requested (IF), masked to the five real interrupt bits.
func (ic *InterruptController) Pending() uint8 {
	ie := ic.bus.Read(addr.IE)
	iflag := ic.bus.Read(addr.IF)
	return ie & iflag & 0x1F
}

// JumpAddrAndClear resolves the highest-priority (lowest bit index)
// pending interrupt, clears its IF bit, and returns its jump vector. It
// returns (0, false) if nothing is pending.
func (ic *InterruptController) JumpAddrAndClear() (uint16, bool) {
	pending := ic.Pending()
	index := firstSetBitIndex(pending)
	if index < 0 {
		return 0, false
	}

	iflag := ic.bus.Read(addr.IF)
	ic.bus.WriteDirect(addr.IF, iflag&^(1<<uint(index)))
	return jumpAddresses[index], true
}

func firstSetBitIndex(v uint8) int {
	for i := 0; i < 8; i++ {
		if v&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}
