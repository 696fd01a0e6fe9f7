package cpu

import "github.com/valerio/go-jeebie/jeebie/addr"

// read8/write8 resolve a reg8 operand, including the (HL) indirect slot.
func read8(idx reg8, r *Registers, bus Bus) uint8 {
	if idx == regHLInd {
		return bus.Read(r.HL())
	}
	return r.get8(idx)
}

func write8(idx reg8, v uint8, r *Registers, bus Bus) {
	if idx == regHLInd {
		bus.Write(r.HL(), v)
		return
	}
	r.set8(idx, v)
}

// lastCycleOnly builds a step function that idles for total-1 calls and
// performs all of its register/bus work on the final call, then reports
// Finished. This keeps the overall machine-cycle count faithful to the
// instruction table's nominal duration without hand-splitting every
// addressing mode's bus phases. The interrupt-dispatch pseudo-instruction is
// built with it as well; OAM DMA is the path that runs phase by phase, in
// the MMU's DMA state machine.
func lastCycleOnly(total uint8, work func(td *InstructionTempData, r *Registers, bus Bus)) StepFunc {
	return func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
		if td.Step < int(total)-1 {
			td.Step++
			return wait(0)
		}
		work(td, r, bus)
		return finished()
	}
}

func push16(r *Registers, bus Bus, v uint16) {
	r.SP--
	bus.Write(r.SP, uint8(v>>8))
	r.SP--
	bus.Write(r.SP, uint8(v))
}

func pop16(r *Registers, bus Bus) uint16 {
	low := bus.Read(r.SP)
	r.SP++
	high := bus.Read(r.SP)
	r.SP++
	return uint16(high)<<8 | uint16(low)
}

func fetch8(r *Registers, bus Bus) uint8 {
	v := bus.Read(r.PC)
	r.PC++
	return v
}

func fetch16(r *Registers, bus Bus) uint16 {
	low := fetch8(r, bus)
	high := fetch8(r, bus)
	return uint16(high)<<8 | uint16(low)
}

// --- LD r,r' / HALT ---

func ldRR(dst, src reg8) Instruction {
	cycles := uint8(1)
	if dst == regHLInd || src == regHLInd {
		cycles = 2
	}
	return Instruction{"LD r,r'", 1, cycles, lastCycleOnly(cycles, func(td *InstructionTempData, r *Registers, bus Bus) {
		write8(dst, read8(src, r, bus), r, bus)
	})}
}

// stepHALT itself only ends the instruction; the lifecycle transition
// (Halt vs. the HALT-bug double-fetch) is resolved by the engine in
// executeInstruction, which has access to IME/pending-interrupt state at
// the point the instruction finishes.
func stepHALT(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return finished()
}

// --- 8-bit ALU ---

func aluOp(y uint8, src reg8) Instruction {
	return Instruction{"ALU A,r", 1, 1, lastCycleOnly(1, func(td *InstructionTempData, r *Registers, bus Bus) {
		applyALU(y, read8(src, r, bus), r)
	})}
}

func aluOpImm(y uint8) Instruction {
	return Instruction{"ALU A,n", 2, 2, lastCycleOnly(2, func(td *InstructionTempData, r *Registers, bus Bus) {
		applyALU(y, fetch8(r, bus), r)
	})}
}

func applyALU(y uint8, operand uint8, r *Registers) {
	switch y {
	case 0:
		res, f := add8(r.A, operand)
		r.A, r.F = res, f
	case 1:
		res, f := adc8(r.A, operand, r.HasFlag(FlagC))
		r.A, r.F = res, f
	case 2:
		res, f := sub8(r.A, operand)
		r.A, r.F = res, f
	case 3:
		res, f := sbc8(r.A, operand, r.HasFlag(FlagC))
		r.A, r.F = res, f
	case 4:
		res, f := and8(r.A, operand)
		r.A, r.F = res, f
	case 5:
		res, f := xor8(r.A, operand)
		r.A, r.F = res, f
	case 6:
		res, f := or8(r.A, operand)
		r.A, r.F = res, f
	case 7:
		_, f := sub8(r.A, operand) // CP: discard result, keep flags
		r.F = f
	}
}

// --- INC/DEC r ---

func incR(idx reg8) Instruction {
	cycles := uint8(1)
	if idx == regHLInd {
		cycles = 3
	}
	return Instruction{"INC r", 1, cycles, lastCycleOnly(cycles, func(td *InstructionTempData, r *Registers, bus Bus) {
		v := read8(idx, r, bus)
		res, f := inc8(v)
		f |= r.F & FlagC
		write8(idx, res, r, bus)
		r.F = f
	})}
}

func decR(idx reg8) Instruction {
	cycles := uint8(1)
	if idx == regHLInd {
		cycles = 3
	}
	return Instruction{"DEC r", 1, cycles, lastCycleOnly(cycles, func(td *InstructionTempData, r *Registers, bus Bus) {
		v := read8(idx, r, bus)
		res, f := dec8(v)
		f |= r.F & FlagC
		write8(idx, res, r, bus)
		r.F = f
	})}
}

func ldRImm(idx reg8) Instruction {
	cycles := uint8(2)
	if idx == regHLInd {
		cycles = 3
	}
	return Instruction{"LD r,n", 2, cycles, lastCycleOnly(cycles, func(td *InstructionTempData, r *Registers, bus Bus) {
		write8(idx, fetch8(r, bus), r, bus)
	})}
}

// --- 16-bit register ops ---

func stepLDrpNN(pair reg16) StepFunc {
	return lastCycleOnly(3, func(td *InstructionTempData, r *Registers, bus Bus) {
		r.set16(pair, fetch16(r, bus))
	})
}

func stepADDHLrp(pair reg16) StepFunc {
	return lastCycleOnly(2, func(td *InstructionTempData, r *Registers, bus Bus) {
		res, hc := addHL16(r.HL(), r.get16(pair))
		r.SetHL(res)
		r.F = (r.F & FlagZ) | hc
	})
}

func stepINCrp(pair reg16) StepFunc {
	return lastCycleOnly(2, func(td *InstructionTempData, r *Registers, bus Bus) {
		r.set16(pair, r.get16(pair)+1)
	})
}

func stepDECrp(pair reg16) StepFunc {
	return lastCycleOnly(2, func(td *InstructionTempData, r *Registers, bus Bus) {
		r.set16(pair, r.get16(pair)-1)
	})
}

func stepLDnnSP(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(5, func(td *InstructionTempData, r *Registers, bus Bus) {
		addrNN := fetch16(r, bus)
		bus.Write(addrNN, uint8(r.SP))
		bus.Write(addrNN+1, uint8(r.SP>>8))
	})(td, r, bus)
}

func stepSTOP(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	r.PC++ // STOP is formally followed by an ignored padding byte
	return finished()
}

// --- Rotates on A (always clear Z) ---

func stepRLCA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	res, c := rlc(r.A)
	r.A = res
	r.F = packFlags(false, false, false, c)
	return finished()
}

func stepRRCA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	res, c := rrc(r.A)
	r.A = res
	r.F = packFlags(false, false, false, c)
	return finished()
}

func stepRLA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	res, c := rl(r.A, r.HasFlag(FlagC))
	r.A = res
	r.F = packFlags(false, false, false, c)
	return finished()
}

func stepRRA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	res, c := rr(r.A, r.HasFlag(FlagC))
	r.A = res
	r.F = packFlags(false, false, false, c)
	return finished()
}

func stepDAA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	res, c := daa(r.A, r.HasFlag(FlagN), r.HasFlag(FlagH), r.HasFlag(FlagC))
	r.A = res
	r.SetFlag(FlagZ, res == 0)
	r.SetFlag(FlagH, false)
	r.SetFlag(FlagC, c)
	return finished()
}

func stepCPL(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	r.A = ^r.A
	r.SetFlag(FlagN, true)
	r.SetFlag(FlagH, true)
	return finished()
}

func stepSCF(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	r.SetFlag(FlagN, false)
	r.SetFlag(FlagH, false)
	r.SetFlag(FlagC, true)
	return finished()
}

func stepCCF(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	r.SetFlag(FlagN, false)
	r.SetFlag(FlagH, false)
	r.SetFlag(FlagC, !r.HasFlag(FlagC))
	return finished()
}

func stepDI(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	r.IME = false
	return finished()
}

func stepEI(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	r.IME = true
	return finished()
}

// --- Jumps, calls, returns ---

func stepJR(cc *cond) StepFunc {
	return func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
		if td.Step == 0 {
			td.I8 = int8(fetch8(r, bus))
			taken := cc == nil || r.checkCond(*cc)
			if !taken {
				return finished()
			}
			td.Step++
			return wait(0)
		}
		r.PC = uint16(int32(r.PC) + int32(td.I8))
		return finished()
	}
}

func stepJPcc(cc *cond) StepFunc {
	return func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
		if td.Step == 0 {
			td.U16 = fetch16(r, bus)
			td.Step++
			taken := cc == nil || r.checkCond(*cc)
			if !taken {
				return finished()
			}
			return wait(0)
		}
		r.PC = td.U16
		return finished()
	}
}

func stepJPHL(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	r.PC = r.HL()
	return finished()
}

func stepLDSPHL(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(2, func(td *InstructionTempData, r *Registers, bus Bus) {
		r.SP = r.HL()
	})(td, r, bus)
}

func stepCALLcc(cc *cond) StepFunc {
	return func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
		if td.Step == 0 {
			td.U16 = fetch16(r, bus)
			taken := cc == nil || r.checkCond(*cc)
			if !taken {
				return finished()
			}
			td.Step++
			return wait(2) // two idle cycles before the push begins
		}
		push16(r, bus, r.PC)
		r.PC = td.U16
		return finished()
	}
}

func stepRETcc(cc cond) StepFunc {
	return func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
		if td.Step == 0 {
			td.Step++
			if !r.checkCond(cc) {
				return finished()
			}
			return wait(0)
		}
		if td.Step == 1 {
			td.U16 = pop16(r, bus)
			td.Step++
			return wait(0)
		}
		r.PC = td.U16
		return finished()
	}
}

func stepRET(enableIME bool) StepFunc {
	return func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
		if td.Step < 2 {
			td.Step++
			return wait(0)
		}
		r.PC = pop16(r, bus)
		if enableIME {
			r.IME = true
		}
		return finished()
	}
}

func stepRST(vector uint16) StepFunc {
	return lastCycleOnly(4, func(td *InstructionTempData, r *Registers, bus Bus) {
		push16(r, bus, r.PC)
		r.PC = vector
	})
}

// --- PUSH/POP ---

func stepPUSH(pair reg16Stack) StepFunc {
	return lastCycleOnly(4, func(td *InstructionTempData, r *Registers, bus Bus) {
		push16(r, bus, r.get16Stack(pair))
	})
}

func stepPOP(pair reg16Stack) StepFunc {
	return lastCycleOnly(3, func(td *InstructionTempData, r *Registers, bus Bus) {
		r.set16Stack(pair, pop16(r, bus))
	})
}

// --- Indirect/absolute LD forms ---

func stepLDHnA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(3, func(td *InstructionTempData, r *Registers, bus Bus) {
		n := fetch8(r, bus)
		bus.Write(0xFF00+uint16(n), r.A)
	})(td, r, bus)
}

func stepLDHAn(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(3, func(td *InstructionTempData, r *Registers, bus Bus) {
		n := fetch8(r, bus)
		r.A = bus.Read(0xFF00 + uint16(n))
	})(td, r, bus)
}

func stepLDCIndA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(2, func(td *InstructionTempData, r *Registers, bus Bus) {
		bus.Write(0xFF00+uint16(r.C), r.A)
	})(td, r, bus)
}

func stepLDACInd(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(2, func(td *InstructionTempData, r *Registers, bus Bus) {
		r.A = bus.Read(0xFF00 + uint16(r.C))
	})(td, r, bus)
}

func stepLDnnA(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(4, func(td *InstructionTempData, r *Registers, bus Bus) {
		bus.Write(fetch16(r, bus), r.A)
	})(td, r, bus)
}

func stepLDAnn(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(4, func(td *InstructionTempData, r *Registers, bus Bus) {
		r.A = bus.Read(fetch16(r, bus))
	})(td, r, bus)
}

func stepADDSPe(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(4, func(td *InstructionTempData, r *Registers, bus Bus) {
		e := int8(fetch8(r, bus))
		h, c := spFlagsForOffset(r.SP, e)
		r.SP = uint16(int32(r.SP) + int32(e))
		r.F = packFlags(false, false, h, c)
	})(td, r, bus)
}

func stepLDHLSPe(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(3, func(td *InstructionTempData, r *Registers, bus Bus) {
		e := int8(fetch8(r, bus))
		h, c := spFlagsForOffset(r.SP, e)
		r.SetHL(uint16(int32(r.SP) + int32(e)))
		r.F = packFlags(false, false, h, c)
	})(td, r, bus)
}

// --- Synthetic interrupt dispatch ---

func stepInterruptDispatch(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return lastCycleOnly(interruptDispatchCycles, func(td *InstructionTempData, r *Registers, bus Bus) {
		push16(r, bus, r.PC)

		ie := bus.Read(addr.IE)
		iflag := bus.Read(addr.IF)
		pending := ie & iflag & 0x1F

		index := firstSetBit(pending)
		if index < 0 {
			return
		}

		bus.WriteDirect(addr.IF, iflag&^(1<<uint(index)))
		vectors := [5]uint16{0x40, 0x48, 0x50, 0x58, 0x60}
		r.PC = vectors[index]
	})(td, r, bus)
}

func firstSetBit(v uint8) int {
	for i := 0; i < 8; i++ {
		if v&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}
