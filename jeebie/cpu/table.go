package cpu

// buildTable populates the 512+2 entry instruction table at init time from
// the opcode's (x,y,z,p,q) bit decomposition, rather than 500+ hand-written
// named functions: x = opcode>>6, y = (opcode>>3)&7, z = opcode&7,
// p = y>>1, q = y&1. This is the standard Z80/LR35902 decoding shape and
// covers all 256 base opcodes plus the 256 CB-prefixed opcodes with a
// handful of generator functions.
func buildTable(t *[instructionSetSize]Instruction) {
	for op := 0; op < 256; op++ {
		t[op] = decodeBase(uint8(op))
	}
	for op := 0; op < 256; op++ {
		t[cbOffset+op] = decodeCB(uint8(op))
	}
	t[opcodeITR] = Instruction{Mnemonic: "ITR", Length: 0, Cycles: interruptDispatchCycles, Step: stepInterruptDispatch}
	t[opcodePseudoNOP] = Instruction{Mnemonic: "WAKE", Length: 0, Cycles: 1, Step: stepNOP}
}

var rp = [4]reg16{pairBC, pairDE, pairHL, pairSP}
var rp2 = [4]reg16Stack{stackBC, stackDE, stackHL, stackAF}
var ccTable = [4]cond{condNZ, condZ, condNC, condC}
var r8 = [8]reg8{regB, regC, regD, regE, regH, regL, regHLInd, regA}

func decodeBase(op uint8) Instruction {
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7
	p := y >> 1
	q := y & 1

	switch x {
	case 0:
		return decodeX0(y, z, p, q)
	case 1:
		if y == 6 && z == 6 {
			return Instruction{Mnemonic: "HALT", Length: 1, Cycles: 1, Step: stepHALT}
		}
		return ldRR(r8[y], r8[z])
	case 2:
		return aluOp(y, r8[z])
	default: // x == 3
		return decodeX3(y, z, p, q)
	}
}

func unimplemented(op uint8) Instruction {
	return Instruction{Mnemonic: "???", Length: 1, Cycles: 1, Step: stepUnmapped}
}

func stepUnmapped(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return finished()
}

func stepNOP(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
	return finished()
}

// --- x=0 block: the irregular one. ---

func decodeX0(y, z, p, q uint8) Instruction {
	switch z {
	case 0:
		switch y {
		case 0:
			return Instruction{"NOP", 1, 1, stepNOP}
		case 1:
			return Instruction{"LD (nn),SP", 3, 5, stepLDnnSP}
		case 2:
			return Instruction{"STOP", 2, 1, stepSTOP}
		case 3:
			return Instruction{"JR e", 2, 3, stepJR(nil)}
		default:
			cc := ccTable[y-4]
			return Instruction{"JR cc,e", 2, 2, stepJR(&cc)}
		}
	case 1:
		if q == 0 {
			return Instruction{"LD rp,nn", 3, 3, stepLDrpNN(rp[p])}
		}
		return Instruction{"ADD HL,rp", 1, 2, stepADDHLrp(rp[p])}
	case 2:
		return stepIndirectAcc(p, q)
	case 3:
		if q == 0 {
			return Instruction{"INC rp", 1, 2, stepINCrp(rp[p])}
		}
		return Instruction{"DEC rp", 1, 2, stepDECrp(rp[p])}
	case 4:
		return incR(r8[y])
	case 5:
		return decR(r8[y])
	case 6:
		return ldRImm(r8[y])
	default: // z == 7
		switch y {
		case 0:
			return Instruction{"RLCA", 1, 1, stepRLCA}
		case 1:
			return Instruction{"RRCA", 1, 1, stepRRCA}
		case 2:
			return Instruction{"RLA", 1, 1, stepRLA}
		case 3:
			return Instruction{"RRA", 1, 1, stepRRA}
		case 4:
			return Instruction{"DAA", 1, 1, stepDAA}
		case 5:
			return Instruction{"CPL", 1, 1, stepCPL}
		case 6:
			return Instruction{"SCF", 1, 1, stepSCF}
		default:
			return Instruction{"CCF", 1, 1, stepCCF}
		}
	}
}

func stepIndirectAcc(p, q uint8) Instruction {
	mnemonic := "LD (rr),A/LD A,(rr)"
	return Instruction{mnemonic, 1, 2, func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome {
		if td.Step == 0 {
			var address uint16
			switch p {
			case 0:
				address = r.BC()
			case 1:
				address = r.DE()
			case 2:
				address = r.HL()
			case 3:
				address = r.HL()
			}
			if q == 0 {
				bus.Write(address, r.A)
			} else {
				r.A = bus.Read(address)
			}
			if p == 2 {
				r.SetHL(r.HL() + 1)
			} else if p == 3 {
				r.SetHL(r.HL() - 1)
			}
			td.Step++
			return wait(0)
		}
		return finished()
	}}
}

// --- x=3 block: calls, jumps, stack, misc. ---

func decodeX3(y, z, p, q uint8) Instruction {
	switch z {
	case 0:
		switch {
		case y <= 3:
			cc := ccTable[y]
			return Instruction{"RET cc", 1, 2, stepRETcc(cc)}
		case y == 4:
			return Instruction{"LDH (n),A", 2, 3, stepLDHnA}
		case y == 5:
			return Instruction{"ADD SP,e", 2, 4, stepADDSPe}
		case y == 6:
			return Instruction{"LDH A,(n)", 2, 3, stepLDHAn}
		default:
			return Instruction{"LD HL,SP+e", 2, 3, stepLDHLSPe}
		}
	case 1:
		if q == 0 {
			return Instruction{"POP rp2", 1, 3, stepPOP(rp2[p])}
		}
		switch p {
		case 0:
			return Instruction{"RET", 1, 4, stepRET(false)}
		case 1:
			return Instruction{"RETI", 1, 4, stepRET(true)}
		case 2:
			return Instruction{"JP HL", 1, 1, stepJPHL}
		default:
			return Instruction{"LD SP,HL", 1, 2, stepLDSPHL}
		}
	case 2:
		switch {
		case y <= 3:
			cc := ccTable[y]
			return Instruction{"JP cc,nn", 3, 3, stepJPcc(&cc)}
		case y == 4:
			return Instruction{"LD (0xFF00+C),A", 1, 2, stepLDCIndA}
		case y == 5:
			return Instruction{"LD (nn),A", 3, 4, stepLDnnA}
		case y == 6:
			return Instruction{"LD A,(0xFF00+C)", 1, 2, stepLDACInd}
		default:
			return Instruction{"LD A,(nn)", 3, 4, stepLDAnn}
		}
	case 3:
		switch y {
		case 0:
			return Instruction{"JP nn", 3, 4, stepJPcc(nil)}
		case 1:
			return unimplemented(0xCB) // decode special-cases 0xCB before the table is consulted
		case 6:
			return Instruction{"DI", 1, 1, stepDI}
		case 7:
			return Instruction{"EI", 1, 1, stepEI}
		default:
			return unimplemented(0xD3)
		}
	case 4:
		if y <= 3 {
			cc := ccTable[y]
			return Instruction{"CALL cc,nn", 3, 3, stepCALLcc(&cc)}
		}
		return unimplemented(0xD4)
	case 5:
		if q == 0 {
			return Instruction{"PUSH rp2", 1, 4, stepPUSH(rp2[p])}
		}
		if p == 0 {
			return Instruction{"CALL nn", 3, 6, stepCALLcc(nil)}
		}
		return unimplemented(0xDD)
	case 6:
		return aluOpImm(y)
	default: // z == 7
		return Instruction{"RST", 1, 4, stepRST(uint16(y) * 8)}
	}
}
