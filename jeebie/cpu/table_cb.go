package cpu

// decodeCB builds a CB-prefixed instruction. This half of the table is
// fully regular: x selects the operation class, y is either a rotate
// variant or a bit index, z selects the r8 operand (including (HL)).
func decodeCB(op uint8) Instruction {
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7
	operand := r8[z]

	cycles := uint8(2)
	if operand == regHLInd {
		cycles = 4
	}

	switch x {
	case 0:
		return Instruction{"CB rot/shift", 2, cycles, lastCycleOnly(cycles, func(td *InstructionTempData, r *Registers, bus Bus) {
			v := read8(operand, r, bus)
			var res uint8
			var c bool
			switch y {
			case 0:
				res, c = rlc(v)
			case 1:
				res, c = rrc(v)
			case 2:
				res, c = rl(v, r.HasFlag(FlagC))
			case 3:
				res, c = rr(v, r.HasFlag(FlagC))
			case 4:
				res, c = sla(v)
			case 5:
				res, c = sra(v)
			case 6:
				res, c = swap(v), false
			default:
				res, c = srl(v)
			}
			write8(operand, res, r, bus)
			r.F = packFlags(res == 0, false, false, c)
		})}
	case 1:
		bitCycles := uint8(2)
		if operand == regHLInd {
			bitCycles = 3
		}
		return Instruction{"BIT n,r", 2, bitCycles, lastCycleOnly(bitCycles, func(td *InstructionTempData, r *Registers, bus Bus) {
			v := read8(operand, r, bus)
			set := v&(1<<y) != 0
			r.SetFlag(FlagZ, !set)
			r.SetFlag(FlagN, false)
			r.SetFlag(FlagH, true)
		})}
	case 2:
		return Instruction{"RES n,r", 2, cycles, lastCycleOnly(cycles, func(td *InstructionTempData, r *Registers, bus Bus) {
			v := read8(operand, r, bus)
			write8(operand, v&^(1<<y), r, bus)
		})}
	default: // x == 3
		return Instruction{"SET n,r", 2, cycles, lastCycleOnly(cycles, func(td *InstructionTempData, r *Registers, bus Bus) {
			v := read8(operand, r, bus)
			write8(operand, v|(1<<y), r, bus)
		})}
	}
}
