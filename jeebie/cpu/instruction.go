package cpu

// Bus is the CPU's view of the shared address space. It is satisfied by
// *memory.MMU; the interface lives here instead of importing memory
// directly so the instruction table and its tests can run against a
// minimal fake.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
	WriteDirect(addr uint16, value uint8)
}

// InstructionTempData is the per-instruction scratch record: the opcode
// and PC it started at, a cycle counter private to the step function, and
// up to one each of u8/i8/u16 working values. Instructions resume from
// this scratch on every machine-cycle call.
type InstructionTempData struct {
	Opcode uint16
	AtPC   uint16
	Step   int
	U8     uint8
	I8     int8
	U16    uint16
}

func (t *InstructionTempData) reset(opcode uint16, atPC uint16) {
	t.Opcode = opcode
	t.AtPC = atPC
	t.Step = 0
	t.U8 = 0
	t.I8 = 0
	t.U16 = 0
}

// StepOutcome is a step function's report: either the instruction is
// Finished (decode-and-fetch of the next instruction follows), or the
// engine should wait Wait more machine cycles before invoking the step
// function again.
type StepOutcome struct {
	Done bool
	Wait int
}

func finished() StepOutcome   { return StepOutcome{Done: true} }
func wait(n int) StepOutcome  { return StepOutcome{Wait: n} }
func sameCycle() StepOutcome  { return StepOutcome{Wait: 0} }

// StepFunc implements one machine cycle's worth of work for an
// instruction. It is free to use td.Step as its own sub-state counter.
type StepFunc func(td *InstructionTempData, r *Registers, bus Bus) StepOutcome

// Instruction is a constant instruction-table entry: mnemonic, encoded
// length, nominal machine-cycle duration, and the step function. Only
// Step is touched at runtime; the rest is bookkeeping for disassembly and
// sanity-checking the table.
type Instruction struct {
	Mnemonic string
	Length   uint8
	Cycles   uint8
	Step     StepFunc
}

// Synthetic opcodes outside the 0x00-0xFF / CB 0x00-0xFF ranges. The CB
// half is offset by cbOffset in the flat table.
const (
	cbOffset       = 0x100
	opcodeITR      = 0x200 // interrupt-dispatch pseudo-instruction
	opcodePseudoNOP = 0x201 // inserted on Halt/Stop wake-up

	instructionSetSize = 0x202

	opcodeCB   = 0xCB
	opcodeEI   = 0xFB
	opcodeHALT = 0x76
	opcodeSTOP = 0x10
	opcodeNOP  = 0x00

	interruptDispatchCycles = 5
)
