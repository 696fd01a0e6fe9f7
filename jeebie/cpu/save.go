package cpu

import (
	"encoding/binary"

	"github.com/valerio/go-jeebie/jeebie/save"
)

// ChunkID implements save.Chunk.
func (c *CPU) ChunkID() save.ChunkID { return save.ChunkCPU }

// MarshalChunk captures the register file and run mode. Mid-instruction
// scratch state is not preserved, so a restored CPU always resumes at the
// next instruction boundary rather than mid-fetch.
func (c *CPU) MarshalChunk() []byte {
	buf := make([]byte, 16)
	buf[0] = c.Regs.A
	buf[1] = c.Regs.F
	buf[2] = c.Regs.B
	buf[3] = c.Regs.C
	buf[4] = c.Regs.D
	buf[5] = c.Regs.E
	buf[6] = c.Regs.H
	buf[7] = c.Regs.L
	binary.LittleEndian.PutUint16(buf[8:10], c.Regs.SP)
	binary.LittleEndian.PutUint16(buf[10:12], c.Regs.PC)
	buf[12] = boolToByte(c.Regs.IME)
	buf[13] = uint8(c.Lifecycle)
	buf[14] = boolToByte(c.interruptHandlingEnabled)
	buf[15] = boolToByte(c.haltBugArmed)
	return buf
}

func (c *CPU) UnmarshalChunk(data []byte) error {
	if len(data) < 16 {
		return errShortChunk
	}
	c.Regs.A = data[0]
	c.Regs.F = data[1]
	c.Regs.B = data[2]
	c.Regs.C = data[3]
	c.Regs.D = data[4]
	c.Regs.E = data[5]
	c.Regs.H = data[6]
	c.Regs.L = data[7]
	c.Regs.SP = binary.LittleEndian.Uint16(data[8:10])
	c.Regs.PC = binary.LittleEndian.Uint16(data[10:12])
	c.Regs.IME = data[12] != 0
	c.Lifecycle = Lifecycle(data[13])
	c.interruptHandlingEnabled = data[14] != 0
	c.haltBugArmed = data[15] != 0
	c.current = &c.table[opcodeNOP]
	c.cycle = 0
	c.delay = 0
	return nil
}

type chunkError string

func (e chunkError) Error() string { return string(e) }

const errShortChunk = chunkError("save-state chunk too short for CPU state")

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
