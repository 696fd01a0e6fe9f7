package video

import (
	"encoding/binary"

	"github.com/valerio/go-jeebie/jeebie/save"
)

// ChunkID implements save.Chunk.
func (g *GPU) ChunkID() save.ChunkID { return save.ChunkPPU }

// MarshalChunk captures the scanline state machine position plus the last
// fully rendered frame. LCDC/STAT/SCY/SCX/LY and friends live in the MMU's
// memory chunk, not here. The in-flight pixel fetcher/FIFO for a
// partially-drawn line is not preserved, so a state loaded mid-scanline
// redraws that one line from its start.
func (g *GPU) MarshalChunk() []byte {
	buf := make([]byte, 13+len(g.framebuffer.buffer)*4)
	buf[0] = uint8(g.mode)
	buf[1] = uint8(g.prevMode)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(g.line))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(g.dot))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(g.lcdX))
	buf[8] = uint8(g.scxDiscard)
	binary.LittleEndian.PutUint16(buf[9:11], uint16(g.windowLine))
	buf[11] = boolToByte(g.windowActive)

	offset := 13
	for _, px := range g.framebuffer.buffer {
		binary.LittleEndian.PutUint32(buf[offset:offset+4], px)
		offset += 4
	}

	return buf
}

func (g *GPU) UnmarshalChunk(data []byte) error {
	if len(data) < 13+len(g.framebuffer.buffer)*4 {
		return errShortChunk
	}

	g.mode = GpuMode(data[0])
	g.prevMode = GpuMode(data[1])
	g.line = int(binary.LittleEndian.Uint16(data[2:4]))
	g.dot = int(binary.LittleEndian.Uint16(data[4:6]))
	g.lcdX = int(binary.LittleEndian.Uint16(data[6:8]))
	g.scxDiscard = int(data[8])
	g.windowLine = int(binary.LittleEndian.Uint16(data[9:11]))
	g.windowActive = data[11] != 0

	offset := 13
	for i := range g.framebuffer.buffer {
		g.framebuffer.buffer[i] = binary.LittleEndian.Uint32(data[offset : offset+4])
		offset += 4
	}

	return nil
}

type chunkError string

func (e chunkError) Error() string { return string(e) }

const errShortChunk = chunkError("save-state chunk too short for PPU state")

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
