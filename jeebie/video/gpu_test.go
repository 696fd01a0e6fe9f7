package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

func newTestGPU(t *testing.T) (*GPU, *memory.MMU) {
	t.Helper()
	mmu := memory.New()
	mmu.Write(addr.LCDC, 0x91) // LCD on, BG on, tile data 0x8000, tile map 0x9800
	mmu.Write(addr.BGP, 0xE4)
	gpu := NewGpu(mmu)
	return gpu, mmu
}

func TestGPUModeSequencePerLine(t *testing.T) {
	gpu, mmu := newTestGPU(t)
	gpu.mode = oamScanMode
	gpu.line = 0
	gpu.dot = 0
	mmu.Write(addr.LY, 0)

	assert.Equal(t, oamScanMode, gpu.mode)

	gpu.Tick(oamScanDots)
	assert.Equal(t, drawingMode, gpu.mode, "OAM scan should last exactly 80 dots")

	for gpu.mode == drawingMode {
		gpu.Tick(1)
	}
	assert.Equal(t, hblankMode, gpu.mode)

	for gpu.mode == hblankMode {
		gpu.Tick(1)
	}
	assert.Equal(t, oamScanMode, gpu.mode)
	assert.Equal(t, 1, gpu.line)
}

func TestGPUEntersVBlankAfterVisibleLines(t *testing.T) {
	gpu, mmu := newTestGPU(t)
	gpu.mode = oamScanMode
	gpu.line = 0
	gpu.dot = 0

	for gpu.line < visibleLines {
		gpu.Tick(1)
	}

	assert.Equal(t, vblankMode, gpu.mode)
	assert.Equal(t, uint8(visibleLines), mmu.Read(addr.LY))
}

func TestGPURendersSolidBackgroundTile(t *testing.T) {
	gpu, mmu := newTestGPU(t)

	// tile 0 at 0x8000: every row set to color index 3 (both bitplanes 0xFF)
	for row := uint16(0); row < 8; row++ {
		mmu.Write(addr.TileData0+row*2, 0xFF)
		mmu.Write(addr.TileData0+row*2+1, 0xFF)
	}
	// tile map entry (0,0) already defaults to tile 0

	gpu.mode = oamScanMode
	gpu.line = 0
	gpu.dot = 0

	for gpu.mode != hblankMode {
		gpu.Tick(1)
	}

	fb := gpu.GetFrameBuffer()
	assert.Equal(t, uint32(WhiteColor), fb.buffer[0], "raw tile color 3 maps to white under the identity palette 0xE4")
}
