package video

import (
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/bit"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

// GpuMode represents the PPU's current rendering stage.
// These values match the STAT register bits 1-0.
type GpuMode int

const (
	hblankMode  GpuMode = 0
	vblankMode  GpuMode = 1
	oamScanMode GpuMode = 2
	drawingMode GpuMode = 3
)

const (
	oamScanDots   = 80
	dotsPerLine   = 456
	visibleLines  = 144
	totalLines    = 154
)

// GPU is the dot-driven pixel processing unit: an OAMScan -> Drawing ->
// HBlank state machine per visible line, then ten lines of VBlank. Drawing
// runs a genuine background/window pixel fetcher feeding a FIFO, mixed
// pixel-by-pixel against the line's pre-resolved sprite buffer, matching
// the real hardware's variable-length mode 3.
type GPU struct {
	memory      *memory.MMU
	framebuffer *FrameBuffer
	oam         *OAM

	mode     GpuMode
	prevMode GpuMode
	line     int
	dot      int

	fetcher        *fetcher
	fetchRowOffset int
	bgFIFO         pixelFIFO
	lcdX           int
	scxDiscard     int // pending SCX%8 pixels to discard at line start
	windowLine     int
	windowActive   bool

	lineSprites []Sprite
}

func NewGpu(mem *memory.MMU) *GPU {
	gpu := &GPU{
		framebuffer: NewFrameBuffer(),
		memory:      mem,
		oam:         NewOAM(mem),
		fetcher:     newFetcher(mem),
		mode:        vblankMode,
		line:        144,
	}
	mem.SetPPUGate(gpu)
	return gpu
}

func (g *GPU) GetFrameBuffer() *FrameBuffer {
	return g.framebuffer
}

// CurrentLine returns the scanline the PPU is currently on, for debug tools.
func (g *GPU) CurrentLine() int {
	return g.line
}

// SpriteHeight returns the active sprite height (8 or 16) per LCDC bit 2.
func (g *GPU) SpriteHeight() int {
	if g.readLCDCVariable(spriteSize) == 1 {
		return 16
	}
	return 8
}

// Tick advances the PPU by the given number of dots (4 per machine cycle).
func (g *GPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		g.stepDot()
	}
}

func (g *GPU) stepDot() {
	g.prevMode = g.mode

	if g.readLCDCVariable(lcdDisplayEnable) == 0 {
		return
	}

	switch g.mode {
	case oamScanMode:
		if g.dot == 0 {
			g.lineSprites = g.oam.GetSpritesForScanline(g.line)
		}
		g.dot++
		if g.dot >= oamScanDots {
			g.beginDrawing()
		}
	case drawingMode:
		g.stepDrawing()
		g.dot++
		if g.lcdX >= FramebufferWidth {
			g.enterMode(hblankMode)
			if g.memory.ReadBit(statHblankIrq, addr.STAT) {
				g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
			}
		}
	case hblankMode:
		g.dot++
		if g.dot >= dotsPerLine {
			g.advanceLine()
		}
	case vblankMode:
		g.dot++
		if g.dot >= dotsPerLine {
			g.advanceLine()
		}
	}
}

func (g *GPU) beginDrawing() {
	g.enterMode(drawingMode)
	g.lcdX = 0
	g.bgFIFO.clear()
	g.windowActive = false

	scx := g.memory.Read(addr.SCX)
	scy := g.memory.Read(addr.SCY)
	g.scxDiscard = int(scx) % 8

	g.startBackgroundFetch(scx, scy)
}

func (g *GPU) startBackgroundFetch(scx, scy byte) {
	useSignedTiles := g.readLCDCVariable(bgWindowTileDataSelect) == 0
	useTileMapZero := g.readLCDCVariable(bgTileMapDisplaySelect) == 0

	tileDataAddr := addr.TileData0
	if useSignedTiles {
		tileDataAddr = addr.TileData2
	}
	tileMapAddr := addr.TileMap1
	if useTileMapZero {
		tileMapAddr = addr.TileMap0
	}

	lineScrolled := (g.line + int(scy)) & 0xFF
	mapRowBase := uint16((lineScrolled/8)*32)
	mapX := int(scx) / 8

	g.fetcher.start(tileMapAddr, tileDataAddr, useSignedTiles, mapRowBase, mapX)
	g.fetchRowOffset = lineScrolled % 8
}

func (g *GPU) startWindowFetch() {
	useSignedTiles := g.readLCDCVariable(bgWindowTileDataSelect) == 0
	useTileMapZero := g.readLCDCVariable(windowTileMapSelect) == 0

	tileDataAddr := addr.TileData0
	if useSignedTiles {
		tileDataAddr = addr.TileData2
	}
	tileMapAddr := addr.TileMap1
	if useTileMapZero {
		tileMapAddr = addr.TileMap0
	}

	mapRowBase := uint16((g.windowLine / 8) * 32)
	g.fetcher.start(tileMapAddr, tileDataAddr, useSignedTiles, mapRowBase, 0)
	g.fetchRowOffset = g.windowLine % 8
	g.bgFIFO.clear()
}

func (g *GPU) stepDrawing() {
	if g.shouldActivateWindow() {
		g.windowActive = true
		g.startWindowFetch()
	}

	// The fetcher only advances while the FIFO has room for another full
	// tile; this is what makes mode 3's length vary with sprite/window
	// fetch stalls in real hardware, and here simply keeps the FIFO's
	// fixed-size ring from overrunning.
	if g.bgFIFO.len() <= 8 {
		if pixels, ready := g.fetcher.step(g.fetchRowOffset); ready {
			g.bgFIFO.push8(pixels)
		}
	}

	if g.bgFIFO.len() == 0 {
		return
	}

	px := g.bgFIFO.pop()

	if g.scxDiscard > 0 {
		g.scxDiscard--
		return
	}

	g.emitPixel(px)
	g.lcdX++
}

func (g *GPU) shouldActivateWindow() bool {
	if g.windowActive || g.readLCDCVariable(windowDisplayEnable) == 0 {
		return false
	}
	wy := g.memory.Read(addr.WY)
	wx := int(g.memory.Read(addr.WX)) - 7
	return int(wy) <= g.line && g.lcdX >= wx
}

func (g *GPU) emitPixel(px fifoPixel) {
	bgColor := px.color
	bgEnabled := g.readLCDCVariable(bgDisplay) == 1

	colorIndex := bgColor
	if !bgEnabled {
		colorIndex = 0
	}

	palette := g.memory.Read(addr.BGP)
	color := (palette >> (colorIndex * 2)) & 0x03
	finalColor := ByteToColor(color)

	if g.readLCDCVariable(spriteDisplayEnable) == 1 {
		if sp, pixel, ok := g.spritePixelAt(g.lcdX); ok {
			if pixel != 0 && (!sp.BehindBG || colorIndex == 0) {
				objAddr := addr.OBP0
				if sp.PaletteOBP1 {
					objAddr = addr.OBP1
				}
				objPalette := g.memory.Read(objAddr)
				objColor := (objPalette >> (uint8(pixel) * 2)) & 0x03
				finalColor = ByteToColor(objColor)
			}
		}
	}

	pos := g.line*FramebufferWidth + g.lcdX
	g.framebuffer.buffer[pos] = uint32(finalColor)
}

// spritePixelAt resolves the winning sprite (if any) and its raw 2-bit
// color for screen column x, using the line's pre-resolved priority masks.
func (g *GPU) spritePixelAt(x int) (Sprite, int, bool) {
	for _, sp := range g.lineSprites {
		offset := x - int(sp.X)
		if offset < 0 || offset >= 8 {
			continue
		}
		if !sp.HasPriorityForPixel(offset) {
			continue
		}

		pixelY := g.line - int(sp.Y)
		if sp.FlipY {
			pixelY = sp.Height - 1 - pixelY
		}
		tileIndex := int(sp.TileIndex)
		if sp.Height == 16 {
			tileIndex &= 0xFE
		}
		tileAddr := addr.TileData0 + uint16(tileIndex*16+pixelY*2)
		row := TileRow{Low: g.memory.Read(tileAddr), High: g.memory.Read(tileAddr + 1)}

		var pixel int
		if sp.FlipX {
			pixel = row.GetPixelFlipped(offset)
		} else {
			pixel = row.GetPixel(offset)
		}
		if pixel == 0 {
			continue
		}
		return sp, pixel, true
	}
	return Sprite{}, 0, false
}

func (g *GPU) advanceLine() {
	wasDrawingLine := g.mode == hblankMode
	windowWasActive := g.windowActive

	g.dot = 0
	g.setLY(g.line + 1)

	if wasDrawingLine && windowWasActive {
		g.windowLine++
	}

	if g.line == visibleLines {
		g.enterMode(vblankMode)
		g.windowLine = 0
		g.memory.RequestInterrupt(addr.VBlankInterrupt)
		if g.memory.ReadBit(statVblankIrq, addr.STAT) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
		return
	}

	if g.line >= totalLines {
		g.setLY(0)
		g.enterMode(oamScanMode)
		if g.memory.ReadBit(statOamIrq, addr.STAT) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
		return
	}

	if g.mode == hblankMode {
		g.enterMode(oamScanMode)
		if g.memory.ReadBit(statOamIrq, addr.STAT) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
	}
}

func (g *GPU) enterMode(mode GpuMode) {
	g.mode = mode
	stat := g.memory.Read(addr.STAT)
	stat = stat&0xFC | byte(mode)
	g.memory.Write(addr.STAT, stat)
}

func (g *GPU) setLY(line int) {
	g.line = line
	g.memory.Write(addr.LY, byte(g.line))
	g.compareLYToLYC()
}

func (g *GPU) compareLYToLYC() {
	ly := g.memory.Read(addr.LY)
	lyc := g.memory.Read(addr.LYC)
	stat := g.memory.Read(addr.STAT)

	if ly == lyc {
		stat = bit.Set(statLycCondition, stat)
		if bit.IsSet(uint8(statLycIrq), stat) {
			g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
		}
	} else {
		stat = bit.Reset(statLycCondition, stat)
	}

	g.memory.Write(addr.STAT, stat)
}

// PPUAccessGate: reads are blocked by the current mode, writes by the
// previous dot's mode, matching the one-cycle-later release real hardware
// shows at mode boundaries.
func (g *GPU) OAMReadBlocked() bool   { return g.mode == oamScanMode || g.mode == drawingMode }
func (g *GPU) VRAMReadBlocked() bool  { return g.mode == drawingMode }
func (g *GPU) OAMWriteBlocked() bool  { return g.prevMode == oamScanMode || g.prevMode == drawingMode }
func (g *GPU) VRAMWriteBlocked() bool { return g.prevMode == drawingMode }

// LCD Stat (Status) Register bit values; see Pan Docs STAT.
type statFlag uint8

const (
	statLycIrq       statFlag = 6
	statOamIrq                = 5
	statVblankIrq             = 4
	statHblankIrq             = 3
	statLycCondition          = 2
)

// LCDC (LCD Control) Register bit values; see Pan Docs LCDC.
type lcdcFlag uint8

const (
	lcdDisplayEnable       lcdcFlag = 7
	windowTileMapSelect             = 6
	windowDisplayEnable             = 5
	bgWindowTileDataSelect          = 4
	bgTileMapDisplaySelect          = 3
	spriteSize                      = 2
	spriteDisplayEnable             = 1
	bgDisplay                       = 0
)

func (g *GPU) readLCDCVariable(flag lcdcFlag) byte {
	if bit.IsSet(uint8(flag), g.memory.Read(addr.LCDC)) {
		return 1
	}
	return 0
}
