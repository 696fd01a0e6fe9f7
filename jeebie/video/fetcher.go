package video

// fetcherState is one step of the pixel fetcher's cycle. Each state takes
// two dots except push, which retries every dot until the background FIFO
// has room.
type fetcherState uint8

const (
	fetchTileNo fetcherState = iota
	fetchTileLow
	fetchTileHigh
	fetchPush
)

// fifoPixel is one pixel waiting in a FIFO: its 2-bit color index plus the
// BG/window source priority bit background-over-sprite comparisons need.
type fifoPixel struct {
	color    uint8
	bgPrio   bool // window/background tile attribute priority (always false on DMG)
}

// pixelFIFO is a small ring buffer of pending background/window pixels. The
// fetcher pushes 8 at a time; the PPU pops one per dot while drawing.
type pixelFIFO struct {
	buf   [16]fifoPixel
	head  int
	count int
}

func (f *pixelFIFO) clear() { f.head, f.count = 0, 0 }

func (f *pixelFIFO) len() int { return f.count }

func (f *pixelFIFO) push8(pixels [8]fifoPixel) {
	for _, p := range pixels {
		f.buf[(f.head+f.count)%len(f.buf)] = p
		f.count++
	}
}

func (f *pixelFIFO) pop() fifoPixel {
	p := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.count--
	return p
}

// fetcher is the background/window pixel fetcher: a small state machine
// that reads the tile map, then the two bitplane bytes of one tile row, and
// pushes the eight resulting pixels to the background FIFO.
type fetcher struct {
	bus MemoryReader

	state    fetcherState
	dotsLeft int

	usingWindow bool
	tileMapAddr uint16
	tileDataAddr uint16
	signedTiles bool

	mapX int // tile column within the current 32-wide map row
	mapRowBase uint16

	tileID   uint8
	rowLow   uint8
	rowHigh  uint8
}

func newFetcher(bus MemoryReader) *fetcher {
	return &fetcher{bus: bus}
}

// start (re)starts the fetcher at the beginning of a tile fetch, used both
// at the start of a scanline and whenever the window activates mid-line.
func (f *fetcher) start(tileMapAddr, tileDataAddr uint16, signedTiles bool, mapRowBase uint16, mapX int) {
	f.state = fetchTileNo
	f.dotsLeft = 2
	f.tileMapAddr = tileMapAddr
	f.tileDataAddr = tileDataAddr
	f.signedTiles = signedTiles
	f.mapRowBase = mapRowBase
	f.mapX = mapX
}

// step advances the fetcher by one dot. When it completes a push, it
// returns the 8 fetched pixels and true; otherwise zero pixels and false.
func (f *fetcher) step(tileRowOffset int) ([8]fifoPixel, bool) {
	f.dotsLeft--
	if f.dotsLeft > 0 {
		return [8]fifoPixel{}, false
	}

	switch f.state {
	case fetchTileNo:
		f.tileID = f.bus.Read(f.tileMapAddr + f.mapRowBase + uint16(f.mapX&31))
		f.state = fetchTileLow
		f.dotsLeft = 2
	case fetchTileLow:
		f.rowLow = f.bus.Read(f.tileRowAddr(tileRowOffset))
		f.state = fetchTileHigh
		f.dotsLeft = 2
	case fetchTileHigh:
		f.rowHigh = f.bus.Read(f.tileRowAddr(tileRowOffset) + 1)
		f.state = fetchPush
		f.dotsLeft = 1
		return f.push()
	case fetchPush:
		f.dotsLeft = 1
		return f.push()
	}

	return [8]fifoPixel{}, false
}

func (f *fetcher) push() ([8]fifoPixel, bool) {
	row := TileRow{Low: f.rowLow, High: f.rowHigh}
	var pixels [8]fifoPixel
	for x := 0; x < 8; x++ {
		pixels[x] = fifoPixel{color: uint8(row.GetPixel(x))}
	}
	f.mapX++
	f.state = fetchTileNo
	f.dotsLeft = 2
	return pixels, true
}

func (f *fetcher) tileRowAddr(rowOffset int) uint16 {
	if f.signedTiles {
		signedTile := int8(f.tileID)
		return uint16(int(f.tileDataAddr) + int(signedTile)*16 + rowOffset*2)
	}
	return f.tileDataAddr + uint16(int(f.tileID)*16+rowOffset*2)
}
