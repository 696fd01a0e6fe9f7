package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/audio"
	"github.com/valerio/go-jeebie/jeebie/bit"
	"github.com/valerio/go-jeebie/jeebie/save"
	"github.com/valerio/go-jeebie/jeebie/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// PPUAccessGate lets the PPU tell the address space when VRAM/OAM are
// off-limits to the CPU. Reads are gated by the PPU's current mode; writes
// are gated by the previous cycle's mode, matching the one-cycle-later
// release real hardware exhibits. Implemented by *video.GPU; declared here
// to avoid an import cycle (video already imports memory for the MMU).
type PPUAccessGate interface {
	OAMReadBlocked() bool
	VRAMReadBlocked() bool
	OAMWriteBlocked() bool
	VRAMWriteBlocked() bool
}

type dmaPhase uint8

const (
	dmaIdle dmaPhase = iota
	dmaInitializing
	dmaInProgress
)

// dmaState implements the OAM DMA transfer as a phased state machine:
// writing DMA only arms a transfer, which starts on the next Advance call,
// spends one cycle initializing, then copies one of the 160 bytes per
// remaining cycle while blocking ordinary bus access below 0xFF00.
type dmaState struct {
	phase     dmaPhase
	scheduled bool
	source    uint16
	progress  int
}

func (d *dmaState) blocking() bool { return d.phase == dmaInProgress }

func (d *dmaState) schedule(sourceHigh uint8) {
	d.scheduled = true
	d.source = uint16(sourceHigh) << 8
}

// advance steps the DMA state machine by one machine cycle, copying a
// single byte into OAM on each in-progress cycle via read.
func (d *dmaState) advance(read func(uint16) byte, oam *[160]byte) {
	switch d.phase {
	case dmaIdle:
		if d.scheduled {
			d.scheduled = false
			d.phase = dmaInitializing
		}
	case dmaInitializing:
		d.phase = dmaInProgress
		d.progress = 0
	case dmaInProgress:
		oam[d.progress] = read(d.source + uint16(d.progress))
		d.progress++
		if d.progress >= 160 {
			d.phase = dmaIdle
		}
	}
}

// MMU is the Game Boy's 64KiB address space: a flat backing array routed
// through a coarse region map, with cartridge accesses forwarded to the
// active MBC and a handful of registers forwarded to their owning
// collaborator (timer, serial, APU, joypad, interrupts).
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	APU       *audio.APU
	regionMap [256]memRegion

	joypad      *Joypad
	interrupts  *InterruptController
	serial      SerialPort
	timer       Timer
	dma         dmaState
	ppu         PPUAccessGate
	unusedMask  [256]byte // OR'd into reads of 0xFFxx registers with always-1 bits
}

// New creates a new memory unit with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory: make([]byte, 0x10000),
		cart:   NewCartridge(),
		APU:    audio.New(),
		joypad: NewJoypad(),
	}
	mmu.interrupts = newInterruptController(mmu)
	mmu.serial = serial.NewLogSink(func() { mmu.RequestInterrupt(addr.SerialInterrupt) })
	mmu.timer.TimerInterruptHandler = func() { mmu.RequestInterrupt(addr.TimerInterrupt) }
	mmu.joypad.InterruptHandler = func() { mmu.RequestInterrupt(addr.JoypadInterrupt) }
	initRegionMap(mmu)
	initUnusedMask(mmu)
	return mmu
}

// NewWithCartridge creates a new memory unit with the provided cartridge data loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
func NewWithCartridge(cart *Cartridge) *MMU {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data)
	case MBC1Type, MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC2Type:
		mmu.mbc = NewMBC2(cart.data)
	case MBC3Type:
		mmu.mbc = NewMBC3(cart.data, cart.hasRTC, cart.ramBankCount)
	case MBC5Type:
		mmu.mbc = NewMBC5(cart.data, cart.hasRumble, cart.ramBankCount)
	default:
		slog.Warn("Unsupported MBC type, falling back to NoMBC", "type", cart.mbcType)
		mmu.mbc = NewNoMBC(cart.data)
	}

	return mmu
}

// SetPPUGate wires the PPU's access-blocking state into the address space.
// Called once during system setup, after both the MMU and PPU exist.
func (m *MMU) SetPPUGate(gate PPUAccessGate) {
	m.ppu = gate
}

// Joypad returns the shared joypad instance, for wiring into an input manager.
func (m *MMU) Joypad() *Joypad { return m.joypad }

// Cartridge returns the loaded cartridge, for header inspection (title,
// checksum) by save-state and debug tooling.
func (m *MMU) Cartridge() *Cartridge { return m.cart }

// Tick advances DMA, the timer, and the serial port by the given number of
// machine cycles. Called once per machine cycle by the main driver loop.
func (m *MMU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		m.dma.advance(m.rawRead, (*[160]byte)(m.memory[0xFE00:0xFE00+160]))
	}
	m.timer.Tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

func initRegionMap(m *MMU) {
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	m.regionMap[0xFE] = regionOAM
	m.regionMap[0xFF] = regionIO
}

// initUnusedMask records the always-1 bits of registers whose upper bits
// are unconnected on real hardware, so Read can OR them in generically
// instead of special-casing each register at the call site.
func initUnusedMask(m *MMU) {
	m.unusedMask[addr.IF-0xFF00] = 0xE0
	m.unusedMask[addr.P1-0xFF00] = 0xC0
	m.unusedMask[addr.STAT-0xFF00] = 0x80
	m.unusedMask[addr.NR10-0xFF00] = 0x80
	m.unusedMask[addr.NR11-0xFF00] = 0x3F
	m.unusedMask[addr.NR13-0xFF00] = 0xFF
	m.unusedMask[addr.NR14-0xFF00] = 0xBF
	m.unusedMask[addr.NR21-0xFF00] = 0x3F
	m.unusedMask[addr.NR23-0xFF00] = 0xFF
	m.unusedMask[addr.NR24-0xFF00] = 0xBF
	m.unusedMask[addr.NR30-0xFF00] = 0x7F
	m.unusedMask[addr.NR32-0xFF00] = 0x9F
	m.unusedMask[addr.NR33-0xFF00] = 0xFF
	m.unusedMask[addr.NR34-0xFF00] = 0xBF
	m.unusedMask[addr.NR41-0xFF00] = 0xC0
	m.unusedMask[addr.NR44-0xFF00] = 0xBF
	m.unusedMask[addr.NR52-0xFF00] = 0x70
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	m.interrupts.Request(interrupt)
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// Read returns the byte at address, honoring DMA's bus lockout and the
// PPU's VRAM/OAM access gate.
func (m *MMU) Read(address uint16) byte {
	if m.dma.blocking() && address < 0xFF00 {
		return 0xFF
	}
	if m.ppu != nil {
		region := m.regionMap[address>>8]
		if region == regionVRAM && m.ppu.VRAMReadBlocked() {
			return 0xFF
		}
		if region == regionOAM && address <= 0xFE9F && m.ppu.OAMReadBlocked() {
			return 0xFF
		}
	}
	return m.rawRead(address)
}

// rawRead performs the plain region-mapped read with no DMA/PPU gating;
// used internally by the DMA engine to copy from its source region.
func (m *MMU) rawRead(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		return m.memory[address]
	case regionIO:
		return m.readIO(address) | m.unusedMask[address-0xFF00]
	default:
		slog.Warn("read at unmapped address", "addr", fmt.Sprintf("0x%04X", address))
		return 0xFF
	}
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return m.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		return m.timer.Read(address)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.APU.ReadRegister(address)
	default:
		return m.memory[address]
	}
}

// Write stores value at address, honoring DMA's bus lockout and the PPU's
// access gate, and dispatching register writes to their owning collaborator.
func (m *MMU) Write(address uint16, value byte) {
	if m.dma.blocking() && address < 0xFF00 {
		return
	}
	if m.ppu != nil {
		region := m.regionMap[address>>8]
		if region == regionVRAM && m.ppu.VRAMWriteBlocked() {
			return
		}
		if region == regionOAM && address <= 0xFE9F && m.ppu.OAMWriteBlocked() {
			return
		}
	}

	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM:
		m.memory[address] = value
	case regionExtRAM:
		if m.mbc == nil {
			return
		}
		m.mbc.Write(address, value)
	case regionWRAM:
		m.memory[address] = value
	case regionEcho:
		m.memory[address-0x2000] = value
	case regionOAM:
		m.memory[address] = value
	case regionIO:
		m.writeIO(address, value)
	default:
		slog.Warn("write at unmapped address", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
	}
}

func (m *MMU) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		m.joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC:
		m.timer.Write(address, value)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.APU.WriteRegister(address, value)
	case address == addr.DMA:
		m.dma.schedule(value)
		m.memory[address] = value
	default:
		m.memory[address] = value
	}
}

// WriteDirect stores value at address, bypassing the DMA/PPU access gate
// and register dispatch. Used by internal collaborators (InterruptController)
// that must always be able to update their backing byte regardless of
// whatever is currently blocking the public Write path.
func (m *MMU) WriteDirect(address uint16, value byte) {
	m.memory[address] = value
}

// ChunkID implements save.Chunk for the flat address space: the backing
// 0x10000 byte array plus DMA's in-flight transfer state and the joypad's
// selection/button registers. Registers owned by a collaborator (timer,
// serial, APU, MBC) are saved in their own chunks instead.
func (m *MMU) ChunkID() save.ChunkID { return save.ChunkMemory }

func (m *MMU) MarshalChunk() []byte {
	buf := make([]byte, len(m.memory)+9)
	copy(buf, m.memory)
	offset := len(m.memory)
	buf[offset] = uint8(m.dma.phase)
	buf[offset+1] = boolToByte(m.dma.scheduled)
	buf[offset+2] = uint8(m.dma.source)
	buf[offset+3] = uint8(m.dma.source >> 8)
	buf[offset+4] = uint8(m.dma.progress)
	buf[offset+5] = uint8(m.dma.progress >> 8)
	joypadState := m.joypad.marshalState()
	copy(buf[offset+6:offset+9], joypadState[:])
	return buf
}

func (m *MMU) UnmarshalChunk(data []byte) error {
	if len(data) < len(m.memory)+9 {
		return errShortMBCChunk
	}
	copy(m.memory, data[:len(m.memory)])
	offset := len(m.memory)
	m.dma.phase = dmaPhase(data[offset])
	m.dma.scheduled = data[offset+1] != 0
	m.dma.source = uint16(data[offset+2]) | uint16(data[offset+3])<<8
	m.dma.progress = int(data[offset+4]) | int(data[offset+5])<<8
	m.joypad.restoreState(data[offset+6], data[offset+7], data[offset+8])
	return nil
}

// RegisterChunks registers every chunk this address space owns directly
// (itself, the timer, the APU, the serial port) plus the active MBC's chunk
// if it carries bank-switching state worth saving, with reg — typically
// save.Writer.Register or save.Reader.Register.
func (m *MMU) RegisterChunks(reg func(save.Chunk)) {
	reg(m)
	reg(&m.timer)
	reg(m.APU)
	if mbc, ok := m.mbc.(save.Chunk); ok {
		reg(mbc)
	}
	if s, ok := m.serial.(save.Chunk); ok {
		reg(s)
	}
}
