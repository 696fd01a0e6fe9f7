package memory

import (
	"encoding/binary"

	"github.com/valerio/go-jeebie/jeebie/save"
)

// MBC represents a Memory Bank Controller interface that all MBC types must implement
type MBC interface {
	// Read reads a byte from the specified address
	Read(addr uint16) uint8
	// Write writes a byte to the specified address, returns the written value
	Write(addr uint16, value uint8) uint8
}

// persistentRAM is implemented by MBC types whose external RAM can be
// battery backed, for writing/restoring a save file independent of a full
// save-state snapshot.
type persistentRAM interface {
	isBatteryBacked() bool
	batteryRAM() []byte
}

// NoMBC represents cartridges with no memory banking capabilities.
// These are typically smaller games (32KB or less) that fit entirely in the
// base memory region. The cartridge ROM is directly mapped to 0x0000-0x7FFF
// and cannot be banked/switched. These cartridges cannot have external RAM.
type NoMBC struct {
	rom []uint8 // ROM data
}

// NewNoMBC creates a new NoMBC controller
func NewNoMBC(romData []uint8) *NoMBC {
	return &NoMBC{
		rom: romData,
	}
}

func (m *NoMBC) Read(addr uint16) uint8 {
	// For NoMBC, we just read directly from ROM
	return m.rom[addr]
}

func (m *NoMBC) Write(addr uint16, value uint8) uint8 {
	// NoMBC doesn't support writing to ROM
	return 0
}

// MBC1 is the first and most common MBC chip. Features include:
// - Supports up to 2MB ROM (125 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Bank 0 always mapped to 0x0000-0x3FFF
// - Switchable ROM bank at 0x4000-0x7FFF
// - Optional RAM banking at 0xA000-0xBFFF
// - Two banking modes:
//   - Mode 0 (ROM): Allows access to full ROM but only 8KB RAM
//   - Mode 1 (RAM): Restricts ROM banking but allows full RAM access
// - Optional battery backup for RAM persistence
type MBC1 struct {
	rom          []uint8
	ram          []uint8
	romBank      uint8
	ramBank      uint8
	ramEnabled   bool
	bankingMode  uint8
	hasBattery   bool
	ramBankCount uint8
}

// NewMBC1 creates a new MBC1 controller
func NewMBC1(romData []uint8, hasBattery bool, ramBankCount uint8) *MBC1 {
	ramSize := uint32(ramBankCount) * 0x2000 // 8KB per RAM bank
	return &MBC1{
		rom:          romData,
		ram:          make([]uint8, ramSize),
		romBank:      1,
		ramBank:      0,
		ramEnabled:   false,
		bankingMode:  0,
		hasBattery:   hasBattery,
		ramBankCount: ramBankCount,
	}
}

func (m *MBC1) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		// ROM Bank 0
		return m.rom[addr]
	case addr >= 0x4000 && addr <= 0x7FFF:
		// Switchable ROM Bank
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			// If bank would be out of bounds, wrap around
			offset = offset % uint32(len(m.rom))
		}
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		// RAM Bank
		if !m.ramEnabled {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			// If bank would be out of bounds, wrap around
			offset = offset % uint32(len(m.ram))
		}
		return m.ram[offset+uint32(addr-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		// RAM Enable
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x3FFF:
		// ROM Bank Number (lower 5 bits)
		bank := value & 0x1F
		if bank == 0 {
			bank = 1
		}
		m.romBank = (m.romBank & 0x60) | bank
	case addr >= 0x4000 && addr <= 0x5FFF:
		// RAM Bank Number or Upper ROM Bank Number
		if m.bankingMode == 0 {
			// ROM Banking mode - value goes to upper bits of ROM bank
			m.romBank = (m.romBank & 0x1F) | ((value & 0x03) << 5)
		} else {
			// RAM Banking mode - value goes to RAM bank
			m.ramBank = value & 0x03
		}
	case addr >= 0x6000 && addr <= 0x7FFF:
		// Banking Mode Select
		m.bankingMode = value & 0x01
		if m.bankingMode == 1 {
			// When switching to RAM banking mode, clear the upper bits of ROM bank
			m.romBank &= 0x1F
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		// RAM Bank
		if !m.ramEnabled {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset = (offset % uint32(len(m.ram)))
		}
		m.ram[offset+uint32(addr-0xA000)] = value
	}
	return value
}

// MBC2 is a simpler MBC chip with built-in RAM. Features include:
// - Supports up to 256KB ROM (16 16KB banks)
// - Built-in 512x4 bits RAM (not external)
// - RAM is enabled by writing 0x0A to 0x0000-0x3FFF with address bit 8 clear;
//   while disabled, reads return 0xFF and writes are ignored
// - ROM banking similar to MBC1 but simpler
// - The least significant bit of the upper address byte selects between
//   ROM banking and RAM access
// - RAM is limited to 4-bit values (upper 4 bits are ignored)
// - Optional battery backup for the built-in RAM
type MBC2 struct {
	rom        []uint8
	ram        []uint8 // 512x4 bits RAM
	romBank    uint8
	ramEnabled bool
}

// NewMBC2 creates a new MBC2 controller
func NewMBC2(romData []uint8) *MBC2 {
	return &MBC2{
		rom:        romData,
		ram:        make([]uint8, 512),
		romBank:    1,
		ramEnabled: false,
	}
}

func (m *MBC2) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			offset %= uint32(len(m.rom))
		}
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xA1FF:
		if !m.ramEnabled {
			return 0xFF
		}
		// only the low nibble is wired; the upper nibble reads as 1s
		return m.ram[addr-0xA000] | 0xF0
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x3FFF:
		// The least significant bit of the upper address byte selects RAM
		// enable (0) vs ROM bank select (1).
		if addr&0x0100 == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case addr >= 0xA000 && addr <= 0xA1FF:
		if m.ramEnabled {
			m.ram[addr-0xA000] = value & 0x0F
		}
	}
	return value
}

// MBC3 is an advanced MBC chip with RTC support. Features include:
// - Supports up to 2MB ROM (128 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Real-Time Clock (RTC) functionality
// - RTC has 5 registers: Seconds, Minutes, Hours, Days (lower), Days (upper)/Flags
// - Similar banking to MBC1 but with different register layout
// - RAM and RTC can be battery backed
// - Used in games that needed to track real time (e.g. Pokémon Gold/Silver)
type MBC3 struct {
	rom        []uint8
	ram        []uint8
	rtc        [5]uint8 // seconds, minutes, hours, day-low, day-high/flags
	rtcLatch   [5]uint8 // snapshot exposed to reads between latch writes
	latchState uint8    // tracks the 0x00-then-0x01 write sequence
	romBank    uint8
	ramBank    uint8 // 0x00-0x03 select a RAM bank, 0x08-0x0C select an RTC register
	ramEnabled bool
	hasRTC     bool
}

// NewMBC3 creates a new MBC3 controller
func NewMBC3(romData []uint8, hasRTC bool, ramBankCount uint8) *MBC3 {
	ramSize := uint32(ramBankCount) * 0x2000
	return &MBC3{
		rom:        romData,
		ram:        make([]uint8, ramSize),
		romBank:    1,
		ramEnabled: false,
		hasRTC:     hasRTC,
	}
}

func (m *MBC3) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			offset %= uint32(len(m.rom))
		}
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			return m.rtcLatch[m.ramBank-0x08]
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		return m.ram[offset+uint32(addr-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr >= 0x4000 && addr <= 0x5FFF:
		m.ramBank = value
	case addr >= 0x6000 && addr <= 0x7FFF:
		if m.latchState == 0x00 && value == 0x01 {
			m.rtcLatch = m.rtc
		}
		m.latchState = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return value
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.rtc[m.ramBank-0x08] = value
			return value
		}
		if len(m.ram) == 0 {
			return value
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		m.ram[offset+uint32(addr-0xA000)] = value
	}
	return value
}

// MBC5 is the most advanced MBC chip. Features include:
// - Supports up to 8MB ROM (512 16KB banks)
// - Up to 128KB RAM (16 8KB banks)
// - Simple ROM/RAM banking with no quirks (unlike MBC1)
// - 9-bit ROM bank number (allows all 512 banks to be directly accessed)
// - Optional rumble motor support
// - Used in Game Boy Color games that needed more ROM/RAM
// - Backwards compatible with Game Boy
type MBC5 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint16 // MBC5 supports up to 512 ROM banks
	ramBank    uint8
	ramEnabled bool
	hasRumble  bool
}

// NewMBC5 creates a new MBC5 controller
func NewMBC5(romData []uint8, hasRumble bool, ramBankCount uint8) *MBC5 {
	ramSize := uint32(ramBankCount) * 0x2000
	return &MBC5{
		rom:        romData,
		ram:        make([]uint8, ramSize),
		romBank:    1,
		ramEnabled: false,
		hasRumble:  hasRumble,
	}
}

func (m *MBC5) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			offset %= uint32(len(m.rom))
		}
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		return m.ram[offset+uint32(addr-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC5) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x2FFF:
		m.romBank = (m.romBank &^ 0x00FF) | uint16(value)
	case addr >= 0x3000 && addr <= 0x3FFF:
		m.romBank = (m.romBank & 0x00FF) | (uint16(value&0x01) << 8)
	case addr >= 0x4000 && addr <= 0x5FFF:
		// rumble carts repurpose bit 3 as the motor control bit; motor
		// output itself has no representable effect here.
		m.ramBank = value & 0x0F
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return value
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset %= uint32(len(m.ram))
		}
		m.ram[offset+uint32(addr-0xA000)] = value
	}
	return value
}

// errShortMBCChunk is returned when a save-state chunk is too small to hold
// the banking registers this MBC type expects.
var errShortMBCChunk = mbcChunkError("save-state chunk too short for MBC state")

type mbcChunkError string

func (e mbcChunkError) Error() string { return string(e) }

// ChunkID, MarshalChunk and UnmarshalChunk implement save.Chunk for each MBC
// type, covering the banking registers and external RAM that make up its
// live state. NoMBC has nothing to save.

func (m *NoMBC) ChunkID() save.ChunkID         { return save.ChunkMBC }
func (m *NoMBC) MarshalChunk() []byte          { return nil }
func (m *NoMBC) UnmarshalChunk(_ []byte) error { return nil }

func (m *MBC1) ChunkID() save.ChunkID { return save.ChunkMBC }

func (m *MBC1) MarshalChunk() []byte {
	buf := make([]byte, 3, 3+len(m.ram))
	buf[0] = m.romBank
	buf[1] = m.ramBank
	buf[2] = boolToByte(m.ramEnabled)<<1 | m.bankingMode
	return append(buf, m.ram...)
}

func (m *MBC1) UnmarshalChunk(data []byte) error {
	if len(data) < 3 {
		return errShortMBCChunk
	}
	m.romBank = data[0]
	m.ramBank = data[1]
	m.ramEnabled = data[2]&0x02 != 0
	m.bankingMode = data[2] & 0x01
	copy(m.ram, data[3:])
	return nil
}

func (m *MBC1) isBatteryBacked() bool   { return m.hasBattery }
func (m *MBC1) batteryRAM() []byte { return m.ram }

func (m *MBC2) ChunkID() save.ChunkID { return save.ChunkMBC }

func (m *MBC2) MarshalChunk() []byte {
	buf := make([]byte, 2, 2+len(m.ram))
	buf[0] = m.romBank
	buf[1] = boolToByte(m.ramEnabled)
	return append(buf, m.ram...)
}

func (m *MBC2) UnmarshalChunk(data []byte) error {
	if len(data) < 2 {
		return errShortMBCChunk
	}
	m.romBank = data[0]
	m.ramEnabled = data[1] != 0
	copy(m.ram, data[2:])
	return nil
}

// MBC2's built-in RAM is always battery backed on real cartridges.
func (m *MBC2) isBatteryBacked() bool   { return true }
func (m *MBC2) batteryRAM() []byte { return m.ram }

func (m *MBC3) ChunkID() save.ChunkID { return save.ChunkMBC }

func (m *MBC3) MarshalChunk() []byte {
	buf := make([]byte, 0, 15+len(m.ram))
	buf = append(buf, m.romBank, m.ramBank, boolToByte(m.ramEnabled), boolToByte(m.hasRTC), m.latchState)
	buf = append(buf, m.rtc[:]...)
	buf = append(buf, m.rtcLatch[:]...)
	return append(buf, m.ram...)
}

func (m *MBC3) UnmarshalChunk(data []byte) error {
	if len(data) < 15 {
		return errShortMBCChunk
	}
	m.romBank = data[0]
	m.ramBank = data[1]
	m.ramEnabled = data[2] != 0
	m.hasRTC = data[3] != 0
	m.latchState = data[4]
	copy(m.rtc[:], data[5:10])
	copy(m.rtcLatch[:], data[10:15])
	copy(m.ram, data[15:])
	return nil
}

func (m *MBC3) isBatteryBacked() bool   { return m.hasRTC || len(m.ram) > 0 }
func (m *MBC3) batteryRAM() []byte { return m.ram }

func (m *MBC5) ChunkID() save.ChunkID { return save.ChunkMBC }

func (m *MBC5) MarshalChunk() []byte {
	buf := make([]byte, 4, 4+len(m.ram))
	binary.LittleEndian.PutUint16(buf[0:2], m.romBank)
	buf[2] = m.ramBank
	buf[3] = boolToByte(m.ramEnabled)
	return append(buf, m.ram...)
}

func (m *MBC5) UnmarshalChunk(data []byte) error {
	if len(data) < 4 {
		return errShortMBCChunk
	}
	m.romBank = binary.LittleEndian.Uint16(data[0:2])
	m.ramBank = data[2]
	m.ramEnabled = data[3] != 0
	copy(m.ram, data[4:])
	return nil
}

func (m *MBC5) isBatteryBacked() bool   { return len(m.ram) > 0 }
func (m *MBC5) batteryRAM() []byte { return m.ram }

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
