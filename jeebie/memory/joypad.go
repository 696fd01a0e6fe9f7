package memory

import "github.com/valerio/go-jeebie/jeebie/bit"

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// Joypad models the P1 register (0xFF00). Bits 4-5 select which of the two
// 4-bit button groups (d-pad, face buttons) are visible on bits 0-3; on
// real hardware selecting both ANDs the two groups together, and a 1->0
// transition on any visible bit raises the Joypad interrupt. Bits 6-7
// always read as 1.
type Joypad struct {
	buttons uint8 // bits 0-3: Start,Select,B,A, 0=pressed
	dpad    uint8 // bits 0-3: Down,Up,Left,Right, 0=pressed
	select_ uint8 // bits 4-5 as last written

	// InterruptHandler is invoked when a newly pressed key becomes visible
	// under the current selection, mirroring the Timer/Serial callback
	// pattern used elsewhere for interrupt requests.
	InterruptHandler func()
}

// NewJoypad creates a new Joypad instance with no keys pressed.
func NewJoypad() *Joypad {
	return &Joypad{
		buttons: 0x0F,
		dpad:    0x0F,
		select_: 0x30,
	}
}

// Read returns the full P1 byte: bits 6-7 fixed at 1, bits 4-5 the current
// selection, bits 0-3 the selected group(s) state.
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) | j.select_

	selectDpad := !bit.IsSet(4, j.select_)
	selectButtons := !bit.IsSet(5, j.select_)

	switch {
	case selectButtons && selectDpad:
		result |= j.buttons & j.dpad & 0x0F
	case selectButtons:
		result |= j.buttons & 0x0F
	case selectDpad:
		result |= j.dpad & 0x0F
	default:
		result |= 0x0F
	}

	return result
}

// Write updates the selection bits (4-5); the rest of P1 is read-only.
func (j *Joypad) Write(value uint8) {
	j.select_ = value & 0x30
}

// Press clears (0 = pressed) the bit for key and fires the interrupt
// handler if that bit was visible under the current selection.
func (j *Joypad) Press(key JoypadKey) {
	before := j.Read() & 0x0F
	j.setKey(key, false)
	after := j.Read() & 0x0F

	if before&^after != 0 && j.InterruptHandler != nil {
		j.InterruptHandler()
	}
}

// Release sets (1 = released) the bit for key.
func (j *Joypad) Release(key JoypadKey) {
	j.setKey(key, true)
}

func (j *Joypad) setKey(key JoypadKey, released bool) {
	var target *uint8
	var bitPos uint8

	switch key {
	case JoypadRight:
		target, bitPos = &j.dpad, 0
	case JoypadLeft:
		target, bitPos = &j.dpad, 1
	case JoypadUp:
		target, bitPos = &j.dpad, 2
	case JoypadDown:
		target, bitPos = &j.dpad, 3
	case JoypadA:
		target, bitPos = &j.buttons, 0
	case JoypadB:
		target, bitPos = &j.buttons, 1
	case JoypadSelect:
		target, bitPos = &j.buttons, 2
	case JoypadStart:
		target, bitPos = &j.buttons, 3
	default:
		return
	}

	if released {
		*target = bit.Set(bitPos, *target)
	} else {
		*target = bit.Reset(bitPos, *target)
	}
}

// marshalState packs the three P1 sub-registers for save-state purposes.
func (j *Joypad) marshalState() [3]byte {
	return [3]byte{j.buttons, j.dpad, j.select_}
}

// restoreState restores the three P1 sub-registers from a previous
// marshalState call.
func (j *Joypad) restoreState(buttons, dpad, select_ byte) {
	j.buttons = buttons
	j.dpad = dpad
	j.select_ = select_
}
