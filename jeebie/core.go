package jeebie

import (
	"hash/crc32"
	"os"
	"sync"

	"github.com/valerio/go-jeebie/jeebie/audio"
	"github.com/valerio/go-jeebie/jeebie/cpu"
	"github.com/valerio/go-jeebie/jeebie/debug"
	"github.com/valerio/go-jeebie/jeebie/input/action"
	"github.com/valerio/go-jeebie/jeebie/memory"
	"github.com/valerio/go-jeebie/jeebie/save"
	"github.com/valerio/go-jeebie/jeebie/timing"
	"github.com/valerio/go-jeebie/jeebie/video"
)

// defaultMaxFrames bounds RunUntilComplete when a caller never configures
// completion detection, so a ROM that never settles can't hang a test run.
const defaultMaxFrames = 5000

// defaultMinLoopCount is the number of consecutive identical frames taken
// as a sign the ROM has reached its final screen (test ROMs print a
// result and then spin forever on the same picture).
const defaultMinLoopCount = 30

// cyclesPerFrame is the number of machine cycles (1 cycle = 4 dots) in one
// 70224-dot Game Boy frame.
const cyclesPerFrame = timing.CyclesPerFrame / 4

// DMG drives a single Sharp LR35902 and its memory/video/audio peripherals
// one machine cycle at a time, in the order real hardware updates them:
// DMA/timer/serial (via the MMU), then the PPU, then the APU, then the CPU.
type DMG struct {
	cpu *cpu.CPU
	mem *memory.MMU
	gpu *video.GPU

	limiter timing.Limiter

	debuggerMutex sync.RWMutex
	debuggerState debug.DebuggerState

	instructionCount uint64
	frameCount       uint64

	maxFrames    uint64
	minLoopCount int
	lastFrameSum uint32
	repeatCount  int
}

// New creates a DMG with no cartridge loaded.
func New() *DMG {
	return newDMG(memory.New())
}

// NewWithFile loads the ROM at path and returns a DMG ready to run it.
func NewWithFile(path string) (*DMG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cart := memory.NewCartridgeWithData(data)
	return newDMG(memory.NewWithCartridge(cart)), nil
}

func newDMG(mem *memory.MMU) *DMG {
	return &DMG{
		cpu:     cpu.New(),
		mem:     mem,
		gpu:     video.NewGpu(mem),
		limiter: timing.NewNoOpLimiter(),
	}
}

// RunUntilFrame advances emulation until one full frame has been produced,
// honoring the debugger's pause/step state.
func (d *DMG) RunUntilFrame() error {
	if !d.shouldRunFrame() {
		d.limiter.WaitForNextFrame()
		return nil
	}

	for cycles := 0; cycles < cyclesPerFrame; cycles++ {
		d.stepMachineCycle()
	}
	d.frameCount++

	d.debuggerMutex.Lock()
	if d.debuggerState == debug.DebuggerStepFrame {
		d.debuggerState = debug.DebuggerPaused
	}
	d.debuggerMutex.Unlock()

	d.limiter.WaitForNextFrame()
	return nil
}

// shouldRunFrame reports whether a full frame should be advanced this
// call, consuming a pending single-instruction step request if queued.
func (d *DMG) shouldRunFrame() bool {
	d.debuggerMutex.RLock()
	state := d.debuggerState
	d.debuggerMutex.RUnlock()

	switch state {
	case debug.DebuggerPaused:
		return false
	case debug.DebuggerStepInstruction:
		d.stepMachineCycle()
		d.debuggerMutex.Lock()
		d.debuggerState = debug.DebuggerPaused
		d.debuggerMutex.Unlock()
		return false
	default:
		return true
	}
}

// stepMachineCycle advances every component by exactly one machine cycle.
func (d *DMG) stepMachineCycle() {
	d.mem.Tick(1)
	d.gpu.Tick(4)
	d.mem.APU.Tick(4)
	d.cpu.Step(d.mem)
	d.instructionCount++
}

// SaveState serializes the whole machine (CPU, address space, timer, MBC,
// APU, serial, PPU) into a single chunked buffer keyed to the loaded ROM.
func (d *DMG) SaveState() []byte {
	w := save.NewWriter()
	w.Register(d.cpu)
	w.Register(d.gpu)
	d.mem.RegisterChunks(w.Register)

	romName := d.mem.Cartridge().Title()
	return w.Serialize(d.mem.Cartridge().HeaderChecksum(), romName)
}

// LoadState restores a buffer produced by SaveState. It fails if the
// buffer's header doesn't match the currently loaded ROM.
func (d *DMG) LoadState(buf []byte) error {
	r := save.NewReader()
	r.Register(d.cpu)
	r.Register(d.gpu)
	d.mem.RegisterChunks(r.Register)

	return r.Deserialize(buf, d.mem.Cartridge().HeaderChecksum())
}

// ConfigureCompletionDetection sets the bounds RunUntilComplete runs under:
// it stops after maxFrames regardless of output, or earlier once the
// rendered frame has stayed identical for minLoopCount consecutive frames.
// Test ROMs print a pass/fail result to the screen and then loop forever,
// so a run of unchanged frames is a reliable completion signal.
func (d *DMG) ConfigureCompletionDetection(maxFrames uint64, minLoopCount int) {
	d.maxFrames = maxFrames
	d.minLoopCount = minLoopCount
	d.lastFrameSum = 0
	d.repeatCount = 0
}

// RunUntilComplete runs frames until the completion condition configured by
// ConfigureCompletionDetection is met, falling back to built-in defaults if
// it was never called.
func (d *DMG) RunUntilComplete() error {
	maxFrames := d.maxFrames
	if maxFrames == 0 {
		maxFrames = defaultMaxFrames
	}
	minLoopCount := d.minLoopCount
	if minLoopCount == 0 {
		minLoopCount = defaultMinLoopCount
	}

	d.lastFrameSum = 0
	d.repeatCount = 0

	for frame := uint64(0); frame < maxFrames; frame++ {
		if err := d.RunUntilFrame(); err != nil {
			return err
		}

		sum := crc32.ChecksumIEEE(d.gpu.GetFrameBuffer().ToGrayscale())
		if sum == d.lastFrameSum {
			d.repeatCount++
			if d.repeatCount >= minLoopCount {
				return nil
			}
		} else {
			d.lastFrameSum = sum
			d.repeatCount = 0
		}
	}

	return nil
}

func (d *DMG) GetCurrentFrame() *video.FrameBuffer {
	return d.gpu.GetFrameBuffer()
}

// HandleAction routes game-input actions to the joypad and debug actions
// to the debugger state machine; other actions belong to a backend.
func (d *DMG) HandleAction(act action.Action, pressed bool) {
	if key, ok := joypadKeyFor(act); ok {
		if pressed {
			d.mem.Joypad().Press(key)
		} else {
			d.mem.Joypad().Release(key)
		}
		return
	}

	if !pressed {
		return
	}

	switch act {
	case action.EmulatorPauseToggle:
		if d.GetDebuggerState() == debug.DebuggerPaused {
			d.DebuggerResume()
		} else {
			d.DebuggerPause()
		}
	case action.EmulatorStepFrame:
		d.DebuggerStepFrame()
	case action.EmulatorStepInstruction:
		d.DebuggerStepInstruction()
	}
}

func joypadKeyFor(act action.Action) (memory.JoypadKey, bool) {
	switch act {
	case action.GBButtonA:
		return memory.JoypadA, true
	case action.GBButtonB:
		return memory.JoypadB, true
	case action.GBButtonStart:
		return memory.JoypadStart, true
	case action.GBButtonSelect:
		return memory.JoypadSelect, true
	case action.GBDPadUp:
		return memory.JoypadUp, true
	case action.GBDPadDown:
		return memory.JoypadDown, true
	case action.GBDPadLeft:
		return memory.JoypadLeft, true
	case action.GBDPadRight:
		return memory.JoypadRight, true
	default:
		return 0, false
	}
}

// HandleKeyPress and HandleKeyRelease are a thin compatibility surface for
// callers (the terminal renderer) that talk directly in joypad keys
// rather than input actions.
func (d *DMG) HandleKeyPress(key memory.JoypadKey) {
	d.mem.Joypad().Press(key)
}

func (d *DMG) HandleKeyRelease(key memory.JoypadKey) {
	d.mem.Joypad().Release(key)
}

func (d *DMG) ExtractDebugData() *debug.CompleteDebugData {
	if d.mem == nil || d.gpu == nil || d.cpu == nil {
		return nil
	}

	return &debug.CompleteDebugData{
		OAM:             debug.ExtractOAMData(d.mem, d.gpu.CurrentLine(), d.gpu.SpriteHeight()),
		VRAM:            debug.ExtractVRAMData(d.mem),
		CPU:             d.cpuState(),
		Memory:          debug.ExtractMemorySnapshot(d.mem, d.cpu.Regs.PC),
		DebuggerState:   d.GetDebuggerState(),
		InterruptEnable: d.mem.Read(0xFFFF),
		InterruptFlags:  d.mem.Read(0xFF0F),
	}
}

func (d *DMG) cpuState() *debug.CPUState {
	r := &d.cpu.Regs
	return &debug.CPUState{
		A: r.A, F: r.F, B: r.B, C: r.C, D: r.D, E: r.E, H: r.H, L: r.L,
		SP:     r.SP,
		PC:     r.PC,
		IME:    r.IME,
		Cycles: d.instructionCount,
	}
}

func (d *DMG) SetFrameLimiter(limiter timing.Limiter) {
	if limiter == nil {
		d.limiter = timing.NewNoOpLimiter()
		return
	}
	d.limiter = limiter
}

func (d *DMG) ResetFrameTiming() {
	d.limiter.Reset()
}

func (d *DMG) GetAudioProvider() audio.Provider {
	return d.mem.APU
}

func (d *DMG) GetCPU() *cpu.CPU {
	return d.cpu
}

func (d *DMG) GetMMU() *memory.MMU {
	return d.mem
}

func (d *DMG) GetInstructionCount() uint64 { return d.instructionCount }

func (d *DMG) GetFrameCount() uint64 { return d.frameCount }

func (d *DMG) GetDebuggerState() debug.DebuggerState {
	d.debuggerMutex.RLock()
	defer d.debuggerMutex.RUnlock()
	return d.debuggerState
}

func (d *DMG) SetDebuggerState(state debug.DebuggerState) {
	d.debuggerMutex.Lock()
	defer d.debuggerMutex.Unlock()
	d.debuggerState = state
}

func (d *DMG) DebuggerPause() { d.SetDebuggerState(debug.DebuggerPaused) }

func (d *DMG) DebuggerResume() { d.SetDebuggerState(debug.DebuggerRunning) }

func (d *DMG) DebuggerStepInstruction() { d.SetDebuggerState(debug.DebuggerStepInstruction) }

func (d *DMG) DebuggerStepFrame() { d.SetDebuggerState(debug.DebuggerStepFrame) }

var _ Emulator = (*DMG)(nil)
