package audio

import (
	"encoding/binary"

	"github.com/valerio/go-jeebie/jeebie/save"
)

// ChunkID implements save.Chunk.
func (a *APU) ChunkID() save.ChunkID { return save.ChunkAPU }

const channelStateSize = 24

// MarshalChunk captures the raw NRxx registers, wave RAM and frame
// sequencer position, plus each channel's runtime counters that
// mapRegistersToState cannot rebuild from registers alone (length/envelope/
// sweep/LFSR progress). On restore, mapRegistersToState derives the rest
// (panning, initial volume, sweep config) from the restored registers.
func (a *APU) MarshalChunk() []byte {
	buf := make([]byte, 0, 32+waveRAMSize+4*channelStateSize)
	buf = append(buf, a.NR10, a.NR11, a.NR12, a.NR13, a.NR14)
	buf = append(buf, a.NR21, a.NR22, a.NR23, a.NR24)
	buf = append(buf, a.NR30, a.NR31, a.NR32, a.NR33, a.NR34)
	buf = append(buf, a.NR41, a.NR42, a.NR43, a.NR44)
	buf = append(buf, a.NR50, a.NR51, a.NR52)
	buf = append(buf, a.waveRAM[:]...)

	var stepCycles [8]byte
	binary.LittleEndian.PutUint32(stepCycles[0:4], uint32(a.step))
	binary.LittleEndian.PutUint32(stepCycles[4:8], uint32(a.cycles))
	buf = append(buf, stepCycles[:]...)

	for i := range a.ch {
		buf = append(buf, marshalChannel(&a.ch[i])...)
	}

	return buf
}

func (a *APU) UnmarshalChunk(data []byte) error {
	const headerSize = 21
	if len(data) < headerSize+waveRAMSize+8+4*channelStateSize {
		return errShortChunk
	}

	a.NR10, a.NR11, a.NR12, a.NR13, a.NR14 = data[0], data[1], data[2], data[3], data[4]
	a.NR21, a.NR22, a.NR23, a.NR24 = data[5], data[6], data[7], data[8]
	a.NR30, a.NR31, a.NR32, a.NR33, a.NR34 = data[9], data[10], data[11], data[12], data[13]
	a.NR41, a.NR42, a.NR43, a.NR44 = data[14], data[15], data[16], data[17]
	a.NR50, a.NR51, a.NR52 = data[18], data[19], data[20]

	offset := headerSize
	copy(a.waveRAM[:], data[offset:offset+waveRAMSize])
	offset += waveRAMSize

	a.step = int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	a.cycles = int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
	offset += 8

	for i := range a.ch {
		unmarshalChannel(&a.ch[i], data[offset:offset+channelStateSize])
		offset += channelStateSize
	}

	a.mapRegistersToState()

	return nil
}

func marshalChannel(ch *Channel) []byte {
	buf := make([]byte, channelStateSize)
	buf[0] = boolToByte(ch.enabled)
	buf[1] = boolToByte(ch.sweepEnabled)
	buf[2] = boolToByte(ch.sweepNegUsed)
	buf[3] = ch.sweepTimer
	binary.LittleEndian.PutUint16(buf[4:6], ch.shadowFreq)
	buf[6] = ch.envelopeCounter
	buf[7] = boolToByte(ch.envelopeLatched)
	binary.LittleEndian.PutUint16(buf[8:10], ch.length)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(ch.freqTimer))
	buf[12] = ch.dutyStep
	buf[13] = ch.waveIndex
	buf[14] = ch.waveSample
	binary.LittleEndian.PutUint16(buf[15:17], uint16(ch.noiseTimer))
	binary.LittleEndian.PutUint16(buf[17:19], ch.lfsr)
	buf[19] = boolToByte(ch.dacEnabled)
	buf[20] = boolToByte(ch.muted)
	return buf
}

func unmarshalChannel(ch *Channel, data []byte) {
	ch.enabled = data[0] != 0
	ch.sweepEnabled = data[1] != 0
	ch.sweepNegUsed = data[2] != 0
	ch.sweepTimer = data[3]
	ch.shadowFreq = binary.LittleEndian.Uint16(data[4:6])
	ch.envelopeCounter = data[6]
	ch.envelopeLatched = data[7] != 0
	ch.length = binary.LittleEndian.Uint16(data[8:10])
	ch.freqTimer = int(binary.LittleEndian.Uint16(data[10:12]))
	ch.dutyStep = data[12]
	ch.waveIndex = data[13]
	ch.waveSample = data[14]
	ch.noiseTimer = int(binary.LittleEndian.Uint16(data[15:17]))
	ch.lfsr = binary.LittleEndian.Uint16(data[17:19])
	ch.dacEnabled = data[19] != 0
	ch.muted = data[20] != 0
}

type chunkError string

func (e chunkError) Error() string { return string(e) }

const errShortChunk = chunkError("save-state chunk too short for APU state")

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
