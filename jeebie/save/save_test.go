package save

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChunk is a minimal Chunk implementation for exercising Writer/Reader
// without depending on any real subsystem.
type fakeChunk struct {
	id   ChunkID
	data []byte
}

func (f *fakeChunk) ChunkID() ChunkID { return f.id }
func (f *fakeChunk) MarshalChunk() []byte {
	return append([]byte(nil), f.data...)
}
func (f *fakeChunk) UnmarshalChunk(data []byte) error {
	f.data = append([]byte(nil), data...)
	return nil
}

func TestWriterReaderRoundTrip(t *testing.T) {
	memChunk := &fakeChunk{id: ChunkMemory, data: []byte{1, 2, 3}}
	cpuChunk := &fakeChunk{id: ChunkCPU, data: []byte{0xAA, 0xBB}}

	w := NewWriter()
	w.Register(memChunk)
	w.Register(cpuChunk)

	buf := w.Serialize(0x42, "POKEMON")
	require.NotEmpty(t, buf)

	restoredMem := &fakeChunk{id: ChunkMemory}
	restoredCPU := &fakeChunk{id: ChunkCPU}

	r := NewReader()
	r.Register(restoredMem)
	r.Register(restoredCPU)

	err := r.Deserialize(buf, 0x42)
	require.NoError(t, err)

	assert.Equal(t, memChunk.data, restoredMem.data)
	assert.Equal(t, cpuChunk.data, restoredCPU.data)
}

func TestReaderIgnoresUnregisteredChunks(t *testing.T) {
	w := NewWriter()
	w.Register(&fakeChunk{id: ChunkMemory, data: []byte{9}})
	w.Register(&fakeChunk{id: ChunkAPU, data: []byte{1, 2, 3, 4}})

	buf := w.Serialize(0x01, "TEST")

	restoredMem := &fakeChunk{id: ChunkMemory}
	r := NewReader()
	r.Register(restoredMem)

	err := r.Deserialize(buf, 0x01)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, restoredMem.data)
}

func TestDeserializeChecksumMismatch(t *testing.T) {
	w := NewWriter()
	w.Register(&fakeChunk{id: ChunkCPU, data: []byte{1}})
	buf := w.Serialize(0x10, "GAME")

	r := NewReader()
	err := r.Deserialize(buf, 0x11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestDeserializeBufferTooSmall(t *testing.T) {
	r := NewReader()
	err := r.Deserialize([]byte{1, 2, 3}, 0x00)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestDeserializeBadMagic(t *testing.T) {
	w := NewWriter()
	buf := w.Serialize(0x00, "GAME")
	// corrupt the magic token bytes right after the name field
	for i := headerNameSize; i < headerNameSize+4; i++ {
		buf[i] = 0xFF
	}

	r := NewReader()
	err := r.Deserialize(buf, 0x00)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic token")
}
