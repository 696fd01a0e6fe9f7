// Package save implements the chunked binary save-state format: a small
// header, a table of fixed-size chunk descriptors, and a flat data blob
// that each subsystem reads/writes its own slice of.
package save

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ChunkID identifies which subsystem a chunk of serialized data belongs to.
type ChunkID uint32

const (
	ChunkMemory ChunkID = iota
	ChunkCPU
	ChunkTimer
	ChunkMBC
	ChunkAPU
	ChunkPPU
	ChunkMBCSave
	ChunkSerial
)

// Chunk is implemented by any subsystem that participates in save states.
type Chunk interface {
	ChunkID() ChunkID
	MarshalChunk() []byte
	UnmarshalChunk([]byte) error
}

const (
	headerName          = "GameboySerializedStateFile"
	headerNameSize      = 27 // name plus NUL terminator, matches the original fixed buffer
	magicToken          = 4242
	currentVersion      = 1
	chunkDescriptorSize = 12 // ChunkID uint32 + offset uint32 + size uint32
)

// fileHeader mirrors Serializer_Internal::FileHeader field for field, using
// explicit little-endian encoding in place of a struct memcpy.
type fileHeader struct {
	Name               [headerNameSize]byte
	MagicToken         uint32
	Version            uint32
	ROMChecksum        uint32
	ROMNameLength      uint32
	ROMNameStartOffset uint32
	ChunkTableSize     uint32
	ChunkStartOffset   uint32
	DataSize           uint32
	DataStartOffset    uint32
}

const fileHeaderSize = headerNameSize + 9*4

type chunkDescriptor struct {
	ID     ChunkID
	Offset uint32
	Size   uint32
}

// Writer collects chunks from registered components and serializes them
// into a single buffer.
type Writer struct {
	components []Chunk
}

// NewWriter creates a Writer with no components registered.
func NewWriter() *Writer {
	return &Writer{}
}

// Register adds a component to be included in the next Serialize call.
func (w *Writer) Register(c Chunk) {
	w.components = append(w.components, c)
}

// Serialize builds the full save-state buffer: header, ROM name, chunk
// table, then the concatenated chunk data.
func (w *Writer) Serialize(headerChecksum byte, romName string) []byte {
	var chunks []chunkDescriptor
	var data bytes.Buffer

	for _, c := range w.components {
		payload := c.MarshalChunk()
		chunks = append(chunks, chunkDescriptor{
			ID:     c.ChunkID(),
			Offset: uint32(data.Len()),
			Size:   uint32(len(payload)),
		})
		data.Write(payload)
	}

	romNameBytes := []byte(romName)
	chunkTableSize := uint32(len(chunks) * chunkDescriptorSize)

	header := fileHeader{
		MagicToken:         magicToken,
		Version:            currentVersion,
		ROMChecksum:        uint32(headerChecksum),
		ROMNameLength:      uint32(len(romNameBytes)),
		ROMNameStartOffset: fileHeaderSize,
		ChunkTableSize:     chunkTableSize,
		ChunkStartOffset:   fileHeaderSize + uint32(len(romNameBytes)),
		DataSize:           uint32(data.Len()),
		DataStartOffset:    fileHeaderSize + uint32(len(romNameBytes)) + chunkTableSize,
	}
	copy(header.Name[:], headerName)

	var buf bytes.Buffer
	buf.Grow(int(header.DataStartOffset) + data.Len())

	binary.Write(&buf, binary.LittleEndian, header)
	buf.Write(romNameBytes)
	for _, c := range chunks {
		binary.Write(&buf, binary.LittleEndian, c)
	}
	buf.Write(data.Bytes())

	return buf.Bytes()
}

// Reader parses a buffer produced by Writer.Serialize and dispatches each
// chunk to whichever registered component claims its ChunkID.
type Reader struct {
	components []Chunk
}

// NewReader creates a Reader with no components registered.
func NewReader() *Reader {
	return &Reader{}
}

// Register adds a component eligible to receive a chunk on Deserialize.
func (r *Reader) Register(c Chunk) {
	r.components = append(r.components, c)
}

// Deserialize validates the header and checksum, then hands each
// registered component the chunk matching its ChunkID, if present.
func (r *Reader) Deserialize(buf []byte, headerChecksum byte) error {
	if len(buf) < fileHeaderSize {
		return fmt.Errorf("save: buffer too small for header (%d bytes)", len(buf))
	}

	var header fileHeader
	if err := binary.Read(bytes.NewReader(buf[:fileHeaderSize]), binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("save: failed to read header: %w", err)
	}

	if header.MagicToken != magicToken {
		return fmt.Errorf("save: invalid header (bad magic token)")
	}
	if header.Version > currentVersion {
		return fmt.Errorf("save: save state version %d is newer than supported version %d", header.Version, currentVersion)
	}
	if header.Version < currentVersion {
		return fmt.Errorf("save: save state version %d is outdated", header.Version)
	}

	expectedSize := fileHeaderSize + header.ROMNameLength + header.ChunkTableSize + header.DataSize
	if uint32(len(buf)) != expectedSize {
		return fmt.Errorf("save: buffer size %d does not match header-declared size %d", len(buf), expectedSize)
	}

	if header.ROMChecksum != uint32(headerChecksum) {
		romName := string(buf[header.ROMNameStartOffset : header.ROMNameStartOffset+header.ROMNameLength])
		return fmt.Errorf("save: checksum mismatch, load ROM %q before loading this state", romName)
	}

	chunkCount := header.ChunkTableSize / chunkDescriptorSize
	chunks := make([]chunkDescriptor, chunkCount)
	chunkReader := bytes.NewReader(buf[header.ChunkStartOffset : header.ChunkStartOffset+header.ChunkTableSize])
	if err := binary.Read(chunkReader, binary.LittleEndian, &chunks); err != nil {
		return fmt.Errorf("save: failed to read chunk table: %w", err)
	}

	data := buf[header.DataStartOffset : header.DataStartOffset+header.DataSize]

	for _, c := range r.components {
		desc := findChunk(chunks, c.ChunkID())
		if desc == nil {
			continue
		}
		if err := c.UnmarshalChunk(data[desc.Offset : desc.Offset+desc.Size]); err != nil {
			return fmt.Errorf("save: failed to restore chunk %d: %w", desc.ID, err)
		}
	}

	return nil
}

func findChunk(chunks []chunkDescriptor, id ChunkID) *chunkDescriptor {
	for i := range chunks {
		if chunks[i].ID == id {
			return &chunks[i]
		}
	}
	return nil
}
