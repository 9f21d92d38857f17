// Package evtxfile implements the EVTX container format: the 4096-byte file
// header, the sequence of 64 KiB chunks with their own headers and CRC32
// checksums, and the record framing inside a chunk's data region.
//
// It generalizes the teacher's ParseEvtx loop (parse.go), which read chunks
// straight off the file handle one at a time with no validation beyond
// magic bytes, into a container that validates headers/checksums up front
// and hands back every chunk (or its per-chunk error) in one slice, built
// eagerly rather than as a lazy sequence, for the binxml layer to drive.
package evtxfile

import (
	"hash/crc32"

	"evtxkit/errtypes"

	"evtxkit/binreader"
)

const (
	FileHeaderSize = 4096
	ChunkSize      = 65536
	fileMagic      = "ElfFile0"
	chunkMagic     = "ElfChnk0"
	RecordMagic    = 0x00002a2a

	chunkHeaderCRCRegion1End   = 120
	chunkHeaderCRCRegion2Start = 128
	chunkHeaderCRCRegion2End   = 512
	nameTableEntries           = 64
	templateTableEntries       = 32
)

// FileHeader is the first 4096 bytes of an EVTX file.
type FileHeader struct {
	FirstChunkNumber uint64
	LastChunkNumber  uint64
	NextRecordID     uint64
	HeaderBlockSize  uint32
	MinorVersion     uint16
	MajorVersion     uint16
	HeaderChunkCount uint16
	Flags            uint32
	Checksum         uint32
}

// ParseFileHeader validates and parses the leading 4096-byte file header.
func ParseFileHeader(data []byte) (*FileHeader, error) {
	if len(data) < FileHeaderSize {
		return nil, &errtypes.Structural{Offset: 0, Message: "file shorter than header size"}
	}
	c := binreader.NewCursor(data)
	magic, err := c.Bytes(8)
	if err != nil {
		return nil, err
	}
	if string(magic) != fileMagic {
		return nil, &errtypes.Structural{Offset: 0, Message: "bad file magic, expected ElfFile0"}
	}
	h := &FileHeader{}
	if h.FirstChunkNumber, err = c.U64(); err != nil {
		return nil, err
	}
	if h.LastChunkNumber, err = c.U64(); err != nil {
		return nil, err
	}
	if h.NextRecordID, err = c.U64(); err != nil {
		return nil, err
	}
	if h.HeaderBlockSize, err = c.U32(); err != nil {
		return nil, err
	}
	if h.MinorVersion, err = c.U16(); err != nil {
		return nil, err
	}
	if h.MajorVersion, err = c.U16(); err != nil {
		return nil, err
	}
	if h.HeaderChunkCount, err = c.U16(); err != nil {
		return nil, err
	}
	// Skip the reserved gap to the flags field at 0x78; the checksum follows
	// at 0x7C.
	if err := c.Seek(0x78); err != nil {
		return nil, err
	}
	if h.Flags, err = c.U32(); err != nil {
		return nil, err
	}
	if h.Checksum, err = c.U32(); err != nil {
		return nil, err
	}
	return h, nil
}

// ChunkCount returns how many 64 KiB chunks follow the file header given
// the total file size in bytes.
func ChunkCount(fileSize int64) int {
	if fileSize <= FileHeaderSize {
		return 0
	}
	return int((fileSize - FileHeaderSize) / ChunkSize)
}

// ChunkHeader is the fixed-size header at the start of every 64 KiB chunk.
type ChunkHeader struct {
	FirstRecordNumber  uint64
	LastRecordNumber   uint64
	FirstRecordID      uint64
	LastRecordID       uint64
	HeaderSize         uint32
	LastRecordDataOffset uint32
	FreeSpaceOffset    uint32
	RecordsChecksum    uint32
	HeaderChecksum     uint32

	NameOffsets     [nameTableEntries]uint32
	TemplateOffsets [templateTableEntries]uint32
}

// Chunk wraps one 64 KiB chunk's raw bytes together with its parsed header.
type Chunk struct {
	Number int
	Header ChunkHeader
	Data   []byte // the full 64 KiB chunk buffer
}

// IsZeroed reports whether a chunk's magic is entirely zero bytes, the
// marker the container uses to recognize trailing unused chunks.
func IsZeroed(magic []byte) bool {
	for _, b := range magic {
		if b != 0 {
			return false
		}
	}
	return true
}

// ParseChunk validates a chunk's magic and parses its header and offset
// tables. When validateChecksums is true, CRC mismatches are returned as
// *errtypes.Checksum instead of silently accepted.
func ParseChunk(number int, data []byte, validateChecksums bool) (*Chunk, error) {
	if len(data) < ChunkSize {
		return nil, &errtypes.Structural{Message: "chunk shorter than 64 KiB"}
	}
	magic := data[:8]
	if IsZeroed(magic) {
		return nil, nil // trailing unused chunk; caller treats as end of stream
	}
	if string(magic) != chunkMagic {
		return nil, &errtypes.Structural{Message: "bad chunk magic, expected ElfChnk0"}
	}

	c := binreader.NewCursor(data)
	if err := c.Skip(8); err != nil {
		return nil, err
	}
	var h ChunkHeader
	var err error
	if h.FirstRecordNumber, err = c.U64(); err != nil {
		return nil, err
	}
	if h.LastRecordNumber, err = c.U64(); err != nil {
		return nil, err
	}
	if h.FirstRecordID, err = c.U64(); err != nil {
		return nil, err
	}
	if h.LastRecordID, err = c.U64(); err != nil {
		return nil, err
	}
	if h.HeaderSize, err = c.U32(); err != nil {
		return nil, err
	}
	if h.LastRecordDataOffset, err = c.U32(); err != nil {
		return nil, err
	}
	if h.FreeSpaceOffset, err = c.U32(); err != nil {
		return nil, err
	}
	if h.RecordsChecksum, err = c.U32(); err != nil {
		return nil, err
	}

	if err := c.Seek(chunkHeaderCRCRegion2Start); err != nil {
		return nil, err
	}
	for i := 0; i < nameTableEntries; i++ {
		if h.NameOffsets[i], err = c.U32(); err != nil {
			return nil, err
		}
	}
	for i := 0; i < templateTableEntries; i++ {
		if h.TemplateOffsets[i], err = c.U32(); err != nil {
			return nil, err
		}
	}
	// The header CRC is stored at 124, in the [120,128) gap that its own
	// checksum range leaves out.
	if err := c.Seek(chunkHeaderCRCRegion1End + 4); err != nil {
		return nil, err
	}
	if h.HeaderChecksum, err = c.U32(); err != nil {
		return nil, err
	}

	if int64(h.FreeSpaceOffset) > int64(len(data)) {
		return nil, &errtypes.Structural{Message: "chunk free-space offset past physical size"}
	}

	chunk := &Chunk{Number: number, Header: h, Data: data}

	if validateChecksums {
		if !chunk.headerChecksumValid() {
			return nil, &errtypes.Checksum{ChunkNumber: number, Header: true}
		}
		if !chunk.dataChecksumValid() {
			return nil, &errtypes.Checksum{ChunkNumber: number, Header: false}
		}
	}
	return chunk, nil
}

// headerChecksumValid recomputes the header CRC over [0,120) ∪ [128,512).
func (c *Chunk) headerChecksumValid() bool {
	crc := crc32.NewIEEE()
	crc.Write(c.Data[0:chunkHeaderCRCRegion1End])
	crc.Write(c.Data[chunkHeaderCRCRegion2Start:chunkHeaderCRCRegion2End])
	return crc.Sum32() == c.Header.HeaderChecksum
}

// dataChecksumValid recomputes the data CRC over [512, free_space_offset).
func (c *Chunk) dataChecksumValid() bool {
	end := int(c.Header.FreeSpaceOffset)
	if end < chunkHeaderCRCRegion2End || end > len(c.Data) {
		return false
	}
	crc := crc32.NewIEEE()
	crc.Write(c.Data[chunkHeaderCRCRegion2End:end])
	return crc.Sum32() == c.Header.RecordsChecksum
}

// RecordCount reports the number of records implied by the chunk's
// first/last record id range, inclusive.
func (c *Chunk) RecordCount() uint64 {
	if c.Header.LastRecordID < c.Header.FirstRecordID {
		return 0
	}
	return c.Header.LastRecordID - c.Header.FirstRecordID + 1
}

// RecordHeader is the fixed-size leading fields of one record.
type RecordHeader struct {
	Magic     uint32
	Size      uint32
	RecordID  uint64
	Timestamp uint64
}

// ReadRecordHeader reads a record's leading fields at the cursor's current
// position without advancing past the BinXML payload.
func ReadRecordHeader(c *binreader.Cursor) (RecordHeader, error) {
	var rh RecordHeader
	var err error
	if rh.Magic, err = c.U32(); err != nil {
		return rh, err
	}
	if rh.Size, err = c.U32(); err != nil {
		return rh, err
	}
	if rh.RecordID, err = c.U64(); err != nil {
		return rh, err
	}
	if rh.Timestamp, err = c.U64(); err != nil {
		return rh, err
	}
	return rh, nil
}

const RecordHeaderSize = 4 + 4 + 8 + 8
const RecordTrailerSize = 4 // repeated size field
