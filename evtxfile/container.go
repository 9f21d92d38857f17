package evtxfile

import (
	"io"
	"log/slog"
	"os"

	"evtxkit/errtypes"
)

// Container is a validated, in-memory view of an EVTX file: its header plus
// the raw byte ranges of every chunk that follows. IterChunks parses and
// validates all chunks up front and returns them at once, not lazily;
// ChunkBytes returns one chunk's raw bytes without parsing any header.
type Container struct {
	Header FileHeader
	data   []byte
}

// Open reads an entire EVTX file into memory and validates its header.
func Open(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errtypes.Structural{Message: "failed to open file: " + err.Error()}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return FromBuffer(data)
}

// FromBuffer validates and wraps an already-loaded EVTX file.
func FromBuffer(data []byte) (*Container, error) {
	header, err := ParseFileHeader(data)
	if err != nil {
		return nil, err
	}
	return &Container{Header: *header, data: data}, nil
}

// NumChunks returns how many 64 KiB chunk slots follow the file header.
func (ct *Container) NumChunks() int {
	return ChunkCount(int64(len(ct.data)))
}

// ChunkBytes returns the raw 64 KiB slice for chunk n, or nil if n is out
// of range.
func (ct *Container) ChunkBytes(n int) []byte {
	start := FileHeaderSize + n*ChunkSize
	end := start + ChunkSize
	if start < 0 || end > len(ct.data) {
		return nil
	}
	return ct.data[start:end]
}

// ChunkResult pairs a parsed chunk with a possible soft error so a faulty
// chunk doesn't abort iteration of the rest of the file.
type ChunkResult struct {
	Chunk *Chunk
	Err   error
}

// IterChunks validates and parses every chunk in file order, honoring
// validateChecksums. It stops (without emitting further results) once it
// reaches a zeroed-out trailing chunk, mirroring the teacher's "empty
// chunk: continue" handling generalized into a clean terminal condition
// instead of a silent skip.
func (ct *Container) IterChunks(validateChecksums bool) []ChunkResult {
	n := ct.NumChunks()
	results := make([]ChunkResult, 0, n)
	for i := 0; i < n; i++ {
		raw := ct.ChunkBytes(i)
		if raw == nil {
			break
		}
		if IsZeroed(raw[:8]) {
			break
		}
		chunk, err := ParseChunk(i, raw, validateChecksums)
		if chunk == nil && err == nil {
			continue
		}
		if err != nil {
			slog.Warn("chunk failed to parse", "chunk", i, "error", err)
		}
		results = append(results, ChunkResult{Chunk: chunk, Err: err})
	}
	return results
}
