// Package errtypes defines the error taxonomy used across evtxkit.
//
// Every error kind is a distinct exported struct implementing error, so
// callers can tell structural failures apart from checksum or token-level
// ones with errors.As instead of string matching. WrapRecord and WrapChunk
// attach a stack trace with github.com/pkg/errors; the byte offset of a
// failure, where there is one, is carried by the wrapped cause.
package errtypes

import (
	"fmt"

	"github.com/pkg/errors"
)

// Structural describes a malformed file/chunk/record: bad magic, truncated
// data, or size fields that disagree with each other.
type Structural struct {
	Offset  int64
	Message string
}

func (e *Structural) Error() string {
	return fmt.Sprintf("offset %d: structural error: %s", e.Offset, e.Message)
}

// Checksum reports a CRC32 mismatch on a chunk header or its record data.
type Checksum struct {
	ChunkNumber int
	Header      bool // true: header CRC, false: data CRC
}

func (e *Checksum) Error() string {
	which := "data"
	if e.Header {
		which = "header"
	}
	return fmt.Sprintf("chunk %d: %s CRC32 invalid", e.ChunkNumber, which)
}

// InvalidToken is raised when the tokenizer reads a byte it doesn't
// recognize as a BinXML token kind.
type InvalidToken struct {
	Offset int64
	Value  byte
}

func (e *InvalidToken) Error() string {
	return fmt.Sprintf("offset %d: invalid binxml token byte 0x%02x", e.Offset, e.Value)
}

// InvalidValueVariant is raised when a value token carries an unknown
// ValueVariant tag.
type InvalidValueVariant struct {
	Offset int64
	Value  byte
}

func (e *InvalidValueVariant) Error() string {
	return fmt.Sprintf("offset %d: invalid binxml value variant 0x%02x", e.Offset, e.Value)
}

// ValueDecode wraps a failure to decode a typed value: bad UTF-16/UTF-8,
// malformed GUID or SID.
type ValueDecode struct {
	Offset int64
	Kind   string
	Cause  error
}

func (e *ValueDecode) Error() string {
	return fmt.Sprintf("offset %d: failed to decode %s: %v", e.Offset, e.Kind, e.Cause)
}

func (e *ValueDecode) Unwrap() error { return e.Cause }

// TemplateError covers a missing template definition at a referenced offset
// or a substitution index out of range for the array supplied at
// instantiation time.
type TemplateError struct {
	Offset  int64
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("offset %d: template error: %s", e.Offset, e.Message)
}

// OutputError covers downstream sink failures and invalid output structure
// (e.g. text content requested where a JSON object was required).
type OutputError struct {
	Message string
	Cause   error
}

func (e *OutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("output error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("output error: %s", e.Message)
}

func (e *OutputError) Unwrap() error { return e.Cause }

// Unimplemented marks a feature named by the spec but deliberately not
// modelled (CDATA content, processing instructions beyond emission).
type Unimplemented struct {
	Name string
}

func (e *Unimplemented) Error() string {
	return fmt.Sprintf("unimplemented: %s", e.Name)
}

// FailedToDeserializeRecord attributes any record-local error (token,
// value-decode, template) to the record that contains it. The iterator
// recovers from this error kind and continues at the next record boundary.
type FailedToDeserializeRecord struct {
	RecordID uint64
	Cause    error
}

func (e *FailedToDeserializeRecord) Error() string {
	return fmt.Sprintf("failed to deserialize record %d: %v", e.RecordID, e.Cause)
}

func (e *FailedToDeserializeRecord) Unwrap() error { return e.Cause }

// WrapRecord attaches a record id to a lower-level error, preserving its
// stack trace.
func WrapRecord(recordID uint64, cause error) error {
	return &FailedToDeserializeRecord{RecordID: recordID, Cause: errors.WithStack(cause)}
}

// FailedToDeserializeChunk attributes a chunk-level validation failure
// (bad header CRC, bad data CRC, truncated chunk) to the chunk it came
// from, for callers that iterate chunk-by-chunk and need to know which
// one failed rather than have it silently skipped.
type FailedToDeserializeChunk struct {
	ChunkNumber int
	Cause       error
}

func (e *FailedToDeserializeChunk) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.ChunkNumber, e.Cause)
}

func (e *FailedToDeserializeChunk) Unwrap() error { return e.Cause }

// WrapChunk attaches a chunk number to a lower-level error, preserving its
// stack trace.
func WrapChunk(chunkNumber int, cause error) error {
	return &FailedToDeserializeChunk{ChunkNumber: chunkNumber, Cause: errors.WithStack(cause)}
}
