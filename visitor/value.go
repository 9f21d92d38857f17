// Package visitor defines the structural callback surface that drives the
// XML, JSON, and custom output adapters, plus the typed value union BinXML
// substitution values decode into.
//
// It is grounded on original_source/src/xml_output.rs's BinXmlOutput trait
// and original_source/src/evtx_structure.rs's EvtxStructureVisitor-style
// callbacks, translated from Rust's trait-object dispatch into a plain Go
// interface (§9: "dynamic dispatch ... may use static polymorphism or
// runtime dispatch; the contract is identical either way" — a Go interface
// is the natural choice for the latter).
package visitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueVariant tags the 30+ typed value kinds a BinXML value token or
// substitution array entry can carry (§3 DATA MODEL).
type ValueVariant uint8

const (
	VariantNull ValueVariant = 0x00
	VariantString ValueVariant = 0x01
	VariantAnsiString ValueVariant = 0x02
	VariantInt8 ValueVariant = 0x03
	VariantUInt8 ValueVariant = 0x04
	VariantInt16 ValueVariant = 0x05
	VariantUInt16 ValueVariant = 0x06
	VariantInt32 ValueVariant = 0x07
	VariantUInt32 ValueVariant = 0x08
	VariantInt64 ValueVariant = 0x09
	VariantUInt64 ValueVariant = 0x0A
	VariantReal32 ValueVariant = 0x0B
	VariantReal64 ValueVariant = 0x0C
	VariantBool ValueVariant = 0x0D
	VariantBinary ValueVariant = 0x0E
	VariantGUID ValueVariant = 0x0F
	VariantSize ValueVariant = 0x10
	VariantFileTime ValueVariant = 0x11
	VariantSysTime ValueVariant = 0x12
	VariantSid ValueVariant = 0x13
	VariantHexInt32 ValueVariant = 0x14
	VariantHexInt64 ValueVariant = 0x15
	VariantEvtHandle ValueVariant = 0x20
	VariantBinXml ValueVariant = 0x21
	VariantEvtXml ValueVariant = 0x23

	// VariantArrayFlag is OR'd into any scalar variant above to mark an
	// array of that base type: a string array is VariantString |
	// VariantArrayFlag, and so on for every scalar.
	VariantArrayFlag ValueVariant = 0x80
)

// IsArray reports whether the array bit is set.
func (v ValueVariant) IsArray() bool { return v&VariantArrayFlag != 0 }

// BaseType strips the array bit, returning the element variant.
func (v ValueVariant) BaseType() ValueVariant { return v &^ VariantArrayFlag }

// Value is the tagged union every decoded BinXML value lands in, whether it
// came from an inline Value token or a template-instance substitution
// array entry.
type Value struct {
	Variant ValueVariant

	Str      string
	I64      int64
	U64      uint64
	F64      float64
	Bool     bool
	Bytes    []byte
	GUID     string
	SID      string
	Time     time.Time
	SysTime  [8]uint16
	Strings  []string // StringArray and the string-array-of-substitutions case
	Ints     []int64  // integer array variants (incl. HexInt32/64, Size), widened to int64
	Floats   []float64
	Bools    []bool
	GUIDs    []string
	SIDs     []string
	Times    []time.Time
	SysTimes [][8]uint16
	Elements []Value // not set by binxml: BinXml/EvtXml values keep their raw bytes in Bytes
}

// Null returns the canonical empty value.
func Null() Value { return Value{Variant: VariantNull} }

// IsNull reports whether this value is the Null variant (used by
// OptionalSubstitution to decide whether to suppress an attribute).
func (v Value) IsNull() bool { return v.Variant == VariantNull }

// AsString renders the value to its textual form the way the XML adapter
// and the visitor's visit_characters would. JSON gets native types instead
// by inspecting Variant directly (see jsonout).
func (v Value) AsString() string {
	if v.Variant.IsArray() {
		return v.arrayAsString()
	}
	switch v.Variant.BaseType() {
	case VariantNull:
		return ""
	case VariantString, VariantAnsiString:
		return v.Str
	case VariantInt8, VariantInt16, VariantInt32, VariantInt64:
		return strconv.FormatInt(v.I64, 10)
	case VariantUInt8, VariantUInt16, VariantUInt32, VariantUInt64:
		return strconv.FormatUint(v.U64, 10)
	case VariantReal32, VariantReal64:
		return strconv.FormatFloat(v.F64, 'f', -1, 64)
	case VariantBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case VariantBinary:
		return strings.ToUpper(fmt.Sprintf("%x", v.Bytes))
	case VariantGUID:
		return v.GUID
	case VariantSize:
		return strconv.FormatUint(v.U64, 10)
	case VariantFileTime:
		return v.Time.Format("2006-01-02T15:04:05.9999999Z07:00")
	case VariantSysTime:
		st := v.SysTime
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%03dZ",
			st[0], st[1], st[3], st[4], st[5], st[6], st[7])
	case VariantSid:
		return v.SID
	case VariantHexInt32:
		return fmt.Sprintf("0x%x", v.U64)
	case VariantHexInt64:
		return fmt.Sprintf("0x%x", v.U64)
	case VariantEvtHandle:
		return fmt.Sprintf("0x%x", v.U64)
	case VariantBinXml, VariantEvtXml:
		// Rendered by the driver recursively emitting its own elements;
		// as a standalone string this is only reached for diagnostics.
		return ""
	}
	return v.Str
}

func (v Value) arrayAsString() string {
	switch v.Variant.BaseType() {
	case VariantString, VariantAnsiString:
		return strings.Join(v.Strings, ",")
	case VariantInt8, VariantInt16, VariantInt32, VariantInt64,
		VariantUInt8, VariantUInt16, VariantUInt32, VariantUInt64,
		VariantHexInt32, VariantHexInt64, VariantSize:
		parts := make([]string, len(v.Ints))
		for i, n := range v.Ints {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ",")
	case VariantReal32, VariantReal64:
		parts := make([]string, len(v.Floats))
		for i, f := range v.Floats {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, ",")
	case VariantBool:
		parts := make([]string, len(v.Bools))
		for i, b := range v.Bools {
			if b {
				parts[i] = "true"
			} else {
				parts[i] = "false"
			}
		}
		return strings.Join(parts, ",")
	case VariantGUID:
		return strings.Join(v.GUIDs, ",")
	case VariantSid:
		return strings.Join(v.SIDs, ",")
	case VariantSysTime:
		parts := make([]string, len(v.SysTimes))
		for i, st := range v.SysTimes {
			parts[i] = fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%03dZ",
				st[0], st[1], st[3], st[4], st[5], st[6], st[7])
		}
		return strings.Join(parts, ",")
	case VariantFileTime:
		parts := make([]string, len(v.Times))
		for i, t := range v.Times {
			parts[i] = t.Format("2006-01-02T15:04:05Z")
		}
		return strings.Join(parts, ",")
	}
	return ""
}
