package binxml

import (
	"strings"
	"time"

	"evtxkit/binreader"
	"evtxkit/errtypes"
	"evtxkit/visitor"
)

// AnsiDecoder converts an 8-bit-codepage byte slice to UTF-8 text, used for
// AnsiString values (§6 ansi_codec setting). ParserSettings.AnsiCodec
// supplies binreader.DecodeWindows1252 by default.
type AnsiDecoder func([]byte) string

// DecodeValue decodes one value of the given variant from cur. length is
// the byte width a substitution descriptor declared for variable-width
// variants (strings, binary, and their array forms); fixed-width variants
// ignore it, per §4.5.
func DecodeValue(cur *binreader.Cursor, variant visitor.ValueVariant, length int, ansi AnsiDecoder) (visitor.Value, error) {
	if ansi == nil {
		ansi = binreader.DecodeWindows1252
	}
	if variant.IsArray() {
		return decodeArray(cur, variant, length, ansi)
	}
	return decodeScalar(cur, variant, length, ansi)
}

func trimTrailingNul(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return b[:len(b)-1]
	}
	return b
}

func decodeScalar(cur *binreader.Cursor, variant visitor.ValueVariant, length int, ansi AnsiDecoder) (visitor.Value, error) {
	switch variant {
	case visitor.VariantNull:
		return visitor.Null(), nil

	case visitor.VariantString:
		units, err := cur.U16N(length / 2)
		if err != nil {
			return visitor.Value{}, err
		}
		s := binreader.DecodeUTF16(units)
		s = strings.TrimSuffix(s, "\x00")
		return visitor.Value{Variant: variant, Str: s}, nil

	case visitor.VariantAnsiString:
		b, err := cur.Bytes(length)
		if err != nil {
			return visitor.Value{}, err
		}
		return visitor.Value{Variant: variant, Str: ansi(trimTrailingNul(b))}, nil

	case visitor.VariantInt8:
		b, err := cur.U8()
		return visitor.Value{Variant: variant, I64: int64(int8(b))}, err

	case visitor.VariantUInt8:
		b, err := cur.U8()
		return visitor.Value{Variant: variant, U64: uint64(b)}, err

	case visitor.VariantInt16:
		w, err := cur.U16()
		return visitor.Value{Variant: variant, I64: int64(int16(w))}, err

	case visitor.VariantUInt16:
		w, err := cur.U16()
		return visitor.Value{Variant: variant, U64: uint64(w)}, err

	case visitor.VariantInt32:
		d, err := cur.I32()
		return visitor.Value{Variant: variant, I64: int64(d)}, err

	case visitor.VariantUInt32:
		d, err := cur.U32()
		return visitor.Value{Variant: variant, U64: uint64(d)}, err

	case visitor.VariantInt64:
		q, err := cur.I64()
		return visitor.Value{Variant: variant, I64: q}, err

	case visitor.VariantUInt64:
		q, err := cur.U64()
		return visitor.Value{Variant: variant, U64: q}, err

	case visitor.VariantReal32:
		f, err := cur.F32()
		return visitor.Value{Variant: variant, F64: float64(f)}, err

	case visitor.VariantReal64:
		f, err := cur.F64()
		return visitor.Value{Variant: variant, F64: f}, err

	case visitor.VariantBool:
		d, err := cur.U32()
		return visitor.Value{Variant: variant, Bool: d != 0}, err

	case visitor.VariantBinary:
		b, err := cur.Bytes(length)
		if err != nil {
			return visitor.Value{}, err
		}
		return visitor.Value{Variant: variant, Bytes: append([]byte(nil), b...)}, nil

	case visitor.VariantGUID:
		offset := cur.Pos
		g, err := cur.GUID()
		if err != nil {
			return visitor.Value{}, &errtypes.ValueDecode{Offset: offset, Kind: "GUID", Cause: err}
		}
		return visitor.Value{Variant: variant, GUID: g}, nil

	case visitor.VariantSize:
		q, err := cur.U64()
		return visitor.Value{Variant: variant, U64: q}, err

	case visitor.VariantFileTime:
		t, err := cur.FileTime()
		return visitor.Value{Variant: variant, Time: t}, err

	case visitor.VariantSysTime:
		st, err := cur.SysTime()
		if err != nil {
			return visitor.Value{}, err
		}
		return visitor.Value{Variant: variant, SysTime: [8]uint16{
			st.Year, st.Month, st.DayOfWeek, st.Day, st.Hour, st.Minute, st.Second, st.Milliseconds,
		}}, nil

	case visitor.VariantSid:
		offset := cur.Pos
		s, err := cur.SID()
		if err != nil {
			return visitor.Value{}, &errtypes.ValueDecode{Offset: offset, Kind: "SID", Cause: err}
		}
		return visitor.Value{Variant: variant, SID: s}, nil

	case visitor.VariantHexInt32:
		d, err := cur.U32()
		return visitor.Value{Variant: variant, U64: uint64(d)}, err

	case visitor.VariantHexInt64:
		q, err := cur.U64()
		return visitor.Value{Variant: variant, U64: q}, err

	case visitor.VariantEvtHandle:
		q, err := cur.U64()
		return visitor.Value{Variant: variant, U64: q}, err

	default:
		return visitor.Value{}, &errtypes.InvalidValueVariant{Offset: cur.Pos, Value: byte(variant)}
	}
}

func decodeArray(cur *binreader.Cursor, variant visitor.ValueVariant, length int, ansi AnsiDecoder) (visitor.Value, error) {
	base := variant.BaseType()
	switch base {
	case visitor.VariantString:
		units, err := cur.U16N(length / 2)
		if err != nil {
			return visitor.Value{}, err
		}
		return visitor.Value{Variant: variant, Strings: binreader.SplitNullTerminated(units)}, nil

	case visitor.VariantAnsiString:
		b, err := cur.Bytes(length)
		if err != nil {
			return visitor.Value{}, err
		}
		var out []string
		for _, part := range strings.Split(string(b), "\x00") {
			if part != "" {
				out = append(out, ansi([]byte(part)))
			}
		}
		return visitor.Value{Variant: variant, Strings: out}, nil

	case visitor.VariantInt8, visitor.VariantUInt8:
		b, err := cur.Bytes(length)
		if err != nil {
			return visitor.Value{}, err
		}
		ints := make([]int64, len(b))
		for i, x := range b {
			if base == visitor.VariantInt8 {
				ints[i] = int64(int8(x))
			} else {
				ints[i] = int64(x)
			}
		}
		return visitor.Value{Variant: variant, Ints: ints}, nil

	case visitor.VariantInt16, visitor.VariantUInt16:
		units, err := cur.U16N(length / 2)
		if err != nil {
			return visitor.Value{}, err
		}
		ints := make([]int64, len(units))
		for i, u := range units {
			if base == visitor.VariantInt16 {
				ints[i] = int64(int16(u))
			} else {
				ints[i] = int64(u)
			}
		}
		return visitor.Value{Variant: variant, Ints: ints}, nil

	case visitor.VariantInt32, visitor.VariantUInt32, visitor.VariantHexInt32:
		n := length / 4
		ints := make([]int64, n)
		for i := 0; i < n; i++ {
			d, err := cur.U32()
			if err != nil {
				return visitor.Value{}, err
			}
			if base == visitor.VariantInt32 {
				ints[i] = int64(int32(d))
			} else {
				ints[i] = int64(d)
			}
		}
		return visitor.Value{Variant: variant, Ints: ints}, nil

	case visitor.VariantInt64, visitor.VariantUInt64, visitor.VariantHexInt64, visitor.VariantSize:
		n := length / 8
		ints := make([]int64, n)
		for i := 0; i < n; i++ {
			q, err := cur.U64()
			if err != nil {
				return visitor.Value{}, err
			}
			ints[i] = int64(q)
		}
		return visitor.Value{Variant: variant, Ints: ints}, nil

	case visitor.VariantReal32:
		n := length / 4
		floats := make([]float64, n)
		for i := 0; i < n; i++ {
			f, err := cur.F32()
			if err != nil {
				return visitor.Value{}, err
			}
			floats[i] = float64(f)
		}
		return visitor.Value{Variant: variant, Floats: floats}, nil

	case visitor.VariantReal64:
		n := length / 8
		floats := make([]float64, n)
		for i := 0; i < n; i++ {
			f, err := cur.F64()
			if err != nil {
				return visitor.Value{}, err
			}
			floats[i] = f
		}
		return visitor.Value{Variant: variant, Floats: floats}, nil

	case visitor.VariantBool:
		n := length / 4
		bools := make([]bool, n)
		for i := 0; i < n; i++ {
			d, err := cur.U32()
			if err != nil {
				return visitor.Value{}, err
			}
			bools[i] = d != 0
		}
		return visitor.Value{Variant: variant, Bools: bools}, nil

	case visitor.VariantGUID:
		n := length / 16
		guids := make([]string, n)
		for i := 0; i < n; i++ {
			g, err := cur.GUID()
			if err != nil {
				return visitor.Value{}, err
			}
			guids[i] = g
		}
		return visitor.Value{Variant: variant, GUIDs: guids}, nil

	case visitor.VariantFileTime:
		n := length / 8
		times := make([]time.Time, n)
		for i := 0; i < n; i++ {
			t, err := cur.FileTime()
			if err != nil {
				return visitor.Value{}, err
			}
			times[i] = t
		}
		return visitor.Value{Variant: variant, Times: times}, nil

	case visitor.VariantSysTime:
		n := length / 16
		systimes := make([][8]uint16, n)
		for i := 0; i < n; i++ {
			st, err := cur.SysTime()
			if err != nil {
				return visitor.Value{}, err
			}
			systimes[i] = [8]uint16{st.Year, st.Month, st.DayOfWeek, st.Day, st.Hour, st.Minute, st.Second, st.Milliseconds}
		}
		return visitor.Value{Variant: variant, SysTimes: systimes}, nil

	case visitor.VariantSid:
		start := cur.Pos
		var sids []string
		for cur.Pos-start < int64(length) {
			offset := cur.Pos
			s, err := cur.SID()
			if err != nil {
				return visitor.Value{}, &errtypes.ValueDecode{Offset: offset, Kind: "SID", Cause: err}
			}
			sids = append(sids, s)
		}
		return visitor.Value{Variant: variant, SIDs: sids}, nil

	default:
		return visitor.Value{}, &errtypes.InvalidValueVariant{Offset: cur.Pos, Value: byte(variant)}
	}
}
