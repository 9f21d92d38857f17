package binxml

import "evtxkit/binreader"

// NameCache interns element/attribute names by their in-chunk byte offset
// (§4.2). Names are filled lazily: the first OpenStartElement or Attribute
// token to reference an offset either finds its definition inline (the
// offset equals the cursor's current position) or seeks out to an
// earlier-defined one; every later reference to that offset is an O(1)
// map lookup. The cache's lifetime is one chunk.
type NameCache struct {
	cache map[uint32]string
}

// NewNameCache returns an empty cache, ready to be filled as the chunk's
// records are tokenized.
func NewNameCache() *NameCache {
	return &NameCache{cache: make(map[uint32]string)}
}

// Resolve returns the interned name at offset, parsing it the first time
// it's seen.
func (nc *NameCache) Resolve(cur *binreader.Cursor, offset uint32) (string, error) {
	if name, ok := nc.cache[offset]; ok {
		return name, nil
	}

	if cur.Pos == int64(offset) {
		name, err := parseNameEntry(cur)
		if err != nil {
			return "", err
		}
		nc.cache[offset] = name
		return name, nil
	}

	save := cur.Pos
	if err := cur.Seek(int64(offset)); err != nil {
		return "", err
	}
	name, err := parseNameEntry(cur)
	if err != nil {
		return "", err
	}
	nc.cache[offset] = name
	if err := cur.Seek(save); err != nil {
		return "", err
	}
	return name, nil
}

// parseNameEntry reads one name record: a chaining offset to the next name
// in the same hash bucket (unused here), an advisory hash (read but never
// verified, per §4.2), a UTF-16 unit count, and that many units plus a
// trailing NUL.
func parseNameEntry(cur *binreader.Cursor) (string, error) {
	if _, err := cur.U32(); err != nil { // next-name offset, unused
		return "", err
	}
	if _, err := cur.U16(); err != nil { // hash, advisory only
		return "", err
	}
	count, err := cur.U16()
	if err != nil {
		return "", err
	}
	units, err := cur.U16N(int(count) + 1) // +1 consumes the NUL terminator
	if err != nil {
		return "", err
	}
	return binreader.DecodeUTF16(units[:count]), nil
}
