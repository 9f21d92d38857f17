// Template definitions and their per-chunk cache, grounded on
// original_source/src/template_cache.rs generalized from a byteorder/Cursor
// pair into evtxkit's own binreader.Cursor, and on the teacher's
// TemplateInstance handling (parse.go) for the "define inline on first use"
// behavior.
package binxml

import (
	"evtxkit/binreader"
)

// TemplateDefinition is a parsed, out-of-line element tree: its GUID and
// the byte range of its BinXML token stream within the chunk buffer. The
// expander tokenizes [BodyStart, BodyEnd) once per instantiation, resolving
// NormalSubstitution/OptionalSubstitution tokens against whatever
// substitution array the calling instance supplies.
type TemplateDefinition struct {
	GUID      string
	BodyStart int64
	BodyEnd   int64
}

// TemplateCache maps in-chunk offset to its parsed definition (§4.3). It is
// pre-populated from the chunk's 32-entry template offset table when the
// chunk is opened; templates referenced inline by a TemplateInstance whose
// definition offset equals its own instantiation point are parsed once and
// inserted on demand.
type TemplateCache struct {
	chunkData []byte
	defs      map[uint32]*TemplateDefinition
}

// NewTemplateCache pre-populates a cache from the chunk's template offset
// table. Zero entries in the table are skipped.
func NewTemplateCache(chunkData []byte, offsets [32]uint32) (*TemplateCache, error) {
	tc := &TemplateCache{chunkData: chunkData, defs: make(map[uint32]*TemplateDefinition)}
	for _, off := range offsets {
		if off == 0 {
			continue
		}
		if _, ok := tc.defs[off]; ok {
			continue
		}
		def, err := tc.parseAt(off)
		if err != nil {
			return nil, err
		}
		tc.defs[off] = def
	}
	return tc, nil
}

// Get returns the cached definition at offset, or (nil, false) if it has
// not been parsed yet (the caller then parses it with ParseInline, which
// also caches it).
func (tc *TemplateCache) Get(offset uint32) (*TemplateDefinition, bool) {
	def, ok := tc.defs[offset]
	return def, ok
}

// ParseInline parses a template definition at offset (used when a
// TemplateInstance's definition-offset points at its own instantiation
// site) and caches it, so a later instance referencing the same offset
// costs a single map lookup. A template is parsed at most once per chunk
// regardless of how many instances reference it (§8 testable property).
func (tc *TemplateCache) ParseInline(offset uint32) (*TemplateDefinition, error) {
	if def, ok := tc.defs[offset]; ok {
		return def, nil
	}
	def, err := tc.parseAt(offset)
	if err != nil {
		return nil, err
	}
	tc.defs[offset] = def
	return def, nil
}

func (tc *TemplateCache) parseAt(offset uint32) (*TemplateDefinition, error) {
	cur := binreader.NewCursor(tc.chunkData)
	if err := cur.Seek(int64(offset)); err != nil {
		return nil, err
	}
	if _, err := cur.U32(); err != nil { // next-template offset, unused
		return nil, err
	}
	guid, err := cur.GUID()
	if err != nil {
		return nil, err
	}
	dataSize, err := cur.U32()
	if err != nil {
		return nil, err
	}
	bodyStart := cur.Pos
	return &TemplateDefinition{
		GUID:      guid,
		BodyStart: bodyStart,
		BodyEnd:   bodyStart + int64(dataSize),
	}, nil
}
