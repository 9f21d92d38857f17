// Package evtxkit ties the container, binxml, and output layers together
// into the library's public surface: open a file, iterate its records in
// parallel by chunk, and render each one as XML, JSON, or through a
// caller-supplied visitor.RecordVisitor.
//
// The concurrency model (§5) generalizes the teacher's single-threaded
// ParseEvtx loop (parse.go) into a per-chunk worker pool built on
// golang.org/x/sync/errgroup, the same pattern distr1-distri and
// dolthub-dolt's go.mod both exercise for bounded parallel work: each
// chunk gets its own NameCache/TemplateCache/Driver (no cross-chunk shared
// mutable state, per the design notes), and results are reassembled in
// chunk order before being handed to the caller.
package evtxkit

import (
	"bytes"
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"evtxkit/binreader"
	"evtxkit/binxml"
	"evtxkit/errtypes"
	"evtxkit/evtxfile"
	"evtxkit/jsonout"
	"evtxkit/visitor"
	"evtxkit/xmlout"
)

// ParserSettings configures a Parser. The zero value means one worker per
// CPU, compact (non-indented) output, inline attributes, Windows-1252 ANSI
// decoding, and checksum validation off; DefaultSettings turns validation on.
type ParserSettings struct {
	NumThreads             int              // 0 => runtime.NumCPU()
	ValidateChecksums      bool
	SeparateJSONAttributes bool
	Indent                 bool
	AnsiCodec              binxml.AnsiDecoder // nil => Windows-1252
}

// DefaultSettings returns the library's default configuration.
func DefaultSettings() ParserSettings {
	return ParserSettings{ValidateChecksums: true}
}

// Parser parses one open EVTX file.
type Parser struct {
	container *evtxfile.Container
	settings  ParserSettings
}

// OpenFile opens and validates path's file header, ready for iteration.
func OpenFile(path string, settings ParserSettings) (*Parser, error) {
	ct, err := evtxfile.Open(path)
	if err != nil {
		return nil, err
	}
	return &Parser{container: ct, settings: settings}, nil
}

// OpenBuffer wraps an already-loaded EVTX file's bytes.
func OpenBuffer(data []byte, settings ParserSettings) (*Parser, error) {
	ct, err := evtxfile.FromBuffer(data)
	if err != nil {
		return nil, err
	}
	return &Parser{container: ct, settings: settings}, nil
}

// Record is one successfully (or unsuccessfully) rendered event record.
type Record struct {
	ChunkNumber int
	RecordID    uint64
	XML         string
	Err         error
}

func (p *Parser) workers() int {
	if p.settings.NumThreads > 0 {
		return p.settings.NumThreads
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// Records renders every record in the file as XML text, processing chunks
// concurrently (§5) and returning results in file order. A record-local
// failure is reported as that Record's Err rather than aborting the whole
// file, mirroring §7's "continue past a bad record" error-handling design;
// a chunk-level structural/checksum failure is reported as one Record
// whose Err carries the chunk's error.
func (p *Parser) Records(ctx context.Context) ([]Record, error) {
	chunkResults := p.container.IterChunks(p.settings.ValidateChecksums)
	perChunk := make([][]Record, len(chunkResults))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for i, cr := range chunkResults {
		i, cr := i, cr
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if cr.Err != nil {
				perChunk[i] = []Record{{ChunkNumber: i, Err: cr.Err}}
				return nil
			}
			recs, err := p.renderChunkXML(cr.Chunk)
			if err != nil {
				return err
			}
			perChunk[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Record
	for _, recs := range perChunk {
		out = append(out, recs...)
	}
	return out, nil
}

func (p *Parser) ansiCodec() binxml.AnsiDecoder {
	if p.settings.AnsiCodec != nil {
		return p.settings.AnsiCodec
	}
	return binreader.DecodeWindows1252
}

func (p *Parser) renderChunkXML(chunk *evtxfile.Chunk) ([]Record, error) {
	names := binxml.NewNameCache()
	templates, err := binxml.NewTemplateCache(chunk.Data, chunk.Header.TemplateOffsets)
	if err != nil {
		return nil, err
	}

	var recs []Record
	cur := binreader.NewCursor(chunk.Data)
	// The data region, and therefore the first record, starts at byte 512.
	if err := cur.Seek(512); err != nil {
		return nil, err
	}

	freeSpace := int64(chunk.Header.FreeSpaceOffset)
	for cur.Pos < freeSpace {
		recordStart := cur.Pos
		rh, err := evtxfile.ReadRecordHeader(cur)
		if err != nil {
			return nil, err
		}
		if rh.Magic != evtxfile.RecordMagic {
			return nil, &errtypes.Structural{Offset: recordStart, Message: "bad record magic"}
		}

		bodyEnd := recordStart + int64(rh.Size) - evtxfile.RecordTrailerSize
		var buf bytes.Buffer
		w := xmlout.New(&buf, xmlout.Settings{Indent: p.settings.Indent})
		driver := binxml.NewDriver(chunk.Data, names, templates, p.ansiCodec(), w)

		if procErr := driver.ProcessRecord(cur); procErr != nil {
			recs = append(recs, Record{ChunkNumber: chunk.Number, RecordID: rh.RecordID, Err: errtypes.WrapRecord(rh.RecordID, procErr)})
			if err := cur.Seek(recordStart + int64(rh.Size)); err != nil {
				return nil, err
			}
			continue
		}

		if err := cur.Seek(bodyEnd); err != nil {
			return nil, err
		}
		if _, err := cur.U32(); err != nil { // trailing repeated size field
			return nil, err
		}

		recs = append(recs, Record{ChunkNumber: chunk.Number, RecordID: rh.RecordID, XML: buf.String()})
	}
	return recs, nil
}

// RecordsJSON renders every record as JSON text instead of XML, sharing
// the same per-chunk parallel driver.
func (p *Parser) RecordsJSON(ctx context.Context) ([]Record, error) {
	chunkResults := p.container.IterChunks(p.settings.ValidateChecksums)
	perChunk := make([][]Record, len(chunkResults))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for i, cr := range chunkResults {
		i, cr := i, cr
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if cr.Err != nil {
				perChunk[i] = []Record{{ChunkNumber: i, Err: cr.Err}}
				return nil
			}
			recs, err := p.renderChunkJSON(cr.Chunk)
			if err != nil {
				return err
			}
			perChunk[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Record
	for _, recs := range perChunk {
		out = append(out, recs...)
	}
	return out, nil
}

func (p *Parser) renderChunkJSON(chunk *evtxfile.Chunk) ([]Record, error) {
	names := binxml.NewNameCache()
	templates, err := binxml.NewTemplateCache(chunk.Data, chunk.Header.TemplateOffsets)
	if err != nil {
		return nil, err
	}

	var recs []Record
	cur := binreader.NewCursor(chunk.Data)
	if err := cur.Seek(512); err != nil {
		return nil, err
	}

	freeSpace := int64(chunk.Header.FreeSpaceOffset)
	for cur.Pos < freeSpace {
		recordStart := cur.Pos
		rh, err := evtxfile.ReadRecordHeader(cur)
		if err != nil {
			return nil, err
		}
		if rh.Magic != evtxfile.RecordMagic {
			return nil, &errtypes.Structural{Offset: recordStart, Message: "bad record magic"}
		}
		bodyEnd := recordStart + int64(rh.Size) - evtxfile.RecordTrailerSize

		b := jsonout.New(jsonout.Settings{Indent: p.settings.Indent, SeparateJSONAttributes: p.settings.SeparateJSONAttributes})
		driver := binxml.NewDriver(chunk.Data, names, templates, p.ansiCodec(), b)

		if procErr := driver.ProcessRecord(cur); procErr != nil {
			recs = append(recs, Record{ChunkNumber: chunk.Number, RecordID: rh.RecordID, Err: errtypes.WrapRecord(rh.RecordID, procErr)})
			if err := cur.Seek(recordStart + int64(rh.Size)); err != nil {
				return nil, err
			}
			continue
		}

		if err := cur.Seek(bodyEnd); err != nil {
			return nil, err
		}
		if _, err := cur.U32(); err != nil {
			return nil, err
		}

		raw, err := jsonout.MarshalRecord(b)
		if err != nil {
			return nil, &errtypes.OutputError{Message: "json marshal", Cause: err}
		}
		recs = append(recs, Record{ChunkNumber: chunk.Number, RecordID: rh.RecordID, XML: string(raw)})
	}
	return recs, nil
}

// VisitRecords drives every record in the file into a fresh
// visitor.RecordVisitor built by newVisitor for each record (§6: the
// "records_to_visitor"-equivalent entry point), adapting the low-level
// BinXmlOutput event stream into the classified empty/simple/complex/text
// calls RecordVisitor expects.
//
// The returned chunk errors mirror Records/RecordsJSON's per-record Err
// field (§8: a corrupted chunk yields the preceding chunks' records plus a
// surfaced chunk error) for callers driving their own RecordVisitor, who
// have no Record slice to stash a chunk failure in.
func (p *Parser) VisitRecords(ctx context.Context, newVisitor func() visitor.RecordVisitor) ([]error, error) {
	chunkResults := p.container.IterChunks(p.settings.ValidateChecksums)

	var mu sync.Mutex
	var chunkErrs []error

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for i, cr := range chunkResults {
		i, cr := i, cr
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if cr.Err != nil {
				mu.Lock()
				chunkErrs = append(chunkErrs, errtypes.WrapChunk(i, cr.Err))
				mu.Unlock()
				return nil
			}
			return p.visitChunk(cr.Chunk, newVisitor)
		})
	}
	if err := g.Wait(); err != nil {
		return chunkErrs, err
	}
	return chunkErrs, nil
}

func (p *Parser) visitChunk(chunk *evtxfile.Chunk, newVisitor func() visitor.RecordVisitor) error {
	names := binxml.NewNameCache()
	templates, err := binxml.NewTemplateCache(chunk.Data, chunk.Header.TemplateOffsets)
	if err != nil {
		return err
	}

	cur := binreader.NewCursor(chunk.Data)
	if err := cur.Seek(512); err != nil {
		return err
	}

	freeSpace := int64(chunk.Header.FreeSpaceOffset)
	for cur.Pos < freeSpace {
		recordStart := cur.Pos
		rh, err := evtxfile.ReadRecordHeader(cur)
		if err != nil {
			return err
		}
		if rh.Magic != evtxfile.RecordMagic {
			return &errtypes.Structural{Offset: recordStart, Message: "bad record magic"}
		}
		bodyEnd := recordStart + int64(rh.Size) - evtxfile.RecordTrailerSize

		rv := newVisitor()
		adapter := visitor.NewRecordVisitorAdapter(rv)
		driver := binxml.NewDriver(chunk.Data, names, templates, p.ansiCodec(), adapter)

		if procErr := driver.ProcessRecord(cur); procErr != nil {
			if err := cur.Seek(recordStart + int64(rh.Size)); err != nil {
				return err
			}
			continue
		}

		if err := cur.Seek(bodyEnd); err != nil {
			return err
		}
		if _, err := cur.U32(); err != nil {
			return err
		}
	}
	return nil
}
