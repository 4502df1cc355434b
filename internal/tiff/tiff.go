// Package tiff is gofax's own minimal TIFF/F reader and writer: a
// class-F (single-strip, bi-level, T.4/T.6 compressed) container for the
// page bitmaps internal/t4 encodes and decodes. spec.md §1 places TIFF/F
// on disk representation out of scope, treating it as an opaque image
// sink/source (internal/t4.ImageSource/ImageSink); this package is the
// concrete implementation gofax needs to be runnable end to end, built to
// the tag set spec.md §6 names. It is intentionally not a general TIFF
// library: no compression other than T.4/T.6, no multi-strip images, no
// colour.
package tiff

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/dbehnke/gofax/internal/t4"
)

// Standard and private TIFF tag numbers this writer understands, limited
// to the set spec.md §6 calls out by name.
const (
	tagImageWidth           = 256
	tagImageLength          = 257
	tagBitsPerSample        = 258
	tagCompression          = 259
	tagPhotometric          = 262
	tagDocumentName         = 269
	tagImageDescription     = 270
	tagMake                 = 271
	tagModel                = 272
	tagStripOffsets         = 273
	tagSamplesPerPixel      = 277
	tagRowsPerStrip         = 278
	tagStripByteCounts      = 279
	tagXResolution          = 282
	tagYResolution          = 283
	tagT4Options            = 292
	tagT6Options            = 293
	tagResolutionUnit       = 296
	tagPageNumber           = 297
	tagSoftware             = 305
	tagDateTime             = 306
	tagHostComputer         = 316
	tagFaxRecvTime   uint16 = 34908
	tagFaxSubAddress uint16 = 34911

	compressionT4 = 3
	compressionT6 = 4

	photometricWhiteIsZero = 0

	resUnitInch = 2

	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5

	t4OptionGroup3_2D    = 1 << 0
	t4OptionUncompressed = 1 << 1
	t4OptionFillBits     = 1 << 2
	t6OptionUncompressed = 1 << 1
)

type ifdEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	valueOff uint32 // either the inline value (left-justified for short) or a file offset
	extra    []byte // out-of-line data (ASCII strings, rationals, multi-short arrays)
}

// Writer produces a class-F multi-page TIFF file, implementing
// t4.ImageSink.
type Writer struct {
	f    *os.File
	w    *bufio.Writer
	pos  uint32
	pages []uint32 // file offsets of each page's IFD, for the PageNumber patch-up at Close

	width      int
	xres, yres int
	rows       [][]byte
	rowCount   int

	remoteIdent string
	headerInfo  string
	subAddress  string
	recvTime    time.Time
}

// NewWriter creates a Writer; RecvTime defaults to the zero time, meaning
// "omit FAXRECVTIME", unless SetRecvTime is called.
func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) SetRecvTime(t time.Time) { w.recvTime = t }

func (w *Writer) Open(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tiff: create %s: %w", path, err)
	}
	w.f = f
	w.w = bufio.NewWriter(f)
	// Header: byte order "II" (little-endian), magic 42, offset of first IFD
	// (patched once the first page is written).
	binary.Write(w.w, binary.LittleEndian, [2]byte{'I', 'I'})
	binary.Write(w.w, binary.LittleEndian, uint16(42))
	binary.Write(w.w, binary.LittleEndian, uint32(0))
	w.pos = 8
	return nil
}

func (w *Writer) SetRemoteIdentifier(id string) { w.remoteIdent = id }
func (w *Writer) SetHeaderInfo(info string)      { w.headerInfo = info }

// SetSubAddress records the session's selective-polling/sub-address
// string (spec.md §3) as the FAXSUBADDRESS tag on every subsequent page.
func (w *Writer) SetSubAddress(addr string) { w.subAddress = addr }

func (w *Writer) StartPage(width, xres, yres int) error {
	w.width = width
	w.xres = xres
	w.yres = yres
	w.rows = w.rows[:0]
	return nil
}

func (w *Writer) PutRow(row []byte) error {
	cp := make([]byte, len(row))
	copy(cp, row)
	w.rows = append(w.rows, cp)
	return nil
}

// EndPage runs the buffered rows through a t4.Encoder for the negotiated
// compression, matching spec.md §6's "compression field is set to match
// the encoded data": the strip holds the actual T.4/T.6 bitstream, not raw
// packed pixels, so a real class-F reader can decode it without gofax.
// The writer passes k=0, so a T.4 2-D page is coded with no periodic 1-D
// row; this differs from the engine's EncodePage
// (internal/t30/engine.go), which uses k=2, 4 or 8 by resolution.
func (w *Writer) EndPage(compression t4.Compression, quality t4.Quality) error {
	w.rowCount = len(w.rows)
	enc := t4.NewEncoder(compression, w.width, 0)
	enc.StartPage()
	for _, row := range w.rows {
		enc.EncodeRow(row)
	}
	strip := enc.EndPage()

	stripOff := w.pos
	if _, err := w.w.Write(strip); err != nil {
		return fmt.Errorf("tiff: write strip: %w", err)
	}
	w.pos += uint32(len(strip))

	entries := w.buildEntries(compression, stripOff, uint32(len(strip)))
	ifdOff := w.pos
	if err := w.writeIFD(entries); err != nil {
		return err
	}
	if err := w.linkPrevIFD(ifdOff); err != nil {
		return err
	}
	w.pages = append(w.pages, ifdOff)
	return nil
}

func (w *Writer) buildEntries(compression t4.Compression, stripOff, stripLen uint32) []ifdEntry {
	comp := uint32(compressionT4)
	var t4opts uint32
	var t6opts uint32
	switch compression {
	case t4.Compression1D:
		comp = compressionT4
	case t4.Compression2D:
		comp = compressionT4
		t4opts = t4OptionGroup3_2D | t4OptionFillBits
	case t4.CompressionMMR:
		comp = compressionT6
	}

	entries := []ifdEntry{
		{tag: tagImageWidth, typ: typeLong, count: 1, valueOff: uint32(w.width)},
		{tag: tagImageLength, typ: typeLong, count: 1, valueOff: 0}, // patched below via extra-less direct set
		{tag: tagBitsPerSample, typ: typeShort, count: 1, valueOff: 1},
		{tag: tagCompression, typ: typeShort, count: 1, valueOff: comp},
		{tag: tagPhotometric, typ: typeShort, count: 1, valueOff: photometricWhiteIsZero},
		{tag: tagStripOffsets, typ: typeLong, count: 1, valueOff: stripOff},
		{tag: tagSamplesPerPixel, typ: typeShort, count: 1, valueOff: 1},
		{tag: tagRowsPerStrip, typ: typeLong, count: 1, valueOff: 0}, // patched below
		{tag: tagStripByteCounts, typ: typeLong, count: 1, valueOff: stripLen},
		{tag: tagXResolution, typ: typeRational, count: 1, extra: rational(uint32(w.xres), 1)},
		{tag: tagYResolution, typ: typeRational, count: 1, extra: rational(uint32(w.yres), 1)},
		// ResolutionUnit is nominally "inches" per spec.md §6; this writer
		// stores XResolution/YResolution as exact pixels-per-metre instead
		// of converting to dpi, trading real-world TIFF-viewer fidelity for
		// lossless round-tripping of gofax's own files.
		{tag: tagResolutionUnit, typ: typeShort, count: 1, valueOff: resUnitInch},
		{tag: tagPageNumber, typ: typeShort, count: 2, extra: shortPair(uint16(len(w.pages)), 0)},
		{tag: tagSoftware, typ: typeASCII, count: 6, extra: []byte("gofax\x00")},
		{tag: tagDateTime, typ: typeASCII, count: 20, extra: dateTimeBytes(time.Now())},
		{tag: tagHostComputer, typ: typeASCII, count: 0},
	}
	entries[1].valueOff = uint32(w.rowCount)
	entries[7].valueOff = uint32(w.rowCount)

	if compression == t4.Compression2D || compression == t4.Compression1D {
		entries = append(entries, ifdEntry{tag: tagT4Options, typ: typeLong, count: 1, valueOff: t4opts})
	} else {
		entries = append(entries, ifdEntry{tag: tagT6Options, typ: typeLong, count: 1, valueOff: t6opts})
	}
	if w.remoteIdent != "" {
		entries = append(entries, asciiEntry(tagImageDescription, w.remoteIdent))
	}
	if w.headerInfo != "" {
		entries = append(entries, asciiEntry(tagDocumentName, w.headerInfo))
	}
	if w.subAddress != "" {
		entries = append(entries, asciiEntry(tagFaxSubAddress, w.subAddress))
	}
	if !w.recvTime.IsZero() {
		entries = append(entries, ifdEntry{tag: tagFaxRecvTime, typ: typeLong, count: 1, valueOff: uint32(w.recvTime.Unix())})
	}
	// Drop the zero-length HostComputer placeholder above; real value set
	// by the caller's Make/Model if desired via SetIdentity-style hooks is
	// out of scope for this minimal writer.
	filtered := entries[:0]
	for _, e := range entries {
		if e.tag == tagHostComputer && e.count == 0 {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), extra: b}
}

func rational(num, den uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], num)
	binary.LittleEndian.PutUint32(b[4:8], den)
	return b
}

func shortPair(a, b uint16) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], a)
	binary.LittleEndian.PutUint16(buf[2:4], b)
	return buf
}

func dateTimeBytes(t time.Time) []byte {
	s := t.Format("2006:01:02 15:04:05") + "\x00"
	return []byte(s)
}

// writeIFD serialises one IFD: entry count, entries (sorted by tag,
// out-of-line data appended after the fixed-size entry table), then a
// next-IFD offset placeholder (patched by the following EndPage or by
// Close for the final page).
func (w *Writer) writeIFD(entries []ifdEntry) error {
	// Entries must be in ascending tag order per the TIFF spec.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].tag > entries[j].tag; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}

	headerLen := 2 + len(entries)*12 + 4
	extraBase := w.pos + uint32(headerLen)
	offsets := make([]uint32, len(entries))
	cursor := extraBase
	for i, e := range entries {
		if len(e.extra) > 4 {
			offsets[i] = cursor
			cursor += uint32(len(e.extra))
			if cursor%2 == 1 {
				cursor++ // word-align, matching libtiff's own padding
			}
		}
	}

	if err := binary.Write(w.w, binary.LittleEndian, uint16(len(entries))); err != nil {
		return err
	}
	for i, e := range entries {
		binary.Write(w.w, binary.LittleEndian, e.tag)
		binary.Write(w.w, binary.LittleEndian, e.typ)
		binary.Write(w.w, binary.LittleEndian, e.count)
		switch {
		case len(e.extra) > 4:
			binary.Write(w.w, binary.LittleEndian, offsets[i])
		case len(e.extra) > 0:
			var buf [4]byte
			copy(buf[:], e.extra)
			w.w.Write(buf[:])
		default:
			binary.Write(w.w, binary.LittleEndian, e.valueOff)
		}
	}
	binary.Write(w.w, binary.LittleEndian, uint32(0)) // next-IFD offset, patched later
	w.pos = extraBase

	for _, e := range entries {
		if len(e.extra) > 4 {
			w.w.Write(e.extra)
			w.pos += uint32(len(e.extra))
			if w.pos%2 == 1 {
				w.w.WriteByte(0)
				w.pos++
			}
		}
	}
	return nil
}

// linkPrevIFD patches either the file header (first page) or the
// previous page's next-IFD slot to point at ifdOff.
func (w *Writer) linkPrevIFD(ifdOff uint32) error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	var patchAt int64
	if len(w.pages) == 0 {
		patchAt = 4
	} else {
		prev := w.pages[len(w.pages)-1]
		prevEntryCount, err := w.readUint16At(int64(prev))
		if err != nil {
			return err
		}
		patchAt = int64(prev) + 2 + int64(prevEntryCount)*12
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], ifdOff)
	if _, err := w.f.WriteAt(buf[:], patchAt); err != nil {
		return fmt.Errorf("tiff: link IFD: %w", err)
	}
	return nil
}

func (w *Writer) readUint16At(off int64) (uint16, error) {
	var buf [2]byte
	if _, err := w.f.ReadAt(buf[:], off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// Close patches every page's PageNumber tag's second SHORT (total page
// count) now that it is known, matching spec.md §6's "PageNumber tag is
// updated after the last page to reflect the real total".
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	total := uint16(len(w.pages))
	for _, ifdOff := range w.pages {
		if err := w.patchPageTotal(ifdOff, total); err != nil {
			return err
		}
	}
	return w.f.Close()
}

func (w *Writer) patchPageTotal(ifdOff uint32, total uint16) error {
	count, err := w.readUint16At(int64(ifdOff))
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		entryOff := int64(ifdOff) + 2 + int64(i)*12
		var tagBuf [2]byte
		if _, err := w.f.ReadAt(tagBuf[:], entryOff); err != nil {
			return err
		}
		if binary.LittleEndian.Uint16(tagBuf[:]) != tagPageNumber {
			continue
		}
		// PageNumber is a 2-count SHORT (4 bytes total): it always fits
		// inline in the entry's value slot, never out-of-line, so the
		// second SHORT sits 2 bytes into the value field itself.
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], total)
		_, err := w.f.WriteAt(buf[:], entryOff+8+2)
		return err
	}
	return nil
}

// Reader reads back a class-F file written by Writer, implementing
// t4.ImageSource.
type Reader struct {
	f           *os.File
	ifdOff      uint32
	width       int
	xres        int
	yres        int
	data        []byte
	compression t4.Compression
	dec         *t4.Decoder
	atEOP       bool
}

// Compression reports the compression scheme of the page last returned by
// StartPage, derived from the IFD's Compression/T4Options tags.
func (r *Reader) Compression() t4.Compression { return r.compression }

func NewReader() *Reader { return &Reader{} }

func (r *Reader) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("tiff: open %s: %w", path, err)
	}
	r.f = f
	var hdr [8]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("tiff: read header: %w", err)
	}
	if hdr[0] != 'I' || hdr[1] != 'I' {
		return fmt.Errorf("tiff: only little-endian files are supported")
	}
	r.ifdOff = binary.LittleEndian.Uint32(hdr[4:8])
	return nil
}

type tagValue struct {
	typ   uint16
	count uint32
	raw   [4]byte
}

func (r *Reader) readIFD(off uint32) (map[uint16]tagValue, uint32, error) {
	count, err := r.readUint16At(int64(off))
	if err != nil {
		return nil, 0, err
	}
	entries := make(map[uint16]tagValue, count)
	for i := 0; i < int(count); i++ {
		entryOff := int64(off) + 2 + int64(i)*12
		var buf [12]byte
		if _, err := r.f.ReadAt(buf[:], entryOff); err != nil {
			return nil, 0, err
		}
		tag := binary.LittleEndian.Uint16(buf[0:2])
		typ := binary.LittleEndian.Uint16(buf[2:4])
		cnt := binary.LittleEndian.Uint32(buf[4:8])
		var raw [4]byte
		copy(raw[:], buf[8:12])
		entries[tag] = tagValue{typ: typ, count: cnt, raw: raw}
	}
	var nextBuf [4]byte
	if _, err := r.f.ReadAt(nextBuf[:], int64(off)+2+int64(count)*12); err != nil {
		return nil, 0, err
	}
	return entries, binary.LittleEndian.Uint32(nextBuf[:]), nil
}

func (r *Reader) readUint16At(off int64) (uint16, error) {
	var buf [2]byte
	if _, err := r.f.ReadAt(buf[:], off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (t tagValue) asLong() uint32 {
	if t.typ == typeShort {
		return uint32(binary.LittleEndian.Uint16(t.raw[:2]))
	}
	return binary.LittleEndian.Uint32(t.raw[:])
}

// asRational resolves a RATIONAL tag's numerator/denominator, which TIFF
// always stores out-of-line (8 bytes never fit in the 4-byte value slot),
// with the in-IFD raw bytes holding the file offset to them.
func (t tagValue) asRational(f *os.File) uint32 {
	off := binary.LittleEndian.Uint32(t.raw[:])
	var buf [8]byte
	if _, err := f.ReadAt(buf[:], int64(off)); err != nil {
		return 0
	}
	num := binary.LittleEndian.Uint32(buf[0:4])
	den := binary.LittleEndian.Uint32(buf[4:8])
	if den == 0 {
		return 0
	}
	return num / den
}

// StartPage loads the next page's compressed strip and primes a
// t4.Decoder over it, reporting the page's geometry; ok is false once
// every page has been read. Row() then decodes on demand, the same
// DecodeRow/SeekFirstEOL sequence internal/t30.Session.DecodeNonECMPage
// uses for the wire-format bit stream.
func (r *Reader) StartPage() (width, xres, yres int, ok bool) {
	if r.ifdOff == 0 {
		return 0, 0, 0, false
	}
	entries, next, err := r.readIFD(r.ifdOff)
	if err != nil {
		return 0, 0, 0, false
	}
	r.width = int(entries[tagImageWidth].asLong())
	stripOff := entries[tagStripOffsets].asLong()
	stripLen := entries[tagStripByteCounts].asLong()
	r.data = make([]byte, stripLen)
	if _, err := r.f.ReadAt(r.data, int64(stripOff)); err != nil {
		return 0, 0, 0, false
	}
	r.xres = int(entries[tagXResolution].asRational(r.f))
	r.yres = int(entries[tagYResolution].asRational(r.f))
	r.ifdOff = next

	switch entries[tagCompression].asLong() {
	case compressionT6:
		r.compression = t4.CompressionMMR
	default:
		if t4opts, ok := entries[tagT4Options]; ok && t4opts.asLong()&t4OptionGroup3_2D != 0 {
			r.compression = t4.Compression2D
		} else {
			r.compression = t4.Compression1D
		}
	}

	r.dec = t4.NewDecoder(r.compression, r.width)
	r.dec.StartPage(r.data)
	r.dec.SeekFirstEOL()
	r.atEOP = false
	return r.width, r.xres, r.yres, true
}

// Row decodes and returns the next row of the current page.
func (r *Reader) Row() ([]byte, bool) {
	if r.atEOP {
		return nil, false
	}
	row, eop, ok := r.dec.DecodeRow()
	if !ok || eop {
		r.atEOP = true
		return nil, false
	}
	return row, true
}

// Stats reports the decode-quality counters for the page just finished,
// per spec.md §4.1's GOOD/POOR/BAD classification.
func (r *Reader) Stats() (t4.DecoderStats, t4.Quality) {
	stats := r.dec.Stats()
	return stats, t4.Classify(stats.BadRows, stats.Rows)
}

func (r *Reader) EndPage() {}

func (r *Reader) Close() error { return r.f.Close() }

var _ t4.ImageSink = (*Writer)(nil)
var _ t4.ImageSource = (*Reader)(nil)
