package t4

import "github.com/dbehnke/gofax/internal/bitio"

// Quality is the copy-quality classification surfaced to the session
// engine after a page completes (spec.md §4.1).
type Quality int

const (
	QualityGood Quality = iota
	QualityPoor
	QualityBad
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "GOOD"
	case QualityPoor:
		return "POOR"
	case QualityBad:
		return "BAD"
	default:
		return "unknown"
	}
}

// Classify implements spec.md's copy-quality thresholds:
// GOOD if bad_rows*50 < length, POOR if bad_rows*20 < length, else BAD.
func Classify(badRows, length int) Quality {
	if length == 0 {
		return QualityGood
	}
	switch {
	case badRows*50 < length:
		return QualityGood
	case badRows*20 < length:
		return QualityPoor
	default:
		return QualityBad
	}
}

// DecoderStats mirrors Stats but for the receive side, including the bad
// row counters spec.md requires the session engine to surface.
type DecoderStats struct {
	Rows            int
	BadRows         int
	LongestBadRun   int
}

// Decoder reconstructs a page bitmap from a compressed bit stream, one row
// at a time, tolerating bit errors per spec.md §4.1.
type Decoder struct {
	compression Compression
	width       int

	r             *bitio.Reader
	refRuns       []int
	eolRun        int
	stats         DecoderStats
	curBadRun     int
}

// NewDecoder builds a decoder for the given compression and page width.
func NewDecoder(compression Compression, width int) *Decoder {
	return &Decoder{compression: compression, width: width}
}

// StartPage resets per-page decoder state and attaches the bit stream.
func (d *Decoder) StartPage(data []byte) {
	d.r = bitio.NewReader(data)
	d.refRuns = AllWhiteRuns(d.width)
	d.eolRun = 0
	d.stats = DecoderStats{}
	d.curBadRun = 0
}

// SeekFirstEOL discards bits until the 12-bit EOL pattern is found,
// matching the "seeking first EOL" decoder state. A no-op for T.6, which
// carries no EOL markers.
func (d *Decoder) SeekFirstEOL() bool {
	if d.compression == CompressionMMR {
		return true
	}
	window := uint32(0)
	bits := 0
	for {
		bit := d.r.ReadBit()
		if bit < 0 {
			return false
		}
		window = ((window << 1) | uint32(bit)) & 0xFFF
		bits++
		if bits >= eolBits && window == eolCode {
			return true
		}
	}
}

// DecodeRow decodes the next row. ok is false if the stream ended before a
// full row could be read; endOfPage is true once RTC (six EOLs, or the
// decoder's five-consecutive-EOL threshold) or an external flush closes
// the page.
func (d *Decoder) DecodeRow() (row []byte, endOfPage bool, ok bool) {
	use1D := d.compression == Compression1D

	if d.compression != CompressionMMR {
		for {
			if !d.consumeEOL() {
				return nil, false, false
			}
			peeked, valid := d.r.PeekBitsValid(eolBits)
			if valid == eolBits && peeked == eolCode {
				d.eolRun++
				if d.eolRun >= 5 {
					return nil, true, true
				}
				continue
			}
			d.eolRun = 0
			break
		}
		if d.compression == Compression2D {
			bit := d.r.ReadBit()
			if bit < 0 {
				return nil, false, false
			}
			use1D = bit == 1
		}
	}

	var runs []int
	var good bool
	if use1D {
		runs, good = d.decode1DRow()
	} else {
		runs, good = d.decode2DRow()
	}

	stride := (d.width + 7) / 8
	total := sumRuns(runs)
	rowOK := good && total == d.width
	if !good && d.r.AtEnd() {
		return nil, false, false
	}

	if rowOK {
		row = RowFromRuns(runs, d.width, stride)
		d.curBadRun = 0
	} else {
		d.stats.BadRows++
		d.curBadRun++
		if d.curBadRun > d.stats.LongestBadRun {
			d.stats.LongestBadRun = d.curBadRun
		}
		if len(d.refRuns) > 0 {
			row = RowFromRuns(d.refRuns, d.width, stride)
		} else {
			row = make([]byte, stride)
		}
	}
	d.stats.Rows++
	if rowOK {
		d.refRuns = runs
	}
	return row, false, true
}

func (d *Decoder) consumeEOL() bool {
	v, valid := d.r.PeekBitsValid(eolBits)
	if valid != eolBits || v != eolCode {
		return true // no EOL present (e.g. very first row after SeekFirstEOL already consumed it)
	}
	d.r.SkipBits(eolBits)
	return true
}

func (d *Decoder) decode1DRow() ([]int, bool) {
	var runs []int
	color := 0
	total := 0
	for total < d.width {
		run, ok := decodeSingleColorRun(d.r, color == 0)
		if !ok {
			return runs, false
		}
		runs = append(runs, run)
		total += run
		color ^= 1
	}
	return runs, true
}

func (d *Decoder) decode2DRow() ([]int, bool) {
	refPos := changingElements(d.refRuns, d.width)
	var runs []int
	pending := 0
	a0 := 0
	color := 0
	first := true

	for a0 < d.width {
		// As in encode2D, the first search of a row starts before column 0.
		s := a0
		if first {
			s, first = -1, false
		}
		sym, ok := decode2DControlCode(d.r)
		if !ok {
			return runs, false
		}
		switch sym {
		case code2DPass:
			_, b2 := findB1B2(refPos, s, color)
			pending += b2 - a0
			a0 = b2
		case code2DHoriz:
			run1, ok1 := decodeSingleColorRun(d.r, color == 0)
			run2, ok2 := decodeSingleColorRun(d.r, color != 0)
			if !ok1 || !ok2 {
				return runs, false
			}
			runs = append(runs, pending+run1)
			runs = append(runs, run2)
			pending = 0
			a0 += run1 + run2
		case code2DEOL:
			return runs, false
		default:
			if !isVertical(sym) {
				return runs, false
			}
			b1, _ := findB1B2(refPos, s, color)
			a1 := b1 + vOffset(sym)
			pending += a1 - a0
			runs = append(runs, pending)
			pending = 0
			a0 = a1
			color ^= 1
		}
	}
	if pending > 0 {
		runs = append(runs, pending)
	}
	return runs, true
}

func decodeSingleColorRun(r *bitio.Reader, white bool) (int, bool) {
	trie := blackTrie
	if white {
		trie = whiteTrie
	}
	total := 0
	for {
		run, ok := trieDecode(trie, r)
		if !ok {
			return total, false
		}
		total += run
		if run < 64 {
			return total, true
		}
	}
}

func decode2DControlCode(r *bitio.Reader) (twoDCode, bool) {
	n := twoDTrie
	for {
		bit := r.ReadBit()
		if bit < 0 {
			return code2DNone, false
		}
		n = n.children[bit]
		if n == nil {
			return code2DNone, false
		}
		if n.leaf {
			return n.symbol, true
		}
	}
}

func trieDecode(root *trieNode, r *bitio.Reader) (int, bool) {
	n := root
	for {
		bit := r.ReadBit()
		if bit < 0 {
			return 0, false
		}
		n = n.children[bit]
		if n == nil {
			return 0, false
		}
		if n.leaf {
			return n.run, true
		}
	}
}

// Stats reports the decoding statistics gathered since StartPage.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

func sumRuns(runs []int) int {
	t := 0
	for _, r := range runs {
		t += r
	}
	return t
}
