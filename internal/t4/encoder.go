package t4

import "github.com/dbehnke/gofax/internal/bitio"

// Stats summarises one page's encoding, restored from spandsp's t4.c per
// SPEC_FULL.md §3 (kept for the caller to log after end_page).
type Stats struct {
	Rows          int
	CompressedBits int
	PaddingBits   int
}

// Encoder compresses a page, one row at a time, per spec.md §4.1.
type Encoder struct {
	compression Compression
	k           int // 2-D interleave factor; 0 disables interleave (T.6, pure 2-D)
	minRowBits  int
	width       int

	w          *bitio.Writer
	refRuns    []int
	rowsSinceK int
	stats      Stats
}

// NewEncoder builds an encoder for the given compression and page width.
// k is the 1-D interleave period for T.4 2-D (2 at 200dpi, 4 at 400dpi,
// 8 at superfine); it is ignored for 1-D and T.6.
func NewEncoder(compression Compression, width, k int) *Encoder {
	return &Encoder{compression: compression, width: width, k: k}
}

// StartPage resets per-page encoder state (spec.md's start_page).
func (e *Encoder) StartPage() {
	e.w = bitio.NewWriter()
	e.refRuns = AllWhiteRuns(e.width)
	e.rowsSinceK = 0
	e.stats = Stats{}
}

// SetMinRowBits configures the minimum encoded bits per row used to
// satisfy a far-end minimum-scan-line-time requirement.
func (e *Encoder) SetMinRowBits(n int) {
	e.minRowBits = n
}

func (e *Encoder) emitEOL(next1D bool) {
	e.w.WriteBits(eolCode, eolBits)
	if e.compression == Compression2D {
		if next1D {
			e.w.WriteBit(1)
		} else {
			e.w.WriteBit(0)
		}
	}
}

// EncodeRow encodes one packed row, appending bits to the page stream.
func (e *Encoder) EncodeRow(row []byte) {
	runs := RunsForRow(row, e.width)
	rowStart := e.w.Len()

	use1D := e.compression == Compression1D
	if e.compression == Compression2D {
		use1D = e.k > 0 && e.rowsSinceK == 0
	}

	if e.compression != CompressionMMR {
		e.emitEOL(use1D)
	}

	if use1D {
		e.encode1D(runs)
	} else {
		e.encode2D(runs)
	}

	if e.compression == Compression2D {
		e.rowsSinceK++
		if e.k > 0 && e.rowsSinceK >= e.k {
			e.rowsSinceK = 0
		}
	}

	rowBits := e.w.Len() - rowStart
	if rowBits < e.minRowBits {
		pad := e.minRowBits - rowBits
		for i := 0; i < pad; i++ {
			e.w.WriteBit(0)
		}
		e.stats.PaddingBits += pad
	}
	e.stats.CompressedBits += e.w.Len() - rowStart
	e.stats.Rows++
	e.refRuns = runs
}

func (e *Encoder) encode1D(runs []int) {
	color := 0 // white first
	for _, r := range runs {
		for _, c := range encodeRun(r, color == 0) {
			e.w.WriteBits(c.code, c.bits)
		}
		color ^= 1
	}
}

func (e *Encoder) encode2D(runs []int) {
	curPos := changingElements(runs, e.width)
	refPos := changingElements(e.refRuns, e.width)

	a0 := 0
	color := 0
	first := true
	for a0 < e.width {
		// At the start of a row a0 sits on an imaginary white pixel before
		// column 0, so a changing element at column 0 counts as a1/b1.
		s := a0
		if first {
			s, first = -1, false
		}
		a1 := firstGreater(curPos, s)
		b1, b2 := findB1B2(refPos, s, color)

		switch {
		case b2 < a1:
			e.writeTwoD(code2DPass)
			a0 = b2
		case abs(a1-b1) <= 3:
			sym := verticalSymbol(a1 - b1)
			e.writeTwoD(sym)
			a0 = a1
			color ^= 1
		default:
			e.writeTwoD(code2DHoriz)
			a2 := firstGreater(curPos, a1)
			run1 := a1 - a0
			run2 := a2 - a1
			for _, c := range encodeRun(run1, color == 0) {
				e.w.WriteBits(c.code, c.bits)
			}
			for _, c := range encodeRun(run2, color != 0) {
				e.w.WriteBits(c.code, c.bits)
			}
			a0 = a2
		}
	}
}

func (e *Encoder) writeTwoD(sym twoDCode) {
	for _, entry := range twoDCodes {
		if entry.symbol == sym {
			e.w.WriteBits(entry.code, entry.bits)
			return
		}
	}
}

// EndPage finalises the page: six EOLs (RTC) for 1-D/2-D, nothing extra
// for T.6, then pads to a byte boundary.
func (e *Encoder) EndPage() []byte {
	if e.compression != CompressionMMR {
		for i := 0; i < 6; i++ {
			e.w.WriteBits(eolCode, eolBits)
		}
	}
	return e.w.Bytes()
}

// Stats reports the page-encoding statistics gathered since StartPage.
func (e *Encoder) Stats() Stats {
	return e.stats
}

func changingElements(runs []int, width int) []int {
	pos := make([]int, 0, len(runs)+4)
	acc := 0
	for _, r := range runs {
		acc += r
		pos = append(pos, acc)
	}
	pos = append(pos, width, width, width, width)
	return pos
}

func firstGreater(pos []int, a0 int) int {
	for _, p := range pos {
		if p > a0 {
			return p
		}
	}
	return pos[len(pos)-1]
}

// findB1B2 returns the first reference-line changing element to the right
// of a0 whose starting colour is opposite to a0's colour, and the element
// immediately after it.
func findB1B2(refPos []int, a0, color int) (b1, b2 int) {
	j := 0
	for j < len(refPos) && refPos[j] <= a0 {
		j++
	}
	// refPos[j] starts colour "black" (1) when j is even, "white" (0) when odd.
	elemColor := 1
	if j%2 == 1 {
		elemColor = 0
	}
	if elemColor != 1-color && j < len(refPos) {
		j++
	}
	if j >= len(refPos) {
		return refPos[len(refPos)-1], refPos[len(refPos)-1]
	}
	b1 = refPos[j]
	if j+1 < len(refPos) {
		b2 = refPos[j+1]
	} else {
		b2 = refPos[len(refPos)-1]
	}
	return b1, b2
}

func verticalSymbol(offset int) twoDCode {
	switch offset {
	case 0:
		return code2DV0
	case 1:
		return code2DVR1
	case 2:
		return code2DVR2
	case 3:
		return code2DVR3
	case -1:
		return code2DVL1
	case -2:
		return code2DVL2
	case -3:
		return code2DVL3
	}
	return code2DV0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
