package t30

// TCF (training check) support. The sender transmits all-zero bits for
// 1.5 s at the negotiated modem rate; the receiver measures the longest
// consecutive run of zero bits and passes training when that run covers at
// least one second's worth of bits. Some senders prepend up to half a
// second of ones, so the analyzer scores only the best run rather than
// requiring the whole burst to be zeros.

// tcfDurationMs is the length of the training-check burst.
const tcfDurationMs = 1500

// TCFGenerator supplies the all-zero training-check bit stream, sized for
// the negotiated bit rate. It satisfies BitSource so the modem layer can
// pull it the same way it pulls image data.
type TCFGenerator struct {
	remaining int
}

// NewTCFGenerator builds a generator producing 1.5 s of zeros at bitRate.
func NewTCFGenerator(bitRate int) *TCFGenerator {
	return &TCFGenerator{remaining: bitRate * tcfDurationMs / 1000}
}

// GetBit returns the next TCF bit, or -1 once the burst is exhausted.
func (g *TCFGenerator) GetBit() int {
	if g.remaining <= 0 {
		return -1
	}
	g.remaining--
	return 0
}

// NextChunk returns up to max whole octets of zeros, for byte-granular
// transports (the T.38 terminal feeds TCF through the same chunked path
// as image data).
func (g *TCFGenerator) NextChunk(max int) ([]byte, bool) {
	if g.remaining <= 0 {
		return nil, false
	}
	n := g.remaining / 8
	if n > max {
		n = max
	}
	if n == 0 {
		n = 1
	}
	g.remaining -= n * 8
	return make([]byte, n), true
}

// TCFAnalyzer scores a received training-check burst: it tracks the
// longest run of consecutive zero bits seen since Reset.
type TCFAnalyzer struct {
	run  int
	best int
}

// Reset clears the analyzer for a fresh TCF burst.
func (a *TCFAnalyzer) Reset() {
	a.run = 0
	a.best = 0
}

// PutBit feeds one demodulated bit.
func (a *TCFAnalyzer) PutBit(bit int) {
	if bit == 0 {
		a.run++
		if a.run > a.best {
			a.best = a.run
		}
		return
	}
	a.run = 0
}

// PutOctet feeds eight bits at once, MSB first.
func (a *TCFAnalyzer) PutOctet(b byte) {
	for bit := 7; bit >= 0; bit-- {
		a.PutBit(int((b >> uint(bit)) & 1))
	}
}

// LongestZeroRun reports the best run seen so far.
func (a *TCFAnalyzer) LongestZeroRun() int { return a.best }

// Pass reports the training verdict: the longest zero run must cover at
// least one second of bits at the negotiated rate.
func (a *TCFAnalyzer) Pass(bitRate int) bool {
	return a.best >= bitRate
}
