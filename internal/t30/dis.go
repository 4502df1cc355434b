package t30

import "errors"

var (
	errNoCommonModem    = errors.New("t30: no common modem rate with peer")
	errWidthUnsupported = errors.New("t30: page width not advertised by peer")
)

// DCS is the parameter set chosen for a page transfer, built from a local
// capability set and a peer DIS/DTC by BuildDCS.
type DCS struct {
	DIS
	FallbackIndex int // index into the modem fallback ladder (modem.go)
	MinRowBits    int // minimum encoded bits per row at the chosen rate
}

// DIS/DCS carry the T.30 capability/parameter exchange (spec.md §4.2 "DIS/DCS
// capability negotiation"). The field-to-octet/bit mapping below follows the
// T.30 Table 2 FIF layout exactly as the reference fax stack builds and
// edits it: FIF octet N lives at frame index N+2 (after the FF/13 HDLC
// prefix and the FCF octet itself), and every octet but the last carries a
// continuation bit in position 8.
const (
	disBit1 = 0x01
	disBit2 = 0x02
	disBit3 = 0x04
	disBit4 = 0x08
	disBit5 = 0x10
	disBit6 = 0x20
	disBit7 = 0x40
	disBit8 = 0x80
)

// numFIFOctets is the number of FIF octets gofax always emits. Real peers
// may send fewer (trailing all-zero octets are routinely dropped) or more
// (vendor extensions past octet 16); Decode tolerates both.
const numFIFOctets = 16

// DIS is the shared field set for DIS, DTC and DCS frames: capability sets
// for DIS/DTC, chosen parameters for DCS (spec.md §4.2).
type DIS struct {
	IsDTC bool // frame is DTC (request-to-poll) rather than DIS

	SupportT37     bool // octet 1 bit 1: Internet-aware fax, store-and-forward
	SupportT38     bool // octet 1 bit 3: Internet-aware fax, real-time (T.38)

	ReadyToTransmit bool // octet 2 bit 1: has a document to poll out
	ReadyToReceive  bool // octet 2 bit 2: can receive into a file
	SupportV29      bool // octet 2 bit 3
	SupportV27ter   bool // octet 2 bit 4
	SupportV17      bool // octet 2 bit 6 (implies V29+V27ter)
	FineResolution  bool // octet 2 bit 7
	Compression2D   bool // octet 2 bit 8: T.4 2-D (Modified READ)

	Width255mm bool // octet 3 bit 1
	Width303mm bool // octet 3 bit 2 (215mm is the baseline, always assumed)
	LengthB4        bool // octet 3 bit 3
	LengthUnlimited bool // octet 3 bit 4
	MinScanLineCode int  // octet 3 bits 5-7, 0-7 (spec.md §4.2 min-scan-line table)

	UncompressedMode bool // octet 4 bit 2
	ECM              bool // octet 4 bit 3
	CompressionT6    bool // octet 4 bit 7 (T.6/MMR)

	SEPPolling bool // octet 5 bit 3
	PSASelect  bool // octet 5 bit 4 / T.43 colour JBIG shares this position

	SuperFineResolution bool // octet 6 bit 1
	Resolution300x300   bool // octet 6 bit 2
	Resolution400x400   bool // octet 6 bit 3 (also flags R16 recording width)

	USLetterLength bool // octet 9 bit 4
	USLegalLength  bool // octet 9 bit 5
	CompressionT85 bool // octet 9 bit 6

	Resolution600x600   bool // octet 12 bit 1
	Resolution1200x1200 bool // octet 12 bit 2
	Resolution300x600   bool // octet 12 bit 3
	Resolution400x800   bool // octet 12 bit 4
	Resolution600x1200  bool // octet 12 bit 5

	CompressionT45 bool // octet 13 bit 4

	FlowControl     bool // octet 15 bit 1
	ContinuousFlow  bool // octet 15 bit 3
}

// Encode packs d into its FIF octet form, setting the bit-8 continuation
// flag on every octet but the last.
func (d DIS) Encode() []byte {
	oct := make([]byte, numFIFOctets)

	if d.SupportT37 {
		oct[0] |= disBit1
	}
	if d.SupportT38 {
		oct[0] |= disBit3
	}

	if d.ReadyToTransmit {
		oct[1] |= disBit1
	}
	if d.ReadyToReceive {
		oct[1] |= disBit2
	}
	if d.SupportV29 {
		oct[1] |= disBit3
	}
	if d.SupportV27ter {
		oct[1] |= disBit4
	}
	if d.SupportV17 {
		oct[1] |= disBit6 | disBit4 | disBit3
	}
	if d.FineResolution {
		oct[1] |= disBit7
	}
	if d.Compression2D {
		oct[1] |= disBit8
	}

	if d.Width255mm {
		oct[2] |= disBit1
	}
	if d.Width303mm {
		oct[2] |= disBit2
	}
	if d.LengthB4 {
		oct[2] |= disBit3
	}
	if d.LengthUnlimited {
		oct[2] |= disBit4
	}
	oct[2] |= byte(d.MinScanLineCode&0x7) << 4

	if d.UncompressedMode {
		oct[3] |= disBit2
	}
	if d.ECM {
		oct[3] |= disBit3
	}
	if d.CompressionT6 {
		oct[3] |= disBit7
	}

	if d.SEPPolling {
		oct[4] |= disBit3
	}
	if d.PSASelect {
		oct[4] |= disBit4
	}

	if d.SuperFineResolution {
		oct[5] |= disBit1
	}
	if d.Resolution300x300 {
		oct[5] |= disBit2
	}
	if d.Resolution400x400 {
		oct[5] |= disBit3
	}
	oct[5] |= disBit4 // metric units, always advertised

	if d.USLetterLength {
		oct[8] |= disBit4
	}
	if d.USLegalLength {
		oct[8] |= disBit5
	}
	if d.CompressionT85 {
		oct[8] |= disBit6
	}

	if d.Resolution600x600 {
		oct[11] |= disBit1
	}
	if d.Resolution1200x1200 {
		oct[11] |= disBit2
	}
	if d.Resolution300x600 {
		oct[11] |= disBit3
	}
	if d.Resolution400x800 {
		oct[11] |= disBit4
	}
	if d.Resolution600x1200 {
		oct[11] |= disBit5
	}

	if d.CompressionT45 {
		oct[12] |= disBit4
	}

	if d.FlowControl {
		oct[14] |= disBit1
	}
	if d.ContinuousFlow {
		oct[14] |= disBit3
	}

	last := len(oct) - 1
	for i := range oct {
		if i != last {
			oct[i] |= disBit8
		}
	}
	return oct
}

// DecodeDIS unpacks a FIF octet sequence into a DIS. It tolerates a shorter
// or longer slice than numFIFOctets: missing trailing octets decode as zero,
// extra octets beyond numFIFOctets are ignored (reserved for extensions
// gofax does not interpret).
func DecodeDIS(fif []byte) DIS {
	oct := func(i int) byte {
		if i < len(fif) {
			return fif[i]
		}
		return 0
	}

	var d DIS
	d.SupportT37 = oct(0)&disBit1 != 0
	d.SupportT38 = oct(0)&disBit3 != 0

	d.ReadyToTransmit = oct(1)&disBit1 != 0
	d.ReadyToReceive = oct(1)&disBit2 != 0
	d.SupportV29 = oct(1)&disBit3 != 0
	d.SupportV27ter = oct(1)&disBit4 != 0
	d.SupportV17 = oct(1)&disBit6 != 0
	d.FineResolution = oct(1)&disBit7 != 0
	d.Compression2D = oct(1)&disBit8 != 0

	d.Width255mm = oct(2)&disBit1 != 0
	d.Width303mm = oct(2)&disBit2 != 0
	d.LengthB4 = oct(2)&disBit3 != 0
	d.LengthUnlimited = oct(2)&disBit4 != 0
	d.MinScanLineCode = int(oct(2)>>4) & 0x7

	d.UncompressedMode = oct(3)&disBit2 != 0
	d.ECM = oct(3)&disBit3 != 0
	d.CompressionT6 = oct(3)&disBit7 != 0

	d.SEPPolling = oct(4)&disBit3 != 0
	d.PSASelect = oct(4)&disBit4 != 0

	d.SuperFineResolution = oct(5)&disBit1 != 0
	d.Resolution300x300 = oct(5)&disBit2 != 0
	d.Resolution400x400 = oct(5)&disBit3 != 0

	d.USLetterLength = oct(8)&disBit4 != 0
	d.USLegalLength = oct(8)&disBit5 != 0
	d.CompressionT85 = oct(8)&disBit6 != 0

	d.Resolution600x600 = oct(11)&disBit1 != 0
	d.Resolution1200x1200 = oct(11)&disBit2 != 0
	d.Resolution300x600 = oct(11)&disBit3 != 0
	d.Resolution400x800 = oct(11)&disBit4 != 0
	d.Resolution600x1200 = oct(11)&disBit5 != 0

	d.CompressionT45 = oct(12)&disBit4 != 0

	d.FlowControl = oct(14)&disBit1 != 0
	d.ContinuousFlow = oct(14)&disBit3 != 0

	return d
}

// minScanLineMillis translates a T.30 min-scan-line-time code (0-7) into
// milliseconds per spec.md §4.2.
func minScanLineMillis(code int) int {
	switch code & 0x7 {
	case 0:
		return 20
	case 1:
		return 5
	case 2:
		return 10
	case 4:
		return 40
	default:
		return 0
	}
}

// VerticalResolution classifies the vertical resolution a page is coded
// at, for the min-scan-line-time translation below (T.30's 3.85, 7.7 and
// 15.4 lines/mm families).
type VerticalResolution int

const (
	ResStandard VerticalResolution = iota // 3.85 l/mm
	ResFine                               // 7.7 l/mm
	ResSuperFine                          // 15.4 l/mm (T7.7 = half T3.85)
)

// minScanLineTranslate maps the peer-advertised min-scan-line-time code to
// the code actually used at the chosen resolution. Rows are indexed by
// VerticalResolution, columns by the peer's code 0-7.
var minScanLineTranslate = [3][8]int{
	ResStandard:  {0, 1, 2, 0, 4, 4, 2, 7},
	ResFine:      {0, 1, 2, 2, 4, 0, 1, 7},
	ResSuperFine: {2, 1, 1, 1, 0, 2, 1, 7},
}

// translateMinScanLineCode applies the translation table to the peer's
// declared code for the resolution the page will actually be sent at.
func translateMinScanLineCode(peerCode int, res VerticalResolution) int {
	return minScanLineTranslate[res][peerCode&0x7]
}

// minRowBits computes the minimum encoded bits per scan line needed to
// honour the peer's minimum-scan-line-time at the chosen signalling rate:
// bit_rate x min-scan-line-time / 1000.
func minRowBits(bitRate, peerCode int, res VerticalResolution) int {
	ms := minScanLineMillis(translateMinScanLineCode(peerCode, res))
	return bitRate * ms / 1000
}

// widthForResolution returns the pel count for a recording width class at
// the given vertical resolution family (spec.md §4.2 image-width table).
func widthForResolution(r8 bool, class int) int {
	if r8 {
		switch class {
		case 1:
			return 2048
		case 2:
			return 2432
		default:
			return 1728
		}
	}
	switch class {
	case 1:
		return 4096
	case 2:
		return 4864
	default:
		return 3456
	}
}

// widthClass returns which of the three width classes a pel count belongs
// to for R8/R16 width validation, or -1 if it matches none.
func widthClass(width int, r8 bool) int {
	for class := 0; class <= 2; class++ {
		if widthForResolution(r8, class) == width {
			return class
		}
	}
	return -1
}

// BuildDCS implements the DCS construction algorithm of spec.md §4.2: given
// the local capability set and the peer's DIS/DTC, choose the fastest
// common modem fallback, the best common compression, the best common
// resolution, validate the page width, and carry forward the negotiated
// min-scan-line-time. It returns CompletionIncompatible if no usable common
// ground exists.
func BuildDCS(local, peer DIS, pageWidth int) (DCS, CompletionCode, error) {
	localMask := localModemMask(local)
	peerMask := localModemMask(peer)
	idx, ok := FastestCommonFallback(localMask, peerMask)
	if !ok {
		return DCS{}, CompletionIncompatible, errNoCommonModem
	}

	dcs := DCS{DIS: DIS{
		SupportT37: local.SupportT37 && peer.SupportT37,
		SupportT38: local.SupportT38 && peer.SupportT38,
	}}
	dcs.FallbackIndex = idx
	// The DCS frame carries the selected modem family in the rate bits so
	// the receiver can arm the matching demodulator.
	switch FallbackAt(idx).Modem {
	case ModemV27ter2400, ModemV27ter4800:
		dcs.SupportV27ter = true
	case ModemV29_7200, ModemV29_9600:
		dcs.SupportV29 = true
	default:
		dcs.SupportV17 = true
	}

	dcs.Compression2D = local.Compression2D && peer.Compression2D
	dcs.CompressionT6 = local.CompressionT6 && peer.CompressionT6
	if dcs.CompressionT6 {
		dcs.Compression2D = false
	}

	dcs.ECM = local.ECM && peer.ECM

	dcs.FineResolution = local.FineResolution && peer.FineResolution
	dcs.SuperFineResolution = local.SuperFineResolution && peer.SuperFineResolution
	dcs.Resolution300x300 = local.Resolution300x300 && peer.Resolution300x300

	r8 := !dcs.Resolution300x300
	class := widthClass(pageWidth, r8)
	if class < 0 {
		return DCS{}, CompletionIncompatible, errWidthUnsupported
	}
	dcs.Width255mm = class >= 1 && (local.Width255mm && peer.Width255mm || local.Width303mm && peer.Width303mm)
	dcs.Width303mm = class >= 2 && local.Width303mm && peer.Width303mm
	if class >= 1 && !dcs.Width255mm || class >= 2 && !dcs.Width303mm {
		return DCS{}, CompletionIncompatible, errWidthUnsupported
	}

	dcs.LengthB4 = local.LengthB4 && peer.LengthB4
	dcs.LengthUnlimited = local.LengthUnlimited && peer.LengthUnlimited

	res := ResStandard
	switch {
	case dcs.SuperFineResolution:
		res = ResSuperFine
	case dcs.FineResolution:
		res = ResFine
	}
	dcs.MinScanLineCode = translateMinScanLineCode(peer.MinScanLineCode, res)
	dcs.MinRowBits = minRowBits(FallbackAt(idx).BitRate, peer.MinScanLineCode, res)

	return dcs, CompletionOK, nil
}

// localModemMask converts the rate-capability bits of a DIS/DTC into the
// bitmask FastestCommonFallback expects.
func localModemMask(d DIS) uint32 {
	var mask uint32
	if d.SupportV27ter {
		mask |= ModemCapBit(ModemV27ter2400) | ModemCapBit(ModemV27ter4800)
	}
	if d.SupportV29 {
		mask |= ModemCapBit(ModemV29_7200) | ModemCapBit(ModemV29_9600)
	}
	if d.SupportV17 {
		mask |= ModemCapBit(ModemV17_7200) | ModemCapBit(ModemV17_9600) |
			ModemCapBit(ModemV17_12000) | ModemCapBit(ModemV17_14400)
	}
	return mask
}
