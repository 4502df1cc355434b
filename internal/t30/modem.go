package t30

// ModemType identifies the modem profile armed on a carrier, passed to the
// set_rx_type/set_tx_type callbacks (spec.md §4.2, §6). The modem's own
// signal processing is out of scope (spec.md §1); gofax only needs the
// named profile and its rate/training contract.
type ModemType int

const (
	ModemNone ModemType = iota
	ModemPause
	ModemCED
	ModemCNG
	ModemV21
	ModemV27ter2400
	ModemV27ter4800
	ModemV29_7200
	ModemV29_9600
	ModemV17_7200
	ModemV17_9600
	ModemV17_12000
	ModemV17_14400
	ModemDone
)

func (m ModemType) String() string {
	switch m {
	case ModemNone:
		return "NONE"
	case ModemPause:
		return "PAUSE"
	case ModemCED:
		return "CED"
	case ModemCNG:
		return "CNG"
	case ModemV21:
		return "V21"
	case ModemV27ter2400:
		return "V27TER_2400"
	case ModemV27ter4800:
		return "V27TER_4800"
	case ModemV29_7200:
		return "V29_7200"
	case ModemV29_9600:
		return "V29_9600"
	case ModemV17_7200:
		return "V17_7200"
	case ModemV17_9600:
		return "V17_9600"
	case ModemV17_12000:
		return "V17_12000"
	case ModemV17_14400:
		return "V17_14400"
	case ModemDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// FallbackEntry names one rung of the modem fallback ladder.
type FallbackEntry struct {
	Modem   ModemType
	BitRate int
}

// fallbackTable is the fastest-to-slowest fallback sequence from spec.md
// §4.2. FTT moves to the next (slower) entry; running off the end raises
// CANNOTTRAIN.
var fallbackTable = []FallbackEntry{
	{ModemV17_14400, 14400},
	{ModemV17_12000, 12000},
	{ModemV17_9600, 9600},
	{ModemV29_9600, 9600},
	{ModemV17_7200, 7200},
	{ModemV29_7200, 7200},
	{ModemV27ter4800, 4800},
	{ModemV27ter2400, 2400},
}

// FallbackCount is the number of rungs on the fallback ladder.
func FallbackCount() int { return len(fallbackTable) }

// FallbackAt returns the ladder entry at index i.
func FallbackAt(i int) FallbackEntry { return fallbackTable[i] }

// FastestCommonFallback returns the fastest ladder index supported by both
// the local capability mask and the remote DIS/DTC bit set, or -1/false if
// none match (NORESSUPPORT-style incompatibility).
func FastestCommonFallback(localMask, remoteMask uint32) (int, bool) {
	for i, e := range fallbackTable {
		bit := modemCapBit(e.Modem)
		if localMask&bit != 0 && remoteMask&bit != 0 {
			return i, true
		}
	}
	return -1, false
}

// modemCapBit maps a fallback modem to its capability bitmask bit, used by
// FastestCommonFallback; bit assignment is internal to this module and has
// no wire significance (the wire DIS/DCS encoding lives in dis.go).
func modemCapBit(m ModemType) uint32 {
	switch m {
	case ModemV27ter2400:
		return 1 << 0
	case ModemV27ter4800:
		return 1 << 1
	case ModemV29_7200:
		return 1 << 2
	case ModemV29_9600:
		return 1 << 3
	case ModemV17_7200:
		return 1 << 4
	case ModemV17_9600:
		return 1 << 5
	case ModemV17_12000:
		return 1 << 6
	case ModemV17_14400:
		return 1 << 7
	}
	return 0
}

// AllModemCapBits ORs together every fallback rung's bit, used to build a
// "supports everything" capability mask for tests and simple endpoints.
func AllModemCapBits() uint32 {
	var bits uint32
	for _, e := range fallbackTable {
		bits |= modemCapBit(e.Modem)
	}
	return bits
}

// ModemCapBit exposes modemCapBit for callers building a custom capability
// mask (e.g. a gateway restricting to the modems it can terminate).
func ModemCapBit(m ModemType) uint32 { return modemCapBit(m) }
