package t4

// runCode is one (code, bit-length, run-length) triple from ITU-T T.4
// Annex A / Tables 2-3. The full terminating (0..63) and make-up
// (64..1728, plus the shared 1792..2560 extension set) code sets are
// listed here exactly once; newRunTrie below builds the lookup structure
// from them instead of hand-copying a bit-pattern lookup table, per the
// "generate at compile time from the triplets" guidance.
type runCode struct {
	code   uint32
	bits   int
	length int
}

// whiteCodes is the complete white terminating + make-up table.
var whiteCodes = []runCode{
	// terminating codes 0-63
	{0x35, 8, 0}, {0x7, 6, 1}, {0x7, 4, 2}, {0x8, 4, 3},
	{0xB, 4, 4}, {0xC, 4, 5}, {0xE, 4, 6}, {0xF, 4, 7},
	{0x13, 5, 8}, {0x14, 5, 9}, {0x7, 5, 10}, {0x8, 5, 11},
	{0x8, 6, 12}, {0x3, 6, 13}, {0x34, 6, 14}, {0x35, 6, 15},
	{0x2A, 6, 16}, {0x2B, 6, 17}, {0x27, 7, 18}, {0xC, 7, 19},
	{0x8, 7, 20}, {0x17, 7, 21}, {0x3, 7, 22}, {0x4, 7, 23},
	{0x28, 7, 24}, {0x2B, 7, 25}, {0x13, 7, 26}, {0x24, 7, 27},
	{0x18, 7, 28}, {0x2, 8, 29}, {0x3, 8, 30}, {0x1A, 8, 31},
	{0x1B, 8, 32}, {0x12, 8, 33}, {0x13, 8, 34}, {0x14, 8, 35},
	{0x15, 8, 36}, {0x16, 8, 37}, {0x17, 8, 38}, {0x28, 8, 39},
	{0x29, 8, 40}, {0x2A, 8, 41}, {0x2B, 8, 42}, {0x2C, 8, 43},
	{0x2D, 8, 44}, {0x4, 8, 45}, {0x5, 8, 46}, {0xA, 8, 47},
	{0xB, 8, 48}, {0x52, 8, 49}, {0x53, 8, 50}, {0x54, 8, 51},
	{0x55, 8, 52}, {0x24, 8, 53}, {0x25, 8, 54}, {0x58, 8, 55},
	{0x59, 8, 56}, {0x5A, 8, 57}, {0x5B, 8, 58}, {0x4A, 8, 59},
	{0x4B, 8, 60}, {0x32, 8, 61}, {0x33, 8, 62}, {0x34, 8, 63},
	// make-up codes 64-1728
	{0x1B, 5, 64}, {0x12, 5, 128}, {0x17, 6, 192}, {0x37, 7, 256},
	{0x36, 8, 320}, {0x37, 8, 384}, {0x64, 8, 448}, {0x65, 8, 512},
	{0x68, 8, 576}, {0x67, 8, 640}, {0xCC, 9, 704}, {0xCD, 9, 768},
	{0xD2, 9, 832}, {0xD3, 9, 896}, {0xD4, 9, 960}, {0xD5, 9, 1024},
	{0xD6, 9, 1088}, {0xD7, 9, 1152}, {0xD8, 9, 1216}, {0xD9, 9, 1280},
	{0xDA, 9, 1344}, {0xDB, 9, 1408}, {0x98, 9, 1472}, {0x99, 9, 1536},
	{0x9A, 9, 1600}, {0x18, 6, 1664}, {0x9B, 9, 1728},
}

// blackCodes is the complete black terminating + make-up table.
var blackCodes = []runCode{
	// terminating codes 0-63
	{0x37, 10, 0}, {0x2, 3, 1}, {0x3, 2, 2}, {0x2, 2, 3},
	{0x3, 3, 4}, {0x3, 4, 5}, {0x2, 4, 6}, {0x3, 5, 7},
	{0x5, 6, 8}, {0x4, 6, 9}, {0x4, 7, 10}, {0x5, 7, 11},
	{0x7, 7, 12}, {0x4, 8, 13}, {0x7, 8, 14}, {0x18, 9, 15},
	{0x17, 10, 16}, {0x18, 10, 17}, {0x8, 10, 18}, {0x67, 11, 19},
	{0x68, 11, 20}, {0x6C, 11, 21}, {0x37, 11, 22}, {0x28, 11, 23},
	{0x17, 11, 24}, {0x18, 11, 25}, {0xCA, 12, 26}, {0xCB, 12, 27},
	{0xCC, 12, 28}, {0xCD, 12, 29}, {0x68, 12, 30}, {0x69, 12, 31},
	{0x6A, 12, 32}, {0x6B, 12, 33}, {0xD2, 12, 34}, {0xD3, 12, 35},
	{0xD4, 12, 36}, {0xD5, 12, 37}, {0xD6, 12, 38}, {0xD7, 12, 39},
	{0x6C, 12, 40}, {0x6D, 12, 41}, {0xDA, 12, 42}, {0xDB, 12, 43},
	{0x54, 12, 44}, {0x55, 12, 45}, {0x56, 12, 46}, {0x57, 12, 47},
	{0x64, 12, 48}, {0x65, 12, 49}, {0x52, 12, 50}, {0x53, 12, 51},
	{0x24, 12, 52}, {0x37, 12, 53}, {0x38, 12, 54}, {0x27, 12, 55},
	{0x28, 12, 56}, {0x58, 12, 57}, {0x59, 12, 58}, {0x2B, 12, 59},
	{0x2C, 12, 60}, {0x5A, 12, 61}, {0x66, 12, 62}, {0x67, 12, 63},
	// make-up codes 64-1728
	{0xF, 10, 64}, {0xC8, 12, 128}, {0xC9, 12, 192}, {0x5B, 12, 256},
	{0x33, 12, 320}, {0x34, 12, 384}, {0x35, 12, 448}, {0x6C, 13, 512},
	{0x6D, 13, 576}, {0x4A, 13, 640}, {0x4B, 13, 704}, {0x4C, 13, 768},
	{0x4D, 13, 832}, {0x72, 13, 896}, {0x73, 13, 960}, {0x74, 13, 1024},
	{0x75, 13, 1088}, {0x76, 13, 1152}, {0x77, 13, 1216}, {0x52, 13, 1280},
	{0x53, 13, 1344}, {0x54, 13, 1408}, {0x55, 13, 1472}, {0x5A, 13, 1536},
	{0x5B, 13, 1600}, {0x64, 13, 1664}, {0x65, 13, 1728},
}

// extCodes are the shared make-up codes 1792..2560, appended to both the
// white and black tables (T.4 Table 3 "extended make-up codes").
var extCodes = []runCode{
	{0x8, 11, 1792}, {0xC, 11, 1856}, {0xD, 11, 1920},
	{0x12, 12, 1984}, {0x13, 12, 2048}, {0x14, 12, 2112},
	{0x15, 12, 2176}, {0x16, 12, 2240}, {0x17, 12, 2304},
	{0x1C, 12, 2368}, {0x1D, 12, 2432}, {0x1E, 12, 2496},
	{0x1F, 12, 2560},
}

const eolCode uint32 = 0x001
const eolBits = 12

// twoDCode identifies a 2-D mode control code (T.4 Table 4).
type twoDCode int

const (
	code2DNone twoDCode = iota
	code2DPass
	code2DHoriz
	code2DV0
	code2DVR1
	code2DVR2
	code2DVR3
	code2DVL1
	code2DVL2
	code2DVL3
	code2DEOL
)

type twoDEntry struct {
	code   uint32
	bits   int
	symbol twoDCode
}

// twoDCodes is the full T.4 Table 4 control code set, plus EOL.
var twoDCodes = []twoDEntry{
	{0x1, 1, code2DV0},
	{0x3, 3, code2DVR1},
	{0x2, 3, code2DVL1},
	{0x1, 3, code2DHoriz},
	{0x1, 4, code2DPass},
	{0x3, 6, code2DVR2},
	{0x2, 6, code2DVL2},
	{0x3, 7, code2DVR3},
	{0x2, 7, code2DVL3},
	{eolCode, eolBits, code2DEOL},
}

// vOffset returns the signed a1 displacement for a vertical-mode symbol.
func vOffset(s twoDCode) int {
	switch s {
	case code2DV0:
		return 0
	case code2DVR1:
		return 1
	case code2DVR2:
		return 2
	case code2DVR3:
		return 3
	case code2DVL1:
		return -1
	case code2DVL2:
		return -2
	case code2DVL3:
		return -3
	}
	return 0
}

func isVertical(s twoDCode) bool {
	switch s {
	case code2DV0, code2DVR1, code2DVR2, code2DVR3, code2DVL1, code2DVL2, code2DVL3:
		return true
	}
	return false
}

// trieNode is a node of a binary prefix-code trie built from runCode or
// twoDEntry tables. Building a trie from the triplets (rather than a raw
// bit-indexed lookup array) keeps the decoder free of hand-rolled
// shift/mask table indexing.
type trieNode struct {
	children [2]*trieNode
	leaf     bool
	run      int
	symbol   twoDCode
}

func newRunTrie(codes []runCode) *trieNode {
	root := &trieNode{}
	for _, c := range codes {
		n := root
		for i := c.bits - 1; i >= 0; i-- {
			bit := (c.code >> uint(i)) & 1
			if n.children[bit] == nil {
				n.children[bit] = &trieNode{}
			}
			n = n.children[bit]
		}
		n.leaf = true
		n.run = c.length
	}
	return root
}

func newTwoDTrie(entries []twoDEntry) *trieNode {
	root := &trieNode{}
	for _, e := range entries {
		n := root
		for i := e.bits - 1; i >= 0; i-- {
			bit := (e.code >> uint(i)) & 1
			if n.children[bit] == nil {
				n.children[bit] = &trieNode{}
			}
			n = n.children[bit]
		}
		n.leaf = true
		n.symbol = e.symbol
	}
	return root
}

var (
	whiteTrie = newRunTrie(append(append([]runCode{}, whiteCodes...), extCodes...))
	blackTrie = newRunTrie(append(append([]runCode{}, blackCodes...), extCodes...))
	twoDTrie  = newTwoDTrie(twoDCodes)
)

// encodeRun maps a run length to its codes: one 2560 make-up code per
// full 2560, then one make-up code for the remaining multiple of 64 (an
// extended code above 1728), then the terminating code, per T.4's
// make-up + terminating composition rule.
func encodeRun(run int, white bool) []runCode {
	table := blackCodes
	if white {
		table = whiteCodes
	}
	var out []runCode
	for run >= 2560 {
		out = append(out, findExact(extCodes, 2560))
		run -= 2560
	}
	for run >= 1792 {
		step := (run / 64) * 64
		if step > 2560 {
			step = 2560
		}
		out = append(out, findExact(extCodes, step))
		run -= step
		if run < 64 {
			break
		}
	}
	for run >= 64 {
		step := (run / 64) * 64
		if step > 1728 {
			step = 1728
		}
		mc := findExact(table, step)
		if mc.bits == 0 {
			mc = findExact(extCodes, step)
		}
		out = append(out, mc)
		run -= step
	}
	out = append(out, findExact(table, run))
	return out
}

func findExact(table []runCode, length int) runCode {
	for _, c := range table {
		if c.length == length {
			return c
		}
	}
	return runCode{}
}
