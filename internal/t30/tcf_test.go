package t30

import "testing"

func TestTCFGeneratorLength(t *testing.T) {
	g := NewTCFGenerator(4800)
	bits := 0
	for g.GetBit() == 0 {
		bits++
	}
	if bits != 4800*3/2 {
		t.Errorf("generated %d bits, want %d (1.5 s at 4800 bps)", bits, 4800*3/2)
	}
}

func TestTCFGeneratorChunks(t *testing.T) {
	g := NewTCFGenerator(9600)
	total := 0
	for {
		chunk, ok := g.NextChunk(100)
		if !ok {
			break
		}
		for _, b := range chunk {
			if b != 0 {
				t.Fatal("TCF chunk contains a non-zero octet")
			}
		}
		total += len(chunk)
	}
	if total < 9600*3/2/8 {
		t.Errorf("chunked %d octets, want at least %d", total, 9600*3/2/8)
	}
}

func TestTCFAnalyzerToleratesLeadingOnes(t *testing.T) {
	var a TCFAnalyzer
	// Half a second of ones, then 1.2 s of zeros at 2400 bps.
	for i := 0; i < 1200; i++ {
		a.PutBit(1)
	}
	for i := 0; i < 2880; i++ {
		a.PutBit(0)
	}
	if !a.Pass(2400) {
		t.Errorf("longest run %d should pass at 2400 bps", a.LongestZeroRun())
	}
}

func TestTCFAnalyzerFailsBrokenRun(t *testing.T) {
	var a TCFAnalyzer
	for i := 0; i < 4800; i++ {
		if i%200 == 0 {
			a.PutBit(1)
		} else {
			a.PutBit(0)
		}
	}
	if a.Pass(4800) {
		t.Errorf("longest run %d should fail at 4800 bps", a.LongestZeroRun())
	}
}

func TestTCFAnalyzerOctets(t *testing.T) {
	var a TCFAnalyzer
	a.PutOctet(0x00)
	a.PutOctet(0x00)
	a.PutOctet(0x01)
	if a.LongestZeroRun() != 23 {
		t.Errorf("LongestZeroRun = %d, want 23", a.LongestZeroRun())
	}
}
