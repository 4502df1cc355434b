package t38

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeIndicatorRoundTrip(t *testing.T) {
	for _, ind := range []Indicator{
		IndicatorNoSignal, IndicatorCNG, IndicatorV21Preamble,
		IndicatorV17_14400LongTraining, IndicatorV8ANSam,
		IndicatorV34PriChannel, IndicatorV33_14400Training,
	} {
		buf, err := EncodeIndicator(ind)
		if err != nil {
			t.Fatalf("EncodeIndicator(%v): %v", ind, err)
		}
		pkt, err := Decode(buf)
		if err != nil {
			t.Fatalf("Decode(%v): %v", ind, err)
		}
		if pkt.IsData || pkt.Indicator != ind {
			t.Errorf("got %+v, want indicator %v", pkt, ind)
		}
	}
}

func TestEncodeDecodeDataRoundTrip(t *testing.T) {
	cases := []struct {
		dataType DataType
		fields   []Field
	}{
		{DataV21, []Field{{Type: FieldHDLCData, Data: []byte{0xFF, 0x03, 0x80}}}},
		{DataV27ter4800, []Field{
			{Type: FieldT4NonECMData, Data: bytes.Repeat([]byte{0xAA}, 200)},
			{Type: FieldT4NonECMSigEnd, Data: []byte{0x01}},
		}},
		{DataV17_9600, []Field{{Type: FieldHDLCFCSOKSigEnd, Data: nil}}},
		{DataV21, []Field{{Type: FieldV34Rate, Data: []byte{0x01, 0x02}}}},
		{DataV8, []Field{{Type: FieldCMMessage, Data: []byte{0x42}}}},
	}
	for _, c := range cases {
		buf, err := EncodeData(c.dataType, c.fields)
		if err != nil {
			t.Fatalf("EncodeData(%v): %v", c.dataType, err)
		}
		pkt, err := Decode(buf)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !pkt.IsData || pkt.DataType != c.dataType {
			t.Fatalf("got %+v, want data type %v", pkt, c.dataType)
		}
		if len(pkt.Fields) != len(c.fields) {
			t.Fatalf("got %d fields, want %d", len(pkt.Fields), len(c.fields))
		}
		for i, f := range pkt.Fields {
			if f.Type != c.fields[i].Type {
				t.Errorf("field %d type = %v, want %v", i, f.Type, c.fields[i].Type)
			}
			if !bytes.Equal(f.Data, c.fields[i].Data) {
				t.Errorf("field %d data = %v, want %v", i, f.Data, c.fields[i].Data)
			}
		}
	}
}

func TestVersion0RoundTripBothFieldLayouts(t *testing.T) {
	fields := []Field{
		{Type: FieldHDLCData, Data: []byte{0xFF, 0x03}},
		{Type: FieldHDLCFCSOKSigEnd},
	}
	for _, codec := range []Codec{
		{Version: 0},
		{Version: 0, Typo: true},
		{Version: 1},
	} {
		buf, err := codec.EncodeData(DataV27ter2400, fields)
		if err != nil {
			t.Fatalf("%+v EncodeData: %v", codec, err)
		}
		pkt, err := codec.Decode(buf)
		if err != nil {
			t.Fatalf("%+v Decode: %v", codec, err)
		}
		if pkt.DataType != DataV27ter2400 || len(pkt.Fields) != 2 {
			t.Fatalf("%+v: got %+v", codec, pkt)
		}
		if pkt.Fields[0].Type != FieldHDLCData || !bytes.Equal(pkt.Fields[0].Data, []byte{0xFF, 0x03}) {
			t.Errorf("%+v: field 0 = %+v", codec, pkt.Fields[0])
		}
		if pkt.Fields[1].Type != FieldHDLCFCSOKSigEnd || pkt.Fields[1].Data != nil {
			t.Errorf("%+v: field 1 = %+v", codec, pkt.Fields[1])
		}
	}
}

func TestTypoLayoutShiftsFieldTypeBits(t *testing.T) {
	fields := []Field{{Type: FieldT4NonECMData, Data: []byte{0x00}}}
	plain, err := Codec{Version: 0}.EncodeData(DataV29_9600, fields)
	if err != nil {
		t.Fatal(err)
	}
	typo, err := Codec{Version: 0, Typo: true}.EncodeData(DataV29_9600, fields)
	if err != nil {
		t.Fatal(err)
	}
	// Byte 2 holds the field octet; the typo layout places the type one
	// position to the left of the corrected one.
	if plain[2] == typo[2] {
		t.Fatalf("expected field octets to differ: plain % X typo % X", plain, typo)
	}
	if plain[2] != 0x80|byte(FieldT4NonECMData)<<3 {
		t.Errorf("plain field octet = %#x", plain[2])
	}
	if typo[2] != 0x80|byte(FieldT4NonECMData)<<4 {
		t.Errorf("typo field octet = %#x", typo[2])
	}
}

func TestVersion0RejectsExtendedTypes(t *testing.T) {
	if _, err := (Codec{Version: 0}).EncodeData(DataV8, nil); err == nil {
		t.Error("expected error for extended data type at version 0")
	}
	if _, err := (Codec{Version: 0}).EncodeData(DataV21, []Field{{Type: FieldV34Rate}}); err == nil {
		t.Error("expected error for extended field type at version 0")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":                 {},
		"indicator with data":   {0x80},       // data-field-present on an indicator
		"long plain indicator":  {0x06, 0x00}, // inline indicator must be 1 octet
		"truncated count":       {0xC0},
		"truncated field":       {0xC0, 0x01},
		"field length overrun":  {0xC0, 0x01, 0x80, 0x00, 0xFF}, // claims 256 bytes, none present
		"trailing bytes":        {0xC0, 0x00, 0x55},
	}
	for name, buf := range cases {
		if _, err := Decode(buf); err == nil {
			t.Errorf("%s: expected error, got none", name)
		}
	}
}

func TestCoreCountsMissingPackets(t *testing.T) {
	core := NewCore(0)
	var missed [][2]int
	core.RxMissing = func(e, r int) { missed = append(missed, [2]int{e, r}) }

	ind, _ := EncodeIndicator(IndicatorNoSignal)
	for seq := 0; seq < 100; seq++ {
		if seq == 50 {
			continue
		}
		if rc := core.RxIFPPacket(uint16(seq), ind); rc != 0 {
			t.Fatalf("seq %d: rc = %d", seq, rc)
		}
	}
	if core.MissingPackets() != 1 {
		t.Fatalf("MissingPackets = %d, want 1", core.MissingPackets())
	}
	if len(missed) != 1 || missed[0] != [2]int{50, 51} {
		t.Fatalf("missing calls = %v, want [(50,51)]", missed)
	}
}

func TestCoreReturnsMinusOneOnMalformed(t *testing.T) {
	core := NewCore(0)
	if rc := core.RxIFPPacket(0, []byte{0x80}); rc != -1 {
		t.Fatalf("rc = %d, want -1", rc)
	}
	// A later well-formed packet is still accepted.
	ind, _ := EncodeIndicator(IndicatorCED)
	if rc := core.RxIFPPacket(1, ind); rc != 0 {
		t.Fatalf("rc = %d, want 0", rc)
	}
	if got, ok := core.CurrentRxIndicator(); !ok || got != IndicatorCED {
		t.Fatalf("CurrentRxIndicator = %v/%v", got, ok)
	}
}

func TestClassifySeq(t *testing.T) {
	cases := []struct {
		expected, received uint16
		want               SeqClass
	}{
		{100, 100, SeqEqual},
		{100, 99, SeqRepeat},
		{100, 98, SeqLate},
		{100, 63636, SeqLate}, // wraps: 100-2000 mod 65536
		{100, 101, SeqGap},
		{100, 100 + 2000, SeqGap},
		{100, 100 + 2001, SeqRestart},
		{100, 63635, SeqRestart}, // wraps: 100-2001 mod 65536
		{5, 65530, SeqLate}, // wraps: 65530 is 11 before 5 modulo 65536
	}
	for _, c := range cases {
		got := ClassifySeq(c.expected, c.received)
		if got != c.want {
			t.Errorf("ClassifySeq(%d,%d) = %v, want %v", c.expected, c.received, got, c.want)
		}
	}
}

func TestSeqTrackerMissingOnGap(t *testing.T) {
	var gotExpected, gotReceived int
	calls := 0
	tr := &SeqTracker{Missing: func(expected, received int) {
		calls++
		gotExpected, gotReceived = expected, received
	}}

	for seq := uint16(0); seq <= 49; seq++ {
		if _, ok := tr.Accept(seq); !ok {
			t.Fatalf("seq %d: expected accept", seq)
		}
	}
	// Skip 50.
	if class, ok := tr.Accept(51); class != SeqGap || !ok {
		t.Fatalf("seq 51: got class=%v ok=%v, want gap/true", class, ok)
	}
	if calls != 1 {
		t.Fatalf("Missing called %d times, want 1", calls)
	}
	if gotExpected != 50 || gotReceived != 51 {
		t.Fatalf("Missing(%d,%d), want (50,51)", gotExpected, gotReceived)
	}
	if class, ok := tr.Accept(52); class != SeqEqual || !ok {
		t.Fatalf("seq 52: got class=%v ok=%v, want equal/true", class, ok)
	}
}

func TestSeqTrackerRepeatAndLateDropped(t *testing.T) {
	tr := &SeqTracker{}
	tr.Accept(10)
	if class, ok := tr.Accept(10); class != SeqRepeat || ok {
		t.Errorf("repeat: got %v/%v", class, ok)
	}
	if class, ok := tr.Accept(5); class != SeqLate || ok {
		t.Errorf("late: got %v/%v", class, ok)
	}
}

func TestSeqTrackerRestart(t *testing.T) {
	var gotExpected, gotReceived int
	tr := &SeqTracker{Missing: func(e, r int) { gotExpected, gotReceived = e, r }}
	tr.Accept(10)
	class, ok := tr.Accept(10000)
	if class != SeqRestart || !ok {
		t.Fatalf("got %v/%v, want restart/true", class, ok)
	}
	if gotExpected != -1 || gotReceived != -1 {
		t.Fatalf("Missing(%d,%d), want (-1,-1)", gotExpected, gotReceived)
	}
}
