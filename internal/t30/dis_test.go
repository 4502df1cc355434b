package t30

import "testing"

func TestDISEncodeDecodeRoundTrip(t *testing.T) {
	want := DIS{
		ReadyToReceive: true,
		SupportV27ter:  true,
		SupportV29:     true,
		SupportV17:     true,
		FineResolution: true,
		Compression2D:  true,
		ECM:            true,
		MinScanLineCode: 3,
		Resolution300x300: true,
	}
	fif := want.Encode()
	got := DecodeDIS(fif)

	if got.ReadyToReceive != want.ReadyToReceive {
		t.Errorf("ReadyToReceive = %v, want %v", got.ReadyToReceive, want.ReadyToReceive)
	}
	if got.SupportV27ter != want.SupportV27ter || got.SupportV29 != want.SupportV29 || got.SupportV17 != want.SupportV17 {
		t.Errorf("modem caps = %+v, want %+v", got, want)
	}
	if got.FineResolution != want.FineResolution {
		t.Errorf("FineResolution = %v, want %v", got.FineResolution, want.FineResolution)
	}
	if got.Compression2D != want.Compression2D {
		t.Errorf("Compression2D = %v, want %v", got.Compression2D, want.Compression2D)
	}
	if got.ECM != want.ECM {
		t.Errorf("ECM = %v, want %v", got.ECM, want.ECM)
	}
	if got.MinScanLineCode != want.MinScanLineCode {
		t.Errorf("MinScanLineCode = %d, want %d", got.MinScanLineCode, want.MinScanLineCode)
	}
	if got.Resolution300x300 != want.Resolution300x300 {
		t.Errorf("Resolution300x300 = %v, want %v", got.Resolution300x300, want.Resolution300x300)
	}
}

func TestDISEncodeSetsContinuationBitsExceptLast(t *testing.T) {
	fif := DIS{}.Encode()
	for i, b := range fif {
		last := i == len(fif)-1
		has := b&disBit8 != 0
		if last && has {
			t.Errorf("last octet has continuation bit set: %#x", b)
		}
		if !last && !has {
			t.Errorf("octet %d lacks continuation bit: %#x", i, b)
		}
	}
}

func TestBuildDCSChoosesFastestCommonModemAndWidth(t *testing.T) {
	local := DIS{
		ReadyToTransmit: true,
		SupportV27ter:   true,
		SupportV29:      true,
		SupportV17:      true,
		Compression2D:   true,
		ECM:             true,
	}
	peer := DIS{
		ReadyToReceive: true,
		SupportV27ter:  true,
		SupportV29:     true,
		Compression2D:  true,
		ECM:            true,
	}
	dcs, code, err := BuildDCS(local, peer, 1728)
	if err != nil {
		t.Fatalf("BuildDCS error: %v", err)
	}
	if code != CompletionOK {
		t.Fatalf("completion = %v, want OK", code)
	}
	if FallbackAt(dcs.FallbackIndex).Modem != ModemV29_9600 {
		t.Errorf("chosen modem = %v, want V29_9600 (peer lacks V17)", FallbackAt(dcs.FallbackIndex).Modem)
	}
	if !dcs.Compression2D {
		t.Error("expected 2D compression chosen")
	}
	if !dcs.ECM {
		t.Error("expected ECM chosen")
	}
}

func TestBuildDCSIncompatibleOnNoCommonModem(t *testing.T) {
	local := DIS{SupportV17: true}
	peer := DIS{SupportV27ter: true}
	_, code, err := BuildDCS(local, peer, 1728)
	if err == nil {
		t.Fatal("expected error")
	}
	if code != CompletionIncompatible {
		t.Errorf("completion = %v, want INCOMPATIBLE", code)
	}
}

func TestBuildDCSIncompatibleOnUnsupportedWidth(t *testing.T) {
	local := DIS{SupportV27ter: true}
	peer := DIS{SupportV27ter: true}
	_, code, err := BuildDCS(local, peer, 1729)
	if err == nil {
		t.Fatal("expected error for unadvertised width")
	}
	if code != CompletionIncompatible {
		t.Errorf("completion = %v, want INCOMPATIBLE", code)
	}
}

func TestDecodeDISFromWireCapture(t *testing.T) {
	// A DIS frame as seen on the wire (FCS stripped): receive-capable,
	// V.27ter and V.29 rate bits, 2-D coding, fine resolution, A4-only
	// width, no ECM.
	frame := []byte{0xFF, 0x03, 0x80, 0x00, 0xCE, 0xF8, 0x80, 0x80, 0x89,
		0x80, 0x80, 0x80, 0x98, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00}
	fcf, _, payload, err := ParseFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if fcf != FCF_DIS {
		t.Fatalf("fcf = %v, want DIS", fcf)
	}
	d := DecodeDIS(payload)
	if !d.ReadyToReceive {
		t.Error("expected receive-capable")
	}
	if !d.SupportV27ter || !d.SupportV29 {
		t.Error("expected V.27ter and V.29 advertised")
	}
	if !d.Compression2D {
		t.Error("expected 2-D coding")
	}
	if !d.FineResolution {
		t.Error("expected fine resolution")
	}
	if d.Width255mm || d.Width303mm {
		t.Error("expected A4-only recording width")
	}
	if d.ECM {
		t.Error("expected ECM off")
	}
}

func TestMinScanLineMillisTable(t *testing.T) {
	cases := map[int]int{0: 20, 1: 5, 2: 10, 3: 0, 4: 40, 5: 0, 6: 0, 7: 0}
	for code, want := range cases {
		if got := minScanLineMillis(code); got != want {
			t.Errorf("minScanLineMillis(%d) = %d, want %d", code, got, want)
		}
	}
}

func TestWidthForResolutionTable(t *testing.T) {
	if w := widthForResolution(true, 0); w != 1728 {
		t.Errorf("R8 class0 = %d, want 1728", w)
	}
	if w := widthForResolution(true, 2); w != 2432 {
		t.Errorf("R8 class2 = %d, want 2432", w)
	}
	if w := widthForResolution(false, 1); w != 4096 {
		t.Errorf("R16 class1 = %d, want 4096", w)
	}
}
