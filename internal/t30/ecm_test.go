package t30

import (
	"bytes"
	"testing"
)

func TestECMBlockFillRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0xA5}, OctetsPerECMFrame*3+10)
	b := NewECMBlock()
	if !b.Fill(data) {
		t.Fatal("Fill failed")
	}
	if b.NumFrames() != 4 {
		t.Fatalf("NumFrames = %d, want 4", b.NumFrames())
	}
	payload, present := b.Frame(0)
	if !present || len(payload) != OctetsPerECMFrame {
		t.Fatalf("frame 0: present=%v len=%d", present, len(payload))
	}
	last, _ := b.Frame(3)
	if last[9] != 0xA5 || last[10] != 0 {
		t.Errorf("last frame padding wrong: %v", last[:12])
	}
}

func TestECMBlockFillTooBig(t *testing.T) {
	b := NewECMBlock()
	huge := make([]byte, OctetsPerECMFrame*300)
	if b.Fill(huge) {
		t.Error("expected Fill to reject an oversized page")
	}
}

func TestPPRBuildParseRoundTrip(t *testing.T) {
	missing := []int{0, 1, 8, 255}
	frame := BuildPPR(missing)
	fcf, _, payload, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if fcf != FCF_PPR {
		t.Fatalf("fcf = %v, want PPR", fcf)
	}
	got := ParsePPR(payload)
	if len(got) != len(missing) {
		t.Fatalf("got %v, want %v", got, missing)
	}
	for i, n := range missing {
		if got[i] != n {
			t.Errorf("got[%d] = %d, want %d", i, got[i], n)
		}
	}
}

func TestPPSBuildParseRoundTrip(t *testing.T) {
	frame := BuildPPS(FCF_EOP, 7, 42)
	_, _, payload, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	sub, block, count, ok := ParsePPS(payload)
	if !ok {
		t.Fatal("ParsePPS failed")
	}
	if sub != FCF_EOP || block != 7 || count != 42 {
		t.Errorf("got sub=%v block=%d count=%d", sub, block, count)
	}
}

func TestECMReceiveBlockMissingAndComplete(t *testing.T) {
	b := NewECMReceiveBlock()
	b.SetDeclaredCount(4)
	b.StoreFrame(0, []byte{1})
	b.StoreFrame(2, []byte{2})
	missing := b.MissingFrames()
	if len(missing) != 2 || missing[0] != 1 || missing[1] != 3 {
		t.Fatalf("missing = %v, want [1 3]", missing)
	}
	if b.Complete() {
		t.Fatal("expected incomplete block")
	}
	b.StoreFrame(1, []byte{3})
	b.StoreFrame(3, []byte{4})
	if !b.Complete() {
		t.Fatal("expected complete block")
	}
	assembled := b.Assemble()
	if !bytes.Equal(assembled, []byte{1, 3, 2, 4}) {
		t.Errorf("Assemble() = %v", assembled)
	}
}
