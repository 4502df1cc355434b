package t38

import (
	"testing"

	"github.com/dbehnke/gofax/internal/t30"
)

type capturedPacket struct {
	buf    []byte
	repeat int
}

func TestSenderEmitsTrainingThenNonECMData(t *testing.T) {
	var sent []capturedPacket
	s := NewSender()
	s.TxPacket = func(buf []byte, repeat int) { sent = append(sent, capturedPacket{buf, repeat}) }

	chunks := [][]byte{{0x01, 0x02}, {0x03}}
	idx := 0
	s.SetBitSource(bitSourceFunc(func(max int) ([]byte, bool) {
		if idx >= len(chunks) {
			return nil, false
		}
		c := chunks[idx]
		idx++
		return c, true
	}))

	s.SetTxType(t30.ModemV27ter4800, false, false)
	s.SendTimeout(1) // emits NO_SIGNAL, arms 75ms wait

	total := timingSamples(75)
	s.SendTimeout(total) // fires 75ms timer: emits training indicator, arms training wait

	total = timingSamples(923) // covers the 708 ms V27ter4800 training wait (923 is the TEP figure)
	s.SendTimeout(total)       // fires training timer: arms first 30ms data tick

	total = timingSamples(30)
	s.SendTimeout(total) // emits first data chunk
	s.SendTimeout(total) // emits second data chunk
	s.SendTimeout(total) // no more chunks: emits SIG_END + NO_SIGNAL

	if len(sent) < 5 {
		t.Fatalf("expected at least 5 packets, got %d", len(sent))
	}
	first, err := Decode(sent[0].buf)
	if err != nil || first.IsData || first.Indicator != IndicatorNoSignal {
		t.Fatalf("first packet = %+v, err=%v, want NO_SIGNAL indicator", first, err)
	}
	second, err := Decode(sent[1].buf)
	if err != nil || second.IsData || second.Indicator != IndicatorV27ter4800Training {
		t.Fatalf("second packet = %+v, err=%v, want V27ter4800 training", second, err)
	}

	var sawSigEnd bool
	for _, p := range sent {
		pkt, err := Decode(p.buf)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if pkt.IsData {
			for _, f := range pkt.Fields {
				if f.Type == FieldT4NonECMSigEnd {
					sawSigEnd = true
				}
			}
		}
	}
	if !sawSigEnd {
		t.Error("expected a T4_NON_ECM_SIG_END field by the end of the burst")
	}
}

type bitSourceFunc func(max int) ([]byte, bool)

func (f bitSourceFunc) NextChunk(max int) ([]byte, bool) { return f(max) }

func timingSamples(ms int) int { return ms * 8000 / 1000 }

type fakeHDLCAcceptor struct {
	frames []capturedFrame
}

type capturedFrame struct {
	ok  bool
	msg []byte
}

func (f *fakeHDLCAcceptor) HDLCAccept(ok bool, msg []byte) {
	f.frames = append(f.frames, capturedFrame{ok, msg})
}

func TestReceiverReassemblesHDLCFrameWithBitReversal(t *testing.T) {
	acc := &fakeHDLCAcceptor{}
	r := NewReceiver()
	r.HDLC = acc

	// 0xFF reverses to 0xFF; 0x01 reverses to 0x80; 0x80 reverses to 0x01.
	wire := []byte{0xFF, 0x01, 0x80}
	data, err := EncodeData(DataV21, []Field{{Type: FieldHDLCFCSOK, Data: wire}})
	if err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	if err := r.RxPacket(0, data); err != nil {
		t.Fatalf("RxPacket: %v", err)
	}
	if len(acc.frames) != 1 || !acc.frames[0].ok {
		t.Fatalf("got %+v, want one good frame", acc.frames)
	}
	want := []byte{0xFF, 0x80, 0x01}
	got := acc.frames[0].msg
	if len(got) != len(want) {
		t.Fatalf("got % X, want % X", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}

type appEvents struct {
	phaseB, phaseD, phaseE []t30.CompletionCode
}

func (a *appEvents) SetRxType(t30.ModemType, bool, bool) {}
func (a *appEvents) SetTxType(t30.ModemType, bool, bool) {}
func (a *appEvents) SendHDLC([]byte)                     {}
func (a *appEvents) PhaseB(c t30.CompletionCode)         { a.phaseB = append(a.phaseB, c) }
func (a *appEvents) PhaseD(c t30.CompletionCode)         { a.phaseD = append(a.phaseD, c) }
func (a *appEvents) PhaseE(c t30.CompletionCode)         { a.phaseE = append(a.phaseE, c) }
func (a *appEvents) DocumentEvent(s int) int             { return s }

// TestTerminalToTerminalOnePage drives two terminals back to back over a
// lossless packet path: answer/DIS, DCS, TCF, CFR, one non-ECM page, EOP,
// MCF, DCN, with both sessions ending phase E with OK.
func TestTerminalToTerminalOnePage(t *testing.T) {
	callerApp := &appEvents{}
	answerApp := &appEvents{}

	caller := NewTerminal(t30.RoleCall, t30.DIS{
		ReadyToTransmit: true,
		SupportV27ter:   true, SupportV29: true, SupportV17: true,
		Compression2D: true,
	}, 0)
	answer := NewTerminal(t30.RoleAnswer, t30.DIS{
		ReadyToReceive: true,
		SupportV27ter:  true, SupportV29: true, SupportV17: true,
		Compression2D: true,
	}, 0)
	caller.App = callerApp
	answer.App = answerApp
	caller.Session.SetPageWidth(1728)
	answer.Session.SetPageWidth(1728)

	var callerSeq, answerSeq uint16
	caller.TxPacket = func(buf []byte, repeat int) {
		answer.RxIFPPacket(callerSeq, buf)
		callerSeq++
	}
	answer.TxPacket = func(buf []byte, repeat int) {
		caller.RxIFPPacket(answerSeq, buf)
		answerSeq++
	}

	caller.Start()
	answer.Start()

	page := []byte{0x80, 0x00, 0x10, 0x01, 0x80, 0x00, 0x10, 0x01}
	pageQueued := false

	const step = 80 // 10 ms at 8 kHz
	for i := 0; i < 4000; i++ {
		caller.SendTimeout(step)
		answer.SendTimeout(step)
		if !pageQueued && caller.Session.Phase() == t30.PhaseC {
			caller.Session.SendPage(page, true)
			caller.QueueNonECMPage(page)
			pageQueued = true
		}
		if len(callerApp.phaseE) > 0 && len(answerApp.phaseE) > 0 {
			break
		}
	}

	if !pageQueued {
		t.Fatal("caller never reached phase C")
	}
	if len(callerApp.phaseE) != 1 || callerApp.phaseE[0] != t30.CompletionOK {
		t.Fatalf("caller phaseE = %v, want [OK]", callerApp.phaseE)
	}
	if len(answerApp.phaseE) != 1 || answerApp.phaseE[0] != t30.CompletionOK {
		t.Fatalf("answer phaseE = %v, want [OK]", answerApp.phaseE)
	}
	if st := answer.Session.Stats(); st.PagesReceived != 1 {
		t.Errorf("answer PagesReceived = %d, want 1", st.PagesReceived)
	}
	if st := caller.Session.Stats(); st.PagesSent != 1 {
		t.Errorf("caller PagesSent = %d, want 1", st.PagesSent)
	}
}

func TestReceiverMissingDataOnSequenceGap(t *testing.T) {
	r := NewReceiver()
	ind, _ := EncodeIndicator(IndicatorNoSignal)
	_ = r.RxPacket(0, ind)
	_ = r.RxPacket(2, ind) // skip 1: a gap
	if !r.MissingData() {
		t.Fatal("expected MissingData true after a sequence gap")
	}
}
