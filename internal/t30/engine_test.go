package t30

import (
	"bytes"
	"testing"
)

// fakeCallbacks records every call the Session makes, standing in for the
// modem layer and application in tests.
type fakeCallbacks struct {
	sent    [][]byte
	rxArmed []ModemType
	txArmed []ModemType
	phaseB  []CompletionCode
	phaseD  []CompletionCode
	phaseE  []CompletionCode
	docEvts []int
}

func (f *fakeCallbacks) SetRxType(m ModemType, shortTrain, useHDLC bool) {
	f.rxArmed = append(f.rxArmed, m)
}
func (f *fakeCallbacks) SetTxType(m ModemType, shortTrain, useHDLC bool) {
	f.txArmed = append(f.txArmed, m)
}
func (f *fakeCallbacks) SendHDLC(msg []byte)        { f.sent = append(f.sent, msg) }
func (f *fakeCallbacks) PhaseB(code CompletionCode) { f.phaseB = append(f.phaseB, code) }
func (f *fakeCallbacks) PhaseD(code CompletionCode) { f.phaseD = append(f.phaseD, code) }
func (f *fakeCallbacks) PhaseE(code CompletionCode) { f.phaseE = append(f.phaseE, code) }
func (f *fakeCallbacks) DocumentEvent(status int) int {
	f.docEvts = append(f.docEvts, status)
	return status
}

// frames filters out the zero-length end-of-burst markers.
func (f *fakeCallbacks) frames() [][]byte {
	var out [][]byte
	for _, m := range f.sent {
		if len(m) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeCallbacks) fcfs(t *testing.T) []FCF {
	t.Helper()
	var out []FCF
	for _, m := range f.frames() {
		fcf, _, _, err := ParseFrame(m)
		if err != nil {
			t.Fatalf("ParseFrame(% X): %v", m, err)
		}
		out = append(out, fcf)
	}
	return out
}

func txCapableDIS() DIS {
	return DIS{
		ReadyToTransmit: true,
		SupportV27ter:   true,
		SupportV29:      true,
		SupportV17:      true,
		Compression2D:   true,
		ECM:             true,
	}
}

func rxCapableDIS() DIS {
	return DIS{
		ReadyToReceive: true,
		SupportV27ter:  true,
		SupportV29:     true,
		SupportV17:     true,
		Compression2D:  true,
		ECM:            true,
	}
}

func TestSessionNegotiatesDCSAfterDIS(t *testing.T) {
	cb := &fakeCallbacks{}
	local := DIS{
		ReadyToTransmit: true,
		SupportV27ter:   true,
		SupportV29:      true,
		Compression2D:   true,
	}
	s := NewSession(RoleCall, local, cb)
	s.SetPageWidth(1728)
	s.Start()

	peerDIS := DIS{
		ReadyToReceive: true,
		SupportV27ter:  true,
		SupportV29:     true,
		Compression2D:  true,
	}
	s.ReceivedFrame(BuildFrame(FCF_DIS, true, peerDIS.Encode()))

	if len(cb.phaseB) != 1 || cb.phaseB[0] != CompletionOK {
		t.Fatalf("phaseB callbacks = %v", cb.phaseB)
	}
	fcfs := cb.fcfs(t)
	if len(fcfs) != 1 || fcfs[0] != FCF_DCS {
		t.Fatalf("expected [DCS], got %v", fcfs)
	}
	if s.state != StateDTCF {
		t.Errorf("state = %v, want D_TCF", s.state)
	}
	if s.TCFSource() == nil {
		t.Error("expected a TCF generator after DCS")
	}
}

func TestCallerSendsIdentBeforeDCS(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleCall, txCapableDIS(), cb)
	s.SetPageWidth(1728)
	s.SetIdent("+1 555 0100")
	s.Start()
	s.ReceivedFrame(BuildFrame(FCF_DIS, true, rxCapableDIS().Encode()))

	fcfs := cb.fcfs(t)
	if len(fcfs) != 2 || fcfs[0] != FCF_TSI || fcfs[1] != FCF_DCS {
		t.Fatalf("expected [TSI DCS], got %v", fcfs)
	}
	tsi := cb.frames()[0]
	if len(tsi) != 23 {
		t.Errorf("TSI frame is %d octets, want 23", len(tsi))
	}
}

func TestAnswerSideSendsDISOnStart(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleAnswer, rxCapableDIS(), cb)
	s.SetIdent("FAX ROOM 2")
	s.Start()

	if len(cb.txArmed) == 0 || cb.txArmed[0] != ModemCED {
		t.Fatalf("expected CED armed first, got %v", cb.txArmed)
	}
	fcfs := cb.fcfs(t)
	if len(fcfs) != 2 || fcfs[0] != FCF_CSI || fcfs[1] != FCF_DIS {
		t.Fatalf("expected [CSI DIS], got %v", fcfs)
	}
}

func TestSessionFailsOnIncompatibleDIS(t *testing.T) {
	cb := &fakeCallbacks{}
	local := DIS{ReadyToTransmit: true, SupportV17: true}
	s := NewSession(RoleCall, local, cb)
	s.SetPageWidth(1728)
	s.Start()

	peerDIS := DIS{ReadyToReceive: true, SupportV27ter: true}
	s.ReceivedFrame(BuildFrame(FCF_DIS, true, peerDIS.Encode()))

	if len(cb.phaseE) != 1 || cb.phaseE[0] != CompletionIncompatible {
		t.Fatalf("phaseE = %v, want [INCOMPATIBLE]", cb.phaseE)
	}
	if s.phase != PhaseE {
		t.Errorf("phase = %v, want E", s.phase)
	}
}

func TestTimerT0ExpiryEndsCall(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleCall, DIS{}, cb)
	s.Start()
	s.Tick(timerSamplesFor(DefaultTimerT0Ms))
	if len(cb.phaseE) != 1 || cb.phaseE[0] != CompletionT0Expired {
		t.Fatalf("phaseE = %v, want [T0_EXPIRED]", cb.phaseE)
	}
}

func TestTimerT1TakesOverAfterCarrierUp(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleCall, DIS{}, cb)
	s.Start()
	s.ModemEvent(EventCarrierUp)
	s.Tick(timerSamplesFor(DefaultTimerT1Ms))
	if len(cb.phaseE) != 1 || cb.phaseE[0] != CompletionT1Expired {
		t.Fatalf("phaseE = %v, want [T1_EXPIRED]", cb.phaseE)
	}
}

func TestAnswerSideRespondsCFRAfterGoodTraining(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleAnswer, rxCapableDIS(), cb)
	s.SetPageWidth(1728)
	s.Start()

	dcs := DIS{SupportV27ter: true, Compression2D: true}
	s.ReceivedFrame(BuildFrame(FCF_DCS, true, dcs.Encode()))
	if s.state != StateFTCF {
		t.Fatalf("state after DCS = %v, want F_TCF", s.state)
	}

	s.TrainingResult(true)
	fcfs := cb.fcfs(t)
	if fcfs[len(fcfs)-1] != FCF_CFR {
		t.Fatalf("last frame = %v, want CFR", fcfs[len(fcfs)-1])
	}
	if s.phase != PhaseC {
		t.Errorf("phase = %v, want C", s.phase)
	}
}

func TestAnswerSideScoresTCFFromBits(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleAnswer, rxCapableDIS(), cb)
	s.SetPageWidth(1728)
	s.Start()
	s.ReceivedFrame(BuildFrame(FCF_DCS, true, DIS{SupportV27ter: true}.Encode()))

	// A short burst of ones, then well over one second of zeros at the
	// 4800 bps the DCS selected.
	s.ModemEvent(EventCarrierUp)
	for i := 0; i < 100; i++ {
		s.PutRxBit(1)
	}
	for i := 0; i < 6000; i++ {
		s.PutRxBit(0)
	}
	s.ModemEvent(EventCarrierDown)

	fcfs := cb.fcfs(t)
	if fcfs[len(fcfs)-1] != FCF_CFR {
		t.Fatalf("last frame = %v, want CFR after a good TCF", fcfs[len(fcfs)-1])
	}
}

func TestAnswerSideSendsFTTOnShortZeroRun(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleAnswer, rxCapableDIS(), cb)
	s.SetPageWidth(1728)
	s.Start()
	s.ReceivedFrame(BuildFrame(FCF_DCS, true, DIS{SupportV27ter: true}.Encode()))

	s.ModemEvent(EventCarrierUp)
	// Zero runs repeatedly broken by ones: never a full second of zeros.
	for i := 0; i < 6000; i++ {
		if i%100 == 99 {
			s.PutRxBit(1)
		} else {
			s.PutRxBit(0)
		}
	}
	s.ModemEvent(EventCarrierDown)

	fcfs := cb.fcfs(t)
	if fcfs[len(fcfs)-1] != FCF_FTT {
		t.Fatalf("last frame = %v, want FTT after a broken TCF", fcfs[len(fcfs)-1])
	}
}

// negotiateToPhaseC walks a calling-side session through DIS -> DCS ->
// TCF -> CFR with the given peer capability set.
func negotiateToPhaseC(t *testing.T, s *Session, peer DIS) {
	t.Helper()
	s.Start()
	s.ReceivedFrame(BuildFrame(FCF_DIS, true, peer.Encode()))
	s.TCFSent()
	s.ReceivedFrame(BuildFrame(FCF_CFR, true, nil))
	if s.Phase() != PhaseC {
		t.Fatalf("phase = %v after CFR, want C", s.Phase())
	}
}

func TestNonECMPageFlowThroughEOP(t *testing.T) {
	cb := &fakeCallbacks{}
	local := txCapableDIS()
	local.ECM = false
	peer := rxCapableDIS()
	peer.ECM = false
	s := NewSession(RoleCall, local, cb)
	s.SetPageWidth(1728)
	negotiateToPhaseC(t, s, peer)

	s.SendPage([]byte{0x01, 0x02}, false)
	if s.State() != StateI {
		t.Fatalf("state = %v, want I", s.State())
	}
	s.PageSent()
	if s.State() != StateIIQ {
		t.Fatalf("state = %v, want II_Q", s.State())
	}
	s.ReceivedFrame(BuildFrame(FCF_MCF, true, nil))
	if len(cb.phaseD) != 1 || cb.phaseD[0] != CompletionOK {
		t.Fatalf("phaseD = %v", cb.phaseD)
	}

	s.SendPage([]byte{0x03}, true)
	s.PageSent()
	s.ReceivedFrame(BuildFrame(FCF_MCF, true, nil))

	fcfs := cb.fcfs(t)
	if fcfs[len(fcfs)-1] != FCF_DCN {
		t.Fatalf("last frame = %v, want DCN", fcfs[len(fcfs)-1])
	}
	if len(cb.phaseE) != 1 || cb.phaseE[0] != CompletionOK {
		t.Fatalf("phaseE = %v, want [OK]", cb.phaseE)
	}
	st := s.Stats()
	if st.PagesSent != 2 {
		t.Errorf("PagesSent = %d, want 2", st.PagesSent)
	}
}

func TestFTTWalksFallbackLadderToCannotTrain(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleCall, txCapableDIS(), cb)
	s.SetPageWidth(1728)
	s.Start()
	s.ReceivedFrame(BuildFrame(FCF_DIS, true, rxCapableDIS().Encode()))

	prev := -1
	for i := 0; i < FallbackCount()-1; i++ {
		if s.dcs.FallbackIndex <= prev {
			t.Fatalf("fallback index did not increase: %d then %d", prev, s.dcs.FallbackIndex)
		}
		prev = s.dcs.FallbackIndex
		s.TCFSent()
		s.ReceivedFrame(BuildFrame(FCF_FTT, true, nil))
	}
	// The ladder is exhausted: one more FTT raises CANNOTTRAIN.
	s.TCFSent()
	s.ReceivedFrame(BuildFrame(FCF_FTT, true, nil))

	if len(cb.phaseE) != 1 || cb.phaseE[0] != CompletionCannotTrain {
		t.Fatalf("phaseE = %v, want [CANNOT_TRAIN]", cb.phaseE)
	}
	fcfs := cb.fcfs(t)
	if fcfs[len(fcfs)-1] != FCF_DCN {
		t.Errorf("last frame = %v, want DCN", fcfs[len(fcfs)-1])
	}
}

func TestT4RepeatsCommandThenDisconnects(t *testing.T) {
	cb := &fakeCallbacks{}
	local := txCapableDIS()
	local.ECM = false
	peer := rxCapableDIS()
	peer.ECM = false
	s := NewSession(RoleCall, local, cb)
	s.SetPageWidth(1728)
	negotiateToPhaseC(t, s, peer)

	s.SendPage([]byte{0x01}, true)
	s.PageSent()
	before := len(cb.frames())

	// Three T4 expiries repeat the EOP; the fourth gives up.
	for i := 0; i < 3; i++ {
		s.Tick(timerSamplesFor(DefaultTimerT4Ms))
		fcfs := cb.fcfs(t)
		if fcfs[len(fcfs)-1] != FCF_EOP {
			t.Fatalf("retry %d: last frame = %v, want EOP", i+1, fcfs[len(fcfs)-1])
		}
	}
	if len(cb.frames()) != before+3 {
		t.Fatalf("expected 3 retries, got %d extra frames", len(cb.frames())-before)
	}
	s.Tick(timerSamplesFor(DefaultTimerT4Ms))
	if len(cb.phaseE) != 1 || cb.phaseE[0] != CompletionRetriesExhausted {
		t.Fatalf("phaseE = %v, want [RETRIES_EXHAUSTED]", cb.phaseE)
	}
}

func TestECMPageSendsFCDsRCPsAndPPS(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleCall, txCapableDIS(), cb)
	s.SetPageWidth(1728)
	negotiateToPhaseC(t, s, rxCapableDIS())
	if !s.DCS().ECM {
		t.Fatal("expected ECM negotiated")
	}

	data := bytes.Repeat([]byte{0x5A}, 600) // 3 frames
	start := len(cb.frames())
	s.SendPage(data, true)

	fcfs := cb.fcfs(t)[start:]
	want := []FCF{FCF_FCD, FCF_FCD, FCF_FCD, FCF_RCP, FCF_RCP, FCF_RCP, FCF_PPS}
	if len(fcfs) != len(want) {
		t.Fatalf("got %v, want %v", fcfs, want)
	}
	for i := range want {
		if fcfs[i] != want[i] {
			t.Fatalf("frame %d = %v, want %v", i, fcfs[i], want[i])
		}
	}
	// Every FCD payload is frame number + a full 256-octet payload.
	for i, f := range cb.frames()[start : start+3] {
		_, _, payload, _ := ParseFrame(f)
		if int(payload[0]) != i {
			t.Errorf("FCD %d carries frame number %d", i, payload[0])
		}
		if len(payload)-1 != OctetsPerECMFrame {
			t.Errorf("FCD %d payload = %d octets, want %d", i, len(payload)-1, OctetsPerECMFrame)
		}
	}
}

func TestECMPPRRetransmitsExactlyMissingFrames(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleCall, txCapableDIS(), cb)
	s.SetPageWidth(1728)
	negotiateToPhaseC(t, s, rxCapableDIS())

	s.SendPage(bytes.Repeat([]byte{0x5A}, 3*OctetsPerECMFrame), true)

	start := len(cb.frames())
	s.ReceivedFrame(BuildPPR([]int{1})) // only frame 1 still missing

	fcfs := cb.fcfs(t)[start:]
	want := []FCF{FCF_FCD, FCF_RCP, FCF_RCP, FCF_RCP, FCF_PPS}
	if len(fcfs) != len(want) {
		t.Fatalf("got %v, want %v", fcfs, want)
	}
	_, _, payload, _ := ParseFrame(cb.frames()[start])
	if payload[0] != 1 {
		t.Fatalf("retransmitted frame %d, want 1", payload[0])
	}

	s.ReceivedFrame(BuildFrame(FCF_MCF, true, nil))
	if len(cb.phaseE) != 1 || cb.phaseE[0] != CompletionOK {
		t.Fatalf("phaseE = %v, want [OK]", cb.phaseE)
	}
}

func TestECMReceiverSendsPPRThenMCF(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleAnswer, rxCapableDIS(), cb)
	s.SetPageWidth(1728)
	s.Start()
	dcs := DIS{SupportV17: true, ECM: true, Compression2D: true}
	s.ReceivedFrame(BuildFrame(FCF_DCS, true, dcs.Encode()))
	s.TrainingResult(true)

	frame := func(n int) []byte {
		return BuildFrame(FCF_FCD, false, append([]byte{byte(n)}, bytes.Repeat([]byte{0xA5}, OctetsPerECMFrame)...))
	}
	// Frames 0 and 2 arrive; 1 is lost.
	s.ReceivedFrame(frame(0))
	s.ReceivedFrame(frame(2))
	start := len(cb.frames())
	s.ReceivedFrame(BuildPPS(FCF_EOP, 0, 3))

	fcfs := cb.fcfs(t)[start:]
	if len(fcfs) != 1 || fcfs[0] != FCF_PPR {
		t.Fatalf("got %v, want [PPR]", fcfs)
	}
	_, _, bitmap, _ := ParseFrame(cb.frames()[start])
	if bitmap[0] != 0x02 {
		t.Fatalf("PPR bitmap[0] = %#x, want 0x02 (frame 1 missing)", bitmap[0])
	}

	s.ReceivedFrame(frame(1))
	start = len(cb.frames())
	s.ReceivedFrame(BuildPPS(FCF_EOP, 0, 3))
	fcfs = cb.fcfs(t)[start:]
	if len(fcfs) != 1 || fcfs[0] != FCF_MCF {
		t.Fatalf("got %v, want [MCF]", fcfs)
	}
	if len(s.LastECMPage()) != 3*OctetsPerECMFrame {
		t.Errorf("assembled page = %d octets, want %d", len(s.LastECMPage()), 3*OctetsPerECMFrame)
	}
}

func TestReceiverAnswersMPSWithMCFAndContinues(t *testing.T) {
	cb := &fakeCallbacks{}
	local := rxCapableDIS()
	local.ECM = false
	s := NewSession(RoleAnswer, local, cb)
	s.SetPageWidth(1728)
	s.Start()
	s.ReceivedFrame(BuildFrame(FCF_DCS, true, DIS{SupportV29: true}.Encode()))
	s.TrainingResult(true)

	s.ModemEvent(EventCarrierUp)
	s.ModemEvent(EventCarrierDown) // page carrier ends
	start := len(cb.frames())
	s.ReceivedFrame(BuildFrame(FCF_MPS, true, nil))

	fcfs := cb.fcfs(t)[start:]
	if len(fcfs) != 1 || fcfs[0] != FCF_MCF {
		t.Fatalf("got %v, want [MCF]", fcfs)
	}
	if s.Phase() != PhaseC {
		t.Errorf("phase = %v, want C (next page)", s.Phase())
	}
	if len(cb.phaseD) != 1 || cb.phaseD[0] != CompletionOK {
		t.Errorf("phaseD = %v", cb.phaseD)
	}
}

func TestIdentifierFramesRecordPeerDetails(t *testing.T) {
	cb := &fakeCallbacks{}
	s := NewSession(RoleAnswer, rxCapableDIS(), cb)
	s.Start()
	s.ReceivedFrame(BuildFrame(FCF_TSI, false, EncodeIdentField("+44 20 7946 0000")))
	s.ReceivedFrame(BuildFrame(FCF_SUB, false, EncodeIdentField("1234")))
	if s.PeerIdent() != "+44 20 7946 0000" {
		t.Errorf("PeerIdent = %q", s.PeerIdent())
	}
	if s.PeerSubAddress() != "1234" {
		t.Errorf("PeerSubAddress = %q", s.PeerSubAddress())
	}
}

func TestMinRowBitsFollowsScanLineTable(t *testing.T) {
	local := txCapableDIS()
	peer := rxCapableDIS()
	peer.MinScanLineCode = 0 // 20 ms at standard resolution
	dcs, _, err := BuildDCS(local, peer, 1728)
	if err != nil {
		t.Fatal(err)
	}
	want := FallbackAt(dcs.FallbackIndex).BitRate * 20 / 1000
	if dcs.MinRowBits != want {
		t.Errorf("MinRowBits = %d, want %d", dcs.MinRowBits, want)
	}
}

func timerSamplesFor(ms int) int {
	return ms * SampleRate / 1000
}
