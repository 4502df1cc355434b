package t30

import (
	"github.com/dbehnke/gofax/internal/t4"
	"github.com/dbehnke/gofax/internal/timing"
)

// maxCommandTries bounds how often the last command sequence is repeated
// after a T4 expiry before the session gives up and disconnects.
const maxCommandTries = 3

// maxPPRRounds is the PPR count after which the ECM sender stops
// retransmitting at the current rate and escalates to CTC or EOR.
const maxPPRRounds = 4

// Session is the T.30 protocol engine: a single-threaded, event-driven
// state machine driven entirely by the caller (spec.md §4.2). There is no
// internal goroutine or blocking call; Tick advances timers, ReceivedFrame
// feeds decoded HDLC frames in, ModemEvent feeds carrier/training
// conditions, and the Callbacks interface drives the modem layer and
// reports results back out. Modelled on the teacher's network-protocol
// state structs (internal/network, internal/wiresx): one struct owns every
// piece of mutable state, and a switch over (phase, microState, event)
// decides what happens next.
type Session struct {
	role Role
	cb   Callbacks

	phase Phase
	state MicroState

	// Phase changes requested while receive carrier is still present are
	// queued and committed on the carrier-down event.
	queuedPhase    Phase
	hasQueuedPhase bool
	rxCarrier      bool

	timers Timers

	local               DIS // our own capability set
	peer                DIS // last DIS/DTC received from the far end
	dcs                 DCS // negotiated parameters for the current page
	receivedDISFromPeer bool

	pageWidth int // pels, chosen by the application per page

	ecmTx    *ECMBlock
	ecmRx    *ECMReceiveBlock
	ecmPage  byte
	ecmBlock byte // current ECM block number (wraps mod 256)
	ppsCount int  // PPR rounds at the current rate, for the CTC/EOR rule

	enc *t4.Encoder
	dec *t4.Decoder

	tcfGen *TCFGenerator
	tcfAna TCFAnalyzer

	fallbackIndex int

	ident           string
	peerIdent       string
	password        string
	peerPassword    string
	subAddress      string
	peerSubAddress  string
	selPollAddr     string
	peerSelPollAddr string
	nsf             []byte
	peerNSF         []byte
	headerInfo      string

	retries         int
	lastCommand     [][]byte // the frame sequence to repeat on T4 expiry
	lastPostMessage FCF      // MPS/EOM/EOP we most recently sent
	rxPostCommand   FCF      // MPS/EOM/EOP most recently received
	sentLastPage    bool

	lastCompletion CompletionCode
	pagesSent      int
	pagesReceived  int
	lastECMPage    []byte
	bytesLastPage  int
}

// NewSession builds a Session for the given role with the local capability
// set and callback sink. local should already reflect which modems,
// resolutions and compressions the application supports.
func NewSession(role Role, local DIS, cb Callbacks) *Session {
	return &Session{
		role:   role,
		cb:     cb,
		phase:  PhaseIdle,
		state:  StateNone,
		timers: NewTimers(),
		local:  local,
		ecmTx:  NewECMBlock(),
		ecmRx:  NewECMReceiveBlock(),
	}
}

// SetIdent sets the local CSI/TSI identifier string sent in ID frames.
func (s *Session) SetIdent(id string) { s.ident = id }

// SetPassword sets the password sent in a PWD frame before DCS/DTC.
func (s *Session) SetPassword(pwd string) { s.password = pwd }

// SetSubAddress sets the sub-address sent in a SUB frame before DCS.
func (s *Session) SetSubAddress(sub string) { s.subAddress = sub }

// SetSelectivePollingAddress sets the address sent in a SEP frame when
// polling a specific store on the far end.
func (s *Session) SetSelectivePollingAddress(addr string) { s.selPollAddr = addr }

// SetNSF sets the non-standard-facilities blob sent before DIS.
func (s *Session) SetNSF(nsf []byte) {
	if len(nsf) > 100 {
		nsf = nsf[:100]
	}
	s.nsf = append([]byte(nil), nsf...)
}

// SetHeaderInfo sets the page-header banner string.
func (s *Session) SetHeaderInfo(h string) {
	if len(h) > 50 {
		h = h[:50]
	}
	s.headerInfo = h
}

// HeaderInfo returns the configured page-header banner.
func (s *Session) HeaderInfo() string { return s.headerInfo }

// SetPageWidth records the pel width of the page about to be sent or
// received, used by BuildDCS to validate the width against the peer's
// advertised recording-width capability.
func (s *Session) SetPageWidth(width int) { s.pageWidth = width }

// PeerIdent returns the far end's last-seen CSI/TSI identifier.
func (s *Session) PeerIdent() string { return s.peerIdent }

// PeerSubAddress returns the sub-address the far end supplied, if any.
func (s *Session) PeerSubAddress() string { return s.peerSubAddress }

// PeerNSF returns the far end's non-standard-facilities payload, if any.
func (s *Session) PeerNSF() []byte { return s.peerNSF }

// Phase reports the current coarse call phase.
func (s *Session) Phase() Phase { return s.phase }

// State reports the current micro-state.
func (s *Session) State() MicroState { return s.state }

// DCS reports the negotiated parameter set once phase B has completed.
func (s *Session) DCS() DCS { return s.dcs }

// Start begins Phase A. The answering side emits CED and its DIS sequence;
// the calling side emits CNG and waits for the far end's DIS. T0 runs
// until the first far-end signal is detected, at which point T1 takes over
// (spec.md §4.2's timer rules).
func (s *Session) Start() {
	s.phase = PhaseA
	s.state = StateAnswering
	s.timers.T0.StartMs(DefaultTimerT0Ms)
	if s.role == RoleAnswer {
		s.cb.SetTxType(ModemCED, false, false)
		s.sendDISSequence()
	} else {
		s.cb.SetTxType(ModemCNG, false, false)
		s.cb.SetRxType(ModemV21, false, true)
	}
}

// Tick advances every running timer by n samples (spec.md's sample-clocked
// model) and reacts to any expiry.
func (s *Session) Tick(n int) {
	for _, name := range s.timers.Tick(n) {
		s.onTimerExpired(name)
	}
}

func (s *Session) onTimerExpired(name string) {
	switch name {
	case "T0":
		s.fail(CompletionT0Expired)
	case "T1":
		s.sendDCN(CompletionT1Expired)
	case "T2":
		switch s.state {
		case StateR, StateFPostDocNonECM, StateFPostDocECM:
			s.fail(CompletionT2ExpiredWaitingNextPage)
		case StateFDoc:
			s.fail(CompletionT2ExpiredWaitingPage)
		default:
			s.fail(CompletionT2ExpiredWaitingPhaseD)
		}
	case "T3":
		s.fail(CompletionT3Expired)
	case "T4":
		s.repeatLastCommand()
	case "T5":
		s.sendDCN(CompletionECMRNRTimeout)
	case "T6", "T7", "T8":
		s.fail(CompletionUnexpectedMessage)
	}
}

// repeatLastCommand implements T4's repeat-then-give-up rule: resend the
// most recent command sequence up to maxCommandTries times, then DCN.
func (s *Session) repeatLastCommand() {
	s.retries++
	if s.retries > maxCommandTries || len(s.lastCommand) == 0 {
		s.sendDCN(CompletionRetriesExhausted)
		return
	}
	s.cb.SetTxType(ModemV21, false, true)
	for _, f := range s.lastCommand {
		s.cb.SendHDLC(f)
	}
	s.cb.SendHDLC(nil)
	s.timers.T4.StartMs(DefaultTimerT4Ms)
}

func (s *Session) fail(code CompletionCode) {
	s.lastCompletion = code
	s.phase = PhaseE
	s.state = StateCallFinished
	s.timers.StopAll()
	s.cb.PhaseE(code)
}

// sendDCN transmits DCN and moves to phase E with the given code.
func (s *Session) sendDCN(code CompletionCode) {
	s.cb.SetTxType(ModemV21, false, true)
	s.cb.SendHDLC(BuildFrame(FCF_DCN, true, nil))
	s.cb.SendHDLC(nil)
	s.fail(code)
}

// Disconnect sends DCN and moves to Phase E with the given completion code.
func (s *Session) Disconnect(code CompletionCode) {
	s.sendDCN(code)
}

// farEndDetected hands the T0->T1 timer baton on the first sign of the
// far end (carrier up or first decoded frame).
func (s *Session) farEndDetected() {
	if s.timers.T0.IsRunning() {
		s.timers.T0.Stop()
		s.timers.T1.StartMs(DefaultTimerT1Ms)
	}
}

// ModemEvent delivers an out-of-band modem condition (spec.md §6's
// negative-length hdlc_accept events).
func (s *Session) ModemEvent(ev ModemEvent) {
	switch ev {
	case EventCarrierUp:
		s.rxCarrier = true
		s.farEndDetected()
	case EventCarrierDown:
		s.rxCarrier = false
		s.onCarrierDown()
	case EventFramingOK:
		// An HDLC flag opens a new frame: T2 is cancelled, T4 is not.
		s.timers.T2.Stop()
		s.farEndDetected()
	case EventTrainingSucceeded:
		if s.state == StateFTCF {
			s.tcfAna.Reset()
		}
	case EventTrainingFailed:
		if s.state == StateFTCF {
			s.TrainingResult(false)
		}
	case EventAbort:
		s.fail(CompletionCallDropped)
	}
}

// onCarrierDown commits a queued phase change and closes out states that
// end with the carrier (TCF analysis, non-ECM page receive).
func (s *Session) onCarrierDown() {
	if s.hasQueuedPhase {
		s.phase = s.queuedPhase
		s.hasQueuedPhase = false
	}
	switch s.state {
	case StateFTCF:
		rate := FallbackAt(s.dcs.FallbackIndex).BitRate
		s.TrainingResult(s.tcfAna.Pass(rate))
	case StateFDoc:
		if !s.dcs.ECM {
			s.state = StateFPostDocNonECM
			s.cb.SetRxType(ModemV21, false, true)
			s.timers.T2.StartMs(DefaultTimerT2Ms)
		}
	}
}

// setPhase moves to a new phase immediately, or queues the change if the
// receive carrier is still present (spec.md §4.2 "phase changes are
// queued if a carrier is still present").
func (s *Session) setPhase(p Phase) {
	if s.rxCarrier {
		s.queuedPhase = p
		s.hasQueuedPhase = true
		return
	}
	s.phase = p
}

// HDLCAccept implements HDLCAcceptor: the modem layer delivers each
// decoded frame here. Frames with a bad FCS are ignored; the far end
// repeats per its own T4.
func (s *Session) HDLCAccept(ok bool, msg []byte) {
	if !ok {
		return
	}
	s.ReceivedFrame(msg)
}

// sendFrames transmits a V.21 command sequence: every frame but the last
// carries the non-final control octet, and a zero-length SendHDLC marks
// the end of the burst (spec.md §6).
func (s *Session) sendFrames(frames ...[]byte) {
	s.cb.SetTxType(ModemV21, false, true)
	for _, f := range frames {
		s.cb.SendHDLC(f)
	}
	s.cb.SendHDLC(nil)
	s.lastCommand = frames
}

// sendDISSequence transmits the answering side's capability set: optional
// NSF and CSI, then DIS (or DTC once a DIS has been received from the
// peer, per the DIS/DTC invariant in spec.md §3).
func (s *Session) sendDISSequence() {
	fcf := FCF_DIS
	d := s.local
	if s.receivedDISFromPeer {
		fcf = FCF_DTC
		d.IsDTC = true
	}
	var frames [][]byte
	if len(s.nsf) > 0 {
		frames = append(frames, BuildFrame(FCF_NSF, false, s.nsf))
	}
	if s.receivedDISFromPeer {
		// Polling: SEP and PWD precede the DTC.
		if s.selPollAddr != "" {
			frames = append(frames, BuildFrame(FCF_SEP, false, EncodeIdentField(s.selPollAddr)))
		}
		if s.password != "" {
			frames = append(frames, BuildFrame(FCF_PWD, false, EncodeIdentField(s.password)))
		}
	}
	if s.ident != "" {
		idFCF := FCF_CSI
		if s.receivedDISFromPeer {
			idFCF = FCF_CIG
		}
		frames = append(frames, BuildFrame(idFCF, false, EncodeIdentField(s.ident)))
	}
	frames = append(frames, BuildFrame(fcf, true, d.Encode()))
	s.sendFrames(frames...)
	s.state = StateR
	s.setPhase(PhaseB)
	s.timers.T2.StartMs(DefaultTimerT2Ms)
}

// ReceivedFrame delivers one decoded HDLC frame (already FCS-validated) to
// the state machine. This is the primary event input during phases B and D,
// and carries FCD/RCP/PPS traffic during ECM phase C.
func (s *Session) ReceivedFrame(msg []byte) {
	fcf, final, payload, err := ParseFrame(msg)
	if err != nil {
		return
	}
	_ = final
	s.farEndDetected()
	// A complete valid frame cancels both T2 and T4 (spec.md §3).
	s.timers.T2.Stop()
	s.timers.T4.Stop()

	switch fcf {
	case FCF_CSI, FCF_CIG, FCF_TSI:
		s.peerIdent = DecodeIdentField(payload)
		return
	case FCF_PWD:
		s.peerPassword = DecodeIdentField(payload)
		return
	case FCF_SUB:
		s.peerSubAddress = DecodeIdentField(payload)
		return
	case FCF_SEP:
		s.peerSelPollAddr = DecodeIdentField(payload)
		return
	case FCF_NSF, FCF_NSC, FCF_NSS:
		s.peerNSF = append([]byte(nil), payload...)
		return
	case FCF_CRP:
		s.repeatFramesNow()
		return
	case FCF_FCD:
		if len(payload) >= 1 {
			s.ReceivedECMFrame(int(payload[0]), payload[1:])
		}
		return
	case FCF_RCP:
		// End of an ECM frame burst; PPS follows on V.21.
		return
	case FCF_PPS:
		s.ReceivedPPS(payload)
		return
	}

	switch s.phase {
	case PhaseA, PhaseB:
		s.handlePhaseBFrame(fcf, payload)
	case PhaseC, PhaseD:
		s.handlePhaseDFrame(fcf, payload)
	}
}

// repeatFramesNow resends the last command sequence immediately (CRP from
// the peer), without consuming a T4 retry.
func (s *Session) repeatFramesNow() {
	if len(s.lastCommand) == 0 {
		return
	}
	s.cb.SetTxType(ModemV21, false, true)
	for _, f := range s.lastCommand {
		s.cb.SendHDLC(f)
	}
	s.cb.SendHDLC(nil)
}

func (s *Session) handlePhaseBFrame(fcf FCF, payload []byte) {
	switch fcf {
	case FCF_DIS, FCF_DTC:
		s.peer = DecodeDIS(payload)
		if fcf == FCF_DIS {
			s.receivedDISFromPeer = true
		}
		s.timers.T1.Stop()
		s.setPhase(PhaseB)
		s.cb.PhaseB(CompletionOK)
		if s.role == RoleCall {
			s.sendDCSSequence()
		}
	case FCF_DCS:
		s.peer = DecodeDIS(payload)
		s.dcs = DCS{DIS: s.peer}
		s.dcs.FallbackIndex = s.fallbackIndexFromDCS(s.peer)
		s.prepareTCFReceive()
	case FCF_CFR:
		if s.state == StateDPostTCF {
			s.retries = 0
			s.beginPageTransmit()
		}
	case FCF_FTT:
		if s.state == StateDPostTCF {
			if !s.fallbackSlower() {
				s.sendDCN(CompletionCannotTrain)
				return
			}
			s.sendDCSSequence()
		}
	case FCF_DCN:
		s.fail(CompletionDCNWhileWaitingDIS)
	}
}

// fallbackIndexFromDCS recovers the ladder index the sender selected from
// the rate capability bits of its DCS.
func (s *Session) fallbackIndexFromDCS(d DIS) int {
	mask := localModemMask(d)
	for i := 0; i < FallbackCount(); i++ {
		if mask&ModemCapBit(FallbackAt(i).Modem) != 0 {
			return i
		}
	}
	return FallbackCount() - 1
}

// sendDCSSequence negotiates parameters against the last-seen peer DIS,
// transmits TSI/PWD/SUB/DCS, and starts the TCF burst.
func (s *Session) sendDCSSequence() {
	dcs, code, err := BuildDCS(s.local, s.peer, s.pageWidth)
	if err != nil {
		s.fail(code)
		return
	}
	if s.fallbackIndex > dcs.FallbackIndex {
		// Fallback never speeds back up mid-call.
		dcs.FallbackIndex = s.fallbackIndex
		dcs.SupportV27ter = false
		dcs.SupportV29 = false
		dcs.SupportV17 = false
		switch FallbackAt(dcs.FallbackIndex).Modem {
		case ModemV27ter2400, ModemV27ter4800:
			dcs.SupportV27ter = true
		case ModemV29_7200, ModemV29_9600:
			dcs.SupportV29 = true
		default:
			dcs.SupportV17 = true
		}
	}
	s.dcs = dcs
	s.fallbackIndex = dcs.FallbackIndex

	var frames [][]byte
	if s.ident != "" {
		frames = append(frames, BuildFrame(FCF_TSI, false, EncodeIdentField(s.ident)))
	}
	if s.password != "" {
		frames = append(frames, BuildFrame(FCF_PWD, false, EncodeIdentField(s.password)))
	}
	if s.subAddress != "" {
		frames = append(frames, BuildFrame(FCF_SUB, false, EncodeIdentField(s.subAddress)))
	}
	frames = append(frames, BuildFrame(FCF_DCS, true, dcs.Encode()))
	s.sendFrames(frames...)

	// TCF follows the DCS on the image-rate carrier.
	entry := FallbackAt(s.fallbackIndex)
	s.tcfGen = NewTCFGenerator(entry.BitRate)
	s.state = StateDTCF
	s.cb.SetTxType(entry.Modem, false, false)
}

// TCFSource returns the generator the modem layer pulls the training-check
// bits from after a DCS sequence.
func (s *Session) TCFSource() *TCFGenerator { return s.tcfGen }

// TCFSent is called by the modem layer once the TCF burst has been fully
// transmitted: arm V.21 receive and await CFR/FTT.
func (s *Session) TCFSent() {
	s.state = StateDPostTCF
	s.cb.SetRxType(ModemV21, false, true)
	s.timers.T4.StartMs(DefaultTimerT4Ms)
}

// prepareTCFReceive is entered on the answering side once a DCS has been
// decoded: arm the image-rate receiver for the TCF burst.
func (s *Session) prepareTCFReceive() {
	s.state = StateFTCF
	s.tcfAna.Reset()
	entry := FallbackAt(s.dcs.FallbackIndex)
	s.cb.SetRxType(entry.Modem, false, false)
	s.timers.T2.StartMs(DefaultTimerT2Ms)
}

// TrainingResult is called with the verdict on a received TCF burst (or
// directly by a modem layer that judges training itself). ok reflects
// whether the training check passed.
func (s *Session) TrainingResult(ok bool) {
	s.timers.T2.Stop()
	if ok {
		s.sendFrames(BuildFrame(FCF_CFR, true, nil))
		s.state = StateFCFR
		s.beginPageReceive()
		return
	}
	s.sendFrames(BuildFrame(FCF_FTT, true, nil))
	s.state = StateFFTT
	s.timers.T2.StartMs(DefaultTimerT2Ms)
}

// fallbackSlower steps the negotiated modem down one rung, used after FTT.
func (s *Session) fallbackSlower() bool {
	if s.fallbackIndex+1 >= FallbackCount() {
		return false
	}
	s.fallbackIndex++
	s.dcs.FallbackIndex = s.fallbackIndex
	return true
}

// beginPageTransmit enters phase C on the sending side after CFR.
func (s *Session) beginPageTransmit() {
	s.setPhase(PhaseC)
	entry := FallbackAt(s.fallbackIndex)
	if s.dcs.ECM {
		s.state = StateIV
		s.ecmPage = 0
		s.ecmBlock = 0
		s.ppsCount = 0
	} else {
		s.state = StateI
	}
	s.cb.SetTxType(entry.Modem, true, s.dcs.ECM)
}

// beginPageReceive arms the non-ECM or ECM image decoder for the agreed
// compression and resolution, ready to accept bits or FCD frames.
func (s *Session) beginPageReceive() {
	s.setPhase(PhaseC)
	compression := t4.Compression1D
	switch {
	case s.dcs.CompressionT6:
		compression = t4.CompressionMMR
	case s.dcs.Compression2D:
		compression = t4.Compression2D
	}
	s.dec = t4.NewDecoder(compression, s.pageWidth)
	if s.dcs.ECM {
		s.ecmRx.Reset()
		s.ecmBlock = 0
	}
	s.state = StateFDoc
	entry := FallbackAt(s.dcs.FallbackIndex)
	s.cb.SetRxType(entry.Modem, true, s.dcs.ECM)
	s.timers.T2.StartMs(DefaultTimerT2Ms)
}

// PutRxBit feeds one demodulated bit from the image-rate receiver: during
// F_TCF it scores the training check; during a non-ECM page the caller
// normally buffers the stream and runs DecodeNonECMPage at carrier-down.
func (s *Session) PutRxBit(bit int) {
	if s.state == StateFTCF {
		s.tcfAna.PutBit(bit)
	}
}

// DecodeNonECMPage runs the T.4/T.6 decoder across a complete buffered
// non-ECM bit stream and hands every row to sink, classifying copy quality
// once done (spec.md §4.1).
func (s *Session) DecodeNonECMPage(stream []byte, sink t4.ImageSink) error {
	s.dec.StartPage(stream)
	s.dec.SeekFirstEOL()
	for {
		row, eop, ok := s.dec.DecodeRow()
		if !ok {
			break
		}
		if eop {
			break
		}
		if err := sink.PutRow(row); err != nil {
			return err
		}
	}
	stats := s.dec.Stats()
	quality := t4.Classify(stats.BadRows, stats.Rows)
	compression := t4.Compression1D
	switch {
	case s.dcs.CompressionT6:
		compression = t4.CompressionMMR
	case s.dcs.Compression2D:
		compression = t4.Compression2D
	}
	s.bytesLastPage = len(stream)
	return sink.EndPage(compression, quality)
}

// pageQuality maps the decoder's bad-row statistics to the post-message
// response the receiver sends (MCF / RTP / RTN).
func (s *Session) pageQuality() FCF {
	if s.dec == nil {
		return FCF_MCF
	}
	stats := s.dec.Stats()
	switch t4.Classify(stats.BadRows, stats.Rows) {
	case t4.QualityGood:
		return FCF_MCF
	case t4.QualityPoor:
		return FCF_RTP
	default:
		return FCF_RTN
	}
}

// ReceivedECMFrame stores one FCD frame's payload during ECM image
// transfer (spec.md §3 "256-frame partial-page blocks").
func (s *Session) ReceivedECMFrame(frameNo int, payload []byte) {
	s.ecmRx.StoreFrame(frameNo, payload)
}

// ReceivedPPS handles a PPS frame on the receiving side: report which
// frames are still missing via PPR, or acknowledge with the copy-quality
// response once the block is complete.
func (s *Session) ReceivedPPS(payload []byte) {
	subFCF, block, count, ok := ParsePPS(payload)
	if !ok {
		return
	}
	s.ecmBlock = block
	s.ecmRx.SetDeclaredCount(count)

	if !s.ecmRx.Complete() {
		missing := s.ecmRx.MissingFrames()
		s.sendFrames(BuildPPR(missing))
		s.state = StateFPostRCPPPR
		s.timers.T2.StartMs(DefaultTimerT2Ms)
		return
	}

	s.ppsCount = 0
	s.lastECMPage = s.ecmRx.Assemble()
	s.bytesLastPage = len(s.lastECMPage)

	s.sendFrames(BuildFrame(FCF_MCF, true, nil))
	s.state = StateFPostRCPMCF
	s.rxPostCommand = subFCF

	switch subFCF {
	case FCF_EOP, FCF_PRI_EOP:
		s.cb.PhaseD(CompletionOK)
		s.pagesReceived++
		s.timers.T2.StartMs(DefaultTimerT2Ms)
	case FCF_MPS, FCF_PRI_MPS:
		s.cb.PhaseD(CompletionOK)
		s.pagesReceived++
		s.ecmRx.Reset()
		s.state = StateFDoc
		s.timers.T2.StartMs(DefaultTimerT2Ms)
	case FCF_EOM, FCF_PRI_EOM:
		s.cb.PhaseD(CompletionOK)
		s.pagesReceived++
		s.ecmRx.Reset()
		s.cb.DocumentEvent(int(CompletionOK))
		s.state = StateR
		s.setPhase(PhaseB)
		s.timers.T2.StartMs(DefaultTimerT2Ms)
	}
}

func (s *Session) handlePhaseDFrame(fcf FCF, payload []byte) {
	switch fcf {
	case FCF_MCF:
		s.retries = 0
		s.pagesSent++
		s.cb.PhaseD(CompletionOK)
		s.state = StateIIIQMCF
		s.afterPageAccepted()
	case FCF_RTP:
		s.retries = 0
		s.pagesSent++
		s.cb.PhaseD(CompletionOK)
		s.state = StateIIIQRTP
		s.afterPageAccepted()
	case FCF_RTN:
		s.retries = 0
		s.cb.PhaseD(CompletionBadPageResponse)
		s.state = StateIIIQRTN
		// The application may retrain and resend via SendPage; await it.
		s.timers.T2.StartMs(DefaultTimerT2Ms)
	case FCF_PPR:
		missing := ParsePPR(payload)
		s.retransmitECMFrames(missing)
	case FCF_RNR:
		// Receiver not ready: poll with RR under T5.
		if !s.timers.T5.IsRunning() {
			s.timers.T5.StartMs(DefaultTimerT5Ms)
		}
		s.sendFrames(BuildFrame(FCF_RR, true, nil))
		s.state = StateIVPPSRNR
		s.timers.T4.StartMs(DefaultTimerT4Ms)
	case FCF_RR:
		// Receiver-side: the sender is polling readiness; we are always
		// ready, so repeat the last response.
		s.repeatFramesNow()
	case FCF_CTR:
		if s.state == StateIVCTC {
			s.ppsCount = 0
			s.resendPendingECM()
		}
	case FCF_CTC:
		// Sender wants to continue at a lower rate: acknowledge and keep
		// the partial-page state.
		s.ppsCount = 0
		s.sendFrames(BuildFrame(FCF_CTR, true, nil))
		s.state = StateFDoc
	case FCF_EOR:
		// Sender gave up on the remaining frames of this block.
		s.sendFrames(BuildFrame(FCF_ERR, true, nil))
		s.lastECMPage = s.ecmRx.Assemble()
		s.state = StateFPostDocECM
	case FCF_ERR:
		if s.state == StateIVEOR || s.state == StateIVEORRNR {
			s.afterPageAccepted()
		}
	case FCF_MPS, FCF_EOP, FCF_EOM, FCF_PRI_MPS, FCF_PRI_EOP, FCF_PRI_EOM:
		s.handlePostMessageCommand(fcf)
	case FCF_PIP, FCF_PIN:
		// Procedure interrupts: accepted, then the operator timer governs.
		s.timers.T3.StartMs(DefaultTimerT3Ms)
	case FCF_DCN:
		// The DCN that follows our MCF to an EOP is the normal end of the
		// call on the receiving side.
		if s.rxPostCommand == FCF_EOP || s.rxPostCommand == FCF_PRI_EOP {
			s.fail(CompletionOK)
			return
		}
		s.fail(CompletionUnexpectedDCN)
	}
}

// handlePostMessageCommand answers a post-page command on the receiving
// side with the copy-quality verdict, and advances the document flow.
func (s *Session) handlePostMessageCommand(fcf FCF) {
	s.rxPostCommand = fcf
	resp := s.pageQuality()
	s.sendFrames(BuildFrame(resp, true, nil))
	if resp == FCF_RTN {
		s.state = StateFPostDocNonECM
		s.timers.T2.StartMs(DefaultTimerT2Ms)
		return
	}
	s.pagesReceived++
	s.cb.PhaseD(CompletionOK)
	switch fcf {
	case FCF_MPS, FCF_PRI_MPS:
		s.beginPageReceive()
	case FCF_EOM, FCF_PRI_EOM:
		s.cb.DocumentEvent(int(CompletionOK))
		s.state = StateR
		s.setPhase(PhaseB)
		s.timers.T2.StartMs(DefaultTimerT2Ms)
	case FCF_EOP, FCF_PRI_EOP:
		// Await the DCN that normally follows.
		s.state = StateFPostDocNonECM
		s.timers.T2.StartMs(DefaultTimerT2Ms)
	}
}

// afterPageAccepted advances the sending side once the peer has confirmed
// the page (MCF/RTP, or ERR after EOR).
func (s *Session) afterPageAccepted() {
	switch s.lastPostMessage {
	case FCF_EOP, FCF_PRI_EOP:
		s.sendDCN(CompletionOK)
	case FCF_EOM, FCF_PRI_EOM:
		s.cb.DocumentEvent(int(CompletionOK))
		s.state = StateT
		s.setPhase(PhaseB)
		s.timers.T2.StartMs(DefaultTimerT2Ms)
	default: // MPS: next page on the same parameters
		s.setPhase(PhaseC)
		if s.dcs.ECM {
			s.state = StateIV
			s.ecmBlock = 0
			s.ecmPage++
		} else {
			s.state = StateD
		}
	}
}

// retransmitECMFrames resends every frame the peer's PPR flagged missing,
// or escalates to CTC (rate step-down) or EOR after four unproductive
// rounds (spec.md §4.2).
func (s *Session) retransmitECMFrames(missing []int) {
	if len(missing) == 0 {
		return
	}
	s.ppsCount++
	if s.ppsCount >= maxPPRRounds {
		s.ppsCount = 0
		if s.fallbackSlower() {
			s.sendFrames(BuildFrame(FCF_CTC, true, []byte{0, ctcRateOctet(s.fallbackIndex)}))
			s.state = StateIVCTC
			s.timers.T4.StartMs(DefaultTimerT4Ms)
		} else {
			// No slower rate left: give up on the block. EOR carries the
			// post-message command the abandoned PPS would have.
			s.sendFrames(BuildFrame(FCF_EOR, true, []byte{byte(s.lastPostMessage)}))
			s.state = StateIVEOR
			s.timers.T4.StartMs(DefaultTimerT4Ms)
		}
		return
	}
	s.ecmTx.SetPending(missing)
	s.resendPendingECM()
}

// resendPendingECM transmits the still-pending ECM frames in ascending
// order, then 3 RCPs and the PPS again.
func (s *Session) resendPendingECM() {
	entry := FallbackAt(s.fallbackIndex)
	s.cb.SetTxType(entry.Modem, true, true)
	for _, n := range s.ecmTx.PendingFrames() {
		payload, _ := s.ecmTx.Frame(n)
		s.cb.SendHDLC(BuildFrame(FCF_FCD, false, append([]byte{byte(n)}, payload...)))
	}
	s.sendRCPsAndPPS(s.lastPostMessage)
}

// ctcRateOctet encodes the new signalling rate into CTC's second FIF
// octet using the DCS rate bit positions.
func ctcRateOctet(fallbackIndex int) byte {
	var d DIS
	switch FallbackAt(fallbackIndex).Modem {
	case ModemV27ter2400, ModemV27ter4800:
		d.SupportV27ter = true
	case ModemV29_7200, ModemV29_9600:
		d.SupportV29 = true
	default:
		d.SupportV17 = true
	}
	return d.Encode()[1]
}

// sendRCPsAndPPS closes an ECM frame burst: three RCP frames on the image
// carrier, then PPS over V.21.
func (s *Session) sendRCPsAndPPS(sub FCF) {
	for i := 0; i < 3; i++ {
		s.cb.SendHDLC(BuildFrame(FCF_RCP, i == 2, nil))
	}
	s.cb.SendHDLC(nil)
	pps := BuildPPS(sub, s.ecmBlock, s.ecmTx.NumFrames())
	s.cb.SetTxType(ModemV21, false, true)
	s.cb.SendHDLC(pps)
	s.cb.SendHDLC(nil)
	s.lastCommand = [][]byte{pps}
	s.state = StateIVPPSQ
	s.timers.T4.StartMs(DefaultTimerT4Ms)
}

// SendPage hands one already-compressed page's bit stream to the transmit
// side: non-ECM pages go out as a single continuous bit stream framed by
// the modem layer, ECM pages are sliced into FCD frames followed by RCPs
// and a PPS.
func (s *Session) SendPage(data []byte, lastPage bool) {
	s.setPhase(PhaseC)
	s.sentLastPage = lastPage
	s.bytesLastPage = len(data)
	sub := FCF_MPS
	if lastPage {
		sub = FCF_EOP
	}

	if s.dcs.ECM {
		s.lastPostMessage = sub
		s.ecmTx.Fill(data)
		entry := FallbackAt(s.fallbackIndex)
		s.cb.SetTxType(entry.Modem, true, true)
		for i := 0; i < s.ecmTx.NumFrames(); i++ {
			payload, _ := s.ecmTx.Frame(i)
			s.cb.SendHDLC(BuildFrame(FCF_FCD, false, append([]byte{byte(i)}, payload...)))
		}
		s.sendRCPsAndPPS(sub)
		s.ecmBlock++
		return
	}

	entry := FallbackAt(s.fallbackIndex)
	s.cb.SetTxType(entry.Modem, true, false)
	s.state = StateI
	// The modem layer streams the page bits; the post-message command
	// follows once it signals completion via PageSent.
	s.lastPostMessage = sub
}

// PageSent is called by the modem layer once a non-ECM page's bit stream
// has been fully transmitted: send the post-message command over V.21.
func (s *Session) PageSent() {
	s.setPhase(PhaseD)
	s.sendFrames(BuildFrame(s.lastPostMessage, true, nil))
	s.state = StateIIQ
	s.retries = 0
	s.timers.T4.StartMs(DefaultTimerT4Ms)
}

// EncodePage compresses a bitmap into the wire stream for the negotiated
// compression mode, honouring the peer's minimum-scan-line-time, for
// callers driving SendPage from an ImageSource.
func (s *Session) EncodePage(src t4.ImageSource) ([]byte, error) {
	compression := t4.Compression1D
	k := 0
	switch {
	case s.dcs.CompressionT6:
		compression = t4.CompressionMMR
	case s.dcs.Compression2D:
		compression = t4.Compression2D
		k = 2
		if s.dcs.SuperFineResolution {
			k = 8
		} else if s.dcs.FineResolution {
			k = 4
		}
	}
	s.enc = t4.NewEncoder(compression, s.pageWidth, k)
	s.enc.StartPage()
	s.enc.SetMinRowBits(s.dcs.MinRowBits)
	for {
		row, ok := src.Row()
		if !ok {
			break
		}
		s.enc.EncodeRow(row)
	}
	return s.enc.EndPage(), nil
}

// Stats summarises a session's transfer for logging at phase D/E.
type Stats struct {
	PagesSent     int
	PagesReceived int
	BitRate       int
	BytesPerPage  int
}

// Stats reports the transfer-rate and page counters kept across the call.
func (s *Session) Stats() Stats {
	rate := 0
	if s.fallbackIndex < FallbackCount() {
		rate = FallbackAt(s.fallbackIndex).BitRate
	}
	return Stats{
		PagesSent:     s.pagesSent,
		PagesReceived: s.pagesReceived,
		BitRate:       rate,
		BytesPerPage:  s.bytesLastPage,
	}
}

// LastCompletion reports the reason the most recent call ended.
func (s *Session) LastCompletion() CompletionCode { return s.lastCompletion }

// LastECMPage returns the assembled compressed bit stream from the most
// recently completed ECM partial page, ready for DecodeNonECMPage (the
// T.4/T.6 decoder does not care whether the stream arrived as whole FCD
// frames or a raw non-ECM bit stream).
func (s *Session) LastECMPage() []byte { return s.lastECMPage }

// SampleRate re-exports timing.SampleRate for callers wiring Tick to a
// real audio clock.
const SampleRate = timing.SampleRate
