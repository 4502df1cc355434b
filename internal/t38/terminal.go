package t38

import (
	"fmt"

	"github.com/dbehnke/gofax/internal/t30"
	"github.com/dbehnke/gofax/internal/timing"
)

// octetsPerPacket bounds how many bytes of image/HDLC data one outbound
// IFP data packet carries per 30 ms tick (spec.md §4.4).
const octetsPerPacket = 80

// sendTickMs is the fixed 30 ms cadence the outbound timed state machine
// uses for NON_ECM_MODEM_3 and HDLC_MODEM_3 (spec.md §4.4).
const sendTickMs = 30

// indicatorRepeatCount is how many times an indicator packet is repeated
// on the wire for robustness, per spec.md §6 ("T.38 packet interface").
const indicatorRepeatCount = 3

// trainingDuration holds the training wait in ms without and with
// talker-echo-protect (spec.md §4.4's training-duration table).
type trainingDuration struct{ plain, tep int }

var (
	durV21      = trainingDuration{1000, 1000}
	durV27_2400 = trainingDuration{943, 1158}
	durV27_4800 = trainingDuration{708, 923}
	durV29      = trainingDuration{234, 454}
	durV17Short = trainingDuration{142, 367}
	durV17Long  = trainingDuration{1393, 1618}
)

// trainingDurationMs returns the wait after the training indicator before
// data may follow, for the given modem/training/TEP combination.
func trainingDurationMs(m t30.ModemType, shortTrain, tep bool) int {
	var d trainingDuration
	switch m {
	case t30.ModemV21:
		d = durV21
	case t30.ModemV27ter2400:
		d = durV27_2400
	case t30.ModemV27ter4800:
		d = durV27_4800
	case t30.ModemV29_7200, t30.ModemV29_9600:
		d = durV29
	case t30.ModemV17_7200, t30.ModemV17_9600, t30.ModemV17_12000, t30.ModemV17_14400:
		if shortTrain {
			d = durV17Short
		} else {
			d = durV17Long
		}
	default:
		return 0
	}
	if tep {
		return d.tep
	}
	return d.plain
}

// trainingIndicator maps a modem + short-train flag to the IFP training
// indicator used to arm the peer's receiver.
func trainingIndicator(m t30.ModemType, shortTrain bool) (Indicator, error) {
	switch m {
	case t30.ModemV21:
		return IndicatorV21Preamble, nil
	case t30.ModemV27ter2400:
		return IndicatorV27ter2400Training, nil
	case t30.ModemV27ter4800:
		return IndicatorV27ter4800Training, nil
	case t30.ModemV29_7200:
		return IndicatorV29_7200Training, nil
	case t30.ModemV29_9600:
		return IndicatorV29_9600Training, nil
	case t30.ModemV17_7200:
		if shortTrain {
			return IndicatorV17_7200ShortTraining, nil
		}
		return IndicatorV17_7200LongTraining, nil
	case t30.ModemV17_9600:
		if shortTrain {
			return IndicatorV17_9600ShortTraining, nil
		}
		return IndicatorV17_9600LongTraining, nil
	case t30.ModemV17_12000:
		if shortTrain {
			return IndicatorV17_12000ShortTraining, nil
		}
		return IndicatorV17_12000LongTraining, nil
	case t30.ModemV17_14400:
		if shortTrain {
			return IndicatorV17_14400ShortTraining, nil
		}
		return IndicatorV17_14400LongTraining, nil
	default:
		return 0, fmt.Errorf("t38: no training indicator for modem %v", m)
	}
}

// dataTypeForModem maps a modem profile to the IFP data-type code its
// payload fields are tagged with.
func dataTypeForModem(m t30.ModemType) DataType {
	switch m {
	case t30.ModemV27ter2400:
		return DataV27ter2400
	case t30.ModemV27ter4800:
		return DataV27ter4800
	case t30.ModemV29_7200:
		return DataV29_7200
	case t30.ModemV29_9600:
		return DataV29_9600
	case t30.ModemV17_7200:
		return DataV17_7200
	case t30.ModemV17_9600:
		return DataV17_9600
	case t30.ModemV17_12000:
		return DataV17_12000
	case t30.ModemV17_14400:
		return DataV17_14400
	default:
		return DataV21
	}
}

// indicatorForDataType is the inverse mapping, used by the gateway to
// synthesise an indicator when data arrives for a modem whose indicator
// was never seen (spec.md §4.5 "missing indicator queuing").
func indicatorForDataType(d DataType) Indicator {
	switch d {
	case DataV27ter2400:
		return IndicatorV27ter2400Training
	case DataV27ter4800:
		return IndicatorV27ter4800Training
	case DataV29_7200:
		return IndicatorV29_7200Training
	case DataV29_9600:
		return IndicatorV29_9600Training
	case DataV17_7200:
		return IndicatorV17_7200LongTraining
	case DataV17_9600:
		return IndicatorV17_9600LongTraining
	case DataV17_12000:
		return IndicatorV17_12000LongTraining
	case DataV17_14400:
		return IndicatorV17_14400LongTraining
	default:
		return IndicatorV21Preamble
	}
}

// outState is one state of the outbound timed state machine (spec.md §4.4).
type outState int

const (
	outNone outState = iota
	outNonECMModem
	outNonECMModem2
	outNonECMModem3
	outHDLCModem
	outHDLCModem2
	outHDLCModem3
	outCED
	outCEDHold
	outCNG
	outPause
)

// BitSource supplies raw non-ECM image bytes to the terminal, mirroring
// t30.BitSource but at byte granularity for IFP framing convenience.
type BitSource interface {
	// NextChunk returns up to max bytes of non-ECM data, or ok=false when
	// the document is exhausted.
	NextChunk(max int) (chunk []byte, ok bool)
}

// HDLCSource supplies outbound HDLC frames one at a time.
type HDLCSource interface {
	// NextFrame returns the next frame to send and whether another frame
	// follows immediately on the same carrier (isLast=false) or this is
	// the final frame of the burst (isLast=true).
	NextFrame() (frame []byte, isLast bool, ok bool)
}

// Sender is the terminal's outbound side: it converts set_tx_type/
// send_hdlc intents into the timed sequence of IFP packets spec.md §4.4
// describes. It is driven by repeated calls to SendTimeout(samples),
// analogous to the session engine's own Tick.
type Sender struct {
	TxPacket func(buf []byte, repeatCount int)
	TEP      bool // talker echo protect lengthens every training wait

	state         outState
	timer         *timing.Timer
	modem         t30.ModemType
	shortTrain    bool
	useHDLC       bool
	curIndicator  Indicator
	haveIndicator bool

	bits      BitSource
	hdlc      HDLCSource
	frame     []byte
	frameIdx  int
	frameLast bool

	// A SetTxType that arrives while a burst is still draining is held
	// until the machine goes idle, the way a real modem layer serialises
	// carrier changes behind the data already queued.
	hasPending  bool
	pendModem   t30.ModemType
	pendShort   bool
	pendUseHDLC bool

	pauseMs int
}

// NewSender constructs an idle outbound state machine.
func NewSender() *Sender {
	return &Sender{state: outNone, timer: timing.New()}
}

// SetTxType arms the next outbound burst (spec.md §6). If a burst is
// still draining, the change is queued behind it.
func (s *Sender) SetTxType(modem t30.ModemType, shortTrain, useHDLC bool) {
	if s.state != outNone {
		s.hasPending = true
		s.pendModem = modem
		s.pendShort = shortTrain
		s.pendUseHDLC = useHDLC
		return
	}
	s.applyTxType(modem, shortTrain, useHDLC)
}

func (s *Sender) applyTxType(modem t30.ModemType, shortTrain, useHDLC bool) {
	s.modem = modem
	s.shortTrain = shortTrain
	s.useHDLC = useHDLC
	switch modem {
	case t30.ModemNone, t30.ModemDone:
		s.state = outNone
	case t30.ModemPause:
		// t30.Callbacks.SetTxType only carries a bool where spec.md's
		// PAUSE profile wants a millisecond duration; shortTrain here
		// selects between a short and a long nominal pause.
		s.state = outPause
		s.pauseMs = 100
		if !shortTrain {
			s.pauseMs = 1000
		}
		s.timer.StartMs(s.pauseMs)
	case t30.ModemCED:
		s.state = outCED
		s.timer.StartMs(200)
	case t30.ModemCNG:
		s.state = outCNG
		s.timer.StartMs(200)
	default:
		if useHDLC {
			s.state = outHDLCModem
		} else {
			s.state = outNonECMModem
		}
	}
}

// SetBitSource attaches the non-ECM image byte source for the next burst.
func (s *Sender) SetBitSource(b BitSource) { s.bits = b }

// SetHDLCSource attaches the outbound HDLC frame source for the next burst.
func (s *Sender) SetHDLCSource(h HDLCSource) { s.hdlc = h }

func (s *Sender) emitIndicator(ind Indicator) {
	if s.haveIndicator && ind == s.curIndicator {
		return
	}
	buf, err := EncodeIndicator(ind)
	if err != nil || s.TxPacket == nil {
		return
	}
	s.TxPacket(buf, indicatorRepeatCount)
	s.curIndicator = ind
	s.haveIndicator = true
}

func (s *Sender) emitData(fields []Field) {
	buf, err := EncodeData(dataTypeForModem(s.modem), fields)
	if err != nil || s.TxPacket == nil {
		return
	}
	s.TxPacket(buf, 1)
}

// Idle reports whether the outbound machine has nothing queued.
func (s *Sender) Idle() bool { return s.state == outNone && !s.hasPending }

// SendTimeout advances the outbound state machine by samples ticks,
// emitting IFP packets as each timed step completes (spec.md §4.4).
func (s *Sender) SendTimeout(samples int) {
	if s.state == outNone && s.hasPending {
		s.hasPending = false
		s.applyTxType(s.pendModem, s.pendShort, s.pendUseHDLC)
	}
	switch s.state {
	case outNone:
		return
	case outPause:
		if s.timer.Tick(samples) {
			s.state = outNone
		}
		return
	case outCED:
		if s.timer.Tick(samples) {
			s.emitIndicator(IndicatorCED)
			s.timer.StartMs(3000)
			s.state = outCEDHold
		}
		return
	case outCEDHold:
		if s.timer.Tick(samples) {
			s.state = outNone
		}
		return
	case outCNG:
		if s.timer.Tick(samples) {
			s.emitIndicator(IndicatorCNG)
			s.state = outNone
		}
		return
	case outNonECMModem:
		s.emitIndicator(IndicatorNoSignal)
		s.timer.StartMs(75)
		s.state = outNonECMModem2
	case outNonECMModem2:
		if s.timer.Tick(samples) {
			ind, err := trainingIndicator(s.modem, s.shortTrain)
			if err == nil {
				s.emitIndicator(ind)
			}
			s.timer.StartMs(trainingDurationMs(s.modem, s.shortTrain, s.TEP))
			s.state = outNonECMModem3
		}
	case outNonECMModem3:
		if s.timer.Tick(samples) {
			s.stepNonECM()
			s.timer.StartMs(sendTickMs)
		}
	case outHDLCModem:
		ind, err := trainingIndicator(s.modem, s.shortTrain)
		if err != nil {
			ind = IndicatorV21Preamble
		}
		s.emitIndicator(ind)
		s.timer.StartMs(trainingDurationMs(s.modem, s.shortTrain, s.TEP))
		s.state = outHDLCModem2
	case outHDLCModem2:
		if s.timer.Tick(samples) {
			s.beginFrame()
			s.timer.StartMs(sendTickMs)
			s.state = outHDLCModem3
		}
	case outHDLCModem3:
		if s.timer.Tick(samples) {
			s.stepHDLC()
			if s.state == outHDLCModem3 {
				s.timer.StartMs(sendTickMs)
			}
		}
	}
}

func (s *Sender) stepNonECM() {
	if s.bits == nil {
		s.emitIndicator(IndicatorNoSignal)
		s.state = outNone
		return
	}
	chunk, ok := s.bits.NextChunk(octetsPerPacket)
	if !ok {
		if len(chunk) > 0 {
			s.emitData([]Field{{Type: FieldT4NonECMSigEnd, Data: chunk}})
		} else {
			s.emitData([]Field{{Type: FieldT4NonECMSigEnd}})
		}
		s.emitIndicator(IndicatorNoSignal)
		s.state = outNone
		return
	}
	s.emitData([]Field{{Type: FieldT4NonECMData, Data: chunk}})
}

func (s *Sender) beginFrame() {
	if s.hdlc == nil {
		s.state = outNone
		return
	}
	frame, isLast, ok := s.hdlc.NextFrame()
	if !ok {
		s.state = outNone
		return
	}
	s.frame = frame
	s.frameIdx = 0
	s.frameLast = isLast
}

func (s *Sender) stepHDLC() {
	if s.frame == nil {
		s.advanceOrFinish()
		return
	}
	end := s.frameIdx + octetsPerPacket
	final := false
	if end >= len(s.frame) {
		end = len(s.frame)
		final = true
	}
	chunk := reverseBytes(s.frame[s.frameIdx:end])
	s.frameIdx = end

	if !final {
		s.emitData([]Field{{Type: FieldHDLCData, Data: chunk}})
		return
	}
	ftype := FieldHDLCFCSOK
	if s.frameLast {
		ftype = FieldHDLCFCSOKSigEnd
	}
	s.emitData([]Field{{Type: ftype, Data: chunk}})
	s.advanceOrFinish()
}

func (s *Sender) advanceOrFinish() {
	s.frame = nil
	if s.frameLast {
		s.emitIndicator(IndicatorNoSignal)
		s.state = outNone
		return
	}
	s.beginFrame()
	if s.frame == nil && s.state != outNone {
		s.state = outNone
		return
	}
}

// hdlcQueue buffers frames handed down by the session until the sender's
// timed machine drains them; a zero-length SendHDLC marks the end of the
// current burst (spec.md §6's send_hdlc contract).
type hdlcQueue struct {
	frames   [][]byte
	burstEnd bool
}

func (q *hdlcQueue) push(msg []byte) {
	if len(msg) == 0 {
		q.burstEnd = true
		return
	}
	q.frames = append(q.frames, append([]byte(nil), msg...))
}

// NextFrame implements HDLCSource.
func (q *hdlcQueue) NextFrame() (frame []byte, isLast bool, ok bool) {
	if len(q.frames) == 0 {
		return nil, false, false
	}
	frame = q.frames[0]
	q.frames = q.frames[1:]
	isLast = len(q.frames) == 0 && q.burstEnd
	if isLast {
		q.burstEnd = false
	}
	return frame, isLast, true
}

// Terminal hosts a T.30 session engine directly on the T.38 core (spec.md
// §4.4): the session's modem callbacks are translated into timed IFP
// packets, and inbound IFP packets are translated back into HDLC frames
// and image bits. It operates on the same externally driven 8 kHz virtual
// sample clock as everything else.
type Terminal struct {
	Session  *t30.Session
	Core     *Core
	Sender   *Sender
	Receiver *Receiver

	// App receives the session's phase callbacks, if set.
	App t30.Callbacks

	// TxPacket delivers every encoded IFP packet the terminal emits
	// (spec.md §6's tx_packet_handler). Assign before Start.
	TxPacket func(buf []byte, repeatCount int)

	queue     hdlcQueue
	rxBuf     []byte // buffered non-ECM bits for end-of-carrier decode
	bitCount  int
	tcfRelay  bool
	pageRelay bool
	rxHDLC    bool      // HDLC flag of the session's last SetRxType
	lastInd   Indicator // last inbound indicator
}

// byteChunkSource feeds a fixed byte slice through the sender's chunked
// non-ECM path.
type byteChunkSource struct {
	data []byte
}

func (b *byteChunkSource) NextChunk(max int) ([]byte, bool) {
	if len(b.data) == 0 {
		return nil, false
	}
	n := max
	if n > len(b.data) {
		n = len(b.data)
	}
	out := b.data[:n]
	b.data = b.data[n:]
	return out, true
}

// QueueNonECMPage attaches a compressed page's byte stream as the next
// non-ECM burst; once the sender drains it, the session's PageSent fires
// and the post-message command follows.
func (t *Terminal) QueueNonECMPage(data []byte) {
	t.Sender.SetBitSource(&byteChunkSource{data: append([]byte(nil), data...)})
	t.pageRelay = true
}

// NewTerminal wires a session, sender, receiver and core together for the
// given role and capability set. version selects the T.38 dialect.
func NewTerminal(role t30.Role, local t30.DIS, version int) *Terminal {
	t := &Terminal{
		Core:     NewCore(version),
		Sender:   NewSender(),
		Receiver: NewReceiver(),
	}
	local.SupportT38 = true
	t.Session = t30.NewSession(role, local, t)
	t.Sender.SetHDLCSource(&t.queue)
	t.Receiver.HDLC = t
	t.Receiver.Bits = t
	t.Core.RxIndicator = t.onRxIndicator
	t.Core.RxData = t.onRxData
	t.Core.RxMissing = func(expected, received int) { t.Receiver.missing = true }
	t.Core.TxPacket = func(buf []byte, repeat int) {
		if t.TxPacket != nil {
			t.TxPacket(buf, repeat)
		}
	}
	t.Sender.TxPacket = t.Core.TxPacket
	return t
}

var _ HDLCSource = (*hdlcQueue)(nil)

// Start begins the hosted session.
func (t *Terminal) Start() { t.Session.Start() }

// RxIFPPacket feeds one inbound IFP packet (spec.md §6).
func (t *Terminal) RxIFPPacket(seq uint16, buf []byte) int {
	t.Receiver.Watchdog.StartMs(watchdogMs)
	return t.Core.RxIFPPacket(seq, buf)
}

// SendTimeout advances the outbound timed machine and the session timers
// by samples ticks.
func (t *Terminal) SendTimeout(samples int) {
	t.Sender.SendTimeout(samples)
	t.Session.Tick(samples)
	if t.Receiver.Tick(samples) {
		// Mid-receive watchdog: no data for 15 s delivers carrier-down.
		t.Session.ModemEvent(t30.EventCarrierDown)
	}
	// The session's TCF burst has no real airtime here: once the sender
	// goes idle after the DCS burst, report it sent.
	if t.tcfRelay && t.Sender.Idle() {
		t.tcfRelay = false
		t.Session.TCFSent()
	}
	if t.pageRelay && t.Sender.Idle() {
		t.pageRelay = false
		t.Session.PageSent()
	}
}

// onRxIndicator translates inbound indicators into session carrier events.
func (t *Terminal) onRxIndicator(ind Indicator) {
	prev := t.lastInd
	t.lastInd = ind
	switch ind {
	case IndicatorNoSignal:
		// The NO_SIGNAL closing a V.21 burst does not end the fast
		// non-HDLC carrier the session has already armed for (the TCF
		// after a DCS).
		if prev == IndicatorV21Preamble && !t.rxHDLC {
			return
		}
		t.Session.ModemEvent(t30.EventCarrierDown)
	case IndicatorCED, IndicatorCNG:
		// Tones are informational at this layer.
	default:
		// A fresh carrier: any previously buffered non-ECM stream has
		// been consumed by the application by now.
		t.rxBuf = t.rxBuf[:0]
		t.bitCount = 0
		t.Session.ModemEvent(t30.EventCarrierUp)
	}
}

func (t *Terminal) onRxData(dataType DataType, fieldType FieldType, data []byte) {
	t.Receiver.handleField(Field{Type: fieldType, Data: data})
}

// NonECMBytes returns the raw non-ECM byte stream received since the last
// carrier, for the application to decode via Session.DecodeNonECMPage.
func (t *Terminal) NonECMBytes() []byte { return t.rxBuf }

// HDLCAccept implements t30.HDLCAcceptor for the receiver side.
func (t *Terminal) HDLCAccept(ok bool, msg []byte) {
	t.Session.HDLCAccept(ok, msg)
}

// PutBit implements t30.BitSink: inbound non-ECM bits are buffered as
// bytes for page decode and relayed for TCF scoring.
func (t *Terminal) PutBit(bit int) {
	t.Session.PutRxBit(bit)
	t.appendBit(bit)
}

func (t *Terminal) appendBit(bit int) {
	n := len(t.rxBuf)
	if t.bitCount%8 == 0 {
		t.rxBuf = append(t.rxBuf, 0)
		n++
	}
	if bit != 0 {
		t.rxBuf[n-1] |= 1 << uint(7-t.bitCount%8)
	}
	t.bitCount++
}

// t30.Callbacks implementation: the session drives the sender.

// SetRxType arms the receive expectation; over T.38 the peer's indicators
// already announce the carrier, so only the HDLC flag is recorded here
// (onRxIndicator consults it).
func (t *Terminal) SetRxType(modem t30.ModemType, shortTrain, useHDLC bool) { t.rxHDLC = useHDLC }

// SetTxType relays carrier changes into the sender's timed machine, and
// notes when a TCF burst follows a DCS (non-HDLC fast carrier while the
// session is mid-phase-B).
func (t *Terminal) SetTxType(modem t30.ModemType, shortTrain, useHDLC bool) {
	t.Sender.SetTxType(modem, shortTrain, useHDLC)
	if !useHDLC && modem >= t30.ModemV27ter2400 && modem <= t30.ModemV17_14400 {
		if gen := t.Session.TCFSource(); gen != nil && t.Session.State() == t30.StateDTCF {
			t.Sender.SetBitSource(gen)
			t.tcfRelay = true
		}
	}
}

// SendHDLC queues a frame for the sender's HDLC machine.
func (t *Terminal) SendHDLC(msg []byte) { t.queue.push(msg) }

func (t *Terminal) PhaseB(code t30.CompletionCode) {
	if t.App != nil {
		t.App.PhaseB(code)
	}
}

func (t *Terminal) PhaseD(code t30.CompletionCode) {
	if t.App != nil {
		t.App.PhaseD(code)
	}
}

func (t *Terminal) PhaseE(code t30.CompletionCode) {
	if t.App != nil {
		t.App.PhaseE(code)
	}
}

func (t *Terminal) DocumentEvent(status int) int {
	if t.App != nil {
		return t.App.DocumentEvent(status)
	}
	return status
}
