package t38

import (
	"github.com/dbehnke/gofax/internal/t30"
	"github.com/dbehnke/gofax/internal/timing"
)

// watchdogMs is the mid-receive watchdog: no data for this long delivers a
// receive-complete event to T.30 (spec.md §4.4).
const watchdogMs = 15000

// reverseBitsTable reverses the bit order of a byte (T.38 carries HDLC
// LSB-first on the wire; the T.30 layer above expects MSB-first), built
// once at init the way the teacher's internal/codec builds its lookup
// tables rather than reversing bit-by-bit on every byte.
var reverseBitsTable [256]byte

func init() {
	for i := 0; i < 256; i++ {
		b := byte(i)
		var r byte
		for bit := 0; bit < 8; bit++ {
			r = (r << 1) | (b & 1)
			b >>= 1
		}
		reverseBitsTable[i] = r
	}
}

// reverseBytes returns a copy of data with each byte's bit order reversed,
// for the transmit direction of the same LSB-first convention.
func reverseBytes(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = reverseBitsTable[b]
	}
	return out
}

// Receiver is the terminal's inbound side: it decodes IFP packets and
// delivers assembled HDLC frames / non-ECM byte streams to a T.30 Session
// (spec.md §4.4 "Receive side").
type Receiver struct {
	HDLC    t30.HDLCAcceptor
	Bits    t30.BitSink
	Watchdog *timing.Timer

	seq SeqTracker

	frameBuf   []byte
	missing    bool
	curIndicator Indicator
	haveIndicator bool
}

// NewReceiver constructs a Receiver; Missing is wired to track sequence
// gaps/restarts as a "missing data" condition per spec.md §4.4.
func NewReceiver() *Receiver {
	r := &Receiver{Watchdog: timing.New()}
	r.seq.Missing = func(expected, received int) { r.missing = true }
	return r
}

// Tick advances the watchdog; it returns true exactly once, the call on
// which 15s have elapsed with no inbound data, at which point the caller
// should deliver a receive-complete event to the Session.
func (r *Receiver) Tick(samples int) bool {
	if r.Watchdog.IsRunning() {
		return r.Watchdog.Tick(samples)
	}
	return false
}

// RxPacket processes one inbound IFP packet (spec.md §6 "rx_ifp_packet").
// seq is the packet's external sequence number (normally carried by the
// UDPTL envelope, out of scope here per spec.md).
func (r *Receiver) RxPacket(seq uint16, buf []byte) error {
	if _, process := r.seq.Accept(seq); !process {
		return nil
	}
	pkt, err := Decode(buf)
	if err != nil {
		return err
	}
	r.Watchdog.StartMs(watchdogMs)

	if !pkt.IsData {
		if pkt.Indicator != r.curIndicator || !r.haveIndicator {
			r.curIndicator = pkt.Indicator
			r.haveIndicator = true
			r.frameBuf = r.frameBuf[:0]
		}
		return nil
	}
	for _, f := range pkt.Fields {
		r.handleField(f)
	}
	return nil
}

func (r *Receiver) handleField(f Field) {
	switch f.Type {
	case FieldHDLCData:
		r.appendReversed(f.Data)
	case FieldHDLCSigEnd:
		r.appendReversed(f.Data)
		r.frameBuf = r.frameBuf[:0]
	case FieldHDLCFCSOK, FieldHDLCFCSOKSigEnd:
		r.appendReversed(f.Data)
		if r.HDLC != nil {
			r.HDLC.HDLCAccept(true, append([]byte(nil), r.frameBuf...))
		}
		r.frameBuf = r.frameBuf[:0]
		r.missing = false
	case FieldHDLCFCSBad, FieldHDLCFCSBadSigEnd:
		r.appendReversed(f.Data)
		if r.HDLC != nil {
			r.HDLC.HDLCAccept(false, nil)
		}
		r.frameBuf = r.frameBuf[:0]
	case FieldT4NonECMData:
		r.deliverBits(f.Data)
	case FieldT4NonECMSigEnd:
		r.deliverBits(f.Data)
		r.missing = false
	default:
		// CM/JM/CI/V34RATE messages are V.34-specific call-setup
		// signalling; spec.md's Non-goals exclude V.34 negotiation
		// beyond decode-and-ignore, so they're accepted and dropped.
	}
}

func (r *Receiver) appendReversed(data []byte) {
	for _, b := range data {
		r.frameBuf = append(r.frameBuf, reverseBitsTable[b])
	}
}

func (r *Receiver) deliverBits(data []byte) {
	if r.Bits == nil {
		return
	}
	for _, b := range data {
		for bit := 7; bit >= 0; bit-- {
			r.Bits.PutBit(int((b >> uint(bit)) & 1))
		}
	}
}

// MissingData reports whether a sequence gap/restart has been seen since
// the last good end-of-frame (spec.md §4.4's "missing data" flag).
func (r *Receiver) MissingData() bool { return r.missing }
