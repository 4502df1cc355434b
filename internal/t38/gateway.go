package t38

import (
	"github.com/dbehnke/gofax/internal/t30"
)

// GatewayOptions carries the gateway's two tuning knobs restored from
// original_source/spandsp-0.0.3/src/t38_gateway.c that spec.md's distilled
// §4.5 doesn't separately name: a preferred T.38 protocol version, read
// once by NewGateway to build the core, and a maximum age (in received
// packets) for an IFP data field in the elasticity ring. MaxIFPPacketAge
// is stored only: no code in this package reads it, and the ring releases
// a data slot only at 8 bytes or when the frame completes.
type GatewayOptions struct {
	PreferredVersion int // 0 or 1
	MaxIFPPacketAge  int
}

// DefaultGatewayOptions mirrors the reference gateway's defaults.
func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{PreferredVersion: 0, MaxIFPPacketAge: 4}
}

// Gateway bridges an audio-side modem to T.38 IFP packets without
// terminating the T.30 session (spec.md §4.5): inbound HDLC/non-ECM data
// is inspected and forwarded as IFP; inbound IFP is forwarded to the
// modem's HDLC ring / non-ECM bit source.
type Gateway struct {
	Options GatewayOptions

	// LocalModemMask is the set of fast-modem bits (t30.ModemCapBit) this
	// gateway can actually terminate on the wire side; DIS/DCS frames
	// observed in transit are constrained to this set.
	LocalModemMask uint32
	ECMEnabled     bool

	TxIFP func(buf []byte, repeatCount int)

	core *Core

	ring               *hdlcRing
	rateAdapter        NonECMRateAdapter
	currentRxIndicator Indicator
	haveRxIndicator    bool
	shortTrainNext     bool
	nonECMStarted      bool
}

// NewGateway constructs a gateway with every fast modem enabled and ECM on.
func NewGateway() *Gateway {
	g := &Gateway{
		Options:        DefaultGatewayOptions(),
		LocalModemMask: t30.AllModemCapBits(),
		ECMEnabled:     true,
		ring:           newHDLCRing(),
	}
	g.core = NewCore(g.Options.PreferredVersion)
	g.core.RxIndicator = g.OnRxIndicator
	g.core.RxData = g.onRxData
	g.core.TxPacket = func(buf []byte, repeat int) {
		if g.TxIFP != nil {
			g.TxIFP(buf, repeat)
		}
	}
	return g
}

// Core exposes the gateway's T.38 core context (negotiated options,
// missing-packet counter).
func (g *Gateway) Core() *Core { return g.core }

// RxIFPPacket feeds one inbound IFP packet from the network side; decoded
// indicators and data fields flow into the HDLC output ring and non-ECM
// rate adapter for the wire-side modems to drain.
func (g *Gateway) RxIFPPacket(seq uint16, buf []byte) int {
	return g.core.RxIFPPacket(seq, buf)
}

// onRxData routes one decoded data field. Data arriving for a modem whose
// indicator was never seen synthesises the indicator first ("missing
// indicator queuing", spec.md §4.5) so the downstream modem still arms
// before its data.
func (g *Gateway) onRxData(dataType DataType, fieldType FieldType, data []byte) {
	want := indicatorForDataType(dataType)
	if !g.haveRxIndicator || g.currentRxIndicator != want {
		g.OnRxIndicator(want)
	}
	switch fieldType {
	case FieldT4NonECMData, FieldT4NonECMSigEnd:
		if !g.nonECMStarted {
			data = StripLeadingFill(data)
			if len(data) > 0 {
				g.nonECMStarted = true
			}
		}
		g.rateAdapter.Feed(data)
		if fieldType == FieldT4NonECMSigEnd {
			g.rateAdapter.Flush()
			g.nonECMStarted = false
		}
	case FieldHDLCData:
		g.ring.appendData(fieldType, data, false, false)
	case FieldHDLCFCSOK, FieldHDLCFCSOKSigEnd:
		g.ring.appendData(fieldType, data, true, false)
	case FieldHDLCFCSBad, FieldHDLCFCSBadSigEnd:
		g.ring.appendData(fieldType, data, true, true)
	case FieldHDLCSigEnd:
		// Tolerated mid-stream (the Mediatrix quirk): close the current
		// slot without interpreting the data.
		g.ring.appendData(fieldType, nil, true, false)
	}
}

// NextNonECMOctets drains up to max bytes of wire-ready non-ECM data, or
// returns fill octets when the network side has fallen behind (spec.md
// §4.5's rate adaptation).
func (g *Gateway) NextNonECMOctets(max int) []byte {
	if chunk, ok := g.rateAdapter.Consume(max); ok {
		return chunk
	}
	fill := make([]byte, max)
	octet := g.rateAdapter.FillOctet()
	for i := range fill {
		fill[i] = octet
	}
	return fill
}

// SendV21Frame forwards an audio-side V.21 HDLC frame (already edited by
// InboundV21Frame) to the network as IFP, final marking the last frame of
// the burst.
func (g *Gateway) SendV21Frame(frame []byte, final bool) error {
	ftype := FieldHDLCFCSOK
	if final {
		ftype = FieldHDLCFCSOKSigEnd
	}
	if err := g.core.SendData(DataV21, []Field{
		{Type: FieldHDLCData, Data: reverseBytes(frame)},
		{Type: ftype},
	}); err != nil {
		return err
	}
	if final {
		return g.core.SendIndicator(IndicatorNoSignal, indicatorRepeatCount)
	}
	return nil
}

// SendIndicator forwards an audio-side carrier change to the network.
func (g *Gateway) SendIndicator(ind Indicator) error {
	return g.core.SendIndicator(ind, indicatorRepeatCount)
}

// SendNonECM forwards demodulated non-ECM image bytes from the wire side,
// end marking carrier loss.
func (g *Gateway) SendNonECM(modem t30.ModemType, data []byte, end bool) error {
	ftype := FieldT4NonECMData
	if end {
		ftype = FieldT4NonECMSigEnd
	}
	return g.core.SendData(dataTypeForModem(modem), []Field{{Type: ftype, Data: data}})
}

// InboundV21Frame processes one HDLC frame (address/control/FCF/payload,
// no FCS) received on the always-running V.21 receiver, returning the
// frame to forward as IFP (possibly edited) and whether CFR was seen,
// which arms the gateway's fast receiver for short training (spec.md
// §4.5).
func (g *Gateway) InboundV21Frame(frame []byte) (forward []byte, sawCFR bool) {
	out := append([]byte(nil), frame...)
	fcf, final, payload, err := t30.ParseFrame(out)
	if err != nil {
		return out, false
	}

	switch fcf {
	case t30.FCF_NSF, t30.FCF_NSC, t30.FCF_NSS:
		// Corrupt byte 3 (the first payload octet) so the peer ignores
		// vendor-proprietary frames this gateway can't honour.
		if len(out) > 3 {
			out[3] = 0
		}
	case t30.FCF_DIS, t30.FCF_DCS, t30.FCF_DTC:
		dis := t30.DecodeDIS(payload)
		g.constrainCapabilities(&dis)
		out = t30.BuildFrame(fcf, final, dis.Encode())
	case t30.FCF_CFR:
		g.shortTrainNext = true
		sawCFR = true
	}
	return out, sawCFR
}

// constrainCapabilities clears fast-modem and ECM/T.6 bits the gateway's
// wire side cannot honour, in place.
func (g *Gateway) constrainCapabilities(dis *t30.DIS) {
	if g.LocalModemMask&t30.ModemCapBit(t30.ModemV27ter2400) == 0 {
		dis.SupportV27ter = false
	}
	if g.LocalModemMask&t30.ModemCapBit(t30.ModemV29_7200) == 0 && g.LocalModemMask&t30.ModemCapBit(t30.ModemV29_9600) == 0 {
		dis.SupportV29 = false
	}
	if g.LocalModemMask&t30.ModemCapBit(t30.ModemV17_7200) == 0 && g.LocalModemMask&t30.ModemCapBit(t30.ModemV17_14400) == 0 {
		dis.SupportV17 = false
	}
	if !g.ECMEnabled {
		dis.ECM = false
		dis.CompressionT6 = false
	}
}

// ShouldUseShortTraining reports and clears the "CFR just seen on V21"
// latch the fast receiver should consume once to restart in short-train
// mode (spec.md §4.5).
func (g *Gateway) ShouldUseShortTraining() bool {
	v := g.shortTrainNext
	g.shortTrainNext = false
	return v
}

// OnRxIndicator handles a newly observed IFP indicator from the peer,
// flushing the gateway's output ring's in-progress slot and pushing the
// indicator as its own slot (spec.md §4.5's "state transitions driven by
// received indicator").
func (g *Gateway) OnRxIndicator(ind Indicator) {
	if g.haveRxIndicator && ind == g.currentRxIndicator {
		return
	}
	g.currentRxIndicator = ind
	g.haveRxIndicator = true
	g.ring.pushIndicator(ind)
}

// QueueOutboundHDLC appends an outbound HDLC frame's data to the gateway's
// elasticity ring. corrupt marks the frame for deliberate bad-FCS
// emission (used when the gateway itself decided to drop a frame, e.g. an
// NSF it can't honour on the outbound side).
func (g *Gateway) QueueOutboundHDLC(dataType FieldType, data []byte, final, corrupt bool) bool {
	return g.ring.appendData(dataType, data, final, corrupt)
}

// DrainReady pops the next ready slot (an indicator, or a data slot with
// at least 8 buffered bytes or marked Finished) for wire transmission.
func (g *Gateway) DrainReady() (kind slotKind, ind Indicator, dataType FieldType, data []byte, finished, corrupt bool, ok bool) {
	s, ok2 := g.ring.pop()
	if !ok2 {
		return slotEmpty, 0, 0, nil, false, false, false
	}
	return s.kind, s.indicator, s.dataType, s.buf, s.flags.Finished, s.flags.CorruptCRC, true
}

// RingLen reports how many slots are currently queued in the output ring.
func (g *Gateway) RingLen() int { return g.ring.Len() }

// eolMinZeroBits is T.4's end-of-line marker: at least this many
// consecutive zero bits followed by a one bit (spec.md §4.5).
const eolMinZeroBits = 11

// StripLeadingFill discards leading 0xFF octets from incoming non-ECM
// data (spec.md §4.5's "initial-all-ones stripping"): the wire-side modem
// generates its own flow-control fill, so senders' own lead-in runs are
// redundant.
func StripLeadingFill(data []byte) []byte {
	i := 0
	for i < len(data) && data[i] == 0xFF {
		i++
	}
	return data[i:]
}

// NonECMRateAdapter tracks T.4 EOL boundaries in an outbound non-ECM image
// byte stream so the gateway knows where it may safely pause to inject
// fill octets when the peer's data arrives slower than the wire modem
// consumes it (spec.md §4.5's "Non-ECM rate adaptation").
type NonECMRateAdapter struct {
	buf           []byte
	safeFillPoint int
	zeroRun       int
	seenFirstBit  bool
}

// Feed appends newly available image bytes and rescans for EOL boundaries,
// advancing the safe fill point to each boundary found (the byte holding
// the EOL's terminating one bit).
func (a *NonECMRateAdapter) Feed(data []byte) {
	bit := len(a.buf) * 8
	a.buf = append(a.buf, data...)
	for _, b := range data {
		for k := 7; k >= 0; k-- {
			v := (b >> uint(k)) & 1
			if v == 0 {
				a.zeroRun++
			} else {
				if !a.seenFirstBit {
					a.seenFirstBit = true
				}
				if a.zeroRun >= eolMinZeroBits {
					a.safeFillPoint = bit/8 + 1
				}
				a.zeroRun = 0
			}
			bit++
		}
	}
}

// Flush releases everything buffered regardless of EOL alignment, used at
// carrier end when no further data will arrive.
func (a *NonECMRateAdapter) Flush() {
	a.safeFillPoint = len(a.buf)
}

// Consume returns up to max bytes up to the safe fill point, and whether
// any were available; bytes beyond the safe fill point are held back
// until the next EOL is found or the stream ends.
func (a *NonECMRateAdapter) Consume(max int) ([]byte, bool) {
	if a.safeFillPoint == 0 {
		return nil, false
	}
	n := max
	if n > a.safeFillPoint {
		n = a.safeFillPoint
	}
	out := a.buf[:n]
	a.buf = a.buf[n:]
	a.safeFillPoint -= n
	return out, len(out) > 0
}

// FillOctet returns the octet to emit while waiting for more data: 0xFF
// before any real image bit has been seen, 0x00 afterward (spec.md §4.5).
func (a *NonECMRateAdapter) FillOctet() byte {
	if !a.seenFirstBit {
		return 0xFF
	}
	return 0x00
}
