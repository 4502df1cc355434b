package t30

// Callbacks is the set of hooks a Session uses to drive the modem layer and
// surface session events to the application, mirrored from the reference
// engine's handler-function-pointer set (spec.md §4.2, §6) but expressed as
// a single interface rather than one function pointer/user_data pair per
// hook, in the style of the teacher's callback interfaces
// (internal/network, internal/wiresx use the same "one interface, many
// methods" shape instead of individual func fields).
type Callbacks interface {
	// SetRxType arms the modem to receive on the given carrier. shortTrain
	// requests the abbreviated TCF retrain used after the first page of a
	// call; useHDLC selects HDLC framing (signalling) vs raw bit streaming
	// (image data).
	SetRxType(modem ModemType, shortTrain, useHDLC bool)

	// SetTxType arms the modem to transmit on the given carrier, with the
	// same shortTrain/useHDLC semantics as SetRxType.
	SetTxType(modem ModemType, shortTrain, useHDLC bool)

	// SendHDLC hands a framed HDLC message (address/control/FCF/payload,
	// no FCS) to the modem layer for transmission once armed by SetTxType.
	SendHDLC(msg []byte)

	// PhaseB reports the outcome of capabilities negotiation (DIS/DCS
	// exchange) before image transfer begins.
	PhaseB(result CompletionCode)

	// PhaseD reports the outcome of one page's transfer (MCF/RTN/RTP/PPR).
	PhaseD(result CompletionCode)

	// PhaseE reports the final outcome of the whole call.
	PhaseE(result CompletionCode)

	// DocumentEvent is called when the document handler needs a status
	// update (e.g. "another page is available to send"); status mirrors
	// the reference engine's document_handler return convention.
	DocumentEvent(status int) int
}

// HDLCAcceptor receives decoded HDLC frames (or a bad-FCS notification)
// from the modem layer. Kept distinct from Callbacks because it flows in
// the opposite direction: modem -> Session, not Session -> modem.
type HDLCAcceptor interface {
	// HDLCAccept delivers one received frame. ok is false if the frame's
	// FCS failed to check; msg is nil in that case.
	HDLCAccept(ok bool, msg []byte)
}

// ModemEvent is an out-of-band condition from the modem layer, delivered
// through Session.ModemEvent in place of frame or bit data (spec.md §6's
// negative-length hdlc_accept/get_bit convention, expressed as a typed
// event instead of a magic negative count).
type ModemEvent int

const (
	EventTrainingFailed ModemEvent = iota
	EventTrainingSucceeded
	EventCarrierUp
	EventCarrierDown
	EventFramingOK
	EventAbort
)

func (e ModemEvent) String() string {
	switch e {
	case EventTrainingFailed:
		return "TRAINING_FAILED"
	case EventTrainingSucceeded:
		return "TRAINING_SUCCEEDED"
	case EventCarrierUp:
		return "CARRIER_UP"
	case EventCarrierDown:
		return "CARRIER_DOWN"
	case EventFramingOK:
		return "FRAMING_OK"
	case EventAbort:
		return "ABORT"
	}
	return "UNKNOWN"
}

// BitSink/BitSource carry raw image-data bits between the Session and the
// modem layer for non-ECM transfers, one bit at a time as spec.md's
// callback model (get_bit/put_bit) describes. ECM transfers move whole
// HDLC frames instead and do not use these.
type BitSink interface {
	PutBit(bit int)
}

type BitSource interface {
	GetBit() int // returns -1 once the page's bits are exhausted
}
