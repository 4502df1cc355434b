package t30

// Phase is the coarse T.30 call phase (spec.md §4.2): the half-duplex
// protocol moves through these five phases every call, A through E.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseA        // call establishment (CED/CNG)
	PhaseB        // capabilities negotiation
	PhaseC        // image transfer (in-band, no T.30 signalling)
	PhaseD        // post-page signalling (MCF/RTN/RTP/PPR/PPS)
	PhaseE        // call release
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseA:
		return "A"
	case PhaseB:
		return "B"
	case PhaseC:
		return "C"
	case PhaseD:
		return "D"
	case PhaseE:
		return "E"
	default:
		return "UNKNOWN"
	}
}

// MicroState is the fine-grained state within a Phase, named after the
// reference engine's T30_STATE_* constants (spec.md §4.2's state table).
// Non-ECM and ECM image transfer share phase C/D but diverge into their own
// micro-states once the compression mode is known.
type MicroState int

const (
	StateNone MicroState = iota

	StateAnswering // phase A, heard CNG/CED, about to send/receive DIS

	StateB // waiting to send or receive DIS/DTC

	StateR // sent DIS/DTC, waiting for a response (receiver role)
	StateT // sent DIS/DTC, waiting for a response (caller/poll role)

	StateFFTT  // sent FTT, renegotiating a slower fallback
	StateFCFR  // sent CFR, about to receive TCF then image
	StateFTCF  // receiving TCF
	StateFDoc  // receiving non-ECM image data
	StateFPostDocNonECM
	StateFPostDocECM
	StateFPostRCPMCF
	StateFPostRCPPPR

	StateD        // about to send the DCS sequence
	StateDTCF     // sending TCF
	StateDPostTCF // waiting for CFR/FTT after TCF
	StateI        // transmitting non-ECM image data

	StateIIQ       // sent MPS/EOM/EOP, waiting for MCF/RTN/RTP/PIN/PIP
	StateIIIQMCF   // received MCF, about to advance to next page or hang up
	StateIIIQRTN   // received RTN, page must be resent
	StateIIIQRTP   // received RTP, page accepted at reduced quality

	StateIV        // ECM image transfer in progress (sending FCD frames)
	StateIVPPSNull // sent PPS, no retransmissions outstanding
	StateIVPPSQ    // sent PPS, waiting for PPR/MCF/RNR
	StateIVPPSRNR  // receiver signalled RNR, waiting for RR
	StateIVCTC     // sent CTC to renegotiate modem mid-ECM-page
	StateIVEOR     // sent EOR (ECM partial page, end of retransmission)
	StateIVEORRNR  // EOR outstanding, receiver not ready

	StateCallFinished
)

func (m MicroState) String() string {
	switch m {
	case StateNone:
		return "NONE"
	case StateAnswering:
		return "ANSWERING"
	case StateB:
		return "B"
	case StateR:
		return "R"
	case StateT:
		return "T"
	case StateFFTT:
		return "F_FTT"
	case StateFCFR:
		return "F_CFR"
	case StateFTCF:
		return "F_TCF"
	case StateFDoc:
		return "F_DOC"
	case StateFPostDocNonECM:
		return "F_POST_DOC_NON_ECM"
	case StateFPostDocECM:
		return "F_POST_DOC_ECM"
	case StateFPostRCPMCF:
		return "F_POST_RCP_MCF"
	case StateFPostRCPPPR:
		return "F_POST_RCP_PPR"
	case StateD:
		return "D"
	case StateDTCF:
		return "D_TCF"
	case StateDPostTCF:
		return "D_POST_TCF"
	case StateI:
		return "I"
	case StateIIQ:
		return "II_Q"
	case StateIIIQMCF:
		return "III_Q_MCF"
	case StateIIIQRTN:
		return "III_Q_RTN"
	case StateIIIQRTP:
		return "III_Q_RTP"
	case StateIV:
		return "IV"
	case StateIVPPSNull:
		return "IV_PPS_NULL"
	case StateIVPPSQ:
		return "IV_PPS_Q"
	case StateIVPPSRNR:
		return "IV_PPS_RNR"
	case StateIVCTC:
		return "IV_CTC"
	case StateIVEOR:
		return "IV_EOR"
	case StateIVEORRNR:
		return "IV_EOR_RNR"
	case StateCallFinished:
		return "CALL_FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes the two T.30 call roles: Answer (ANS/called party,
// normally the receiver) and Call (CNG/calling party, normally the
// transmitter). Polling reverses which role sends the image.
type Role int

const (
	RoleAnswer Role = iota
	RoleCall
)

func (r Role) String() string {
	if r == RoleCall {
		return "CALL"
	}
	return "ANSWER"
}
