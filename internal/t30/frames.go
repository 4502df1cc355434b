// Package t30 implements the T.30 session protocol engine (spec.md §4.2):
// a single-threaded, event-driven state machine that drives a FAX call
// from answer/originate through capabilities negotiation, image transfer,
// and release. Modelled after the teacher's single owning-struct state
// machines (internal/network/dmr_network_protocol.go,
// internal/wiresx/wiresx.go): one big context struct, a switch on
// (phase, state, event), callbacks as interfaces rather than global state.
package t30

import "fmt"

// FCF is a T.30 frame-control-field code (spec.md §4.2 "frame dictionary").
type FCF byte

const (
	FCF_DIS     FCF = 0x80
	FCF_DTC     FCF = 0x81
	FCF_DCS     FCF = 0x82
	FCF_CSI     FCF = 0x40
	FCF_CIG     FCF = 0x41
	FCF_TSI     FCF = 0x42
	FCF_NSF     FCF = 0x20
	FCF_NSC     FCF = 0x21
	FCF_NSS     FCF = 0x22
	FCF_PWD     FCF = 0xC1
	FCF_SUB     FCF = 0xC2
	FCF_SID     FCF = 0xA2
	FCF_SEP     FCF = 0xA1
	FCF_PSA     FCF = 0x61
	FCF_CTC     FCF = 0x12
	FCF_CFR     FCF = 0x84
	FCF_FTT     FCF = 0x44
	FCF_CTR     FCF = 0xC4
	FCF_EOM     FCF = 0x8E
	FCF_MPS     FCF = 0x4E
	FCF_EOP     FCF = 0x2E
	FCF_PRI_EOM FCF = 0x9E
	FCF_PRI_MPS FCF = 0x5E
	FCF_PRI_EOP FCF = 0x3E
	FCF_PPS     FCF = 0xBE
	FCF_EOR     FCF = 0xCE
	FCF_RR      FCF = 0x6E
	FCF_MCF     FCF = 0x8C
	FCF_RTP     FCF = 0xCC
	FCF_RTN     FCF = 0x4C
	FCF_PIP     FCF = 0xAC
	FCF_PIN     FCF = 0x2C
	FCF_PPR     FCF = 0xBC
	FCF_RNR     FCF = 0xEC
	FCF_ERR     FCF = 0x1C
	FCF_DCN     FCF = 0xFA
	FCF_CRP     FCF = 0x1A
	FCF_FNV     FCF = 0xCA
	FCF_FCD     FCF = 0x06
	FCF_RCP     FCF = 0x86
)

// The control octet marks the last frame of a sequence: every HDLC frame
// begins with address 0xFF and control 0x03 (non-final) or 0x13 (final).
const (
	addrByte        = 0xFF
	controlNonFinal = 0x03
	controlFinal    = 0x13
)

func (f FCF) String() string {
	switch f {
	case FCF_DIS:
		return "DIS"
	case FCF_DTC:
		return "DTC"
	case FCF_DCS:
		return "DCS"
	case FCF_CSI:
		return "CSI"
	case FCF_CIG:
		return "CIG"
	case FCF_TSI:
		return "TSI"
	case FCF_NSF:
		return "NSF"
	case FCF_NSC:
		return "NSC"
	case FCF_NSS:
		return "NSS"
	case FCF_PWD:
		return "PWD"
	case FCF_SUB:
		return "SUB"
	case FCF_CFR:
		return "CFR"
	case FCF_FTT:
		return "FTT"
	case FCF_EOM:
		return "EOM"
	case FCF_MPS:
		return "MPS"
	case FCF_EOP:
		return "EOP"
	case FCF_PPS:
		return "PPS"
	case FCF_EOR:
		return "EOR"
	case FCF_MCF:
		return "MCF"
	case FCF_RTP:
		return "RTP"
	case FCF_RTN:
		return "RTN"
	case FCF_PPR:
		return "PPR"
	case FCF_RNR:
		return "RNR"
	case FCF_DCN:
		return "DCN"
	case FCF_FCD:
		return "FCD"
	case FCF_RCP:
		return "RCP"
	case FCF_CTC:
		return "CTC"
	case FCF_CTR:
		return "CTR"
	default:
		return fmt.Sprintf("FCF(0x%02X)", byte(f))
	}
}

// BuildFrame assembles a standard HDLC control frame: FF 03/13 <fcf> <payload...>.
func BuildFrame(fcf FCF, final bool, payload []byte) []byte {
	ctrl := byte(controlNonFinal)
	if final {
		ctrl = controlFinal
	}
	out := make([]byte, 0, 3+len(payload))
	out = append(out, addrByte, ctrl, byte(fcf))
	out = append(out, payload...)
	return out
}

// ParseFrame splits a raw HDLC frame into its FCF and payload, validating
// the address/control prefix.
func ParseFrame(msg []byte) (fcf FCF, final bool, payload []byte, err error) {
	if len(msg) < 3 {
		return 0, false, nil, fmt.Errorf("t30: frame too short (%d bytes)", len(msg))
	}
	if msg[0] != addrByte {
		return 0, false, nil, fmt.Errorf("t30: bad address byte 0x%02X", msg[0])
	}
	switch msg[1] {
	case controlFinal:
		final = true
	case controlNonFinal:
		final = false
	default:
		return 0, false, nil, fmt.Errorf("t30: bad control byte 0x%02X", msg[1])
	}
	fcf = FCF(msg[2])
	payload = msg[3:]
	return fcf, final, payload, nil
}

// identFieldLength is the fixed wire length of CSI/CIG/TSI/PWD/SUB/SID payloads.
const identFieldLength = 20

// EncodeIdentField packs an identifier string (<=20 ASCII chars) into the
// 20-octet, space-padded, reversed field T.30 specifies for ID frames.
func EncodeIdentField(id string) []byte {
	out := make([]byte, identFieldLength)
	for i := range out {
		out[i] = ' '
	}
	n := len(id)
	if n > identFieldLength {
		n = identFieldLength
	}
	copy(out, id[:n])
	// Reverse the 20 octets onto the wire.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// DecodeIdentField reverses and trims a 20-octet identifier field back
// into a plain string.
func DecodeIdentField(field []byte) string {
	n := len(field)
	if n > identFieldLength {
		n = identFieldLength
	}
	rev := make([]byte, n)
	for i := 0; i < n; i++ {
		rev[i] = field[n-1-i]
	}
	s := string(rev)
	return trimSpacesRight(s)
}

func trimSpacesRight(s string) string {
	end := len(s)
	for end > 0 && s[end-1] == ' ' {
		end--
	}
	return s[:end]
}
