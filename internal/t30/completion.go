package t30

// CompletionCode reports why a session ended, surfaced to the application
// through the phase_e callback (spec.md §4.2). Names and groupings follow
// the reference fax engine's completion-code table.
type CompletionCode int

const (
	CompletionOK CompletionCode = iota

	CompletionCEDToneTooLong
	CompletionT0Expired
	CompletionT1Expired
	CompletionT3Expired
	CompletionHDLCCarrier
	CompletionCannotTrain
	CompletionOperatorIntervention
	CompletionIncompatible
	CompletionNotRxCapable
	CompletionNotTxCapable
	CompletionUnexpectedMessage
	CompletionNoResolutionSupport
	CompletionNoSizeSupport

	CompletionFileError
	CompletionNoPage
	CompletionBadTIFF
	CompletionUnsupported

	// Transmit-side failures.
	CompletionBadDCSResponse
	CompletionBadPageResponse
	CompletionECMPhaseDTx
	CompletionECMRNRTimeout
	CompletionDCNWhileWaitingDIS
	CompletionInvalidResponseAfterPage
	CompletionNoDISResponse
	CompletionNoNextCommand
	CompletionNoResponseToTraining
	CompletionNoResponseAfterPage

	// Receive-side failures.
	CompletionECMPhaseDRx
	CompletionUnexpectedDCS
	CompletionInvalidCommandAfterPage
	CompletionCarrierLost
	CompletionNoEOL
	CompletionNoFaxReceived
	CompletionNoNextReceiveCommand
	CompletionT2ExpiredWaitingDCN
	CompletionT2ExpiredWaitingPhaseD
	CompletionT2ExpiredWaitingPage
	CompletionT2ExpiredWaitingNextPage
	CompletionT2ExpiredWaitingRR
	CompletionT2ExpiredWaitingNSSDCSMCF
	CompletionUnexpectedDCN
	CompletionUnexpectedDCNDuringImage
	CompletionUnexpectedDCNAfterPage
	CompletionUnexpectedDCNAfterPhaseD
	CompletionUnexpectedDCNAfterRR
	CompletionUnexpectedDCNAfterRetransmit

	// File/validation failures.
	CompletionBadPage
	CompletionBadTag
	CompletionBadTIFFHeader
	CompletionBadParameter
	CompletionBadState

	CompletionBadCommandData
	CompletionDisconnected
	CompletionInvalidArgument
	CompletionInvalidFunctionCall
	CompletionNoData
	CompletionNoMemory
	CompletionPollNotAccepted
	CompletionNoInitialState
	CompletionRetriesExhausted
	CompletionCallDropped
)

func (c CompletionCode) String() string {
	switch c {
	case CompletionOK:
		return "OK"
	case CompletionCEDToneTooLong:
		return "CEDTONE"
	case CompletionT0Expired:
		return "T0_EXPIRED"
	case CompletionT1Expired:
		return "T1_EXPIRED"
	case CompletionT3Expired:
		return "T3_EXPIRED"
	case CompletionHDLCCarrier:
		return "HDLC_CARRIER"
	case CompletionCannotTrain:
		return "CANNOT_TRAIN"
	case CompletionOperatorIntervention:
		return "OPERATOR_INTERVENTION_FAILED"
	case CompletionIncompatible:
		return "INCOMPATIBLE"
	case CompletionNotRxCapable:
		return "NOT_RX_CAPABLE"
	case CompletionNotTxCapable:
		return "NOT_TX_CAPABLE"
	case CompletionUnexpectedMessage:
		return "UNEXPECTED_MESSAGE"
	case CompletionNoResolutionSupport:
		return "NO_RESOLUTION_SUPPORT"
	case CompletionNoSizeSupport:
		return "NO_SIZE_SUPPORT"
	case CompletionFileError:
		return "FILE_ERROR"
	case CompletionNoPage:
		return "NO_PAGE"
	case CompletionBadTIFF:
		return "BAD_TIFF"
	case CompletionUnsupported:
		return "UNSUPPORTED"
	case CompletionBadDCSResponse:
		return "BAD_DCS_RESPONSE"
	case CompletionBadPageResponse:
		return "BAD_PAGE_RESPONSE"
	case CompletionECMPhaseDTx:
		return "ECM_PHASE_D_TX"
	case CompletionECMRNRTimeout:
		return "ECM_RNR_TIMEOUT"
	case CompletionDCNWhileWaitingDIS:
		return "DCN_WHILE_WAITING_DIS"
	case CompletionInvalidResponseAfterPage:
		return "INVALID_RESPONSE_AFTER_PAGE"
	case CompletionNoDISResponse:
		return "NO_DIS_RESPONSE"
	case CompletionNoNextCommand:
		return "NO_NEXT_COMMAND"
	case CompletionNoResponseToTraining:
		return "NO_RESPONSE_TO_TRAINING"
	case CompletionNoResponseAfterPage:
		return "NO_RESPONSE_AFTER_PAGE"
	case CompletionECMPhaseDRx:
		return "ECM_PHASE_D_RX"
	case CompletionUnexpectedDCS:
		return "UNEXPECTED_DCS"
	case CompletionInvalidCommandAfterPage:
		return "INVALID_COMMAND_AFTER_PAGE"
	case CompletionCarrierLost:
		return "CARRIER_LOST"
	case CompletionNoEOL:
		return "NO_EOL"
	case CompletionNoFaxReceived:
		return "NO_FAX_RECEIVED"
	case CompletionNoNextReceiveCommand:
		return "NO_NEXT_RECEIVE_COMMAND"
	case CompletionT2ExpiredWaitingDCN:
		return "T2_EXPIRED_WAITING_DCN"
	case CompletionT2ExpiredWaitingPhaseD:
		return "T2_EXPIRED_WAITING_PHASE_D"
	case CompletionT2ExpiredWaitingPage:
		return "T2_EXPIRED_WAITING_PAGE"
	case CompletionT2ExpiredWaitingNextPage:
		return "T2_EXPIRED_WAITING_NEXT_PAGE"
	case CompletionT2ExpiredWaitingRR:
		return "T2_EXPIRED_WAITING_RR"
	case CompletionT2ExpiredWaitingNSSDCSMCF:
		return "T2_EXPIRED_WAITING_NSS_DCS_MCF"
	case CompletionUnexpectedDCN:
		return "UNEXPECTED_DCN"
	case CompletionUnexpectedDCNDuringImage:
		return "UNEXPECTED_DCN_DURING_IMAGE"
	case CompletionUnexpectedDCNAfterPage:
		return "UNEXPECTED_DCN_AFTER_PAGE"
	case CompletionUnexpectedDCNAfterPhaseD:
		return "UNEXPECTED_DCN_AFTER_PHASE_D"
	case CompletionUnexpectedDCNAfterRR:
		return "UNEXPECTED_DCN_AFTER_RR"
	case CompletionUnexpectedDCNAfterRetransmit:
		return "UNEXPECTED_DCN_AFTER_RETRANSMIT"
	case CompletionBadPage:
		return "BAD_PAGE"
	case CompletionBadTag:
		return "BAD_TAG"
	case CompletionBadTIFFHeader:
		return "BAD_TIFF_HEADER"
	case CompletionBadParameter:
		return "BAD_PARAMETER"
	case CompletionBadState:
		return "BAD_STATE"
	case CompletionBadCommandData:
		return "BAD_COMMAND_DATA"
	case CompletionDisconnected:
		return "DISCONNECTED"
	case CompletionInvalidArgument:
		return "INVALID_ARGUMENT"
	case CompletionInvalidFunctionCall:
		return "INVALID_FUNCTION_CALL"
	case CompletionNoData:
		return "NO_DATA"
	case CompletionNoMemory:
		return "NO_MEMORY"
	case CompletionPollNotAccepted:
		return "POLL_NOT_ACCEPTED"
	case CompletionNoInitialState:
		return "NO_INITIAL_STATE"
	case CompletionRetriesExhausted:
		return "RETRIES_EXHAUSTED"
	case CompletionCallDropped:
		return "CALL_DROPPED"
	default:
		return "UNKNOWN"
	}
}

// Fatal reports whether the code ends the call (true for anything but OK).
func (c CompletionCode) Fatal() bool { return c != CompletionOK }
