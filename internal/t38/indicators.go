package t38

// Indicator is a T.38 IFP indicator code (spec.md §4.3, ITU-T T.38 Table 1).
// Values follow the order in which the original spandsp source
// (original_source/spandsp-0.0.3/src/t38_core.c, t38_indicator_to_name)
// enumerates them, which matches the ITU table numbering.
type Indicator int

const (
	IndicatorNoSignal Indicator = iota
	IndicatorCNG
	IndicatorCED
	IndicatorV21Preamble
	IndicatorV27ter2400Training
	IndicatorV27ter4800Training
	IndicatorV29_7200Training
	IndicatorV29_9600Training
	IndicatorV17_7200ShortTraining
	IndicatorV17_7200LongTraining
	IndicatorV17_9600ShortTraining
	IndicatorV17_9600LongTraining
	IndicatorV17_12000ShortTraining
	IndicatorV17_12000LongTraining
	IndicatorV17_14400ShortTraining
	IndicatorV17_14400LongTraining
	IndicatorV8ANSam
	IndicatorV8Signal
	IndicatorV34CntlChannel1200
	IndicatorV34PriChannel
	IndicatorV34CCRetrain
	IndicatorV33_12000Training
	IndicatorV33_14400Training
)

func (i Indicator) String() string {
	switch i {
	case IndicatorNoSignal:
		return "NO_SIGNAL"
	case IndicatorCNG:
		return "CNG"
	case IndicatorCED:
		return "CED"
	case IndicatorV21Preamble:
		return "V21_PREAMBLE"
	case IndicatorV27ter2400Training:
		return "V27TER_2400_TRAINING"
	case IndicatorV27ter4800Training:
		return "V27TER_4800_TRAINING"
	case IndicatorV29_7200Training:
		return "V29_7200_TRAINING"
	case IndicatorV29_9600Training:
		return "V29_9600_TRAINING"
	case IndicatorV17_7200ShortTraining:
		return "V17_7200_SHORT_TRAINING"
	case IndicatorV17_7200LongTraining:
		return "V17_7200_LONG_TRAINING"
	case IndicatorV17_9600ShortTraining:
		return "V17_9600_SHORT_TRAINING"
	case IndicatorV17_9600LongTraining:
		return "V17_9600_LONG_TRAINING"
	case IndicatorV17_12000ShortTraining:
		return "V17_12000_SHORT_TRAINING"
	case IndicatorV17_12000LongTraining:
		return "V17_12000_LONG_TRAINING"
	case IndicatorV17_14400ShortTraining:
		return "V17_14400_SHORT_TRAINING"
	case IndicatorV17_14400LongTraining:
		return "V17_14400_LONG_TRAINING"
	case IndicatorV8ANSam:
		return "V8_ANSAM"
	case IndicatorV8Signal:
		return "V8_SIGNAL"
	case IndicatorV34CntlChannel1200:
		return "V34_CNTL_CHANNEL_1200"
	case IndicatorV34PriChannel:
		return "V34_PRI_CHANNEL"
	case IndicatorV34CCRetrain:
		return "V34_CC_RETRAIN"
	case IndicatorV33_12000Training:
		return "V33_12000_TRAINING"
	case IndicatorV33_14400Training:
		return "V33_14400_TRAINING"
	default:
		return "UNKNOWN_INDICATOR"
	}
}

// DataType names the carrier a data IFP packet's fields ride on. It is a
// distinct code space from Indicator (V21 data is 0 where the V21 preamble
// indicator is 3), following the original T.38 ASN.1's separate Data-Type
// enumeration.
type DataType int

const (
	DataV21 DataType = iota
	DataV27ter2400
	DataV27ter4800
	DataV29_7200
	DataV29_9600
	DataV17_7200
	DataV17_9600
	DataV17_12000
	DataV17_14400
	DataV8
	DataV34PriRate
	DataV34CC1200
	DataV34PriCh
	DataV33_12000
	DataV33_14400
)

// dataTypeExtBase is the first data type that needs the two-octet extended
// encoding (codes 0-8 fit the inline four-bit field).
const dataTypeExtBase = DataV8

func (d DataType) String() string {
	switch d {
	case DataV21:
		return "V21"
	case DataV27ter2400:
		return "V27TER_2400"
	case DataV27ter4800:
		return "V27TER_4800"
	case DataV29_7200:
		return "V29_7200"
	case DataV29_9600:
		return "V29_9600"
	case DataV17_7200:
		return "V17_7200"
	case DataV17_9600:
		return "V17_9600"
	case DataV17_12000:
		return "V17_12000"
	case DataV17_14400:
		return "V17_14400"
	case DataV8:
		return "V8"
	case DataV34PriRate:
		return "V34_PRI_RATE"
	case DataV34CC1200:
		return "V34_CC_1200"
	case DataV34PriCh:
		return "V34_PRI_CH"
	case DataV33_12000:
		return "V33_12000"
	case DataV33_14400:
		return "V33_14400"
	default:
		return "UNKNOWN_DATA_TYPE"
	}
}

// FieldType is a T.38 IFP data field type (spec.md §4.3).
type FieldType int

const (
	FieldHDLCData FieldType = iota
	FieldHDLCSigEnd
	FieldHDLCFCSOK
	FieldHDLCFCSBad
	FieldHDLCFCSOKSigEnd
	FieldHDLCFCSBadSigEnd
	FieldT4NonECMData
	FieldT4NonECMSigEnd
	FieldCMMessage
	FieldJMMessage
	FieldCIMessage
	FieldV34Rate
)

func (f FieldType) String() string {
	switch f {
	case FieldHDLCData:
		return "HDLC_DATA"
	case FieldHDLCSigEnd:
		return "HDLC_SIG_END"
	case FieldHDLCFCSOK:
		return "HDLC_FCS_OK"
	case FieldHDLCFCSBad:
		return "HDLC_FCS_BAD"
	case FieldHDLCFCSOKSigEnd:
		return "HDLC_FCS_OK_SIG_END"
	case FieldHDLCFCSBadSigEnd:
		return "HDLC_FCS_BAD_SIG_END"
	case FieldT4NonECMData:
		return "T4_NON_ECM_DATA"
	case FieldT4NonECMSigEnd:
		return "T4_NON_ECM_SIG_END"
	case FieldCMMessage:
		return "CM_MESSAGE"
	case FieldJMMessage:
		return "JM_MESSAGE"
	case FieldCIMessage:
		return "CI_MESSAGE"
	case FieldV34Rate:
		return "V34RATE"
	default:
		return "UNKNOWN_FIELD"
	}
}

// isHDLCSigEnd reports whether a field type marks the end of an HDLC
// carrier burst (the modem should be disarmed after delivering it).
func (f FieldType) isHDLCSigEnd() bool {
	switch f {
	case FieldHDLCSigEnd, FieldHDLCFCSOKSigEnd, FieldHDLCFCSBadSigEnd:
		return true
	default:
		return false
	}
}
