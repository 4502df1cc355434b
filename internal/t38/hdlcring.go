package t38

// hdlcRingSize is the gateway's fixed output-queue depth (spec.md §4.5).
const hdlcRingSize = 256

// maxSlotBytes bounds one ring slot's frame payload (spec.md §4.5).
const maxSlotBytes = 260

// slotKind tags what a ring slot carries.
type slotKind int

const (
	slotEmpty slotKind = iota
	slotIndicator
	slotData
)

// slotFlags are the per-slot status bits (spec.md §4.5).
type slotFlags struct {
	Finished          bool
	CorruptCRC        bool
	ProceedWithOutput bool
	MissingData       bool
}

// hdlcSlot is one entry in the gateway's HDLC output ring.
type hdlcSlot struct {
	kind      slotKind
	indicator Indicator
	dataType  FieldType
	buf       []byte
	flags     slotFlags
}

// hdlcRing is the gateway's fixed-depth HDLC output queue: a single-
// producer (packet side), single-consumer (modem side) ring, safe without
// locking because both run cooperatively in the same task (spec.md §5).
type hdlcRing struct {
	slots      [hdlcRingSize]hdlcSlot
	head, tail int // head: next to consume; tail: next to fill
	count      int
}

func newHDLCRing() *hdlcRing {
	return &hdlcRing{}
}

// pushIndicator enqueues a new indicator slot, flushing the current
// (non-empty) slot being filled first — mirrors spec.md §4.5's "on
// receiving an indicator different from the current, flush the current
// slot, push the indicator as its own slot".
func (r *hdlcRing) pushIndicator(ind Indicator) bool {
	if r.count >= hdlcRingSize {
		return false
	}
	if s := r.currentFillSlot(); s != nil && len(s.buf) > 0 {
		s.flags.ProceedWithOutput = true
	}
	r.slots[r.tail] = hdlcSlot{kind: slotIndicator, indicator: ind}
	r.tail = (r.tail + 1) % hdlcRingSize
	r.count++
	return true
}

// currentFillSlot returns a pointer to the slot currently being
// appended-to by the producer (the most recently pushed data slot, if it
// is not yet finished), or nil if a new slot must be started.
func (r *hdlcRing) currentFillSlot() *hdlcSlot {
	if r.count == 0 {
		return nil
	}
	idx := (r.tail - 1 + hdlcRingSize) % hdlcRingSize
	s := &r.slots[idx]
	if s.kind == slotData && !s.flags.Finished {
		return s
	}
	return nil
}

// appendData appends bytes to the in-progress data slot, starting a new
// one if necessary; corrupt marks the slot for deliberate bad-FCS output.
func (r *hdlcRing) appendData(dataType FieldType, data []byte, finished, corrupt bool) bool {
	s := r.currentFillSlot()
	if s == nil {
		if r.count >= hdlcRingSize {
			return false
		}
		r.slots[r.tail] = hdlcSlot{kind: slotData, dataType: dataType}
		s = &r.slots[r.tail]
		r.tail = (r.tail + 1) % hdlcRingSize
		r.count++
	}
	if len(s.buf)+len(data) > maxSlotBytes {
		data = data[:maxSlotBytes-len(s.buf)]
	}
	s.buf = append(s.buf, data...)
	if corrupt {
		s.flags.CorruptCRC = true
	}
	if finished {
		s.flags.Finished = true
		// A slot is ready for output once it holds at least 8 bytes or
		// the frame is complete, giving at least one frame of jitter
		// elasticity (spec.md §4.5).
		s.flags.ProceedWithOutput = true
	} else if len(s.buf) >= 8 {
		s.flags.ProceedWithOutput = true
	}
	return true
}

// pop removes and returns the oldest slot, or ok=false if the ring is
// empty or the oldest slot isn't yet ready for output.
func (r *hdlcRing) pop() (hdlcSlot, bool) {
	if r.count == 0 {
		return hdlcSlot{}, false
	}
	s := r.slots[r.head]
	if s.kind == slotData && !s.flags.ProceedWithOutput {
		return hdlcSlot{}, false
	}
	r.head = (r.head + 1) % hdlcRingSize
	r.count--
	return s, true
}

// Len reports how many slots are currently queued.
func (r *hdlcRing) Len() int { return r.count }
