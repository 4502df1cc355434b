// Package ringbuffer implements a single-producer/single-consumer bounded
// byte queue for use as an inter-task FIFO. No other package in this
// module imports it. Since every context in this module is owned by
// exactly one logical task, no locking is needed here; a plain indexed
// array with head/tail pointers suffices.
package ringbuffer

import "fmt"

// RingBuffer is a named circular byte buffer, matching the shape of the
// teacher's codec.RingBuffer. The name appears only in String(); overflow
// and underflow are reported through return values and are not logged.
type RingBuffer struct {
	name   string
	buffer []byte
	length uint32
	iPtr   uint32
	oPtr   uint32
}

// New creates a ring buffer of the given capacity.
func New(length uint32, name string) *RingBuffer {
	if length == 0 {
		panic("ringbuffer: length must be > 0")
	}
	return &RingBuffer{
		name:   name,
		buffer: make([]byte, length),
		length: length,
	}
}

// AddData appends data to the buffer. On overflow the buffer is cleared
// and false is returned, matching the teacher's fail-safe behaviour: a
// FAX session would rather drop a burst cleanly than wrap and corrupt
// older image data silently.
func (rb *RingBuffer) AddData(data []byte) bool {
	n := uint32(len(data))
	if n >= rb.FreeSpace() {
		rb.Clear()
		return false
	}
	for _, b := range data {
		rb.buffer[rb.iPtr] = b
		rb.iPtr++
		if rb.iPtr == rb.length {
			rb.iPtr = 0
		}
	}
	return true
}

// AddByte appends a single byte.
func (rb *RingBuffer) AddByte(b byte) bool {
	return rb.AddData([]byte{b})
}

// GetData removes and returns n bytes, or false if fewer than n are queued.
func (rb *RingBuffer) GetData(n uint32) ([]byte, bool) {
	if rb.DataSize() < n {
		return nil, false
	}
	out := make([]byte, n)
	for i := uint32(0); i < n; i++ {
		out[i] = rb.buffer[rb.oPtr]
		rb.oPtr++
		if rb.oPtr == rb.length {
			rb.oPtr = 0
		}
	}
	return out, true
}

// Peek returns n bytes without consuming them.
func (rb *RingBuffer) Peek(n uint32) ([]byte, bool) {
	if rb.DataSize() < n {
		return nil, false
	}
	out := make([]byte, n)
	ptr := rb.oPtr
	for i := uint32(0); i < n; i++ {
		out[i] = rb.buffer[ptr]
		ptr++
		if ptr == rb.length {
			ptr = 0
		}
	}
	return out, true
}

// Clear empties the buffer.
func (rb *RingBuffer) Clear() {
	rb.iPtr = 0
	rb.oPtr = 0
}

// FreeSpace returns the number of bytes that can still be written.
func (rb *RingBuffer) FreeSpace() uint32 {
	if rb.oPtr > rb.iPtr {
		return rb.oPtr - rb.iPtr
	}
	if rb.iPtr > rb.oPtr {
		return rb.length - (rb.iPtr - rb.oPtr)
	}
	return rb.length
}

// DataSize returns the number of bytes queued for reading.
func (rb *RingBuffer) DataSize() uint32 {
	return rb.length - rb.FreeSpace()
}

// HasData reports whether any bytes are queued.
func (rb *RingBuffer) HasData() bool {
	return rb.iPtr != rb.oPtr
}

func (rb *RingBuffer) String() string {
	return fmt.Sprintf("RingBuffer[%s]: size=%d/%d", rb.name, rb.DataSize(), rb.length)
}
