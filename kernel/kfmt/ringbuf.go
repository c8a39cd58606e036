package kfmt

import "io"

// ringBufferSize defines size of the ring buffer that captures early Printf
// output. It is large enough to hold a full 80x25 text screen and must always
// be a power of 2.
const ringBufferSize = 2048

// ringBuffer captures the output of Printf until the hal attaches a sink.
// Once full, the oldest bytes are overwritten.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write writes len(p) bytes from p to the ringBuffer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. It returns the number of bytes read
// (0 <= n <= len(p)) and io.EOF once the buffer is drained.
func (rb *ringBuffer) Read(p []byte) (n int, err error) {
	var avail int
	switch {
	case rb.rIndex < rb.wIndex:
		avail = rb.wIndex - rb.rIndex
	case rb.rIndex > rb.wIndex:
		// read up to the end of the backing array; the next call picks
		// up the wrapped part.
		avail = len(rb.buffer) - rb.rIndex
	default:
		return 0, io.EOF
	}

	if n = avail; len(p) < n {
		n = len(p)
	}

	copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
	rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
	return n, nil
}
