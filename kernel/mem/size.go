// Package mem provides raw memory helpers for code that works on buffers it
// does not own, such as framebuffers and task stacks.
package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
)
