package sched

import "unsafe"

// CPUSwitcher switches contexts on the bare CPU.
type CPUSwitcher struct{}

// Switch implements Switcher.
func (CPUSwitcher) Switch(old, new *uintptr) {
	switchContext(old, new)
}

// EntryPC returns the code address of fn, suitable for passing to Create.
// fn must be a top-level function.
func EntryPC(fn func()) uintptr {
	if fn == nil {
		return 0
	}
	// A func value points to a closure whose first word is the code
	// pointer.
	return **(**uintptr)(unsafe.Pointer(&fn))
}

// taskStart runs on the first switch into a task with SP pointing at
// Frame.Entry. It loads the current g into R14, clears X15 and jumps to the
// entry point, leaving Frame.Return as its return address.
func taskStart()

// taskStartAddr returns the code address of taskStart. A func value of an
// assembly function points to an ABI wrapper, so the address is taken in
// assembly.
func taskStartAddr() uintptr

// switchContext pushes the callee-saved registers, stores SP in *old, loads SP
// from *new, pops the callee-saved registers and returns into the resumed
// context.
func switchContext(old, new *uintptr)
