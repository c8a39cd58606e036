package syscall

import (
	"unsafe"

	"github.com/mozaika228/barecore/kernel/gate"
)

var (
	// trapFn is mocked by tests.
	trapFn = trap
)

// TrapFunc issues a syscall with op in RAX and the two arguments in RDI and
// RSI and returns the value left in RAX.
type TrapFunc func(op, arg0, arg1 uint64) uint64

// SetTrapFunc replaces the function used by Write, Yield and Exit to enter
// the kernel and returns a function that restores the previous one. It lets
// code running on the host route task syscalls straight into a Dispatcher.
func SetTrapFunc(fn TrapFunc) (restore func()) {
	prev := trapFn
	trapFn = fn
	return func() { trapFn = prev }
}

// DirectTrap returns a TrapFunc that hands the request to d without raising
// an interrupt.
func DirectTrap(d *Dispatcher) TrapFunc {
	return func(op, arg0, arg1 uint64) uint64 {
		// The snapshot lives on the caller stack as it would on the
		// interrupted stack.
		var regs gate.Registers
		regs.RAX, regs.RDI, regs.RSI = op, arg0, arg1
		d.HandleTrap(&regs)
		return regs.RAX
	}
}

// Write passes buf to the kernel output sink and returns the number of bytes
// written.
func Write(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	return int(trapFn(OpWrite, uint64(uintptr(unsafe.Pointer(&buf[0]))), uint64(len(buf))))
}

// WriteString is like Write but accepts a string.
func WriteString(s string) int {
	if len(s) == 0 {
		return 0
	}
	return int(trapFn(OpWrite, uint64(uintptr(unsafe.Pointer(unsafe.StringData(s)))), uint64(len(s))))
}

// Yield gives up the CPU to the next runnable task.
func Yield() {
	trapFn(OpYield, 0, 0)
}

// Exit terminates the calling task. It does not return.
func Exit() {
	trapFn(OpExit, 0, 0)
}

// Raw issues op with the supplied arguments and returns the raw result.
func Raw(op, arg0, arg1 uint64) uint64 {
	return trapFn(op, arg0, arg1)
}

// trap raises the syscall interrupt.
func trap(op, arg0, arg1 uint64) uint64
