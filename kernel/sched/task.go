package sched

import (
	"unsafe"

	"github.com/mozaika228/barecore/kernel/mem"
)

const (
	// MaxTasks is the capacity of the task table.
	MaxTasks = 4

	// StackSize is the size of the private stack of each task in bytes.
	StackSize = 4096

	// Idle is the value of Current while control is in the kernel
	// context and no task is running.
	Idle = -1

	// ErrSlot is returned by Create when no task could be created.
	ErrSlot = -1

	// calleeSaved is the number of registers the context switch saves on
	// the outgoing stack: RBP, RBX and R12-R15.
	calleeSaved = 6

	stackAlign = 16
)

// Task is a task control block.
type Task struct {
	// sp holds the saved stack pointer while the task is not running.
	sp uintptr

	// active is set when the task is created and cleared when it exits.
	active bool

	// exited is terminal; an exited task is never scheduled again.
	exited bool
}

// SP returns the saved stack pointer of the task.
func (t Task) SP() uintptr { return t.sp }

// Active reports whether the task has been created and has not exited.
func (t Task) Active() bool { return t.active }

// Exited reports whether the task has exited.
func (t Task) Exited() bool { return t.exited }

// Runnable reports whether the task can be picked by the scheduler.
func (t Task) Runnable() bool { return t.active && !t.exited }

// Frame is the initial stack frame of a task that has never run. It looks
// exactly like what the context switch leaves behind when it suspends a
// context: the callee-saved registers followed by the address to return to.
// The first switch into the task pops zeroes into the callee-saved registers
// and returns into Start, which sets up the registers Go code expects and
// jumps to Entry.
type Frame struct {
	// Saved holds the callee-saved registers in pop order (R15, R14,
	// R13, R12, RBX, RBP).
	Saved [calleeSaved]uint64

	// Start is the address of the task start trampoline.
	Start uintptr

	// Entry is the address of the task entry point. The trampoline pops
	// it before jumping there.
	Entry uintptr

	// Return is where Entry returns to if the task function ever returns
	// instead of exiting. It sits at the top of the stack so that Entry
	// sees the stack pointer aligned the way a CALL would leave it.
	Return uintptr
}

// FrameAt overlays a Frame at stack address sp.
func FrameAt(sp uintptr) *Frame {
	return (*Frame)(unsafe.Pointer(sp))
}

// layFrame clears stack, writes the initial frame for entry at its top and
// returns the stack pointer the context switch should load to start the task.
func layFrame(stack *[StackSize]byte, entry, ret uintptr) uintptr {
	base := uintptr(unsafe.Pointer(&stack[0]))
	mem.Memset(base, 0, mem.Size(StackSize))

	top := (base + StackSize) &^ (stackAlign - 1)
	sp := top - unsafe.Sizeof(Frame{})

	frame := FrameAt(sp)
	*frame = Frame{
		Start:  taskStartAddr(),
		Entry:  entry,
		Return: ret,
	}

	return sp
}
