// Package syscall implements the software trap interface tasks use to reach
// the kernel. A trap on gate.SyscallVector carries the operation number in
// RAX and up to two arguments in RDI and RSI; the result is returned in RAX.
package syscall

import (
	"io"
	"math"
	"reflect"
	"unsafe"

	"github.com/mozaika228/barecore/kernel/gate"
	"github.com/mozaika228/barecore/kernel/sched"
)

// Operation numbers.
const (
	OpWrite = 1
	OpExit  = 2
	OpYield = 3
)

// Unsupported is returned in RAX for unknown operations.
const Unsupported = ^uint64(0)

// Policy selects at which point of a trap yield and exit give up the CPU.
// Under both policies the switch happens on the trapping task's stack before
// the trap returns; the task resumes from inside the handler once it is
// scheduled again.
type Policy uint8

const (
	// Deferred only marks a reschedule as pending in Dispatch. HandleTrap
	// performs it after the operation has been dispatched and its result
	// stored.
	Deferred Policy = iota

	// Immediate switches away from inside Dispatch, before it returns.
	Immediate
)

// Dispatcher routes trap requests to the scheduler and the output sink.
type Dispatcher struct {
	sched  *sched.Scheduler
	sink   io.Writer
	policy Policy

	reschedule bool
}

// NewDispatcher returns a dispatcher that writes to sink and yields through s.
func NewDispatcher(s *sched.Scheduler, sink io.Writer, policy Policy) *Dispatcher {
	return &Dispatcher{sched: s, sink: sink, policy: policy}
}

// Policy returns the reschedule policy of the dispatcher.
func (d *Dispatcher) Policy() Policy {
	return d.policy
}

// Pending reports whether a yield or exit is waiting for HandleTrap to
// reschedule.
func (d *Dispatcher) Pending() bool {
	return d.reschedule
}

// HandleTrap is the gate handler for the syscall vector.
func (d *Dispatcher) HandleTrap(regs *gate.Registers) {
	d.Dispatch(regs)

	if d.reschedule {
		d.reschedule = false
		d.sched.Schedule()
	}
}

// Dispatch decodes the operation in regs.RAX, performs it and stores the
// result back in regs.RAX. Unknown operations leave the task table untouched.
func (d *Dispatcher) Dispatch(regs *gate.Registers) {
	switch regs.RAX {
	case OpWrite:
		regs.RAX = d.write(uintptr(regs.RDI), regs.RSI)
	case OpExit:
		regs.RAX = 0
		if d.sched.ExitCurrent() {
			d.yield()
		}
	case OpYield:
		regs.RAX = 0
		d.yield()
	default:
		regs.RAX = Unsupported
	}
}

func (d *Dispatcher) yield() {
	if d.policy == Immediate {
		d.sched.Schedule()
		return
	}
	d.reschedule = true
}

// write copies length bytes starting at addr to the sink and returns the
// number of bytes the sink accepted. Tasks share the kernel address space so
// the buffer is used in place. Lengths that do not fit a slice are rejected.
func (d *Dispatcher) write(addr uintptr, length uint64) uint64 {
	if addr == 0 || length == 0 || length > math.MaxInt || d.sink == nil {
		return 0
	}

	buf := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  int(length),
		Cap:  int(length),
	}))

	n, _ := d.sink.Write(buf)
	return uint64(n)
}
