package gate

import (
	"io"
	"unsafe"

	"github.com/mozaika228/barecore/kernel"
	"github.com/mozaika228/barecore/kernel/kfmt"
)

// Registers contains a snapshot of all register values when an interrupt or
// syscall trap occurs. The layout matches the order in which the assembly
// entry stubs push the registers so a pointer to the stack can be passed
// straight to the Go handlers. Handlers may modify the snapshot; the changes
// are restored into the CPU when the gate returns.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Info contains the vector number that was raised. The catch-all
	// entry stub stores UnknownVector here.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// Vector describes an x86 interrupt/exception/trap slot.
type Vector uint8

const (
	// TimerVector is the vector IRQ0 is delivered on once the PIC has
	// been remapped to start at 0x20.
	TimerVector = Vector(0x20)

	// SyscallVector is the software trap used by tasks to enter the
	// kernel.
	SyscallVector = Vector(0x80)

	// UnknownVector is reported in Registers.Info by the catch-all entry
	// which cannot tell which vector fired.
	UnknownVector = 0xffff
)

const (
	// NumVectors is the number of entries in the IDT.
	NumVectors = 256

	// maxRoutes bounds the number of vectors that can be overridden.
	maxRoutes = 16

	// kernelCodeSelector is the GDT selector of the 64-bit kernel code
	// segment installed by the loader.
	kernelCodeSelector = 0x08

	// FlagsInterruptGate marks a gate as present, DPL 0 and of type
	// 64-bit interrupt gate (IF is cleared on entry).
	FlagsInterruptGate = 0x8e
)

// Handler is invoked with the register snapshot of the interrupted context.
type Handler func(*Registers)

// Descriptor is a 16-byte long mode IDT gate descriptor.
type Descriptor struct {
	OffsetLow  uint16
	Selector   uint16
	IST        uint8
	Flags      uint8
	OffsetMid  uint16
	OffsetHigh uint32
	Reserved   uint32
}

// Offset returns the handler entry point encoded in the descriptor.
func (d Descriptor) Offset() uintptr {
	return uintptr(d.OffsetLow) | uintptr(d.OffsetMid)<<16 | uintptr(d.OffsetHigh)<<32
}

// set encodes entry, the kernel code selector and flags into the descriptor.
func (d *Descriptor) set(entry uintptr, flags uint8) {
	d.OffsetLow = uint16(entry)
	d.Selector = kernelCodeSelector
	d.IST = 0
	d.Flags = flags
	d.OffsetMid = uint16(entry >> 16)
	d.OffsetHigh = uint32(entry >> 32)
	d.Reserved = 0
}

// pointer is the operand of the LIDT instruction.
type pointer struct {
	Limit uint16
	Base  uintptr
}

type route struct {
	vector  Vector
	handler Handler
}

// Table is an interrupt vector table. Every vector points to a shared
// catch-all entry until it is explicitly overridden with Install. Routing
// from vectors to Go handlers is kept as a small sparse list; vectors with no
// route are served by the unhandled handler.
type Table struct {
	descriptors [NumVectors]Descriptor
	idtr        pointer

	routes     [maxRoutes]route
	routeCount int

	// Unhandled is called for any vector without a route. If nil, the
	// default handler reports the register state and panics.
	Unhandled Handler
}

var (
	errTooManyRoutes = &kernel.Error{Module: "gate", Message: "vector table route list is full"}
	errNoStub        = &kernel.Error{Module: "gate", Message: "no entry stub for vector"}
	errUnhandled     = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}

	// activeTable is the table most recently loaded into the CPU. It is
	// consulted by Dispatch.
	activeTable *Table

	// These are mocked by tests.
	loadIDTFn  = loadIDT
	panicFn    = kfmt.Panic
	dumpSinkFn = kfmt.GetOutputSink
)

// Init points every descriptor at the catch-all entry and drops any
// previously installed routes.
func (t *Table) Init() {
	_, _, fallback := stubAddrs()
	for i := range t.descriptors {
		t.descriptors[i].set(fallback, FlagsInterruptGate)
	}
	t.routeCount = 0
}

// Install routes vector to handler. Only vectors that own a dedicated
// assembly entry stub can be installed; the descriptor is rewritten to point
// at that stub with present, ring-0 interrupt gate flags.
func (t *Table) Install(vector Vector, handler Handler) *kernel.Error {
	entry := stubFor(vector)
	if entry == 0 {
		return errNoStub
	}

	for i := 0; i < t.routeCount; i++ {
		if t.routes[i].vector == vector {
			t.routes[i].handler = handler
			return nil
		}
	}

	if t.routeCount == maxRoutes {
		return errTooManyRoutes
	}

	t.routes[t.routeCount] = route{vector: vector, handler: handler}
	t.routeCount++
	t.descriptors[vector].set(entry, FlagsInterruptGate)
	return nil
}

// Descriptor returns a copy of the descriptor for vector.
func (t *Table) Descriptor(vector Vector) Descriptor {
	return t.descriptors[vector]
}

// HandlerFor returns the handler routed to vector or nil if the vector falls
// back to the unhandled handler.
func (t *Table) HandlerFor(vector Vector) Handler {
	for i := 0; i < t.routeCount; i++ {
		if t.routes[i].vector == vector {
			return t.routes[i].handler
		}
	}
	return nil
}

// Load installs the table into the CPU and makes it the target of Dispatch.
func (t *Table) Load() {
	t.idtr.Limit = uint16(unsafe.Sizeof(t.descriptors) - 1)
	t.idtr.Base = uintptr(unsafe.Pointer(&t.descriptors[0]))
	activeTable = t
	loadIDTFn(&t.idtr)
}

// dispatch routes regs to the handler installed for the raised vector.
func (t *Table) dispatch(regs *Registers) {
	if regs.Info < NumVectors {
		if h := t.HandlerFor(Vector(regs.Info)); h != nil {
			h(regs)
			return
		}
	}

	if t.Unhandled != nil {
		t.Unhandled(regs)
		return
	}

	defaultUnhandled(regs)
}

// Dispatch is invoked by the assembly entry stubs with a pointer to the saved
// register state on the interrupted stack.
func Dispatch(regs *Registers) {
	if activeTable == nil {
		defaultUnhandled(regs)
		return
	}
	activeTable.dispatch(regs)
}

func defaultUnhandled(regs *Registers) {
	w := dumpSinkFn()
	if regs.Info == UnknownVector {
		kfmt.Fprintf(w, "[gate] unhandled interrupt on unrouted vector\n")
	} else {
		kfmt.Fprintf(w, "[gate] unhandled interrupt on vector 0x%x\n", regs.Info)
	}
	regs.DumpTo(w)
	panicFn(errUnhandled)
}

// stubFor returns the address of the assembly entry stub that pushes vector
// before calling Dispatch or 0 if vector has no dedicated stub.
func stubFor(vector Vector) uintptr {
	timer, syscall, _ := stubAddrs()
	switch vector {
	case TimerVector:
		return timer
	case SyscallVector:
		return syscall
	}
	return 0
}

// stubAddrs returns the code addresses of the entry stubs. Func values of
// assembly functions point to ABI wrappers that push a frame of their own,
// so the addresses are taken in assembly.
func stubAddrs() (timer, syscall, unhandled uintptr)

// loadIDT executes LIDT with the supplied IDT pointer.
func loadIDT(idtr *pointer)

// timerEntry is the entry stub for TimerVector.
func timerEntry()

// syscallEntry is the entry stub for SyscallVector.
func syscallEntry()

// unhandledEntry is the shared catch-all entry stub.
func unhandledEntry()
