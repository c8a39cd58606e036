package gate

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"unsafe"

	"github.com/mozaika228/barecore/kernel/kfmt"
)

func TestDescriptorEncoding(t *testing.T) {
	if exp, got := uintptr(16), unsafe.Sizeof(Descriptor{}); got != exp {
		t.Fatalf("expected descriptor size to be %d; got %d", exp, got)
	}

	var d Descriptor
	d.set(0xffff800012345678, FlagsInterruptGate)

	specs := []struct {
		name     string
		got, exp uint64
	}{
		{"offset low", uint64(d.OffsetLow), 0x5678},
		{"offset mid", uint64(d.OffsetMid), 0x1234},
		{"offset high", uint64(d.OffsetHigh), 0xffff8000},
		{"selector", uint64(d.Selector), kernelCodeSelector},
		{"flags", uint64(d.Flags), 0x8e},
		{"ist", uint64(d.IST), 0},
		{"reserved", uint64(d.Reserved), 0},
	}

	for _, spec := range specs {
		if spec.got != spec.exp {
			t.Errorf("expected %s to be 0x%x; got 0x%x", spec.name, spec.exp, spec.got)
		}
	}

	if exp, got := uintptr(0xffff800012345678), d.Offset(); got != exp {
		t.Errorf("expected Offset() to return 0x%x; got 0x%x", exp, got)
	}
}

// pushedImmediate decodes the PUSH imm8/imm32 instruction at addr and
// returns its sign-extended operand.
func pushedImmediate(t *testing.T, addr uintptr) int64 {
	code := (*[5]byte)(unsafe.Pointer(addr))
	switch code[0] {
	case 0x6a:
		return int64(int8(code[1]))
	case 0x68:
		return int64(int32(uint32(code[1]) | uint32(code[2])<<8 | uint32(code[3])<<16 | uint32(code[4])<<24))
	}
	t.Fatalf("expected the entry stub at 0x%x to start with a PUSH imm; got opcode 0x%x", addr, code[0])
	return 0
}

func TestEntryStubs(t *testing.T) {
	timerStub, syscallStub, unhandledStub := stubAddrs()

	specs := []struct {
		addr   uintptr
		vector int64
	}{
		{timerStub, int64(TimerVector)},
		{syscallStub, int64(SyscallVector)},
		{unhandledStub, UnknownVector},
	}

	// The vector push must be the first instruction the CPU executes so
	// that the stack matches the Registers layout.
	for specIndex, spec := range specs {
		if got := pushedImmediate(t, spec.addr); got != spec.vector {
			t.Errorf("[spec %d] expected entry stub to push 0x%x; got 0x%x", specIndex, spec.vector, got)
		}
	}

	for specIndex, vector := range []Vector{TimerVector, SyscallVector} {
		if got := pushedImmediate(t, stubFor(vector)); got != int64(vector) {
			t.Errorf("[spec %d] expected stubFor(0x%x) to push 0x%x; got 0x%x", specIndex, vector, vector, got)
		}
	}

	if stubFor(Vector(0x21)) != 0 {
		t.Error("expected no entry stub for vector 0x21")
	}
}

func TestTableInit(t *testing.T) {
	var tbl Table
	tbl.Init()

	_, _, fallback := stubAddrs()
	for vec := 0; vec < NumVectors; vec++ {
		d := tbl.Descriptor(Vector(vec))
		if d.Offset() != fallback {
			t.Fatalf("expected vector %d to point to the unhandled entry", vec)
		}
		if d.Flags != FlagsInterruptGate || d.Selector != kernelCodeSelector {
			t.Fatalf("expected vector %d to be a present ring-0 interrupt gate; got flags 0x%x selector 0x%x", vec, d.Flags, d.Selector)
		}
	}
}

func TestTableInstall(t *testing.T) {
	var tbl Table
	tbl.Init()

	var timerCalls, syscallCalls int
	if err := tbl.Install(TimerVector, func(_ *Registers) { timerCalls++ }); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Install(SyscallVector, func(_ *Registers) { syscallCalls++ }); err != nil {
		t.Fatal(err)
	}

	timerStub, syscallStub, fallback := stubAddrs()
	if exp, got := timerStub, tbl.Descriptor(TimerVector).Offset(); got != exp {
		t.Errorf("expected timer vector to point to 0x%x; got 0x%x", exp, got)
	}
	if exp, got := syscallStub, tbl.Descriptor(SyscallVector).Offset(); got != exp {
		t.Errorf("expected syscall vector to point to 0x%x; got 0x%x", exp, got)
	}

	for vec := 0; vec < NumVectors; vec++ {
		if Vector(vec) == TimerVector || Vector(vec) == SyscallVector {
			continue
		}
		if tbl.Descriptor(Vector(vec)).Offset() != fallback {
			t.Fatalf("expected vector %d to keep pointing to the unhandled entry", vec)
		}
	}

	t.Run("reinstall replaces handler", func(t *testing.T) {
		var replaced bool
		if err := tbl.Install(TimerVector, func(_ *Registers) { replaced = true }); err != nil {
			t.Fatal(err)
		}
		if tbl.routeCount != 2 {
			t.Fatalf("expected reinstall not to add a route; got %d routes", tbl.routeCount)
		}
		tbl.HandlerFor(TimerVector)(&Registers{})
		if !replaced || timerCalls != 0 {
			t.Fatal("expected the replacement handler to be invoked")
		}
	})

	t.Run("vector without entry stub", func(t *testing.T) {
		if err := tbl.Install(Vector(0x21), func(_ *Registers) {}); err != errNoStub {
			t.Fatalf("expected errNoStub; got %v", err)
		}
		if tbl.HandlerFor(Vector(0x21)) != nil {
			t.Fatal("expected no route to be recorded for vector 0x21")
		}
	})
}

func TestTableLoad(t *testing.T) {
	defer func() {
		loadIDTFn = loadIDT
		activeTable = nil
	}()

	var loaded *pointer
	loadIDTFn = func(p *pointer) { loaded = p }

	var tbl Table
	tbl.Init()
	tbl.Load()

	if loaded == nil {
		t.Fatal("expected Load to execute LIDT")
	}
	if exp := uint16(NumVectors*16 - 1); loaded.Limit != exp {
		t.Errorf("expected IDT limit to be %d; got %d", exp, loaded.Limit)
	}
	if exp := uintptr(unsafe.Pointer(&tbl.descriptors[0])); loaded.Base != exp {
		t.Errorf("expected IDT base to be 0x%x; got 0x%x", exp, loaded.Base)
	}
	if activeTable != &tbl {
		t.Error("expected Load to make the table active")
	}
}

func TestDispatch(t *testing.T) {
	defer func() {
		loadIDTFn = loadIDT
		panicFn = kfmt.Panic
		dumpSinkFn = kfmt.GetOutputSink
		activeTable = nil
	}()

	loadIDTFn = func(_ *pointer) {}

	var tbl Table
	tbl.Init()
	tbl.Install(SyscallVector, func(regs *Registers) { regs.RAX = 42 })
	tbl.Load()

	t.Run("routed vector", func(t *testing.T) {
		regs := Registers{Info: uint64(SyscallVector)}
		Dispatch(&regs)
		if regs.RAX != 42 {
			t.Fatalf("expected handler to set RAX to 42; got %d", regs.RAX)
		}
	})

	t.Run("custom unhandled handler", func(t *testing.T) {
		var got uint64
		tbl.Unhandled = func(regs *Registers) { got = regs.Info }
		defer func() { tbl.Unhandled = nil }()

		Dispatch(&Registers{Info: 0x27})
		if got != 0x27 {
			t.Fatalf("expected unhandled handler to see vector 0x27; got 0x%x", got)
		}
	})

	specs := []struct {
		vector uint64
		expMsg string
	}{
		{0x0d, "[gate] unhandled interrupt on vector 0xd\n"},
		{UnknownVector, "[gate] unhandled interrupt on unrouted vector\n"},
	}

	for _, spec := range specs {
		t.Run("default unhandled handler", func(t *testing.T) {
			var (
				buf      bytes.Buffer
				panicErr interface{}
			)
			dumpSinkFn = func() io.Writer { return &buf }
			panicFn = func(e interface{}) { panicErr = e }

			Dispatch(&Registers{Info: spec.vector, RIP: 0xdead})

			if panicErr != errUnhandled {
				t.Fatalf("expected panic with errUnhandled; got %v", panicErr)
			}
			if got := buf.String(); !strings.HasPrefix(got, spec.expMsg) {
				t.Fatalf("expected output to start with %q; got %q", spec.expMsg, got)
			}
			if !strings.Contains(buf.String(), "RIP = 000000000000dead") {
				t.Fatalf("expected register dump in output; got %q", buf.String())
			}
		})
	}
}

func TestRegistersDumpTo(t *testing.T) {
	regs := Registers{
		RAX: 1, RBX: 2, RCX: 3, RDX: 4, RSI: 5, RDI: 6, RBP: 7,
		R8: 8, R9: 9, R10: 10, R11: 11, R12: 12, R13: 13, R14: 14, R15: 15,
		RIP: 16, CS: 17, RFlags: 18, RSP: 19, SS: 20,
	}

	var buf bytes.Buffer
	regs.DumpTo(&buf)

	exp := "RAX = 0000000000000001 RBX = 0000000000000002\nRCX = 0000000000000003 RDX = 0000000000000004\nRSI = 0000000000000005 RDI = 0000000000000006\nRBP = 0000000000000007\nR8  = 0000000000000008 R9  = 0000000000000009\nR10 = 000000000000000a R11 = 000000000000000b\nR12 = 000000000000000c R13 = 000000000000000d\nR14 = 000000000000000e R15 = 000000000000000f\n\nRIP = 0000000000000010 CS  = 0000000000000011\nRSP = 0000000000000013 SS  = 0000000000000014\nRFL = 0000000000000012\n"

	if got := buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestRegistersLayout(t *testing.T) {
	var regs Registers
	if exp, got := uintptr(15*8), unsafe.Offsetof(regs.Info); got != exp {
		t.Errorf("expected Info at offset %d; got %d", exp, got)
	}
	if exp, got := uintptr(16*8), unsafe.Offsetof(regs.RIP); got != exp {
		t.Errorf("expected RIP at offset %d; got %d", exp, got)
	}
}
