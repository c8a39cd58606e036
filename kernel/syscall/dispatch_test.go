package syscall

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/mozaika228/barecore/kernel/gate"
	"github.com/mozaika228/barecore/kernel/sched"
)

// nopSwitcher returns immediately as if the target context had switched
// straight back.
type nopSwitcher struct{}

func (nopSwitcher) Switch(_, _ *uintptr) {}

func newRunningScheduler(tasks int) *sched.Scheduler {
	s := new(sched.Scheduler)
	s.Init(nopSwitcher{})
	for i := 0; i < tasks; i++ {
		s.Create(0x1000 + uintptr(i))
	}
	if tasks > 0 {
		// Start the first task.
		s.Schedule()
	}
	return s
}

// userMem holds the buffers passed to write by address.
var userMem [64]byte

func userBuffer(s string) []byte {
	n := copy(userMem[:], s)
	return userMem[:n]
}

func TestDispatchUnknownOperation(t *testing.T) {
	specs := []uint64{0, 4, 99, 0x80, Unsupported}

	for specIndex, op := range specs {
		for _, policy := range []Policy{Deferred, Immediate} {
			s := newRunningScheduler(2)
			var sink bytes.Buffer
			d := NewDispatcher(s, &sink, policy)

			before := *s
			regs := gate.Registers{RAX: op, RDI: 0xdead, RSI: 0xbeef}
			d.HandleTrap(&regs)

			if regs.RAX != Unsupported {
				t.Errorf("[spec %d] expected op %d to return 0x%x; got 0x%x", specIndex, op, Unsupported, regs.RAX)
			}
			if *s != before {
				t.Errorf("[spec %d] expected op %d to leave the scheduler unchanged", specIndex, op)
			}
			if d.Pending() {
				t.Errorf("[spec %d] expected no pending reschedule", specIndex)
			}
			if sink.Len() != 0 {
				t.Errorf("[spec %d] expected nothing to be written; got %q", specIndex, sink.String())
			}
		}
	}
}

func TestDispatchWrite(t *testing.T) {
	specs := []struct {
		input string
	}{
		{"A"},
		{"hello, kernel\n"},
		{"\x00\x01\xff"},
	}

	for specIndex, spec := range specs {
		var sink bytes.Buffer
		d := NewDispatcher(newRunningScheduler(1), &sink, Deferred)

		buf := userBuffer(spec.input)
		regs := gate.Registers{
			RAX: OpWrite,
			RDI: uint64(uintptr(unsafe.Pointer(&buf[0]))),
			RSI: uint64(len(buf)),
		}
		d.Dispatch(&regs)

		if regs.RAX != uint64(len(buf)) {
			t.Errorf("[spec %d] expected write to return %d; got %d", specIndex, len(buf), regs.RAX)
		}
		if got := sink.String(); got != spec.input {
			t.Errorf("[spec %d] expected sink to contain %q; got %q", specIndex, spec.input, got)
		}
		if d.Pending() {
			t.Errorf("[spec %d] expected write not to request a reschedule", specIndex)
		}
	}
}

func TestDispatchWriteEmpty(t *testing.T) {
	buf := userBuffer("x")

	specs := []struct {
		addr, length uint64
		sink         bool
	}{
		{0, 10, true},
		{uint64(uintptr(unsafe.Pointer(&buf[0]))), 0, true},
		{uint64(uintptr(unsafe.Pointer(&buf[0]))), 1, false},
		{uint64(uintptr(unsafe.Pointer(&buf[0]))), 1 << 63, true},
		{uint64(uintptr(unsafe.Pointer(&buf[0]))), ^uint64(0), true},
	}

	for specIndex, spec := range specs {
		var (
			sink bytes.Buffer
			d    *Dispatcher
		)
		if spec.sink {
			d = NewDispatcher(newRunningScheduler(1), &sink, Deferred)
		} else {
			d = NewDispatcher(newRunningScheduler(1), nil, Deferred)
		}

		regs := gate.Registers{RAX: OpWrite, RDI: spec.addr, RSI: spec.length}
		d.Dispatch(&regs)

		if regs.RAX != 0 {
			t.Errorf("[spec %d] expected write to return 0; got %d", specIndex, regs.RAX)
		}
		if sink.Len() != 0 {
			t.Errorf("[spec %d] expected nothing to be written; got %q", specIndex, sink.String())
		}
	}
}

type shortWriter struct {
	limit int
	got   []byte
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		p = p[:w.limit]
	}
	w.got = append(w.got, p...)
	return len(p), nil
}

func TestDispatchWriteReportsAcceptedBytes(t *testing.T) {
	sink := &shortWriter{limit: 3}
	d := NewDispatcher(newRunningScheduler(1), sink, Deferred)

	buf := userBuffer("abcdef")
	regs := gate.Registers{
		RAX: OpWrite,
		RDI: uint64(uintptr(unsafe.Pointer(&buf[0]))),
		RSI: uint64(len(buf)),
	}
	d.Dispatch(&regs)

	if regs.RAX != 3 {
		t.Fatalf("expected write to return 3; got %d", regs.RAX)
	}
	if string(sink.got) != "abc" {
		t.Fatalf("expected sink to receive %q; got %q", "abc", sink.got)
	}
}

func TestDispatchDeferred(t *testing.T) {
	t.Run("yield", func(t *testing.T) {
		s := newRunningScheduler(2)
		d := NewDispatcher(s, nil, Deferred)
		switches := s.Switches()

		regs := gate.Registers{RAX: OpYield}
		d.Dispatch(&regs)

		if regs.RAX != 0 {
			t.Fatalf("expected yield to return 0; got %d", regs.RAX)
		}
		if !d.Pending() {
			t.Fatal("expected a pending reschedule")
		}
		if s.Switches() != switches || s.Current() != 0 {
			t.Fatal("expected Dispatch not to switch tasks")
		}

		regs = gate.Registers{RAX: OpYield}
		d.HandleTrap(&regs)

		if d.Pending() {
			t.Fatal("expected HandleTrap to consume the pending reschedule")
		}
		if s.Switches() != switches+1 || s.Current() != 1 {
			t.Fatalf("expected HandleTrap to switch to slot 1; current %d, switches %d", s.Current(), s.Switches())
		}
	})

	t.Run("exit", func(t *testing.T) {
		s := newRunningScheduler(2)
		d := NewDispatcher(s, nil, Deferred)
		switches := s.Switches()

		regs := gate.Registers{RAX: OpExit}
		d.Dispatch(&regs)

		if regs.RAX != 0 {
			t.Fatalf("expected exit to return 0; got %d", regs.RAX)
		}
		task, _ := s.Task(0)
		if !task.Exited() || task.Active() {
			t.Fatal("expected slot 0 to be marked as exited")
		}
		if s.Switches() != switches || s.Current() != 0 {
			t.Fatal("expected Dispatch not to switch tasks")
		}

		d.HandleTrap(&gate.Registers{RAX: OpYield})
		if s.Current() != 1 {
			t.Fatalf("expected slot 1 to run after the deferred reschedule; got %d", s.Current())
		}
	})
}

func TestDispatchImmediate(t *testing.T) {
	s := newRunningScheduler(3)
	d := NewDispatcher(s, nil, Immediate)
	switches := s.Switches()

	regs := gate.Registers{RAX: OpYield}
	d.Dispatch(&regs)

	if regs.RAX != 0 {
		t.Fatalf("expected yield to return 0; got %d", regs.RAX)
	}
	if d.Pending() {
		t.Fatal("expected no pending reschedule")
	}
	if s.Switches() != switches+1 || s.Current() != 1 {
		t.Fatalf("expected Dispatch to switch to slot 1; current %d, switches %d", s.Current(), s.Switches())
	}

	regs = gate.Registers{RAX: OpExit}
	d.Dispatch(&regs)

	if task, _ := s.Task(1); !task.Exited() {
		t.Fatal("expected slot 1 to be marked as exited")
	}
	if s.Current() != 2 {
		t.Fatalf("expected Dispatch to switch to slot 2; got %d", s.Current())
	}
}

func TestDispatchExitFromKernelContext(t *testing.T) {
	s := new(sched.Scheduler)
	s.Init(nopSwitcher{})
	s.Create(0x1000)
	s.Create(0x2000)

	for _, policy := range []Policy{Deferred, Immediate} {
		d := NewDispatcher(s, nil, policy)
		regs := gate.Registers{RAX: OpExit}

		d.HandleTrap(&regs)

		if regs.RAX != 0 || d.Pending() {
			t.Errorf("[policy %d] expected exit to return 0 with nothing pending", policy)
		}
		if s.Current() != sched.Idle || s.Switches() != 0 {
			t.Fatalf("[policy %d] expected exit without a running task to be a no-op", policy)
		}
		for i := 0; i < s.Used(); i++ {
			if task, _ := s.Task(i); !task.Runnable() {
				t.Fatalf("[policy %d] expected slot %d to stay runnable", policy, i)
			}
		}
	}
}
