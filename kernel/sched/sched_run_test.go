package sched_test

import (
	"bytes"
	"testing"

	"github.com/mozaika228/barecore/kernel/sched"
	"github.com/mozaika228/barecore/kernel/sched/schedtest"
)

// TestRunToCompletion drives real task contexts through the scheduler. Each
// task yields by calling Schedule and exits through ExitCurrent followed by
// Schedule, the same sequence the syscall layer performs.
func TestRunToCompletion(t *testing.T) {
	var (
		s   sched.Scheduler
		sw  = schedtest.New()
		out bytes.Buffer
	)
	s.Init(sw)

	task := func(id byte, turns int) func() {
		return func() {
			for i := 0; i < turns; i++ {
				out.WriteByte(id)
				s.Schedule()
			}
			out.WriteString("[" + string(id) + "]")
			s.ExitCurrent()
			s.Schedule()
		}
	}

	s.Create(sw.Register(task('A', 3)))
	s.Create(sw.Register(task('B', 5)))
	s.Create(sw.Register(task('C', 1)))

	for s.Runnable() {
		s.Schedule()
	}

	if exp, got := "ABCAB[C]AB[A]BB[B]", out.String(); got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}

	if s.Current() != sched.Idle {
		t.Fatalf("expected control to end in the kernel context; got %d", s.Current())
	}

	if got, exp := sw.Switches(), int(s.Switches()); got != exp {
		t.Fatalf("expected %d switches; got %d", exp, got)
	}

	for i := 0; i < s.Used(); i++ {
		task, _ := s.Task(i)
		if !task.Exited() || task.Active() {
			t.Errorf("expected slot %d to have exited", i)
		}
	}
}

func TestReturnFromEntry(t *testing.T) {
	var (
		s        sched.Scheduler
		sw       = schedtest.New()
		returned bool
	)
	s.Init(sw)

	s.SetReturnPC(sw.Register(func() {
		returned = true
		s.ExitCurrent()
		s.Schedule()
	}))
	s.Create(sw.Register(func() {}))

	s.Schedule()

	if !returned {
		t.Fatal("expected the return trampoline to run after the entry function returned")
	}
	if s.Runnable() {
		t.Fatal("expected the task to have exited through the return trampoline")
	}
}
