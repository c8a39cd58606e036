// Package sched implements a fixed-capacity cooperative round-robin task
// scheduler. Tasks run on private stacks carved out of the scheduler itself
// and are switched by a small assembly primitive behind the Switcher
// interface.
package sched

// Switcher saves the running context, stores its stack pointer in *old,
// loads the stack pointer from *new and resumes the context found there.
// Switch returns only when another Switch call resumes the context that was
// saved in *old.
type Switcher interface {
	Switch(old, new *uintptr)
}

// Scheduler holds the task table, the task stacks and the kernel (idle)
// context. A single instance is set up by the kernel entry point and passed
// by reference to everything that needs it.
type Scheduler struct {
	tasks  [MaxTasks]Task
	stacks [MaxTasks][StackSize]byte
	used   int

	// current is the index of the running task or Idle.
	current int

	// kernelSP holds the saved stack pointer of the kernel context while
	// a task is running.
	kernelSP uintptr

	// returnPC is written below the entry point of each new task.
	returnPC uintptr

	switcher Switcher
	switches uint64
}

// Init resets s to an empty task table with control in the kernel context.
func (s *Scheduler) Init(sw Switcher) {
	s.tasks = [MaxTasks]Task{}
	s.used = 0
	s.current = Idle
	s.kernelSP = 0
	s.returnPC = 0
	s.switches = 0
	s.switcher = sw
}

// SetReturnPC sets the address tasks created from now on return to if their
// entry function returns.
func (s *Scheduler) SetReturnPC(pc uintptr) {
	s.returnPC = pc
}

// Create allocates the next free task slot, prepares its stack so that the
// first switch into it starts executing at entry and returns the slot index.
// It returns ErrSlot and leaves the table unchanged if the table is full or
// entry is zero.
func (s *Scheduler) Create(entry uintptr) int {
	if s.used >= MaxTasks || entry == 0 {
		return ErrSlot
	}

	idx := s.used
	s.tasks[idx] = Task{
		sp:     layFrame(&s.stacks[idx], entry, s.returnPC),
		active: true,
	}
	s.used++

	return idx
}

// PickNext returns the first runnable task after the current one in
// round-robin order or Idle if no task is runnable. Starting right after the
// current task ensures that every runnable task gets a turn before any task
// runs twice.
func (s *Scheduler) PickNext() int {
	if s.used == 0 {
		return Idle
	}

	for i := 0; i < s.used; i++ {
		candidate := (s.current + 1 + i) % s.used
		if s.tasks[candidate].Runnable() {
			return candidate
		}
	}

	return Idle
}

// Schedule switches to the next runnable task. If no task is runnable,
// control returns to the kernel context. The current index is always updated
// before switching so interrupts taken in the new context see a consistent
// value.
func (s *Scheduler) Schedule() {
	next := s.PickNext()

	switch {
	case next == Idle:
		if s.current == Idle {
			return
		}
		prev := s.current
		s.current = Idle
		s.switchTo(&s.tasks[prev].sp, &s.kernelSP)
	case s.current == Idle:
		s.current = next
		s.switchTo(&s.kernelSP, &s.tasks[next].sp)
	case next == s.current:
		return
	default:
		prev := s.current
		s.current = next
		s.switchTo(&s.tasks[prev].sp, &s.tasks[next].sp)
	}
}

func (s *Scheduler) switchTo(old, new *uintptr) {
	s.switches++
	s.switcher.Switch(old, new)
}

// ExitCurrent marks the running task as exited. It returns false if control
// is in the kernel context. The caller is responsible for invoking Schedule
// so that the exited task does not keep running.
func (s *Scheduler) ExitCurrent() bool {
	if s.current == Idle {
		return false
	}

	s.tasks[s.current].active = false
	s.tasks[s.current].exited = true
	return true
}

// Current returns the index of the running task or Idle.
func (s *Scheduler) Current() int {
	return s.current
}

// Used returns the number of allocated task slots.
func (s *Scheduler) Used() int {
	return s.used
}

// Task returns a copy of the control block in slot idx.
func (s *Scheduler) Task(idx int) (Task, bool) {
	if idx < 0 || idx >= s.used {
		return Task{}, false
	}
	return s.tasks[idx], true
}

// Runnable reports whether at least one task can still be scheduled.
func (s *Scheduler) Runnable() bool {
	for i := 0; i < s.used; i++ {
		if s.tasks[i].Runnable() {
			return true
		}
	}
	return false
}

// Switches returns the number of context switches performed so far.
func (s *Scheduler) Switches() uint64 {
	return s.switches
}
