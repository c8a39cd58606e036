// Package schedtest provides a Switcher that runs scheduler contexts as
// goroutines so that complete task sets can be exercised by host tests.
package schedtest

import (
	"fmt"
	"sync"

	"github.com/mozaika228/barecore/kernel/sched"
)

// entryBase is the first synthetic entry address handed out by Register.
const entryBase = 0x100000

// Switcher emulates the context switch primitive. Each context is backed by
// a goroutine; exactly one of them runs at any time while the others are
// parked inside Switch.
//
// The first switch into a task decodes the Frame the scheduler laid on the
// task stack and starts the function registered for Frame.Entry. Later
// switches resume the goroutine parked on the stack pointer slot.
type Switcher struct {
	mu       sync.Mutex
	parked   map[*uintptr]chan struct{}
	entries  map[uintptr]func()
	nextPC   uintptr
	switches int
	log      []Switch
}

// Switch records a single call to Switcher.Switch.
type Switch struct {
	Old, New *uintptr
}

// New returns an empty Switcher.
func New() *Switcher {
	return &Switcher{
		parked:  make(map[*uintptr]chan struct{}),
		entries: make(map[uintptr]func()),
		nextPC:  entryBase,
	}
}

// Register returns a unique fake entry address that starts fn when a task
// created with it is first switched to.
func (sw *Switcher) Register(fn func()) uintptr {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	pc := sw.nextPC
	sw.nextPC += 0x10
	sw.entries[pc] = fn
	return pc
}

// Switch implements sched.Switcher.
func (sw *Switcher) Switch(old, new *uintptr) {
	wake := make(chan struct{})

	sw.mu.Lock()
	sw.switches++
	sw.log = append(sw.log, Switch{Old: old, New: new})
	sw.parked[old] = wake

	resume, parked := sw.parked[new]
	delete(sw.parked, new)

	var entry, ret func()
	if !parked {
		frame := sched.FrameAt(*new)
		if entry = sw.entries[frame.Entry]; entry == nil {
			sw.mu.Unlock()
			panic(fmt.Sprintf("schedtest: no function registered for entry 0x%x", frame.Entry))
		}
		ret = sw.entries[frame.Return]
	}
	sw.mu.Unlock()

	if parked {
		close(resume)
	} else {
		go run(entry, ret)
	}

	<-wake
}

// Switches returns the number of Switch calls.
func (sw *Switcher) Switches() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.switches
}

// Log returns the recorded Switch calls in order.
func (sw *Switcher) Log() []Switch {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return append([]Switch(nil), sw.log...)
}

func run(entry, ret func()) {
	entry()
	if ret != nil {
		ret()
	}
	panic("schedtest: task returned without switching away")
}
