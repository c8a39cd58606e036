// Package kmain contains the kernel entry point. It brings up the output
// devices, the interrupt plumbing and the scheduler and then runs the task
// set until every task has exited.
package kmain

import (
	"github.com/mozaika228/barecore/device/serial"
	"github.com/mozaika228/barecore/kernel"
	"github.com/mozaika228/barecore/kernel/cpu"
	"github.com/mozaika228/barecore/kernel/gate"
	"github.com/mozaika228/barecore/kernel/hal"
	"github.com/mozaika228/barecore/kernel/hal/bootinfo"
	"github.com/mozaika228/barecore/kernel/irq"
	"github.com/mozaika228/barecore/kernel/kfmt"
	"github.com/mozaika228/barecore/kernel/sched"
	"github.com/mozaika228/barecore/kernel/syscall"
	"github.com/mozaika228/barecore/kernel/timer"
)

const (
	// TickHz is the timer interrupt rate used by Kmain.
	TickHz = 100

	// DemoIterations is the number of turns each demo task takes before
	// it exits.
	DemoIterations = 8

	// isa-debug-exit device; QEMU exits with status (code << 1) | 1.
	debugExitPort = 0xf4
	debugExitCode = 0x10
)

// Config groups the boot parameters that Kmain passes down to the
// subsystems it initializes.
type Config struct {
	TickHz     uint32
	Policy     syscall.Policy
	Iterations int
}

// DefaultConfig returns the configuration used by Kmain.
func DefaultConfig() Config {
	return Config{
		TickHz:     TickHz,
		Policy:     syscall.Deferred,
		Iterations: DemoIterations,
	}
}

var (
	errNoTaskSlot = &kernel.Error{Module: "kmain", Message: "unable to allocate a task slot"}

	// Kernel state lives in statically allocated variables.
	idt        gate.Table
	pit        timer.PIT
	scheduler  sched.Scheduler
	dispatcher syscall.Dispatcher
	com1       serial.Port
	iterations int

	// These are mocked by tests.
	newSerialFn        = newSerial
	detectHardwareFn   = hal.DetectHardware
	loadIDTFn          = (*gate.Table).Load
	irqInitFn          = irq.Init
	programTimerFn     = (*timer.PIT).Program
	enableInterruptsFn = cpu.EnableInterrupts
	switcherFn         = cpuSwitcher
	entryPCFn          = sched.EntryPC
	portWriteByteFn    = cpu.PortWriteByte
	cpuHaltFn          = cpu.HaltForever
	panicFn            = kfmt.Panic
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. It is invoked with the address of the boot
// information record left by the loader, or 0 if there is none.
//
// Kmain is not expected to return. Once all tasks have exited it signals the
// debug exit device and halts the CPU.
//
//go:noinline
func Kmain(bootInfoPtr uintptr) {
	bootinfo.SetInfoPtr(bootInfoPtr)
	run(DefaultConfig())
}

func run(cfg Config) {
	detectHardwareFn(newSerialFn())
	kfmt.Printf("Kernel: long mode OK\n")

	scheduler.Init(switcherFn())
	dispatcher = *syscall.NewDispatcher(&scheduler, kfmt.GetOutputSink(), cfg.Policy)

	idt.Init()
	if err := idt.Install(gate.TimerVector, handleTimer); err != nil {
		panicFn(err)
		return
	}
	if err := idt.Install(gate.SyscallVector, handleSyscall); err != nil {
		panicFn(err)
		return
	}
	loadIDTFn(&idt)

	irqInitFn()
	if err := programTimerFn(&pit, cfg.TickHz); err != nil {
		panicFn(err)
		return
	}
	kfmt.Printf("[kmain] timer running at %d Hz\n", cfg.TickHz)
	enableInterruptsFn()

	iterations = cfg.Iterations
	scheduler.SetReturnPC(entryPCFn(taskReturn))
	for _, entry := range demoTasks {
		if scheduler.Create(entryPCFn(entry)) == sched.ErrSlot {
			panicFn(errNoTaskSlot)
			return
		}
	}

	kfmt.Printf("Scheduler: starting\n")
	for scheduler.Runnable() {
		scheduler.Schedule()
	}

	kfmt.Printf("All tasks finished\n")
	kfmt.Printf("[kmain] %d context switches, %d timer ticks\n", scheduler.Switches(), pit.Ticks())

	portWriteByteFn(debugExitPort, debugExitCode)
	cpuHaltFn()
}

// handleTimer and handleSyscall are top-level functions so that installing
// them does not allocate a closure.
func handleTimer(regs *gate.Registers) {
	pit.HandleTick(regs)
}

func handleSyscall(regs *gate.Registers) {
	dispatcher.HandleTrap(regs)
}

func newSerial() hal.SerialDevice {
	com1 = *serial.NewPort(serial.COM1, serial.DefaultBaud)
	return &com1
}

func cpuSwitcher() sched.Switcher {
	return sched.CPUSwitcher{}
}
