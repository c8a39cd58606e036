package kfmt

import (
	"github.com/mozaika228/barecore/kernel"
	"github.com/mozaika228/barecore/kernel/cpu"
)

// cpuHaltFn is mocked by tests.
var cpuHaltFn = cpu.HaltForever

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return.
func Panic(e interface{}) {
	err := kernel.ErrorFrom(e)

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
