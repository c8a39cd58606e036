// Package irq drives the pair of cascaded 8259A programmable interrupt
// controllers that route legacy hardware lines to CPU vectors.
package irq

import "github.com/mozaika228/barecore/kernel/cpu"

const (
	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xa0
	slaveDataPort     = 0xa1

	// icw1Init starts the initialization sequence and announces that
	// ICW4 will follow.
	icw1Init = 0x11

	// icw4Mode8086 selects 8086/88 mode.
	icw4Mode8086 = 0x01

	// cmdEOI acknowledges the interrupt being serviced.
	cmdEOI = 0x20

	// MasterOffset is the first vector used for IRQ0-7. It sits right
	// above the 32 vectors reserved for CPU exceptions.
	MasterOffset = 0x20

	// SlaveOffset is the first vector used for IRQ8-15.
	SlaveOffset = 0x28

	// TimerLine is the PIT line on the master controller.
	TimerLine = 0

	// cascadeLine is the master line the slave is wired to.
	cascadeLine = 2
)

const (
	// MaskAllButTimer leaves only IRQ0 unmasked on the master.
	MaskAllButTimer = ^uint8(1 << TimerLine)

	// MaskAll masks every line on a controller.
	MaskAll = uint8(0xff)
)

var (
	// These are mocked by tests.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	ioWaitFn        = cpu.IOWait
)

// Remap reinitializes both controllers so that IRQ0-7 are delivered starting
// at masterOffset and IRQ8-15 starting at slaveOffset. The line masks that
// were active before the call are restored at the end.
func Remap(masterOffset, slaveOffset uint8) {
	masterMask := portReadByteFn(masterDataPort)
	slaveMask := portReadByteFn(slaveDataPort)

	// ICW1
	writeAndWait(masterCommandPort, icw1Init)
	writeAndWait(slaveCommandPort, icw1Init)

	// ICW2: vector offsets
	writeAndWait(masterDataPort, masterOffset)
	writeAndWait(slaveDataPort, slaveOffset)

	// ICW3: master gets a bitmask of the cascade line, the slave gets its
	// cascade identity.
	writeAndWait(masterDataPort, 1<<cascadeLine)
	writeAndWait(slaveDataPort, cascadeLine)

	// ICW4
	writeAndWait(masterDataPort, icw4Mode8086)
	writeAndWait(slaveDataPort, icw4Mode8086)

	SetMask(masterMask, slaveMask)
}

// SetMask writes the interrupt mask registers of both controllers. A set bit
// masks the corresponding line.
func SetMask(master, slave uint8) {
	portWriteByteFn(masterDataPort, master)
	portWriteByteFn(slaveDataPort, slave)
}

// Init remaps the controllers above the CPU exception vectors and leaves only
// the timer line enabled. It is meant to be called exactly once during boot.
func Init() {
	Remap(MasterOffset, SlaveOffset)
	SetMask(MaskAllButTimer, MaskAll)
}

// EOI signals the end of interrupt handling for line. Lines routed through
// the slave controller need to be acknowledged on both controllers.
func EOI(line uint8) {
	if line >= 8 {
		portWriteByteFn(slaveCommandPort, cmdEOI)
	}
	portWriteByteFn(masterCommandPort, cmdEOI)
}

func writeAndWait(port uint16, val uint8) {
	portWriteByteFn(port, val)
	ioWaitFn()
}
