package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt arrives.
func Halt()

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// IOWait gives slow ISA devices time to settle after a port write by issuing
// a write to the unused POST diagnostics port (0x80).
func IOWait() {
	PortWriteByte(0x80, 0)
}

// HaltForever masks interrupts and parks the CPU. It never returns.
func HaltForever() {
	DisableInterrupts()
	for {
		Halt()
	}
}
