// Package serial drives a 16550-compatible UART used as the kernel debug
// byte channel.
package serial

import (
	"io"

	"github.com/mozaika228/barecore/kernel"
	"github.com/mozaika228/barecore/kernel/cpu"
	"github.com/mozaika228/barecore/kernel/kfmt"
)

const (
	// COM1 is the I/O base of the first serial port.
	COM1 = 0x3f8

	// DefaultBaud is the line speed programmed by DriverInit.
	DefaultBaud = 38400

	// MaxSpins bounds the number of line status polls performed before a
	// byte is written regardless of the transmitter state.
	MaxSpins = 100000

	baseClock = 115200

	regData       = 0
	regIntEnable  = 1
	regFIFOCtrl   = 2
	regLineCtrl   = 3
	regModemCtrl  = 4
	regLineStatus = 5

	lineCtrlDLAB = 0x80
	lineCtrl8N1  = 0x03

	// fifoEnableClear enables the FIFOs, clears them and sets a 14-byte
	// receive threshold.
	fifoEnableClear = 0xc7

	// modemCtrlReady raises DTR, RTS and OUT2.
	modemCtrlReady = 0x0b

	lineStatusTxEmpty = 0x20
)

var (
	errBadBaud = &kernel.Error{Module: "serial", Message: "unsupported baud rate"}

	// These are mocked by tests.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// Port is a polled UART. It implements io.Writer and never blocks for more
// than MaxSpins line status reads per byte.
type Port struct {
	base uint16
	baud uint32

	// timeouts counts bytes that were written without the transmitter
	// reporting ready.
	timeouts uint64
}

// NewPort returns a port at I/O base address base running at baud.
func NewPort(base uint16, baud uint32) *Port {
	return &Port{base: base, baud: baud}
}

// Write implements io.Writer. Every byte is written; a busy or absent
// transmitter only delays the write by a bounded amount.
func (p *Port) Write(data []byte) (int, error) {
	for _, b := range data {
		p.WriteByte(b)
	}
	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (p *Port) WriteByte(b byte) error {
	spins := 0
	for ; spins < MaxSpins; spins++ {
		if portReadByteFn(p.base+regLineStatus)&lineStatusTxEmpty != 0 {
			break
		}
	}
	if spins == MaxSpins {
		p.timeouts++
	}

	portWriteByteFn(p.base+regData, b)
	return nil
}

// Timeouts returns the number of bytes written after the bounded wait for
// the transmitter expired.
func (p *Port) Timeouts() uint64 {
	return p.timeouts
}

// DriverName returns the name of this driver.
func (p *Port) DriverName() string {
	return "uart16550"
}

// DriverVersion returns the version of this driver.
func (p *Port) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit programs the line speed and an 8N1 frame and enables the FIFOs.
// Interrupts stay disabled; the port is polled.
func (p *Port) DriverInit(w io.Writer) *kernel.Error {
	if p.baud == 0 || p.baud > baseClock || baseClock%p.baud != 0 {
		return errBadBaud
	}
	div := uint16(baseClock / p.baud)

	portWriteByteFn(p.base+regIntEnable, 0)
	portWriteByteFn(p.base+regLineCtrl, lineCtrlDLAB)
	portWriteByteFn(p.base+regData, uint8(div))
	portWriteByteFn(p.base+regIntEnable, uint8(div>>8))
	portWriteByteFn(p.base+regLineCtrl, lineCtrl8N1)
	portWriteByteFn(p.base+regFIFOCtrl, fifoEnableClear)
	portWriteByteFn(p.base+regModemCtrl, modemCtrlReady)

	kfmt.Fprintf(w, "port 0x%x at %d baud\n", p.base, p.baud)
	return nil
}
