// Package timer programs the 8253/8254 programmable interval timer to raise
// IRQ0 periodically and keeps a count of the ticks it delivers.
package timer

import (
	"sync/atomic"

	"github.com/mozaika228/barecore/kernel"
	"github.com/mozaika228/barecore/kernel/cpu"
	"github.com/mozaika228/barecore/kernel/gate"
	"github.com/mozaika228/barecore/kernel/irq"
)

const (
	// BaseFrequency is the PIT input clock in Hz.
	BaseFrequency = 1193182

	channel0Port = 0x40
	commandPort  = 0x43

	// modeSquareWave selects channel 0, lobyte/hibyte access and mode 3
	// (square wave generator) with binary counting.
	modeSquareWave = 0x36

	maxDivisor = 0xffff
)

var (
	// ErrInvalidFrequency is returned when the requested tick rate cannot be
	// produced by a 16-bit divisor of BaseFrequency.
	ErrInvalidFrequency = &kernel.Error{Module: "timer", Message: "requested frequency out of range"}

	// These are mocked by tests.
	portWriteByteFn = cpu.PortWriteByte
	eoiFn           = irq.EOI
)

// PIT tracks the ticks delivered by the programmable interval timer.
type PIT struct {
	hz    uint32
	ticks uint64
}

// Divisor returns the reload value that makes the PIT fire hz times per
// second.
func Divisor(hz uint32) (uint16, *kernel.Error) {
	if hz == 0 {
		return 0, ErrInvalidFrequency
	}

	div := BaseFrequency / hz
	if div == 0 || div > maxDivisor {
		return 0, ErrInvalidFrequency
	}

	return uint16(div), nil
}

// Program configures channel 0 as a square wave generator firing hz times per
// second.
func (p *PIT) Program(hz uint32) *kernel.Error {
	div, err := Divisor(hz)
	if err != nil {
		return err
	}

	portWriteByteFn(commandPort, modeSquareWave)
	portWriteByteFn(channel0Port, uint8(div))
	portWriteByteFn(channel0Port, uint8(div>>8))

	p.hz = hz
	return nil
}

// Frequency returns the tick rate the timer was programmed with.
func (p *PIT) Frequency() uint32 {
	return p.hz
}

// Ticks returns the number of timer interrupts handled so far.
func (p *PIT) Ticks() uint64 {
	return atomic.LoadUint64(&p.ticks)
}

// HandleTick is the interrupt handler for the timer vector. It only counts
// the tick and acknowledges the controller; it never switches tasks.
func (p *PIT) HandleTick(_ *gate.Registers) {
	atomic.AddUint64(&p.ticks, 1)
	eoiFn(irq.TimerLine)
}
