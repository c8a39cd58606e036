package console

import (
	"github.com/mozaika228/barecore/device"
	"github.com/mozaika228/barecore/kernel/cpu"
	"github.com/mozaika228/barecore/kernel/hal/bootinfo"
)

const (
	// VgaTextAddr is the physical address of the VGA text buffer.
	VgaTextAddr = 0xb8000

	// VgaTextColumns and VgaTextRows describe VGA mode 0x3.
	VgaTextColumns = 80
	VgaTextRows    = 25
)

var (
	portWriteByteFn = cpu.PortWriteByte
	getBootInfoFn   = bootinfo.Get

	// vgaTextAddr is overridden by tests.
	vgaTextAddr uintptr = VgaTextAddr
)

// Probes returns the console probe functions in the order the hal package
// should try them: the framebuffer console when the boot information allows
// it and the VGA text console as a fallback.
func Probes() device.DriverInfoList {
	return device.DriverInfoList{
		{Order: device.DetectOrderNormal, Probe: probeForFramebufferConsole},
		{Order: device.DetectOrderFallback, Probe: probeForVgaTextConsole},
	}
}

// probeForFramebufferConsole returns a framebuffer console if the boot
// information describes a usable linear framebuffer.
func probeForFramebufferConsole() device.Driver {
	info := getBootInfoFn()
	if !info.FramebufferUsable() {
		return nil
	}

	return NewFramebufferConsole(info.Width, info.Height, info.Pitch, info.Bpp, info.BGR(), uintptr(info.FramebufferBase))
}

// probeForVgaTextConsole returns a VGA text console. Text mode is always
// assumed to be present.
func probeForVgaTextConsole() device.Driver {
	return NewVgaTextConsole(VgaTextColumns, VgaTextRows, vgaTextAddr)
}
