// Package hal discovers the output devices described by the boot
// information and wires them into the kernel output sink.
package hal

import (
	"bytes"
	"io"
	"sort"

	"github.com/mozaika228/barecore/device"
	"github.com/mozaika228/barecore/device/tty"
	"github.com/mozaika228/barecore/device/video/console"
	"github.com/mozaika228/barecore/device/video/console/font"
	"github.com/mozaika228/barecore/kernel/kfmt"
)

// SerialDevice is a debug byte channel driver.
type SerialDevice interface {
	device.Driver
	io.Writer
}

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	serial        SerialDevice
	activeConsole console.Device
	activeTTY     tty.Device

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	output  Mirror
	strBuf  bytes.Buffer

	// These are mocked by tests.
	consoleProbesFn = console.Probes
	ttyProbeFn      = tty.Probe
)

// Mirror is the kernel output sink. Every byte goes to the serial channel;
// bytes are also rendered on the terminal once one is attached.
type Mirror struct {
	serial io.Writer
	term   io.Writer
}

// Write implements io.Writer. The serial channel always receives the full
// buffer, regardless of the terminal.
func (m *Mirror) Write(p []byte) (int, error) {
	if m.serial != nil {
		m.serial.Write(p)
	}
	if m.term != nil {
		m.term.Write(p)
	}
	return len(p), nil
}

// Output returns the kernel output sink set up by DetectHardware.
func Output() io.Writer {
	return &output
}

// ActiveConsole returns the console selected by DetectHardware or nil.
func ActiveConsole() console.Device {
	return devices.activeConsole
}

// ActiveTTY returns the currently active TTY.
func ActiveTTY() tty.Device {
	return devices.activeTTY
}

// FramebufferEnabled reports whether output is rendered on a linear
// framebuffer rather than the text mode fallback.
func FramebufferEnabled() bool {
	_, ok := devices.activeConsole.(*console.FramebufferConsole)
	return ok
}

// DetectHardware brings up the serial channel, probes for a console,
// attaches a terminal to it and installs the resulting mirror as the kfmt
// output sink. Any output buffered by kfmt before this call is replayed to
// the serial channel.
func DetectHardware(serial SerialDevice) {
	devices = managedDevices{serial: serial}
	output = Mirror{}

	if serial != nil {
		output.serial = serial
		kfmt.SetOutputSink(&output)
		initDriver(serial)
	}

	// Get driver list and sort by detection priority
	drivers := consoleProbesFn()
	sort.Stable(drivers)
	probe(drivers)

	if devices.activeConsole == nil {
		kfmt.Printf("[hal] no console detected; output limited to the serial channel\n")
	}

	if drv := ttyProbeFn(); drv != nil && initDriver(drv) {
		onDriverInit(drv)
	}

	kfmt.SetOutputSink(&output)
}

// probe executes the probe function for each console driver until one of
// them initializes successfully.
func probe(driverInfoList device.DriverInfoList) {
	for _, info := range driverInfoList {
		if devices.activeConsole != nil {
			return
		}

		drv := info.Probe()
		if drv == nil {
			continue
		}

		if initDriver(drv) {
			onDriverInit(drv)
		}
	}
}

// initDriver runs the driver init code with its log output tagged by the
// driver name and version.
func initDriver(drv device.Driver) bool {
	var w = kfmt.PrefixWriter{Sink: &output}

	strBuf.Reset()
	major, minor, patch := drv.DriverVersion()
	kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
	w.Prefix = strBuf.Bytes()

	if err := drv.DriverInit(&w); err != nil {
		kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
		return false
	}

	kfmt.Fprintf(&w, "initialized\n")
	devices.activeDrivers = append(devices.activeDrivers, drv)
	return true
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	switch drvImpl := drv.(type) {
	case console.Device:
		onConsoleInit(drvImpl)
	case tty.Device:
		if devices.activeTTY != nil {
			return
		}

		devices.activeTTY = drvImpl
		if devices.activeConsole != nil {
			linkTTYToConsole()
		}
	}
}

// onConsoleInit is invoked whenever a console is initialized. The first
// console found becomes the active console. Consoles that support fonts get
// the font that best fits their resolution.
func onConsoleInit(cons console.Device) {
	if devices.activeConsole != nil {
		return
	}

	devices.activeConsole = cons

	if fontSetter, ok := cons.(console.FontSetter); ok {
		consW, consH := cons.Dimensions(console.Pixels)
		fontSetter.SetFont(font.BestFit(consW, consH))
	}

	if devices.activeTTY != nil {
		linkTTYToConsole()
	}
}

// linkTTYToConsole connects the active TTY device to the active console device
// and starts mirroring output to it.
func linkTTYToConsole() {
	devices.activeTTY.AttachTo(devices.activeConsole)
	output.term = devices.activeTTY
}
