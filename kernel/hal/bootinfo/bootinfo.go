// Package bootinfo provides access to the record the firmware loader hands to
// the kernel entry point.
package bootinfo

import "unsafe"

// Magic identifies a valid boot information record ("BARECORE").
const Magic = 0x42415245434F5245

// PixelFormat is the GOP pixel format reported by the firmware.
type PixelFormat uint32

const (
	// PixelRGBX stores red in the lowest byte of each pixel.
	PixelRGBX PixelFormat = iota

	// PixelBGRX stores blue in the lowest byte of each pixel.
	PixelBGRX

	// PixelBitMask uses a custom channel layout.
	PixelBitMask

	// PixelBltOnly has no linear framebuffer.
	PixelBltOnly
)

// MinFramebufferBpp is the smallest pixel depth the framebuffer console
// can drive.
const MinFramebufferBpp = 24

// Info is the boot information record. Its layout is shared with the loader
// and must not change.
type Info struct {
	Magic uint64

	FramebufferBase uint64

	// Framebuffer geometry. Pitch is measured in pixels.
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32

	Format   PixelFormat
	Reserved uint32
}

var (
	infoPtr uintptr

	// empty is returned by Get when no record was supplied.
	empty Info
)

// SetInfoPtr updates the internal boot info pointer to the value passed by
// the loader.
func SetInfoPtr(ptr uintptr) {
	infoPtr = ptr
}

// Get returns the boot information record. If no record was supplied, Get
// returns a zeroed record which fails validation.
func Get() *Info {
	if infoPtr == 0 {
		return &empty
	}
	return (*Info)(unsafe.Pointer(infoPtr))
}

// Valid reports whether the record carries the expected magic value.
func (i *Info) Valid() bool {
	return i != nil && i.Magic == Magic
}

// FramebufferUsable reports whether graphical output can be enabled: the
// magic must match, the base address must be non-zero and the pixel depth
// must be at least MinFramebufferBpp.
func (i *Info) FramebufferUsable() bool {
	return i.Valid() && i.FramebufferBase != 0 && i.Bpp >= MinFramebufferBpp
}

// BGR reports whether blue is stored in the lowest byte of each pixel.
func (i *Info) BGR() bool {
	return i.Format == PixelBGRX
}
