package console

import (
	"image/color"
	"io"
	"reflect"
	"unsafe"

	"github.com/mozaika228/barecore/device/video/console/font"
	"github.com/mozaika228/barecore/kernel"
	"github.com/mozaika228/barecore/kernel/kfmt"
	"github.com/mozaika228/barecore/kernel/mem"
)

var errUnsupportedBpp = &kernel.Error{Module: "console", Message: "unsupported framebuffer pixel depth"}

// FramebufferConsole renders text with a bitmap font on a 24 or 32 bpp
// linear framebuffer. Colors are looked up in a 16 color EGA palette and
// stored in RGB or BGR byte order depending on the firmware pixel format.
type FramebufferConsole struct {
	fbAddr uintptr
	fb     []uint8

	// Console dimensions in pixels
	width  uint32
	height uint32

	// Size of a row in bytes
	pitch uint32

	// Size of a pixel in bytes
	bytesPerPixel uint32
	bgr           bool

	// Console dimensions in characters
	font          *font.Font
	widthInChars  uint32
	heightInChars uint32

	palette   color.Palette
	defaultFg uint8
	defaultBg uint8
}

// NewFramebufferConsole creates a console for a framebuffer at fbAddr. The
// pitch is the length of a scanline in pixels.
func NewFramebufferConsole(width, height, pitchPixels, bpp uint32, bgr bool, fbAddr uintptr) *FramebufferConsole {
	return &FramebufferConsole{
		fbAddr:        fbAddr,
		width:         width,
		height:        height,
		pitch:         pitchPixels * (bpp >> 3),
		bytesPerPixel: bpp >> 3,
		bgr:           bgr,
		palette:       egaPalette(),
		defaultFg:     15,
		defaultBg:     0,
	}
}

// SetFont selects a bitmap font to be used by the console.
func (cons *FramebufferConsole) SetFont(f *font.Font) {
	if f == nil {
		return
	}

	cons.font = f
	cons.widthInChars = cons.width / f.GlyphWidth
	cons.heightInChars = cons.height / f.GlyphHeight
}

// Dimensions returns the console width and height in the specified dimension.
func (cons *FramebufferConsole) Dimensions(dim Dimension) (uint32, uint32) {
	switch dim {
	case Characters:
		return cons.widthInChars, cons.heightInChars
	default:
		return cons.width, cons.height
	}
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *FramebufferConsole) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the requested
// background color. Both x and y coordinates are 1-based.
func (cons *FramebufferConsole) Fill(x, y, width, height uint32, _, bg uint8) {
	if cons.font == nil || cons.widthInChars == 0 || cons.heightInChars == 0 {
		return
	}

	x, y, width, height = clipRect(x, y, width, height, cons.widthInChars, cons.heightInChars)

	var (
		clr         = cons.color(bg, cons.defaultBg)
		pX          = (x - 1) * cons.font.GlyphWidth
		pY          = (y - 1) * cons.font.GlyphHeight
		pW          = width * cons.font.GlyphWidth
		pH          = height * cons.font.GlyphHeight
		fbRowOffset = cons.fbOffset(pX, pY)
	)

	if pW == 0 || pH == 0 {
		return
	}

	// Paint the first row and replicate it to the rest of the region.
	for i, fbOffset := uint32(0), fbRowOffset; i < pW; i, fbOffset = i+1, fbOffset+cons.bytesPerPixel {
		cons.putPixel(fbOffset, clr)
	}

	var (
		rowBytes = mem.Size(pW * cons.bytesPerPixel)
		src      = uintptr(unsafe.Pointer(&cons.fb[fbRowOffset]))
	)
	for dst := src + uintptr(cons.pitch); pH > 1; pH, dst = pH-1, dst+uintptr(cons.pitch) {
		mem.Memcopy(src, dst, rowBytes)
	}
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *FramebufferConsole) Scroll(dir ScrollDir, lines uint32) {
	if cons.font == nil || lines == 0 || lines > cons.heightInChars {
		return
	}

	var (
		offset    = lines * cons.font.GlyphHeight * cons.pitch
		textBytes = cons.heightInChars * cons.font.GlyphHeight * cons.pitch
	)

	switch dir {
	case ScrollDirUp:
		copy(cons.fb[:textBytes-offset], cons.fb[offset:textBytes])
	case ScrollDirDown:
		for i := textBytes - 1; i >= offset; i-- {
			cons.fb[i] = cons.fb[i-offset]
		}
	}
}

// Write a char to the specified location. If fg or bg exceed the supported
// colors for this console, they will be set to their default value. Both x and
// y coordinates are 1-based. Characters without a glyph are rendered as '?'.
func (cons *FramebufferConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.widthInChars || y < 1 || y > cons.heightInChars || cons.font == nil {
		return
	}

	if uint32(ch) >= cons.font.NumGlyphs() {
		ch = '?'
	}

	var (
		fgColor     = cons.color(fg, cons.defaultFg)
		bgColor     = cons.color(bg, cons.defaultBg)
		fontOffset  = uint32(ch) * cons.font.BytesPerRow * cons.font.GlyphHeight
		fbRowOffset = cons.fbOffset((x-1)*cons.font.GlyphWidth, (y-1)*cons.font.GlyphHeight)
		fbOffset    uint32
		mask        uint8
	)

	for row := uint32(0); row < cons.font.GlyphHeight; row, fbRowOffset, fontOffset = row+1, fbRowOffset+cons.pitch, fontOffset+1 {
		fbOffset = fbRowOffset
		fontRowData := cons.font.Data[fontOffset]
		mask = 1 << 7
		for col := uint32(0); col < cons.font.GlyphWidth; col, fbOffset, mask = col+1, fbOffset+cons.bytesPerPixel, mask>>1 {
			// A font wider than 8 pixels continues in the next byte.
			if mask == 0 {
				fontOffset++
				fontRowData = cons.font.Data[fontOffset]
				mask = 1 << 7
			}

			if (fontRowData & mask) != 0 {
				cons.putPixel(fbOffset, fgColor)
			} else {
				cons.putPixel(fbOffset, bgColor)
			}
		}
	}
}

// color returns the palette entry at index or at fallback if index is out of
// range.
func (cons *FramebufferConsole) color(index, fallback uint8) color.RGBA {
	if int(index) >= len(cons.palette) {
		index = fallback
	}
	return cons.palette[index].(color.RGBA)
}

// putPixel stores c at fbOffset in the byte order of the framebuffer.
func (cons *FramebufferConsole) putPixel(fbOffset uint32, c color.RGBA) {
	if cons.bgr {
		cons.fb[fbOffset], cons.fb[fbOffset+1], cons.fb[fbOffset+2] = c.B, c.G, c.R
	} else {
		cons.fb[fbOffset], cons.fb[fbOffset+1], cons.fb[fbOffset+2] = c.R, c.G, c.B
	}

	if cons.bytesPerPixel == 4 {
		cons.fb[fbOffset+3] = 0
	}
}

// fbOffset returns the linear offset into the framebuffer that corresponds to
// the pixel at (x,y).
func (cons *FramebufferConsole) fbOffset(x, y uint32) uint32 {
	return (y * cons.pitch) + (x * cons.bytesPerPixel)
}

// Palette returns the active color palette for this console.
func (cons *FramebufferConsole) Palette() color.Palette {
	return cons.palette
}

// SetPaletteColor updates the color definition for the specified palette
// index. The framebuffer uses direct color so no DAC is programmed.
func (cons *FramebufferConsole) SetPaletteColor(index uint8, rgba color.RGBA) {
	if int(index) >= len(cons.palette) {
		return
	}

	cons.palette[index] = rgba
}

// DriverName returns the name of this driver.
func (cons *FramebufferConsole) DriverName() string {
	return "fb_console"
}

// DriverVersion returns the version of this driver.
func (cons *FramebufferConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit attaches the console to the framebuffer memory.
func (cons *FramebufferConsole) DriverInit(w io.Writer) *kernel.Error {
	if cons.bytesPerPixel != 3 && cons.bytesPerPixel != 4 {
		return errUnsupportedBpp
	}

	if cons.fbAddr == 0 {
		return errNoFramebuffer
	}

	fbSize := int(cons.height * cons.pitch)
	cons.fb = *(*[]uint8)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  fbSize,
		Cap:  fbSize,
		Data: cons.fbAddr,
	}))

	order := "RGB"
	if cons.bgr {
		order = "BGR"
	}
	kfmt.Fprintf(w, "%dx%d %d bpp %s framebuffer at 0x%x\n", cons.width, cons.height, cons.bytesPerPixel<<3, order, cons.fbAddr)

	return nil
}
