// Package font contains bitmap fonts that can be used by framebuffer
// consoles.
package font

var (
	// The list of available fonts.
	availableFonts []*Font
)

// Font describes a bitmap font that can be used by a console device.
type Font struct {
	// The name of the font
	Name string

	// The width of each glyph in pixels.
	GlyphWidth uint32

	// The height of each glyph in pixels.
	GlyphHeight uint32

	// The recommended console resolution for this font.
	RecommendedWidth  uint32
	RecommendedHeight uint32

	// Font priority (lower is better). When auto-detecting a font to use,
	// the font with the lowest priority will be preferred.
	Priority uint32

	// The number of bytes describing a row in a glyph.
	BytesPerRow uint32

	// The font bitmap. Each character consists of BytesPerRow * Height
	// bytes where each bit indicates whether a pixel should be set to the
	// foreground or the background color. The most significant bit of
	// each byte is the leftmost pixel.
	Data []byte
}

// NumGlyphs returns the number of glyphs stored in the font bitmap.
func (f *Font) NumGlyphs() uint32 {
	glyphSize := f.BytesPerRow * f.GlyphHeight
	if glyphSize == 0 {
		return 0
	}
	return uint32(len(f.Data)) / glyphSize
}

// FindByName looks up a font instance by name. If the font is not found then
// the function returns nil.
func FindByName(name string) *Font {
	for _, f := range availableFonts {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// BestFit returns the best font from the available font list given the
// specified console dimensions. If multiple fonts match the dimension criteria
// then their priority attribute is used to select one.
//
// For each font, the score is the sum of the absolute differences between
// the font's recommended dimensions and the console dimensions. A font with a
// lower score replaces the current best font; on a tie the font with the
// lower priority value wins.
func BestFit(consoleWidth, consoleHeight uint32) *Font {
	var (
		best      *Font
		bestDelta uint32
	)

	for _, f := range availableFonts {
		absDelta := absDiff(f.RecommendedWidth, consoleWidth) + absDiff(f.RecommendedHeight, consoleHeight)

		if best == nil {
			best = f
			bestDelta = absDelta
			continue
		}

		if best.Priority < f.Priority || absDelta > bestDelta {
			continue
		}

		best = f
		bestDelta = absDelta
	}

	return best
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
