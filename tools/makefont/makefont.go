package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"go/parser"
	"go/printer"
	"go/token"
	"image"
	"os"

	_ "image/gif"
	_ "image/png"
)

// Glyph sheets are laid out as a grid of glyphsPerRow glyphs per row.
const glyphsPerRow = 16

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[makefont] error: %s\n", err.Error())
	os.Exit(1)
}

// glyphBitmap converts the glyph sheet in img to a bitmap with one bit per
// pixel, most significant bit first. Pixels whose luminance is at or above
// threshold are set.
func glyphBitmap(img image.Image, glyphW, glyphH int, threshold uint8) ([]byte, int, error) {
	bounds := img.Bounds()
	if glyphW <= 0 || glyphH <= 0 {
		return nil, 0, errors.New("glyph dimensions must be positive")
	}
	if bounds.Dx() != glyphW*glyphsPerRow || bounds.Dy()%glyphH != 0 {
		return nil, 0, fmt.Errorf("glyph sheet must be %d glyphs wide and a multiple of %d pixels high; got %dx%d", glyphsPerRow, glyphH, bounds.Dx(), bounds.Dy())
	}

	var (
		bytesPerRow = (glyphW + 7) / 8
		numGlyphs   = glyphsPerRow * (bounds.Dy() / glyphH)
		data        = make([]byte, 0, numGlyphs*glyphH*bytesPerRow)
	)

	for glyph := 0; glyph < numGlyphs; glyph++ {
		originX := bounds.Min.X + (glyph%glyphsPerRow)*glyphW
		originY := bounds.Min.Y + (glyph/glyphsPerRow)*glyphH

		for y := 0; y < glyphH; y++ {
			row := make([]byte, bytesPerRow)
			for x := 0; x < glyphW; x++ {
				r, g, b, _ := img.At(originX+x, originY+y).RGBA()
				// Rec. 601 luma on 16-bit channels
				luma := (299*r + 587*g + 114*b) / 1000 >> 8
				if uint8(luma) >= threshold {
					row[x/8] |= 0x80 >> uint(x%8)
				}
			}
			data = append(data, row...)
		}
	}

	return data, bytesPerRow, nil
}

func genFontFile(img image.Image, fontVar string, glyphW, glyphH int, threshold uint8, recW, recH, priority uint) (string, error) {
	data, bytesPerRow, err := glyphBitmap(img, glyphW, glyphH, threshold)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	// Output header
	fmt.Fprintf(&buf, `
// Code generated by makefont. DO NOT EDIT.

package font

var %s = &Font{
Name: %q,
GlyphWidth: %d,
GlyphHeight: %d,
RecommendedWidth: %d,
RecommendedHeight: %d,
Priority: %d,
BytesPerRow: %d,
`, fontVar, fontVar, glyphW, glyphH, recW, recH, priority, bytesPerRow)

	// Output glyph data, one glyph per line
	fmt.Fprint(&buf, "Data: []byte{\n")
	glyphBytes := bytesPerRow * glyphH
	for i, b := range data {
		if i != 0 && i%glyphBytes == 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "0x%02x, ", b)
	}
	fmt.Fprint(&buf, "\n},\n}\n")

	// Footer
	fmt.Fprintf(&buf, "func init(){\navailableFonts = append(availableFonts, %s)\n}\n", fontVar)

	return buf.String(), nil
}

func runTool() error {
	fontVar := flag.String("var-name", "font", "the name of the variable containing the font; also used as the font name")
	glyphW := flag.Int("glyph-width", 8, "the width of each glyph in pixels")
	glyphH := flag.Int("glyph-height", 8, "the height of each glyph in pixels")
	threshold := flag.Uint("threshold", 128, "the minimum luminance (0-255) of a set pixel")
	recW := flag.Uint("rec-width", 640, "the recommended console width in pixels")
	recH := flag.Uint("rec-height", 480, "the recommended console height in pixels")
	priority := flag.Uint("priority", 10, "the font priority (lower is preferred)")
	output := flag.String("out", "-", "a file to write the generated font or - to output to STDOUT")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "makefont: convert a png or gif glyph sheet to a console bitmap font\n\n")
		fmt.Fprint(os.Stderr, "Usage: makefont [options] image\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		exit(errors.New("missing glyph sheet argument"))
	}
	if *threshold > 255 {
		exit(errors.New("threshold must be in the 0-255 range"))
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}

	fontData, err := genFontFile(img, *fontVar, *glyphW, *glyphH, uint8(*threshold), *recW, *recH, *priority)
	if err != nil {
		return err
	}

	// Pretty-print generated file using go/printer
	fSet := token.NewFileSet()
	astFile, err := parser.ParseFile(fSet, "", fontData, parser.ParseComments)
	if err != nil {
		return err
	}

	switch *output {
	case "-":
		printer.Fprint(os.Stdout, fSet, astFile)
	default:
		fOut, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer fOut.Close()

		printer.Fprint(fOut, fSet, astFile)
	}

	return nil
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
