package convert

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
)

// Palette is the three-ink palette: index 0 white, 1 black, 2 red.
var Palette = color.Palette{
	color.White,
	color.Black,
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

const (
	inkWhite uint8 = iota
	inkBlack
	inkRed
)

// Reduce maps every pixel of src onto Palette. Transparent pixels become
// white, dark pixels black and strongly red pixels red; everything else is
// treated as paper.
func Reduce(src image.Image) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(b, Palette)

	nrgba, ok := src.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(b)
		draw.Draw(nrgba, b, src, b.Min, draw.Src)
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := nrgba.Pix[(y-b.Min.Y)*nrgba.Stride:]
		out := dst.Pix[(y-b.Min.Y)*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4]
			out[x] = classify(color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]})
		}
	}
	return dst
}

// classify picks the ink for one pixel from its luma and how much red
// dominates green and blue.
func classify(c color.NRGBA) uint8 {
	if c.A < 128 {
		return inkWhite
	}
	r, g, b := int(c.R), int(c.G), int(c.B)
	luma := (299*r + 587*g + 114*b) / 1000
	redness := r - max(g, b)

	switch {
	case r > 128 && redness > 48:
		return inkRed
	case luma < 96:
		return inkBlack
	default:
		return inkWhite
	}
}

// ReducePNG rewrites the PNG at path in place as a three-ink paletted PNG.
func ReducePNG(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("convert: decode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".reduce-*.png")
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(tmp, Reduce(img)); err != nil {
		tmp.Close()
		return fmt.Errorf("convert: encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	return os.Rename(tmpName, path)
}
