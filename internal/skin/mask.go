package skin

import (
	"image"
	"image/color"
)

// Mask is a per-pixel visibility map over a reconstructed 64x64 texture.
// True marks pixels that were observable in the source projection.
type Mask [TextureSize * TextureSize]bool

// At reports visibility at (x, y). Out-of-range coordinates are not visible.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= TextureSize || y >= TextureSize {
		return false
	}
	return m[y*TextureSize+x]
}

// Set marks visibility at (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= TextureSize || y >= TextureSize {
		return
	}
	m[y*TextureSize+x] = v
}

// Count returns the number of visible pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Image renders the mask as a black-and-white picture, white where visible.
// Used by the convert command's mask output.
func (m *Mask) Image() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, TextureSize, TextureSize))
	for y := 0; y < TextureSize; y++ {
		for x := 0; x < TextureSize; x++ {
			c := color.NRGBA{A: 255}
			if m.At(x, y) {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// Intersect returns a new mask visible only where both a and b are visible.
// A nil operand counts as fully visible.
func Intersect(a, b *Mask) *Mask {
	switch {
	case a == nil && b == nil:
		out := &Mask{}
		for i := range out {
			out[i] = true
		}
		return out
	case a == nil:
		out := *b
		return &out
	case b == nil:
		out := *a
		return &out
	}
	out := &Mask{}
	for i := range out {
		out[i] = a[i] && b[i]
	}
	return out
}
