// Package skin models the 64x64 character texture atlas and reconstructs flat
// textures from 3D character renders.
package skin

import "image"

const (
	// TextureSize is the side of the canonical square texture atlas.
	TextureSize = 64
	// LegacyHeight is the height of the pre-extension texture layout.
	LegacyHeight = 32
)

// IsCanonical reports whether w x h is one of the two canonical texture sizes.
func IsCanonical(w, h int) bool {
	return w == TextureSize && (h == TextureSize || h == LegacyHeight)
}

// Rect is a pixel rectangle in atlas coordinates, min inclusive, max exclusive.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// W returns the rectangle width.
func (r Rect) W() int { return r.X1 - r.X0 }

// H returns the rectangle height.
func (r Rect) H() int { return r.Y1 - r.Y0 }

// Std returns the equivalent image.Rectangle.
func (r Rect) Std() image.Rectangle { return image.Rect(r.X0, r.Y0, r.X1, r.Y1) }

// fracRect is a rectangle in proportional render coordinates, each side in [0,1]
// relative to the render's width and height. Values outside [0,1] reach beyond
// the torso band (arm strips) and are clamped against the render bounds.
type fracRect struct {
	x0, y0, x1, y1 float64
}

// faceMapping ties one observable model face to its source region in the
// canonical render projection and its fixed destination in the atlas.
type faceMapping struct {
	name string
	src  fracRect
	dst  Rect
}

// renderFaces is the static projection table. The canonical render is a
// front view rotated slightly toward the character's right, so the visible
// faces are the fronts, the right-side strips, and the head top. The
// character bands sit at rows 5-35% (head), 35-70% (torso), 70-95% (legs),
// columns 35-65%, with arm strips just outside the torso columns.
var renderFaces = []faceMapping{
	{"head-top", fracRect{0.44, 0.05, 0.56, 0.14}, Rect{8, 0, 16, 8}},
	{"head-front", fracRect{0.44, 0.17, 0.56, 0.29}, Rect{8, 8, 16, 16}},
	{"head-right", fracRect{0.35, 0.17, 0.44, 0.29}, Rect{0, 8, 8, 16}},
	{"body-front", fracRect{0.425, 0.385, 0.575, 0.70}, Rect{20, 20, 28, 32}},
	{"body-right", fracRect{0.35, 0.385, 0.425, 0.70}, Rect{16, 20, 20, 32}},
	{"right-arm-front", fracRect{0.305, 0.385, 0.35, 0.70}, Rect{44, 20, 48, 32}},
	{"left-arm-front", fracRect{0.65, 0.385, 0.695, 0.70}, Rect{36, 52, 40, 64}},
	{"right-leg-front", fracRect{0.41, 0.70, 0.47, 0.95}, Rect{4, 20, 8, 32}},
	{"left-leg-front", fracRect{0.53, 0.70, 0.59, 0.95}, Rect{20, 52, 24, 64}},
}

// VisibleFaceRects returns the atlas rectangles the canonical projection can
// observe. The returned slice is a copy.
func VisibleFaceRects() []Rect {
	out := make([]Rect, len(renderFaces))
	for i, f := range renderFaces {
		out[i] = f.dst
	}
	return out
}

// VisibleFaceMask returns a mask that is true over exactly the atlas
// rectangles of VisibleFaceRects.
func VisibleFaceMask() *Mask {
	m := &Mask{}
	for _, f := range renderFaces {
		markRect(m, f.dst)
	}
	return m
}

func markRect(m *Mask, r Rect) {
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			m.Set(x, y, true)
		}
	}
}
