package skin

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

// Texture is a reconstructed (or passed-through) 64x64 atlas texture together
// with the per-pixel visibility of its source.
type Texture struct {
	Pix  *image.NRGBA
	Mask *Mask
}

// Convert turns an arbitrary input image into a 64x64 atlas texture.
//
// A 64x64 input passes through fully visible. A 64x32 legacy texture is
// placed in the top half, with the extended bottom half not visible. Anything
// else is treated as a character render: each face in the projection table is
// cut from its proportional source rectangle, scaled to its atlas rectangle,
// and marked visible; faces the projection cannot observe stay fully
// transparent and mask-false.
func Convert(im *imageio.Image) *Texture {
	w, h := im.Width(), im.Height()
	if w == TextureSize && h == TextureSize {
		pix := image.NewNRGBA(image.Rect(0, 0, TextureSize, TextureSize))
		copy(pix.Pix, im.Pix.Pix)
		m := &Mask{}
		for i := range m {
			m[i] = true
		}
		return &Texture{Pix: pix, Mask: m}
	}
	if w == TextureSize && h == LegacyHeight {
		return ExpandLegacy(im.Pix)
	}
	return reconstruct(im.Pix)
}

// ExpandLegacy places a 64x32 texture into the top half of a 64x64 plane.
// The bottom half (extension-layout limb slots) is not visible.
func ExpandLegacy(pix *image.NRGBA) *Texture {
	out := image.NewNRGBA(image.Rect(0, 0, TextureSize, TextureSize))
	draw.Draw(out, image.Rect(0, 0, TextureSize, LegacyHeight), pix, pix.Rect.Min, draw.Src)
	m := &Mask{}
	for y := 0; y < LegacyHeight; y++ {
		for x := 0; x < TextureSize; x++ {
			m.Set(x, y, true)
		}
	}
	return &Texture{Pix: out, Mask: m}
}

func reconstruct(render *image.NRGBA) *Texture {
	w := render.Rect.Dx()
	h := render.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, TextureSize, TextureSize))
	mask := &Mask{}

	for _, face := range renderFaces {
		src := clampSourceRect(face.src, w, h)
		if src.Empty() {
			continue
		}
		region := render.SubImage(src.Add(render.Rect.Min))
		scaled := resize.Resize(uint(face.dst.W()), uint(face.dst.H()), region, resize.Lanczos3)
		draw.Draw(out, face.dst.Std(), scaled, scaled.Bounds().Min, draw.Src)
		markRect(mask, face.dst)
	}
	return &Texture{Pix: out, Mask: mask}
}

func clampSourceRect(f fracRect, w, h int) image.Rectangle {
	x0 := clampInt(int(f.x0*float64(w)), 0, w)
	x1 := clampInt(int(f.x1*float64(w)), 0, w)
	y0 := clampInt(int(f.y0*float64(h)), 0, h)
	y1 := clampInt(int(f.y1*float64(h)), 0, h)
	return image.Rect(x0, y0, x1, y1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
