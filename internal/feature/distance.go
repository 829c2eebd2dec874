package feature

import (
	"image"
	"math"

	"github.com/p-hannemann/skin-lookup/internal/skin"
	"github.com/p-hannemann/skin-lookup/pkg/utils"
)

// CosineDistance maps the cosine of two vectors into a distance in [0,1]
// (cosine 1 is 0, cosine -1 is 1). Length mismatch or a single zero-norm
// side yields 1; two zero vectors are treated as identical.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		if na == 0 && nb == 0 {
			return 0
		}
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return utils.Clamp01((1 - cos) / 2)
}

// PixelDistance is the RGB root-mean-square error between two equally sized
// textures, normalized to [0,1], over pixels that are mask-true and opaque on
// both sides. No comparable pixels yields 1.
func PixelDistance(a, b *image.NRGBA, mask *skin.Mask) float64 {
	if a.Rect.Dx() != b.Rect.Dx() || a.Rect.Dy() != b.Rect.Dy() {
		return 1
	}
	var sum float64
	n := 0
	for y := 0; y < a.Rect.Dy(); y++ {
		for x := 0; x < a.Rect.Dx(); x++ {
			if !visible(a, mask, x, y) || !visible(b, mask, x, y) {
				continue
			}
			oa := a.PixOffset(x, y)
			ob := b.PixOffset(x, y)
			dr := float64(a.Pix[oa]) - float64(b.Pix[ob])
			dg := float64(a.Pix[oa+1]) - float64(b.Pix[ob+1])
			db := float64(a.Pix[oa+2]) - float64(b.Pix[ob+2])
			sum += (dr*dr + dg*dg + db*db) / 3
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return math.Sqrt(sum/float64(n)) / 255.0
}

// DimensionDistance scores how compatible two image sizes are: identical
// dimensions or two canonical skin textures cost nothing, anything else a
// flat penalty.
func DimensionDistance(w1, h1, w2, h2 int) float64 {
	if w1 == w2 && h1 == h2 {
		return 0
	}
	if skin.IsCanonical(w1, h1) && skin.IsCanonical(w2, h2) {
		return 0
	}
	return 0.5
}
