package feature

import (
	"image"

	"github.com/corona10/goimagehash"

	"github.com/p-hannemann/skin-lookup/internal/skin"
)

// hashBits is the bit length of the perceptual hash.
const hashBits = 64

// PerceptionHash returns the 64-bit DCT perceptual hash of the image.
func PerceptionHash(pix *image.NRGBA) (*goimagehash.ImageHash, error) {
	return goimagehash.PerceptionHash(pix)
}

// MaskedHash hashes the image with every mask-false pixel cleared to
// transparent black, so two textures restricted to the same mask hash the
// same observable content.
func MaskedHash(pix *image.NRGBA, mask *skin.Mask) (*goimagehash.ImageHash, error) {
	if mask == nil {
		return PerceptionHash(pix)
	}
	b := pix.Rect
	cleared := image.NewNRGBA(b)
	copy(cleared.Pix, pix.Pix)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.At(x, y) {
				continue
			}
			o := cleared.PixOffset(x, y)
			cleared.Pix[o] = 0
			cleared.Pix[o+1] = 0
			cleared.Pix[o+2] = 0
			cleared.Pix[o+3] = 0
		}
	}
	return goimagehash.PerceptionHash(cleared)
}

// HashDistance is the Hamming distance between two hashes normalized by the
// bit length.
func HashDistance(a, b *goimagehash.ImageHash) (float64, error) {
	d, err := a.Distance(b)
	if err != nil {
		return 0, err
	}
	return float64(d) / hashBits, nil
}
