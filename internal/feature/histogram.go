package feature

import (
	"image"

	"github.com/p-hannemann/skin-lookup/internal/skin"
	"github.com/p-hannemann/skin-lookup/pkg/utils"
)

const chiSquareEps = 1e-10

// Histogram builds the joint RGB histogram (HistogramBins per channel) over
// the visible pixels, normalized to sum 1. A nil mask means the whole image.
// An image with no visible pixels yields an all-zero histogram.
func Histogram(pix *image.NRGBA, mask *skin.Mask) []float64 {
	h := make([]float64, HistogramBins*HistogramBins*HistogramBins)
	count := 0
	b := pix.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !visible(pix, mask, x, y) {
				continue
			}
			o := pix.PixOffset(x, y)
			idx := int(pix.Pix[o]>>4)*HistogramBins*HistogramBins +
				int(pix.Pix[o+1]>>4)*HistogramBins +
				int(pix.Pix[o+2]>>4)
			h[idx]++
			count++
		}
	}
	if count > 0 {
		inv := 1.0 / float64(count)
		for i := range h {
			h[i] *= inv
		}
	}
	return h
}

// HistogramDistance is the symmetric chi-square distance between two
// normalized histograms, halved so the result lies in [0,1].
func HistogramDistance(h1, h2 []float64) float64 {
	if len(h1) != len(h2) {
		return 1
	}
	var chi float64
	for i := range h1 {
		d := h1[i] - h2[i]
		if d == 0 {
			continue
		}
		chi += d * d / (h1[i] + h2[i] + chiSquareEps)
	}
	return utils.Clamp01(chi / 2)
}
