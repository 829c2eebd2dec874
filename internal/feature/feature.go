// Package feature computes the per-image descriptors the matching algorithms
// score with: dominant color palettes, joint RGB histograms, perceptual
// hashes, grayscale planes with edge and contrast statistics, and the
// distance functions between them. Every distance is normalized to [0,1]
// with 0 meaning identical.
package feature

import (
	"image"
	"math"

	"github.com/nfnt/resize"

	"github.com/p-hannemann/skin-lookup/internal/skin"
)

const (
	// HistogramBins is the per-channel bin count of the joint RGB histogram.
	// One binning is used everywhere a histogram is scored so that distances
	// from different algorithms stay comparable.
	HistogramBins = 16
	// PaletteSize is how many dominant colors are kept per image.
	PaletteSize = 12
	// GraySize is the side of the grayscale plane used by texture metrics.
	GraySize = 64
)

// GrayPlane scales img to size x size and converts it to ITU-R 601 luma,
// one float64 per pixel in [0,255], row-major.
func GrayPlane(img image.Image, size int) []float64 {
	small := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	plane := make([]float64, size*size)
	b := small.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := small.At(x, y).RGBA()
			plane[i] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			i++
		}
	}
	return plane
}

// Contrast returns the standard deviation of a gray plane, in [0,255].
func Contrast(plane []float64) float64 {
	if len(plane) == 0 {
		return 0
	}
	var sum float64
	for _, v := range plane {
		sum += v
	}
	mean := sum / float64(len(plane))
	var sq float64
	for _, v := range plane {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(plane)))
}

// visible reports whether the pixel at (x, y) participates in color
// statistics: inside the mask (nil mask = everywhere) and not fully
// transparent.
func visible(pix *image.NRGBA, mask *skin.Mask, x, y int) bool {
	if mask != nil && !mask.At(x, y) {
		return false
	}
	return pix.Pix[pix.PixOffset(x, y)+3] != 0
}
