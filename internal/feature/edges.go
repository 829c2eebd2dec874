package feature

import "math"

// sobelThreshold is the gradient magnitude above which a pixel counts as an
// edge, on the 0-255 luma scale.
const sobelThreshold = 128.0

// EdgeDensity returns the fraction of interior pixels of a size x size gray
// plane whose Sobel gradient magnitude exceeds the edge threshold. Result in
// [0,1].
func EdgeDensity(plane []float64, size int) float64 {
	if size < 3 || len(plane) != size*size {
		return 0
	}
	edges := 0
	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			i := y*size + x
			gx := -plane[i-size-1] + plane[i-size+1] +
				-2*plane[i-1] + 2*plane[i+1] +
				-plane[i+size-1] + plane[i+size+1]
			gy := -plane[i-size-1] - 2*plane[i-size] - plane[i-size+1] +
				plane[i+size-1] + 2*plane[i+size] + plane[i+size+1]
			if math.Hypot(gx, gy) > sobelThreshold {
				edges++
			}
		}
	}
	interior := (size - 2) * (size - 2)
	return float64(edges) / float64(interior)
}

// EdgeDistance compares two edge densities. Result in [0,1].
func EdgeDistance(d1, d2 float64) float64 {
	return math.Abs(d1 - d2)
}

// TextureDistance combines edge density and contrast differences, halved so
// the result lies in [0,1].
func TextureDistance(edge1, contrast1, edge2, contrast2 float64) float64 {
	return (math.Abs(edge1-edge2) + math.Abs(contrast1-contrast2)/255.0) / 2
}
