package feature

import "github.com/p-hannemann/skin-lookup/pkg/utils"

const (
	ssimWindow = 11
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

// SSIMDistance computes mean structural similarity between two gray planes
// using uniform windows (clamped at the borders) and maps it to a distance
// in [0,1]. Summed-area tables keep it linear in the plane size.
func SSIMDistance(g1, g2 []float64, size int) float64 {
	if size <= 0 || len(g1) != size*size || len(g2) != size*size {
		return 1
	}
	s1 := integral(g1, size)
	s2 := integral(g2, size)
	s11 := integralProduct(g1, g1, size)
	s22 := integralProduct(g2, g2, size)
	s12 := integralProduct(g1, g2, size)

	half := ssimWindow / 2
	var total float64
	for y := 0; y < size; y++ {
		y0, y1 := y-half, y+half+1
		if y0 < 0 {
			y0 = 0
		}
		if y1 > size {
			y1 = size
		}
		for x := 0; x < size; x++ {
			x0, x1 := x-half, x+half+1
			if x0 < 0 {
				x0 = 0
			}
			if x1 > size {
				x1 = size
			}
			n := float64((y1 - y0) * (x1 - x0))
			mu1 := rectSum(s1, size, x0, y0, x1, y1) / n
			mu2 := rectSum(s2, size, x0, y0, x1, y1) / n
			v1 := rectSum(s11, size, x0, y0, x1, y1)/n - mu1*mu1
			v2 := rectSum(s22, size, x0, y0, x1, y1)/n - mu2*mu2
			cov := rectSum(s12, size, x0, y0, x1, y1)/n - mu1*mu2

			num := (2*mu1*mu2 + ssimC1) * (2*cov + ssimC2)
			den := (mu1*mu1 + mu2*mu2 + ssimC1) * (v1 + v2 + ssimC2)
			total += num / den
		}
	}
	ssim := total / float64(size*size)
	return utils.Clamp01((1 - ssim) / 2)
}

// integral builds a (size+1)^2 summed-area table.
func integral(v []float64, size int) []float64 {
	s := make([]float64, (size+1)*(size+1))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			s[(y+1)*(size+1)+x+1] = v[y*size+x] +
				s[y*(size+1)+x+1] + s[(y+1)*(size+1)+x] - s[y*(size+1)+x]
		}
	}
	return s
}

func integralProduct(a, b []float64, size int) []float64 {
	s := make([]float64, (size+1)*(size+1))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			s[(y+1)*(size+1)+x+1] = a[y*size+x]*b[y*size+x] +
				s[y*(size+1)+x+1] + s[(y+1)*(size+1)+x] - s[y*(size+1)+x]
		}
	}
	return s
}

func rectSum(s []float64, size, x0, y0, x1, y1 int) float64 {
	w := size + 1
	return s[y1*w+x1] - s[y0*w+x1] - s[y1*w+x0] + s[y0*w+x0]
}
