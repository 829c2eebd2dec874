package embedding

import (
	"github.com/nfnt/resize"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

// Channel statistics the bundled feature networks were trained with (ImageNet).
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// PreprocessNCHW scales im to size x size and lays it out as a 1x3xSxS
// float32 tensor, channels first, each channel normalized with the network's
// training statistics. Alpha is dropped.
func PreprocessNCHW(im *imageio.Image, size int) []float32 {
	scaled := im.Pix
	if im.Width() != size || im.Height() != size {
		scaled = imageio.ToNRGBA(resize.Resize(uint(size), uint(size), im.Pix, resize.Bilinear))
	}
	out := make([]float32, 3*size*size)
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			base := scaled.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float32(scaled.Pix[base+c]) / 255.0
				out[c*plane+y*size+x] = (v - channelMean[c]) / channelStd[c]
			}
		}
	}
	return out
}
