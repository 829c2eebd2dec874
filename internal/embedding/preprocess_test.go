package embedding

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

func testImage(w, h int, c color.NRGBA, path string) *imageio.Image {
	pix := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix.SetNRGBA(x, y, c)
		}
	}
	return imageio.FromNRGBA(pix, path)
}

func TestPreprocessNCHW(t *testing.T) {
	size := 8
	im := testImage(16, 16, color.NRGBA{R: 255, A: 255}, "")
	out := PreprocessNCHW(im, size)
	if len(out) != 3*size*size {
		t.Fatalf("tensor length = %d, want %d", len(out), 3*size*size)
	}

	want := [3]float32{
		(1.0 - channelMean[0]) / channelStd[0],
		(0.0 - channelMean[1]) / channelStd[1],
		(0.0 - channelMean[2]) / channelStd[2],
	}
	plane := size * size
	for c := 0; c < 3; c++ {
		for i := 0; i < plane; i++ {
			got := out[c*plane+i]
			if math.Abs(float64(got-want[c])) > 1e-3 {
				t.Fatalf("channel %d index %d = %v, want %v", c, i, got, want[c])
			}
		}
	}
}

func TestPreprocessNCHWSameSize(t *testing.T) {
	size := 8
	im := testImage(size, size, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, "")
	out := PreprocessNCHW(im, size)
	got := out[0]
	want := (float32(10)/255 - channelMean[0]) / channelStd[0]
	if math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("red channel = %v, want %v", got, want)
	}
}
