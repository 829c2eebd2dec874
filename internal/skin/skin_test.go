package skin

import (
	"image"
	"image/color"
	"testing"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

func fillRect(pix *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			pix.SetNRGBA(x, y, c)
		}
	}
}

func TestVisibleFaceRectsDisjointAndInBounds(t *testing.T) {
	rects := VisibleFaceRects()
	if len(rects) != 9 {
		t.Fatalf("face count = %d, want 9", len(rects))
	}
	for i, r := range rects {
		if r.X0 < 0 || r.Y0 < 0 || r.X1 > TextureSize || r.Y1 > TextureSize {
			t.Errorf("rect %d out of bounds: %+v", i, r)
		}
		if r.W() <= 0 || r.H() <= 0 {
			t.Errorf("rect %d degenerate: %+v", i, r)
		}
		for j := i + 1; j < len(rects); j++ {
			if r.Std().Overlaps(rects[j].Std()) {
				t.Errorf("rects %d and %d overlap: %+v %+v", i, j, r, rects[j])
			}
		}
	}
}

func TestMaskBasics(t *testing.T) {
	m := &Mask{}
	if m.Count() != 0 {
		t.Errorf("empty mask count = %d", m.Count())
	}
	m.Set(3, 5, true)
	if !m.At(3, 5) {
		t.Error("set pixel not visible")
	}
	if m.At(-1, 0) || m.At(0, 64) {
		t.Error("out-of-range should not be visible")
	}
	m.Set(-1, 0, true)
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}
}

func TestMaskImage(t *testing.T) {
	m := &Mask{}
	m.Set(4, 7, true)
	img := m.Image()
	if img.Rect.Dx() != TextureSize || img.Rect.Dy() != TextureSize {
		t.Fatalf("bounds = %v", img.Rect)
	}
	if got := img.NRGBAAt(4, 7); got.R != 255 || got.A != 255 {
		t.Errorf("visible pixel = %+v, want white", got)
	}
	if got := img.NRGBAAt(0, 0); got.R != 0 || got.A != 255 {
		t.Errorf("hidden pixel = %+v, want black", got)
	}
}

func TestIntersect(t *testing.T) {
	a := &Mask{}
	a.Set(1, 1, true)
	a.Set(2, 2, true)
	b := &Mask{}
	b.Set(2, 2, true)
	b.Set(3, 3, true)

	got := Intersect(a, b)
	if !got.At(2, 2) {
		t.Error("common pixel lost")
	}
	if got.At(1, 1) || got.At(3, 3) {
		t.Error("one-sided pixels should be dropped")
	}

	if n := Intersect(a, nil).Count(); n != a.Count() {
		t.Errorf("nil operand should be fully visible: count %d", n)
	}
	if n := Intersect(nil, nil).Count(); n != TextureSize*TextureSize {
		t.Errorf("both nil should be all-visible: count %d", n)
	}
}

func TestConvertPassThrough64x64(t *testing.T) {
	pix := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	fillRect(pix, image.Rect(0, 0, 64, 64), color.NRGBA{R: 30, G: 90, B: 200, A: 255})
	tex := Convert(imageio.FromNRGBA(pix, "skin"))

	if tex.Mask.Count() != 64*64 {
		t.Errorf("pass-through mask count = %d, want full", tex.Mask.Count())
	}
	got := tex.Pix.NRGBAAt(10, 10)
	if got.R != 30 || got.G != 90 || got.B != 200 {
		t.Errorf("pixel changed: %+v", got)
	}

	// The copy must be independent of the input buffer.
	pix.SetNRGBA(10, 10, color.NRGBA{A: 255})
	if tex.Pix.NRGBAAt(10, 10).R != 30 {
		t.Error("texture shares memory with input")
	}
}

func TestConvertLegacy64x32(t *testing.T) {
	pix := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	fillRect(pix, image.Rect(0, 0, 64, 32), color.NRGBA{R: 250, G: 10, B: 10, A: 255})
	tex := Convert(imageio.FromNRGBA(pix, "legacy"))

	if got := tex.Mask.Count(); got != 64*32 {
		t.Errorf("legacy mask count = %d, want %d", got, 64*32)
	}
	if !tex.Mask.At(0, 31) || tex.Mask.At(0, 32) {
		t.Error("mask should cover exactly the top half")
	}
	if tex.Pix.NRGBAAt(5, 5).R != 250 {
		t.Errorf("top half pixel = %+v", tex.Pix.NRGBAAt(5, 5))
	}
	if tex.Pix.NRGBAAt(5, 40).A != 0 {
		t.Error("bottom half should stay transparent")
	}
}

// A render where every projectable face band is painted a distinct solid
// color must reconstruct those colors into exactly the visible atlas
// rectangles, with everything else transparent and mask-false.
func TestConvertRenderFullyVisible(t *testing.T) {
	const w, h = 200, 200
	render := image.NewNRGBA(image.Rect(0, 0, w, h))
	// Paint generously around each source band so edge sampling stays inside
	// the face color.
	faces := []struct {
		region image.Rectangle
		c      color.NRGBA
	}{
		{image.Rect(60, 0, 140, 30), color.NRGBA{R: 10, G: 200, B: 10, A: 255}},    // head top band
		{image.Rect(88, 30, 140, 70), color.NRGBA{R: 200, G: 10, B: 10, A: 255}},   // head front
		{image.Rect(60, 30, 88, 70), color.NRGBA{R: 10, G: 10, B: 200, A: 255}},    // head right side
		{image.Rect(85, 70, 115, 140), color.NRGBA{R: 200, G: 200, B: 10, A: 255}}, // body front
		{image.Rect(70, 70, 85, 140), color.NRGBA{R: 10, G: 200, B: 200, A: 255}},  // body right side
		{image.Rect(55, 70, 70, 140), color.NRGBA{R: 200, G: 10, B: 200, A: 255}},  // right arm
		{image.Rect(130, 70, 145, 140), color.NRGBA{R: 90, G: 90, B: 90, A: 255}},  // left arm
		{image.Rect(75, 140, 100, 195), color.NRGBA{R: 150, G: 80, B: 20, A: 255}}, // right leg
		{image.Rect(100, 140, 125, 195), color.NRGBA{R: 20, G: 80, B: 150, A: 255}}, // left leg
	}
	for _, f := range faces {
		fillRect(render, f.region, f.c)
	}

	tex := Convert(imageio.FromNRGBA(render, "render"))

	want := VisibleFaceMask()
	for y := 0; y < TextureSize; y++ {
		for x := 0; x < TextureSize; x++ {
			if tex.Mask.At(x, y) != want.At(x, y) {
				t.Fatalf("mask mismatch at (%d,%d): got %v", x, y, tex.Mask.At(x, y))
			}
			if !want.At(x, y) && tex.Pix.NRGBAAt(x, y).A != 0 {
				t.Fatalf("occluded pixel (%d,%d) not transparent", x, y)
			}
		}
	}

	// Spot-check reconstructed colors at face rect centers against the source.
	expect := []struct {
		x, y int
		c    color.NRGBA
	}{
		{12, 4, faces[0].c},  // head top
		{12, 12, faces[1].c}, // head front
		{4, 12, faces[2].c},  // head right
		{24, 26, faces[3].c}, // body front
		{18, 26, faces[4].c}, // body right
		{46, 26, faces[5].c}, // right arm front
		{38, 58, faces[6].c}, // left arm front
		{6, 26, faces[7].c},  // right leg front
		{22, 58, faces[8].c}, // left leg front
	}
	const tol = 4
	for _, e := range expect {
		got := tex.Pix.NRGBAAt(e.x, e.y)
		if absInt(int(got.R)-int(e.c.R)) > tol ||
			absInt(int(got.G)-int(e.c.G)) > tol ||
			absInt(int(got.B)-int(e.c.B)) > tol {
			t.Errorf("pixel (%d,%d) = %+v, want about %+v", e.x, e.y, got, e.c)
		}
	}
}

func TestConvertTinyRender(t *testing.T) {
	pix := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	// Degenerate source rects must be skipped, not crash.
	tex := Convert(imageio.FromNRGBA(pix, "tiny"))
	if tex.Pix.Rect.Dx() != TextureSize || tex.Pix.Rect.Dy() != TextureSize {
		t.Errorf("texture size = %dx%d", tex.Pix.Rect.Dx(), tex.Pix.Rect.Dy())
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
