package embedding

import (
	"context"
	"image/color"
	"math"
	"testing"
)

func TestMockEmbedderDeterministicOnPixels(t *testing.T) {
	e := NewMockEmbedder(32)
	defer e.Close()

	red := color.NRGBA{R: 200, A: 255}
	a, err := e.Embed(context.Background(), testImage(8, 8, red, "one.png"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(context.Background(), testImage(8, 8, red, "two.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("dimensions = %d, %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("identical pixels produced different embeddings at %d: %v vs %v", i, a[i], b[i])
		}
	}

	c, err := e.Embed(context.Background(), testImage(8, 8, color.NRGBA{B: 200, A: 255}, "three.png"))
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different pixels produced the same embedding")
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("embedding norm = %v, want 1", norm)
	}
}

func TestMockEmbedderDefaultDimensions(t *testing.T) {
	e := NewMockEmbedder(0)
	if e.Dimensions() != 512 {
		t.Errorf("default dimensions = %d", e.Dimensions())
	}
}
