package embedding

import (
	"context"
	"math"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
	"github.com/p-hannemann/skin-lookup/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the pixel data so that identical images always get the same
// embedding, regardless of where they were loaded from.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on a pixel hash.
func (e *MockEmbedder) Embed(ctx context.Context, im *imageio.Image) ([]float32, error) {
	h := hashPixels(im.Pix.Pix)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

func hashPixels(pix []uint8) int {
	h := 0
	for _, b := range pix {
		h = 31*h + int(b)
	}
	if h < 0 {
		h = -h
	}
	return h
}
