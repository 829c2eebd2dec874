// Package embedding produces vector embeddings for images via ONNX and caching.
package embedding

import (
	"context"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

// Embedder produces vector embeddings for decoded images.
type Embedder interface {
	Embed(ctx context.Context, im *imageio.Image) ([]float32, error)
	Dimensions() int
	Close() error
}
