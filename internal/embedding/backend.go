package embedding

import (
	"fmt"
	"os"
	"sync"

	"github.com/p-hannemann/skin-lookup/internal/config"
)

// Variant selects one of the bundled feature networks.
type Variant string

const (
	// VariantSmall is the 512-dimension network tuned for speed.
	VariantSmall Variant = "small"
	// VariantDeep is the 2048-dimension network tuned for recall.
	VariantDeep Variant = "deep"
)

// Backend lazily loads the ONNX feature networks and hands out one Embedder
// per variant. Loading happens on first use so that algorithms that never
// embed do not pay for model startup.
type Backend struct {
	mu    sync.Mutex
	slots map[Variant]*backendSlot
}

type backendSlot struct {
	modelPath  string
	dimensions int
	inputSize  int
	cacheSize  int
	embedder   Embedder
	err        error
	tried      bool
}

// NewBackend builds a backend for the two configured variants. No model is
// loaded yet.
func NewBackend(cfg config.EmbeddingConfig) *Backend {
	return &Backend{
		slots: map[Variant]*backendSlot{
			VariantSmall: {
				modelPath:  cfg.SmallModelPath,
				dimensions: cfg.SmallDimensions,
				inputSize:  cfg.InputSize,
				cacheSize:  cfg.CacheSize,
			},
			VariantDeep: {
				modelPath:  cfg.DeepModelPath,
				dimensions: cfg.DeepDimensions,
				inputSize:  cfg.InputSize,
				cacheSize:  cfg.CacheSize,
			},
		},
	}
}

// Embedder returns the embedder for variant, loading the model on first call.
// A failed load is remembered and returned on subsequent calls.
func (b *Backend) Embedder(variant Variant) (Embedder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot, ok := b.slots[variant]
	if !ok {
		return nil, fmt.Errorf("unknown embedding variant %q", variant)
	}
	if slot.tried {
		return slot.embedder, slot.err
	}
	slot.tried = true

	if _, err := os.Stat(slot.modelPath); err != nil {
		slot.err = fmt.Errorf("feature model not found at %s: %w", slot.modelPath, err)
		return nil, slot.err
	}
	embedder, err := NewONNXEmbedder(slot.modelPath, slot.dimensions, slot.inputSize, slot.cacheSize)
	if err != nil {
		slot.err = fmt.Errorf("failed to load feature model %s: %w", slot.modelPath, err)
		return nil, slot.err
	}
	slot.embedder = embedder
	return slot.embedder, nil
}

// Available reports whether Embedder(variant) can be expected to succeed.
// It never loads a model and never panics.
func (b *Backend) Available(variant Variant) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot, ok := b.slots[variant]
	if !ok {
		return false
	}
	if slot.tried {
		return slot.err == nil
	}
	if !onnxSupported {
		return false
	}
	_, err := os.Stat(slot.modelPath)
	return err == nil
}

// SetEmbedder installs a ready embedder for variant, replacing lazy loading.
// Used by tests and by callers that bring their own runtime.
func (b *Backend) SetEmbedder(variant Variant, e Embedder) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots[variant] = &backendSlot{
		dimensions: e.Dimensions(),
		embedder:   e,
		tried:      true,
	}
}

// Dimensions returns the configured vector width for variant, 0 if unknown.
func (b *Backend) Dimensions(variant Variant) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot, ok := b.slots[variant]; ok {
		return slot.dimensions
	}
	return 0
}

// Close releases any loaded models.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for _, slot := range b.slots {
		if slot.embedder != nil {
			if cerr := slot.embedder.Close(); cerr != nil {
				err = cerr
			}
			slot.embedder = nil
		}
	}
	return err
}
