package match

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/p-hannemann/skin-lookup/internal/embedding"
)

// DefaultAlgorithm is the ID used when the caller does not pick one.
const DefaultAlgorithm = "balanced"

// Info describes one registered algorithm for listings.
type Info struct {
	ID          string             `json:"id"`
	DisplayName string             `json:"display_name"`
	Capability  string             `json:"capability"`
	Available   bool               `json:"available"`
	Weights     map[Metric]float64 `json:"weights"`
}

// Registry holds the available matching algorithms by ID.
type Registry struct {
	mu         sync.RWMutex
	algorithms map[string]Algorithm
}

// NewRegistry returns a registry populated with the stock algorithms. The
// deep variants are bound to backend's two model slots and report themselves
// unavailable until the corresponding model can be loaded.
func NewRegistry(backend *embedding.Backend) *Registry {
	r := &Registry{algorithms: make(map[string]Algorithm)}

	r.mustRegister(&variant{
		id:   "balanced",
		name: "Balanced (default)",
		weights: map[Metric]float64{
			MetricDominantColor: 0.60,
			MetricHistogram:     0.35,
			MetricHash:          0.05,
		},
	})
	r.mustRegister(&variant{
		id:   "skin-optimized",
		name: "Skin texture optimized",
		weights: map[Metric]float64{
			MetricTexture:       0.40,
			MetricDominantColor: 0.35,
			MetricDimension:     0.15,
			MetricHistogram:     0.10,
		},
	})
	r.mustRegister(&variant{
		id:         "deep-feature-a",
		name:       "Deep features A (small network)",
		capability: CapabilityDeepBackend,
		backend:    backend,
		model:      embedding.VariantSmall,
		weights: map[Metric]float64{
			MetricEmbedding:     0.70,
			MetricDominantColor: 0.20,
			MetricHistogram:     0.10,
		},
	})
	r.mustRegister(&variant{
		id:         "deep-feature-b",
		name:       "Deep features B (large network)",
		capability: CapabilityDeepBackend,
		backend:    backend,
		model:      embedding.VariantDeep,
		weights: map[Metric]float64{
			MetricEmbedding:     0.70,
			MetricDominantColor: 0.20,
			MetricHistogram:     0.10,
		},
	})
	r.mustRegister(&variant{
		id:   "structure",
		name: "Structure match",
		weights: map[Metric]float64{
			MetricEdgeDensity:   0.50,
			MetricSSIM:          0.30,
			MetricDominantColor: 0.20,
		},
	})
	r.mustRegister(&variant{
		id:   "color-distribution",
		name: "Color distribution",
		weights: map[Metric]float64{
			MetricHistogram:     0.70,
			MetricDominantColor: 0.30,
		},
	})
	r.mustRegister(&variant{
		id:   "fast",
		name: "Fast (histogram + hash)",
		weights: map[Metric]float64{
			MetricHistogram: 0.80,
			MetricHash:      0.20,
		},
	})
	r.mustRegister(&variant{
		id:     "render-to-skin",
		name:   "Render to skin (convert + match)",
		render: true,
		weights: map[Metric]float64{
			MetricDominantColor: 0.60,
			MetricHistogram:     0.35,
			MetricHash:          0.05,
		},
	})
	r.mustRegister(&variant{
		id:     "render-match",
		name:   "Render match (3D to 2D)",
		render: true,
		weights: map[Metric]float64{
			MetricVisiblePixels: 0.50,
			MetricDominantColor: 0.30,
			MetricHistogram:     0.20,
		},
	})

	return r
}

// Register adds or replaces an algorithm after validating its weight table.
func (r *Registry) Register(a Algorithm) error {
	if a == nil || a.ID() == "" {
		return errors.New("algorithm must have an ID")
	}
	if err := ValidateWeights(a.Weights()); err != nil {
		return fmt.Errorf("algorithm %q: %w", a.ID(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.algorithms[a.ID()] = a
	return nil
}

// mustRegister is for the static stock tables, which cannot fail validation.
func (r *Registry) mustRegister(v *variant) {
	if err := r.Register(v); err != nil {
		panic(err)
	}
}

// Get returns the algorithm registered under id, or *UnknownAlgorithmError.
func (r *Registry) Get(id string) (Algorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.algorithms[id]
	if !ok {
		return nil, &UnknownAlgorithmError{ID: id, Known: r.idsLocked()}
	}
	return a, nil
}

// IDs returns the registered algorithm IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idsLocked()
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.algorithms))
	for id := range r.algorithms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List describes every registered algorithm, sorted by ID. Availability is
// probed at call time.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.algorithms))
	for _, id := range r.idsLocked() {
		a := r.algorithms[id]
		infos = append(infos, Info{
			ID:          a.ID(),
			DisplayName: a.DisplayName(),
			Capability:  a.Capability().String(),
			Available:   a.Available(),
			Weights:     a.Weights(),
		})
	}
	return infos
}
