package match

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

// weightTolerance is the allowed deviation of a weight table's sum from 1.0.
const weightTolerance = 1e-9

// Algorithm scores the similarity of candidate images against a query image.
// Extract runs once per image; Compare consumes only records this algorithm
// produced.
type Algorithm interface {
	ID() string
	DisplayName() string
	Weights() map[Metric]float64
	Capability() Capability
	// Available reports whether the algorithm can run right now. It probes
	// required backends and never panics.
	Available() bool
	Extract(ctx context.Context, im *imageio.Image) (*FeatureRecord, error)
	Compare(query, candidate *FeatureRecord) (float64, Breakdown, error)
}

// ValidateWeights checks that the table is non-empty, every weight is
// non-negative, and the sum is 1.0 within tolerance.
func ValidateWeights(weights map[Metric]float64) error {
	if len(weights) == 0 {
		return errors.New("algorithm has no weights")
	}
	var sum float64
	for metric, w := range weights {
		if w < 0 {
			return fmt.Errorf("negative weight %v for metric %s", w, metric)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Override returns a copy of a with the given weights replacing the matching
// entries of its table. Only metrics the algorithm already scores may be
// overridden. The merged table is renormalized to sum 1.0 so that aggregate
// distances stay in [0,1].
func Override(a Algorithm, overrides map[Metric]float64) (Algorithm, error) {
	if len(overrides) == 0 {
		return a, nil
	}
	v, ok := a.(*variant)
	if !ok {
		return nil, fmt.Errorf("algorithm %q does not support weight overrides", a.ID())
	}

	merged := make(map[Metric]float64, len(v.weights))
	for m, w := range v.weights {
		merged[m] = w
	}
	for m, w := range overrides {
		if _, ok := merged[m]; !ok {
			return nil, fmt.Errorf("algorithm %q has no metric %q to override", a.ID(), m)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative weight %v for metric %s", w, m)
		}
		merged[m] = w
	}

	var sum float64
	for _, w := range merged {
		sum += w
	}
	if sum <= 0 {
		return nil, errors.New("weight overrides sum to zero")
	}
	for m := range merged {
		merged[m] /= sum
	}
	if err := ValidateWeights(merged); err != nil {
		return nil, err
	}

	clone := *v
	clone.weights = merged
	return &clone, nil
}
