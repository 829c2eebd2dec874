package match

import (
	"math"
	"testing"

	"github.com/p-hannemann/skin-lookup/internal/config"
	"github.com/p-hannemann/skin-lookup/internal/embedding"
)

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights map[Metric]float64
		wantErr bool
	}{
		{"valid", map[Metric]float64{MetricHistogram: 0.8, MetricHash: 0.2}, false},
		{"empty", map[Metric]float64{}, true},
		{"sum too low", map[Metric]float64{MetricHistogram: 0.5}, true},
		{"sum too high", map[Metric]float64{MetricHistogram: 0.8, MetricHash: 0.3}, true},
		{"negative", map[Metric]float64{MetricHistogram: 1.5, MetricHash: -0.5}, true},
		{"within tolerance", map[Metric]float64{MetricHistogram: 0.3, MetricHash: 0.7}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(tt.weights)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWeights() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOverrideRenormalizes(t *testing.T) {
	r := NewRegistry(embedding.NewBackend(config.EmbeddingConfig{}))
	fast, err := r.Get("fast")
	if err != nil {
		t.Fatal(err)
	}

	overridden, err := Override(fast, map[Metric]float64{MetricHash: 0})
	if err != nil {
		t.Fatal(err)
	}
	w := overridden.Weights()
	if math.Abs(w[MetricHistogram]-1.0) > 1e-9 {
		t.Errorf("histogram weight = %v, want 1.0 after renormalization", w[MetricHistogram])
	}
	if w[MetricHash] != 0 {
		t.Errorf("hash weight = %v, want 0", w[MetricHash])
	}
	if err := ValidateWeights(w); err != nil {
		t.Errorf("overridden weights invalid: %v", err)
	}

	// The registry entry keeps its original table.
	if got := fast.Weights()[MetricHash]; got != 0.2 {
		t.Errorf("base algorithm mutated: hash weight = %v", got)
	}
}

func TestOverrideRejectsUnknownMetric(t *testing.T) {
	r := NewRegistry(embedding.NewBackend(config.EmbeddingConfig{}))
	fast, err := r.Get("fast")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Override(fast, map[Metric]float64{MetricEmbedding: 0.5}); err == nil {
		t.Error("expected error overriding a metric the algorithm does not score")
	}
	if _, err := Override(fast, map[Metric]float64{MetricHash: -1}); err == nil {
		t.Error("expected error for negative override")
	}
	if _, err := Override(fast, map[Metric]float64{MetricHash: 0, MetricHistogram: 0}); err == nil {
		t.Error("expected error when all weights are zeroed")
	}
}

func TestOverrideEmptyIsIdentity(t *testing.T) {
	r := NewRegistry(embedding.NewBackend(config.EmbeddingConfig{}))
	fast, err := r.Get("fast")
	if err != nil {
		t.Fatal(err)
	}
	same, err := Override(fast, nil)
	if err != nil {
		t.Fatal(err)
	}
	if same != fast {
		t.Error("empty override should return the algorithm unchanged")
	}
}
