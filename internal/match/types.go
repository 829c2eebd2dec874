// Package match implements the similarity algorithms that score a candidate
// image against a query image, and the registry that names them.
package match

import (
	"github.com/corona10/goimagehash"

	"github.com/p-hannemann/skin-lookup/internal/feature"
	"github.com/p-hannemann/skin-lookup/internal/skin"
)

// Metric names one scoring component of an algorithm. Every metric is a
// distance in [0,1] with 0 meaning identical.
type Metric string

const (
	// MetricDominantColor compares the top dominant colors by frequency.
	MetricDominantColor Metric = "dominant-color"
	// MetricHistogram compares joint RGB color histograms.
	MetricHistogram Metric = "histogram"
	// MetricHash compares 64-bit perceptual hashes.
	MetricHash Metric = "hash"
	// MetricEmbedding compares deep feature vectors from the ONNX backend.
	MetricEmbedding Metric = "embedding"
	// MetricTexture compares edge density and contrast descriptors together.
	MetricTexture Metric = "texture-pattern"
	// MetricDimension scores whether two images belong to the same size class.
	MetricDimension Metric = "dimension-match"
	// MetricEdgeDensity compares Sobel edge densities.
	MetricEdgeDensity Metric = "edge-density"
	// MetricSSIM compares windowed structural similarity.
	MetricSSIM Metric = "structural-similarity"
	// MetricVisiblePixels compares raw pixels over the shared visibility mask.
	MetricVisiblePixels Metric = "visible-pixels"
)

// Capability names an optional backend an algorithm needs before it can run.
type Capability int

const (
	// CapabilityNone means the algorithm always runs.
	CapabilityNone Capability = iota
	// CapabilityDeepBackend means the algorithm needs a loaded ONNX feature model.
	CapabilityDeepBackend
)

// String returns a string representation of the capability.
func (c Capability) String() string {
	switch c {
	case CapabilityNone:
		return "none"
	case CapabilityDeepBackend:
		return "deep-backend"
	default:
		return "unknown"
	}
}

// FeatureRecord holds the features one algorithm extracted from one image.
// A record is only meaningful to the algorithm that produced it; Compare
// rejects records from other algorithms.
type FeatureRecord struct {
	Algorithm string
	Path      string
	Width     int
	Height    int

	Palette     []feature.PaletteEntry
	Histogram   []float64
	Hash        *goimagehash.ImageHash
	Embedding   []float32
	GrayPlane   []float64
	EdgeDensity float64
	Contrast    float64

	// Texture is the reconstructed 64x64 skin plus its visibility mask.
	// Only render variants fill it; their metrics are computed at compare
	// time over the intersection of both masks.
	Texture *skin.Texture
}

// MetricScore is one metric's contribution to an aggregate distance.
type MetricScore struct {
	Distance float64 `json:"distance"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	// Missing is set when the metric could not be computed for this pair;
	// it then contributes zero to the aggregate.
	Missing bool `json:"missing,omitempty"`
}

// Breakdown explains an aggregate distance one metric at a time.
type Breakdown map[Metric]MetricScore

// Result is one scored candidate.
type Result struct {
	// Path is the candidate file path.
	Path string `json:"path"`
	// Distance is the aggregate weighted distance in [0,1], lower is better.
	Distance float64 `json:"distance"`
	// Rank is the 1-based position in the ranked list; 1 is the best match.
	Rank int `json:"rank"`
	// Breakdown holds the per-metric contributions.
	Breakdown Breakdown `json:"breakdown,omitempty"`
}
