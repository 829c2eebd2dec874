package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-hannemann/skin-lookup/internal/embedding"
	"github.com/p-hannemann/skin-lookup/internal/feature"
	"github.com/p-hannemann/skin-lookup/internal/imageio"
	"github.com/p-hannemann/skin-lookup/internal/skin"
)

// variant is the concrete Algorithm behind every stock entry: a weight table
// over a shared set of metric kernels.
type variant struct {
	id         string
	name       string
	capability Capability
	weights    map[Metric]float64

	// deep variants only
	backend *embedding.Backend
	model   embedding.Variant

	// render variants reconstruct a skin texture from the input and score
	// their metrics over the intersection of both visibility masks
	render bool
}

func (v *variant) ID() string          { return v.id }
func (v *variant) DisplayName() string { return v.name }

func (v *variant) Weights() map[Metric]float64 {
	out := make(map[Metric]float64, len(v.weights))
	for m, w := range v.weights {
		out[m] = w
	}
	return out
}

func (v *variant) Capability() Capability { return v.capability }

func (v *variant) Available() bool {
	if v.capability == CapabilityNone {
		return true
	}
	return v.backend != nil && v.backend.Available(v.model)
}

func (v *variant) needs(m Metric) bool {
	_, ok := v.weights[m]
	return ok
}

// Extract computes the features v's metrics score. Render variants only
// reconstruct the texture here; their metrics depend on both masks and run
// in Compare.
func (v *variant) Extract(ctx context.Context, im *imageio.Image) (*FeatureRecord, error) {
	rec := &FeatureRecord{
		Algorithm: v.id,
		Path:      im.Path,
		Width:     im.Width(),
		Height:    im.Height(),
	}

	if v.render {
		rec.Texture = skin.Convert(im)
		return rec, nil
	}

	if v.needs(MetricDominantColor) {
		rec.Palette = feature.DominantPalette(im.Pix, feature.PaletteSize, nil)
	}
	if v.needs(MetricHistogram) {
		rec.Histogram = feature.Histogram(im.Pix, nil)
	}
	if v.needs(MetricHash) {
		h, err := feature.PerceptionHash(im.Pix)
		if err != nil {
			return nil, fmt.Errorf("perceptual hash of %s: %w", im.Path, err)
		}
		rec.Hash = h
	}
	if v.needs(MetricTexture) || v.needs(MetricEdgeDensity) || v.needs(MetricSSIM) {
		plane := feature.GrayPlane(im.Pix, feature.GraySize)
		rec.EdgeDensity = feature.EdgeDensity(plane, feature.GraySize)
		rec.Contrast = feature.Contrast(plane)
		if v.needs(MetricSSIM) {
			rec.GrayPlane = plane
		}
	}
	if v.needs(MetricEmbedding) {
		embedder, err := v.backend.Embedder(v.model)
		if err != nil {
			return nil, &CapabilityError{AlgorithmID: v.id, Capability: v.capability, Err: err}
		}
		emb, err := embedder.Embed(ctx, im)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", im.Path, err)
		}
		rec.Embedding = emb
	}
	return rec, nil
}

// Compare scores candidate against query. Both records must come from this
// algorithm.
func (v *variant) Compare(query, candidate *FeatureRecord) (float64, Breakdown, error) {
	if query == nil || candidate == nil {
		return 0, nil, errors.New("nil feature record")
	}
	if query.Algorithm != v.id || candidate.Algorithm != v.id {
		return 0, nil, fmt.Errorf("algorithm %q cannot compare records from %q and %q",
			v.id, query.Algorithm, candidate.Algorithm)
	}

	dists := make(map[Metric]float64, len(v.weights))
	if v.render {
		v.renderDistances(query, candidate, dists)
	} else {
		v.recordDistances(query, candidate, dists)
	}
	total, breakdown := Combine(dists, v.weights)
	return total, breakdown, nil
}

func (v *variant) recordDistances(q, c *FeatureRecord, dists map[Metric]float64) {
	for metric := range v.weights {
		switch metric {
		case MetricDominantColor:
			dists[metric] = feature.PaletteDistance(q.Palette, c.Palette)
		case MetricHistogram:
			dists[metric] = feature.HistogramDistance(q.Histogram, c.Histogram)
		case MetricHash:
			if d, err := feature.HashDistance(q.Hash, c.Hash); err == nil {
				dists[metric] = d
			}
		case MetricEmbedding:
			if q.Embedding != nil && c.Embedding != nil {
				dists[metric] = feature.CosineDistance(q.Embedding, c.Embedding)
			}
		case MetricTexture:
			dists[metric] = feature.TextureDistance(q.EdgeDensity, q.Contrast, c.EdgeDensity, c.Contrast)
		case MetricDimension:
			dists[metric] = feature.DimensionDistance(q.Width, q.Height, c.Width, c.Height)
		case MetricEdgeDensity:
			dists[metric] = feature.EdgeDistance(q.EdgeDensity, c.EdgeDensity)
		case MetricSSIM:
			if q.GrayPlane != nil && c.GrayPlane != nil {
				dists[metric] = feature.SSIMDistance(q.GrayPlane, c.GrayPlane, feature.GraySize)
			}
		}
	}
}

// renderDistances scores metrics over the intersection of the two
// reconstruction masks, so a pixel occluded in either view never counts
// against the match.
func (v *variant) renderDistances(q, c *FeatureRecord, dists map[Metric]float64) {
	if q.Texture == nil || c.Texture == nil {
		return
	}
	mask := skin.Intersect(q.Texture.Mask, c.Texture.Mask)
	for metric := range v.weights {
		switch metric {
		case MetricDominantColor:
			qp := feature.DominantPalette(q.Texture.Pix, feature.PaletteSize, mask)
			cp := feature.DominantPalette(c.Texture.Pix, feature.PaletteSize, mask)
			dists[metric] = feature.PaletteDistance(qp, cp)
		case MetricHistogram:
			qh := feature.Histogram(q.Texture.Pix, mask)
			ch := feature.Histogram(c.Texture.Pix, mask)
			dists[metric] = feature.HistogramDistance(qh, ch)
		case MetricHash:
			qh, err := feature.MaskedHash(q.Texture.Pix, mask)
			if err != nil {
				continue
			}
			ch, err := feature.MaskedHash(c.Texture.Pix, mask)
			if err != nil {
				continue
			}
			if d, err := feature.HashDistance(qh, ch); err == nil {
				dists[metric] = d
			}
		case MetricVisiblePixels:
			dists[metric] = feature.PixelDistance(q.Texture.Pix, c.Texture.Pix, mask)
		}
	}
}
