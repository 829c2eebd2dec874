package match

import "math"

// Combine computes the weighted aggregate distance for the given per-metric
// distances. A metric without a distance, or with a NaN or infinite one,
// contributes zero and is flagged Missing in the breakdown. Combine never
// fails; with a valid weight table the aggregate stays in [0,1].
func Combine(dists map[Metric]float64, weights map[Metric]float64) (float64, Breakdown) {
	breakdown := make(Breakdown, len(weights))
	var total float64
	for metric, weight := range weights {
		d, ok := dists[metric]
		if !ok || math.IsNaN(d) || math.IsInf(d, 0) {
			breakdown[metric] = MetricScore{Weight: weight, Missing: true}
			continue
		}
		weighted := weight * d
		breakdown[metric] = MetricScore{Distance: d, Weight: weight, Weighted: weighted}
		total += weighted
	}
	return total, breakdown
}
