package feature

import (
	"image"
	"math"
	"sort"

	"github.com/p-hannemann/skin-lookup/internal/skin"
)

// PaletteEntry is one dominant color and the fraction of counted pixels that
// quantize to it.
type PaletteEntry struct {
	R, G, B uint8
	Weight  float64
}

// maxColorDist is the largest possible Euclidean distance between two RGB
// colors, used to normalize palette distances to [0,1].
var maxColorDist = 255.0 * math.Sqrt(3)

// DominantPalette quantizes each channel to 16 levels, counts colors over the
// visible pixels, and returns the k most frequent as (color, weight) pairs in
// descending weight order. Weights are fractions of all counted pixels, so
// they sum to at most 1. A nil mask means the whole image.
func DominantPalette(pix *image.NRGBA, k int, mask *skin.Mask) []PaletteEntry {
	counts := make(map[uint32]int)
	total := 0
	b := pix.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !visible(pix, mask, x, y) {
				continue
			}
			o := pix.PixOffset(x, y)
			key := uint32(pix.Pix[o]&0xF0)<<16 | uint32(pix.Pix[o+1]&0xF0)<<8 | uint32(pix.Pix[o+2]&0xF0)
			counts[key]++
			total++
		}
	}
	if total == 0 {
		return nil
	}

	type kv struct {
		key   uint32
		count int
	}
	ordered := make([]kv, 0, len(counts))
	for key, c := range counts {
		ordered = append(ordered, kv{key, c})
	}
	// Deterministic order: by count, ties by packed color value.
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].key < ordered[j].key
	})
	if len(ordered) > k {
		ordered = ordered[:k]
	}

	palette := make([]PaletteEntry, len(ordered))
	for i, e := range ordered {
		palette[i] = PaletteEntry{
			R:      uint8(e.key >> 16),
			G:      uint8(e.key >> 8),
			B:      uint8(e.key),
			Weight: float64(e.count) / float64(total),
		}
	}
	return palette
}

// PaletteDistance is a permutation-invariant matching cost between two
// weighted palettes: each color is charged its weight times the distance to
// the nearest color on the other side, averaged over both directions.
// Identical palettes yield 0; an empty side yields 1.
func PaletteDistance(a, b []PaletteEntry) float64 {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == 0 && len(b) == 0 {
			return 0
		}
		return 1
	}
	return (directedPaletteCost(a, b) + directedPaletteCost(b, a)) / 2
}

func directedPaletteCost(from, to []PaletteEntry) float64 {
	var total float64
	for _, e := range from {
		best := math.Inf(1)
		for _, o := range to {
			dr := float64(e.R) - float64(o.R)
			dg := float64(e.G) - float64(o.G)
			db := float64(e.B) - float64(o.B)
			d := math.Sqrt(dr*dr + dg*dg + db*db)
			if d < best {
				best = d
			}
		}
		total += e.Weight * best
	}
	return total / maxColorDist
}
