// Package e2e provides end-to-end tests with a generated skin corpus and multiple queries.
package e2e

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// family is one color scheme the corpus generates skins from. Variants of a
// family share its palette and differ in stripe placement and shade.
type family struct {
	name   string
	base   color.NRGBA
	accent color.NRGBA
}

// Base channels sit low in their 16-wide histogram bins (channel mod 16 == 2)
// so the shade shifts below never push a pixel across a bin boundary. Within a
// family only the stripe geometry moves the histogram; across families the
// base mass lands in entirely different bins.
var families = []family{
	{"crimson", color.NRGBA{R: 178, G: 34, B: 50, A: 255}, color.NRGBA{R: 226, G: 194, B: 82, A: 255}},
	{"ocean", color.NRGBA{R: 34, G: 98, B: 194, A: 255}, color.NRGBA{R: 180, G: 220, B: 240, A: 255}},
	{"forest", color.NRGBA{R: 34, G: 114, B: 50, A: 255}, color.NRGBA{R: 110, G: 70, B: 30, A: 255}},
	{"slate", color.NRGBA{R: 82, G: 82, B: 98, A: 255}, color.NRGBA{R: 210, G: 205, B: 200, A: 255}},
	{"violet", color.NRGBA{R: 114, G: 34, B: 162, A: 255}, color.NRGBA{R: 240, G: 180, B: 120, A: 255}},
}

const variantsPerFamily = 4

// Stripe placement per variant index. Heights differ so every variant has a
// different accent pixel count: two skins of one family never share a
// histogram, which keeps the zero-distance winner of an exact query unique.
// The near-variant queries use row 16 and height 5, which no variant uses.
var (
	variantStripeRows    = [variantsPerFamily]int{8, 24, 40, 56}
	variantStripeHeights = [variantsPerFamily]int{2, 4, 6, 8}
)

// colorAlgorithms are the variants whose score is dominated by palette and
// histogram signal. Near-variant queries are only asserted against these;
// structural variants may legitimately rank a different family's skin with a
// similar layout higher.
var colorAlgorithms = []string{"balanced", "skin-optimized", "color-distribution", "fast"}

// SkinFile is one cache entry in the corpus.
type SkinFile struct {
	Name   string
	Family string
	Image  *image.NRGBA
}

// QueryCase pairs a query image with the files that must rank at the top.
// WantBest names the file that must come back first with a distance of zero;
// when it is empty, a file of WantFamily must appear within the top ranks
// instead. An empty Algorithms list means the expectation holds for every
// available algorithm.
type QueryCase struct {
	Description string
	Image       *image.NRGBA
	Algorithms  []string
	WantBest    string
	WantFamily  string
}

// Corpus holds the generated skins and query cases for the E2E tests.
type Corpus struct {
	Files        []SkinFile
	TestCases    []QueryCase
	TotalFiles   int
	TotalQueries int
}

// BuildCorpus returns a corpus of skins in several color families, four
// variants each, plus query cases asserting both exact-match and same-family
// ranking. Everything is drawn deterministically so distances are stable
// across runs.
func BuildCorpus() *Corpus {
	var files []SkinFile
	for _, f := range families {
		for v := 0; v < variantsPerFamily; v++ {
			files = append(files, SkinFile{
				Name:   fmt.Sprintf("%s_v%d", f.name, v),
				Family: f.name,
				Image:  drawSkin(f, variantStripeRows[v], variantStripeHeights[v], uint8(4*v)),
			})
		}
	}
	cases := buildQueryCases()
	return &Corpus{
		Files:        files,
		TestCases:    cases,
		TotalFiles:   len(files),
		TotalQueries: len(cases),
	}
}

func buildQueryCases() []QueryCase {
	var cases []QueryCase
	for _, f := range families {
		// Pixel-identical to <family>_v0: every algorithm must rank that
		// file first at distance zero.
		cases = append(cases, QueryCase{
			Description: fmt.Sprintf("identical %s query ranks %s_v0 first", f.name, f.name),
			Image:       drawSkin(f, variantStripeRows[0], variantStripeHeights[0], 0),
			WantBest:    f.name + "_v0",
		})
		// Same palette, stripe and shade that match no corpus file exactly.
		cases = append(cases, QueryCase{
			Description: fmt.Sprintf("near-variant %s query stays in the %s family", f.name, f.name),
			Image:       drawSkin(f, 16, 5, 2),
			Algorithms:  colorAlgorithms,
			WantFamily:  f.name,
		})
	}
	return cases
}

// drawSkin paints a 64x64 skin: the shade-shifted base color everywhere, an
// accent stripe of the given height at stripeRow, and a fixed accent column.
func drawSkin(f family, stripeRow, stripeHeight int, shade uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	base := color.NRGBA{
		R: addClamp(f.base.R, shade),
		G: addClamp(f.base.G, shade),
		B: addClamp(f.base.B, shade),
		A: 255,
	}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := base
			if y >= stripeRow && y < stripeRow+stripeHeight {
				c = f.accent
			} else if x >= 30 && x < 34 {
				c = f.accent
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func addClamp(c, d uint8) uint8 {
	v := int(c) + int(d)
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// fileFamily reads the family back out of a generated file name.
func fileFamily(name string) string {
	if i := strings.IndexByte(name, '_'); i > 0 {
		return name[:i]
	}
	return name
}
