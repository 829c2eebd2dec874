package fetch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/p-hannemann/skin-lookup/internal/imageio"
)

// PNG references appear in wiki HTML three ways: absolute URLs in the page
// text, and relative paths in src and href attributes.
var (
	absolutePNG = regexp.MustCompile(`https://[^\s"<>]+\.png`)
	srcPNG      = regexp.MustCompile(`src="(/[^"]+\.png)"`)
	hrefPNG     = regexp.MustCompile(`href="(/[^"]+\.png)"`)
)

// UI chrome that is never the character image.
var excludeKeywords = []string{"logo", "icon_", "wiki", "button", "background", "banner"}

// Images worth picking when no sprite matches the page name.
var characterKeywords = []string{"skyblock_npcs", "skyblock_entities", "skin", "render", "full", "body"}

// FromWikiPage scrapes a wiki page for the most likely character image and
// downloads it. Sprite images named after the page win; otherwise the first
// render or skin image is used.
func (f *Fetcher) FromWikiPage(ctx context.Context, pageURL string) (*imageio.Image, error) {
	f.logger.Debug("parsing wiki page", zap.String("url", pageURL))
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	imageURL, err := pickImageURL(string(body), pageURL)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("selected wiki image", zap.String("url", imageURL))
	return f.FromURL(ctx, imageURL)
}

// pickImageURL chooses the character image among every PNG the page links.
func pickImageURL(html, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page url: %w", err)
	}
	pageName := strings.ToLower(lastSegment(base.Path))

	candidates := absolutePNG.FindAllString(html, -1)
	for _, m := range srcPNG.FindAllStringSubmatch(html, -1) {
		candidates = append(candidates, resolve(base, m[1]))
	}
	for _, m := range hrefPNG.FindAllStringSubmatch(html, -1) {
		candidates = append(candidates, resolve(base, m[1]))
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no png images found on %s", pageURL)
	}

	filtered := excludeChrome(candidates)

	// A sprite named after the page is the character's own icon.
	for _, c := range filtered {
		lower := strings.ToLower(c)
		if strings.Contains(lower, "sprite") && strings.Contains(lower, pageName) {
			return c, nil
		}
	}
	for _, c := range filtered {
		lower := strings.ToLower(c)
		if strings.Contains(lower, pageName) || containsAny(lower, characterKeywords) {
			return c, nil
		}
	}
	return filtered[0], nil
}

// excludeChrome drops UI images, keyed on the URL path so the wiki's own
// host name never disqualifies an image. When everything is chrome the
// original list survives.
func excludeChrome(candidates []string) []string {
	var kept []string
	for _, c := range candidates {
		path := c
		if u, err := url.Parse(c); err == nil {
			path = u.Path
		}
		if !containsAny(strings.ToLower(path), excludeKeywords) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func lastSegment(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
