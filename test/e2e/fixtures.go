// Package e2e provides end-to-end tests; this file encodes corpus skins in the supported container formats.
package e2e

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// SupportedImageExtensions is the list of file extensions used in the
// mixed-format E2E cache. Scans sniff the format from content, so the
// extension only decides how the fixture is encoded. WebP and GIF decode too
// but have no lossless encoder here and are covered by internal/imageio tests.
var SupportedImageExtensions = []string{".png", ".jpg", ".bmp", ".tif"}

// EncodeImage encodes img in the container format implied by ext. All formats
// except .jpg round-trip pixel-exact; JPEG fixtures must not be the target of
// zero-distance assertions.
func EncodeImage(ext string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case ".png":
		err = png.Encode(&buf, img)
	case ".jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(&buf, img)
	case ".tif":
		err = tiff.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ext, err)
	}
	return buf.Bytes(), nil
}
