// Package imageio decodes candidate and query images into a normalized
// in-memory form. Cache entries are typically content-hash-named with no
// extension, so formats are always sniffed from content, never from the name.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError reports a file that could not be read or decoded as an image.
// During a scan this is a per-file condition: the file is skipped and counted,
// never fatal.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Image is a decoded image normalized to NRGBA, origin at (0,0).
type Image struct {
	Path   string
	Format string
	Pix    *image.NRGBA
}

// Width returns the image width in pixels.
func (im *Image) Width() int { return im.Pix.Rect.Dx() }

// Height returns the image height in pixels.
func (im *Image) Height() int { return im.Pix.Rect.Dy() }

// Decode reads and decodes the file at path.
func Decode(path string) (*Image, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return DecodeBytes(content, path)
}

// DecodeBytes decodes raw image bytes. path is recorded for reporting only.
func DecodeBytes(content []byte, path string) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return &Image{Path: path, Format: format, Pix: ToNRGBA(img)}, nil
}

// FromNRGBA wraps an already-constructed pixel buffer, re-anchoring it at the
// origin if needed.
func FromNRGBA(pix *image.NRGBA, path string) *Image {
	if pix.Rect.Min != (image.Point{}) {
		pix = ToNRGBA(pix)
	}
	return &Image{Path: path, Format: "nrgba", Pix: pix}
}

// SavePNG writes img to path as PNG, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// ToNRGBA converts any decoded image to NRGBA with bounds anchored at (0,0).
// An NRGBA input already at the origin is returned as-is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if p, ok := img.(*image.NRGBA); ok && p.Rect.Min == (image.Point{}) {
		return p
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
