package fetch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skin.png")
	if err := os.WriteFile(path, pngBytes(t, 64, 64, color.NRGBA{R: 120, G: 80, B: 40, A: 255}), 0644); err != nil {
		t.Fatal(err)
	}

	im, err := NewFetcher(nil).FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if im.Width() != 64 || im.Height() != 64 {
		t.Errorf("dimensions = %dx%d", im.Width(), im.Height())
	}
}

func TestFromURL(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write(pngBytes(t, 32, 48, color.NRGBA{R: 10, G: 200, B: 30, A: 255}))
	}))
	defer srv.Close()

	im, err := NewFetcher(nil).FromURL(context.Background(), srv.URL+"/render.png")
	if err != nil {
		t.Fatal(err)
	}
	if im.Width() != 32 || im.Height() != 48 {
		t.Errorf("dimensions = %dx%d", im.Width(), im.Height())
	}
	if gotUA != browserUserAgent {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestFromURLStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewFetcher(nil).FromURL(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFromURLNotAnImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not a png</html>"))
	}))
	defer srv.Close()

	if _, err := NewFetcher(nil).FromURL(context.Background(), srv.URL+"/page"); err == nil {
		t.Fatal("expected decode error for html body")
	}
}
