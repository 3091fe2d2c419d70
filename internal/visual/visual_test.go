package visual

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// letterhead draws a dark bar across the top 10% of a white page.
func letterhead(w, h int) *image.RGBA {
	img := solid(w, h, color.White)
	for y := 0; y < h/10; y++ {
		for x := 0; x < w/2; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func TestHashes(t *testing.T) {
	white := solid(200, 300, color.White)
	half := solid(200, 300, color.White)
	for y := 150; y < 300; y++ {
		for x := 0; x < 200; x++ {
			half.Set(x, y, color.Black)
		}
	}

	if AverageHash(white) != 0 {
		t.Errorf("uniform page hash = %x, want 0", AverageHash(white))
	}
	if d := Hamming(AverageHash(white), AverageHash(half)); d != 32 {
		t.Errorf("hamming(white, half) = %d, want 32", d)
	}
	if Hamming(AverageHash(half), AverageHash(half)) != 0 {
		t.Error("hash not stable")
	}

	a, b := letterhead(200, 300), letterhead(400, 600)
	if d := Hamming(RegionHash(a, RegionHeader), RegionHash(b, RegionHeader)); d > 2 {
		t.Errorf("same letterhead at two resolutions differs by %d bits", d)
	}
	if RegionHash(a, RegionHeader) == RegionHash(white, RegionHeader) {
		t.Error("letterhead header should differ from a blank header")
	}
	if RegionHash(a, RegionFooter) != RegionHash(white, RegionFooter) {
		t.Error("footers of both pages are blank and should hash equal")
	}
}

func TestHistogramCorrelation(t *testing.T) {
	red := solid(64, 64, color.RGBA{R: 255, A: 255})
	blue := solid(64, 64, color.RGBA{B: 255, A: 255})
	page := letterhead(100, 100)

	h := Histogram(page)
	var norm float64
	for _, v := range h {
		norm += v * v
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Errorf("histogram not L2-normalized: %v", norm)
	}

	if c := Correlation(h, Histogram(page)); math.Abs(c-1) > 1e-9 {
		t.Errorf("self correlation = %v, want 1", c)
	}
	if c := Correlation(Histogram(red), Histogram(blue)); c >= 0.9 {
		t.Errorf("red/blue correlation = %v, want below 0.9", c)
	}
	if Correlation([]float64{1}, []float64{1, 2}) != 0 {
		t.Error("mismatched lengths must correlate at 0")
	}
}

func TestSSIM(t *testing.T) {
	page := letterhead(300, 400)
	if s := SSIM(page, page); math.Abs(s-1) > 1e-9 {
		t.Errorf("SSIM(page, page) = %v, want 1", s)
	}
	if s := SSIM(solid(50, 50, color.White), solid(50, 50, color.Black)); s > 0.1 {
		t.Errorf("SSIM(white, black) = %v, want near 0", s)
	}
	if ThumbSSIM(nil, Thumbnail(page)) != 0 {
		t.Error("nil thumbnail must score 0")
	}
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	img := letterhead(80, 120)
	encoders := map[string]func(*os.File) error{
		"page.png":  func(f *os.File) error { return png.Encode(f, img) },
		"page.tiff": func(f *os.File) error { return tiff.Encode(f, img, nil) },
		"page.bmp":  func(f *os.File) error { return bmp.Encode(f, img) },
	}
	want := NewFingerprint(img)
	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := enc(f); err != nil {
				t.Fatalf("encode: %v", err)
			}
			_ = f.Close()

			fp, err := LoadFingerprint(path)
			if err != nil {
				t.Fatalf("LoadFingerprint: %v", err)
			}
			if fp.Header != want.Header || fp.Footer != want.Footer {
				t.Errorf("hashes changed through %s", name)
			}
		})
	}

	bad := filepath.Join(dir, "bad.png")
	_ = os.WriteFile(bad, []byte("not an image"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected decode error")
	}
	if _, err := Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected open error")
	}
}
