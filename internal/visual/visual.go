// Package visual computes cheap layout fingerprints of rendered pages: perceptual hashes
// of the header and footer bands, a color histogram, and a grayscale thumbnail for SSIM.
package visual

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/bits"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// Region selects a horizontal band of a page.
type Region int

const (
	RegionPage Region = iota
	RegionHeader
	RegionFooter
)

// BandFraction is the share of page height covered by the header and footer bands.
const BandFraction = 0.10

const (
	hashSide  = 8
	thumbSide = 128
	ssimBlock = 8
	histBins  = 8 // per channel
	histSide  = 64
)

// Load decodes a png, jpeg, gif, tiff or bmp file.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// band returns the source rectangle of region r.
func band(b image.Rectangle, r Region) image.Rectangle {
	h := int(math.Round(float64(b.Dy()) * BandFraction))
	if h < 1 {
		h = 1
	}
	switch r {
	case RegionHeader:
		return image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+h)
	case RegionFooter:
		return image.Rect(b.Min.X, b.Max.Y-h, b.Max.X, b.Max.Y)
	default:
		return b
	}
}

// gray scales the sr part of img into a w x h grayscale image.
func gray(img image.Image, sr image.Rectangle, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, sr, draw.Src, nil)
	return dst
}

// AverageHash is the 64-bit mean hash of the whole page.
func AverageHash(img image.Image) uint64 {
	return RegionHash(img, RegionPage)
}

// RegionHash is the 64-bit mean hash of one band: each bit is set when the cell is
// brighter than the band's mean.
func RegionHash(img image.Image, r Region) uint64 {
	g := gray(img, band(img.Bounds(), r), hashSide, hashSide)
	var sum int
	for _, p := range g.Pix {
		sum += int(p)
	}
	mean := sum / len(g.Pix)
	var h uint64
	for i, p := range g.Pix {
		if int(p) > mean {
			h |= 1 << uint(i)
		}
	}
	return h
}

// Hamming counts differing bits.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Histogram is an L2-normalized RGB histogram with 8 bins per channel.
func Histogram(img image.Image) []float64 {
	small := image.NewRGBA(image.Rect(0, 0, histSide, histSide))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	hist := make([]float64, histBins*histBins*histBins)
	const shift = 8 - 3 // 256 levels into 8 bins
	for i := 0; i+3 < len(small.Pix); i += 4 {
		r, g, b := small.Pix[i]>>shift, small.Pix[i+1]>>shift, small.Pix[i+2]>>shift
		hist[int(r)*histBins*histBins+int(g)*histBins+int(b)]++
	}
	var norm float64
	for _, v := range hist {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range hist {
			hist[i] /= norm
		}
	}
	return hist
}

// Correlation is the Pearson correlation of two histograms, in [-1, 1].
// Two constant histograms correlate at 1 when equal and 0 otherwise.
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	n := float64(len(a))
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= n
	mb /= n
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		if va == vb && ma == mb {
			return 1
		}
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// Thumbnail is the 128x128 grayscale downsample SSIM works on.
func Thumbnail(img image.Image) *image.Gray {
	return gray(img, img.Bounds(), thumbSide, thumbSide)
}

// SSIM is the mean structural similarity of two pages over 8x8 blocks of their thumbnails.
func SSIM(a, b image.Image) float64 {
	return ThumbSSIM(Thumbnail(a), Thumbnail(b))
}

// ThumbSSIM compares two thumbnails produced by Thumbnail.
func ThumbSSIM(a, b *image.Gray) float64 {
	const (
		c1 = (0.01 * 255) * (0.01 * 255)
		c2 = (0.03 * 255) * (0.03 * 255)
	)
	if a == nil || b == nil || a.Bounds() != b.Bounds() {
		return 0
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	var total float64
	var blocks int
	for by := 0; by+ssimBlock <= h; by += ssimBlock {
		for bx := 0; bx+ssimBlock <= w; bx += ssimBlock {
			var sa, sb, saa, sbb, sab float64
			for y := by; y < by+ssimBlock; y++ {
				for x := bx; x < bx+ssimBlock; x++ {
					pa := float64(a.GrayAt(x, y).Y)
					pb := float64(b.GrayAt(x, y).Y)
					sa += pa
					sb += pb
					saa += pa * pa
					sbb += pb * pb
					sab += pa * pb
				}
			}
			n := float64(ssimBlock * ssimBlock)
			ma, mb := sa/n, sb/n
			va := saa/n - ma*ma
			vb := sbb/n - mb*mb
			cov := sab/n - ma*mb
			total += ((2*ma*mb + c1) * (2*cov + c2)) / ((ma*ma + mb*mb + c1) * (va + vb + c2))
			blocks++
		}
	}
	if blocks == 0 {
		return 0
	}
	return total / float64(blocks)
}

// Fingerprint bundles the visual signals of one page.
type Fingerprint struct {
	Header    uint64
	Footer    uint64
	Histogram []float64
	Thumb     *image.Gray
}

// NewFingerprint computes every signal of img.
func NewFingerprint(img image.Image) *Fingerprint {
	return &Fingerprint{
		Header:    RegionHash(img, RegionHeader),
		Footer:    RegionHash(img, RegionFooter),
		Histogram: Histogram(img),
		Thumb:     Thumbnail(img),
	}
}

// LoadFingerprint decodes the image at path and fingerprints it.
func LoadFingerprint(path string) (*Fingerprint, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewFingerprint(img), nil
}
