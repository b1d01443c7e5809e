package analyzer

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anime-shed/heatmap-inspector/internal/legend"
)

func TestNewPixelClassifier(t *testing.T) {
	if NewPixelClassifier() == nil {
		t.Error("Expected non-nil pixel classifier")
	}
}

func TestClassifyRows_RowRange(t *testing.T) {
	pc := NewPixelClassifier()
	lg := legend.NO2()

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.RGBA{255, 0, 0, 255})
		img.Set(x, 1, color.RGBA{0, 255, 0, 255})
		img.Set(x, 2, color.RGBA{0, 0, 255, 255})
	}

	res := pc.ClassifyRows(img, lg, 1, 3)
	assert.Equal(t, 8, res.Pixels)
	assert.Equal(t, 4*50.0+4*10.0, res.Sum)
	assert.Equal(t, []int64{0, 4, 4, 0}, res.Counts)
}

func TestClassifyRows_ImageTypes(t *testing.T) {
	lg := legend.NO2()
	pc := NewPixelClassifier()
	rect := image.Rect(0, 0, 3, 2)

	nrgba := image.NewNRGBA(rect)
	paletted := image.NewPaletted(rect, color.Palette{color.RGBA{255, 255, 0, 255}})
	ycbcr := image.NewYCbCr(rect, image.YCbCrSubsampleRatio444)
	for i := range ycbcr.Cr {
		// converts to roughly (255,255,0)
		ycbcr.Y[i], ycbcr.Cb[i], ycbcr.Cr[i] = 226, 0, 149
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			nrgba.Set(x, y, color.NRGBA{255, 255, 0, 255})
		}
	}

	tests := []struct {
		name string
		img  image.Image
	}{
		{"NRGBA", nrgba},
		{"Paletted", paletted},
		{"YCbCr", ycbcr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := pc.ClassifyRows(tt.img, lg, 0, 2)
			assert.Equal(t, 6, res.Pixels)
			assert.Equal(t, []int64{0, 0, 0, 6}, res.Counts)
		})
	}
}

func TestClassifyRows_AlphaIgnored(t *testing.T) {
	lg := legend.NO2()
	pc := NewPixelClassifier()

	// half-transparent pure blue: straight RGB is still (0,0,255)
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{0, 0, 255, 128})
	img.Set(1, 0, color.NRGBA{0, 0, 255, 10})

	res := pc.ClassifyRows(img, lg, 0, 1)
	assert.Equal(t, []int64{0, 0, 2, 0}, res.Counts)

	// the same colors stored premultiplied
	rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rgba.Set(0, 0, color.NRGBA{0, 0, 255, 128})
	res = pc.ClassifyRows(rgba, lg, 0, 1)
	assert.Equal(t, []int64{0, 0, 1, 0}, res.Counts)
}

func TestToRGB(t *testing.T) {
	assert.Equal(t, legend.RGB{R: 12, G: 34, B: 56}, toRGB(color.RGBA{12, 34, 56, 255}))
	assert.Equal(t, legend.RGB{R: 128, G: 128, B: 128}, toRGB(color.Gray{128}))
}

// noiseNRGBA fills an NRGBA image with pseudo-random colors, the worst case
// for any per-color memoization
func noiseNRGBA(width, height int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func TestClassifyRows_MatchesDirectNearest(t *testing.T) {
	lg := legend.NO2()
	img := noiseNRGBA(120, 80, 11)

	var want float64
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			want += lg.NearestConcentration(toRGB(img.At(x, y)))
		}
	}

	res := NewPixelClassifier().ClassifyRows(img, lg, 0, 80)
	assert.Equal(t, want, res.Sum)
	assert.Equal(t, 120*80, res.Pixels)
}

func TestClassifyRows_MemoryIndependentOfColors(t *testing.T) {
	lg := legend.NO2()
	pc := NewPixelClassifier()
	img := noiseNRGBA(256, 256, 5)

	allocs := testing.AllocsPerRun(5, func() {
		pc.ClassifyRows(img, lg, 0, 256)
	})
	assert.LessOrEqual(t, allocs, 4.0)
}

func BenchmarkClassifyRows(b *testing.B) {
	lg := legend.NO2()
	pc := NewPixelClassifier()

	uniform := image.NewNRGBA(image.Rect(0, 0, 1000, 1000))
	for i := 0; i < len(uniform.Pix); i += 4 {
		uniform.Pix[i], uniform.Pix[i+3] = 0xff, 0xff
	}

	benchmarks := []struct {
		name string
		img  *image.NRGBA
	}{
		{"noise", noiseNRGBA(1000, 1000, 1)},
		{"uniform", uniform},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				pc.ClassifyRows(bm.img, lg, 0, 1000)
			}
		})
	}
}
