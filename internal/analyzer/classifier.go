package analyzer

import (
	"image"
	"image/color"

	"github.com/anime-shed/heatmap-inspector/internal/legend"
)

// pixelClassifier implements PixelClassifier. Each pixel is resolved with a
// linear scan of the legend and nothing is allocated per pixel.
type pixelClassifier struct{}

// NewPixelClassifier creates a classifier for row strips
func NewPixelClassifier() PixelClassifier {
	return &pixelClassifier{}
}

// ClassifyRows visits rows [minY, maxY) in row-major order, resolves every
// pixel to its nearest legend entry and accumulates the concentration sum in
// visiting order.
func (pc *pixelClassifier) ClassifyRows(img image.Image, lg *legend.Legend, minY, maxY int) StripResult {
	bounds := img.Bounds()
	res := StripResult{Counts: make([]int64, lg.Len())}

	classify := func(rgb legend.RGB) {
		idx := lg.Nearest(rgb)
		res.Sum += lg.Entry(idx).Concentration
		res.Counts[idx]++
		res.Pixels++
	}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := minY; y < maxY; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):]
			for x := 0; x < bounds.Dx(); x++ {
				p := row[x*4 : x*4+3 : x*4+3]
				classify(legend.RGB{R: int(p[0]), G: int(p[1]), B: int(p[2])})
			}
		}
	case *image.RGBA:
		for y := minY; y < maxY; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				i := src.PixOffset(x, y)
				if src.Pix[i+3] == 0xff {
					classify(legend.RGB{R: int(src.Pix[i]), G: int(src.Pix[i+1]), B: int(src.Pix[i+2])})
					continue
				}
				classify(toRGB(src.At(x, y)))
			}
		}
	default:
		for y := minY; y < maxY; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				classify(toRGB(img.At(x, y)))
			}
		}
	}

	return res
}

// toRGB extracts the straight (non-premultiplied) 8-bit RGB channels of c.
// Alpha is discarded.
func toRGB(c color.Color) legend.RGB {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return legend.RGB{R: int(n.R), G: int(n.G), B: int(n.B)}
}
