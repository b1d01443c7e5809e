// Package annotate stamps the computed average onto a copy of the analyzed
// image.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	DefaultFontSize = 24
	DefaultMargin   = 10
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Label formats the annotation text, e.g. "Avg NO₂: 65.00 µg/m³".
func Label(symbol, unit string, value float64) string {
	return fmt.Sprintf("Avg %s: %.2f %s", symbol, value, unit)
}

// Annotator draws a single line of text into the bottom-right corner.
type Annotator struct {
	FontSize float64
	Margin   int
	Color    color.Color
}

// NewAnnotator returns an annotator drawing white 24pt text with a 10px margin
func NewAnnotator() *Annotator {
	return &Annotator{
		FontSize: DefaultFontSize,
		Margin:   DefaultMargin,
		Color:    color.White,
	}
}

// Annotate returns a copy of img with text drawn so that the bottom-right
// corner of its bounding box, descenders included, sits Margin pixels from the
// image corner. img is left untouched.
func (a *Annotator) Annotate(img image.Image, text string) *image.NRGBA {
	face := truetype.NewFace(font, &truetype.Options{Size: a.FontSize})
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(face)
	dc.SetColor(a.Color)

	// gg anchors on the baseline
	descent := face.Metrics().Descent.Ceil()
	x := float64(dc.Width() - a.Margin)
	y := float64(dc.Height() - a.Margin - descent)
	dc.DrawStringAnchored(text, x, y, 1, 0)

	return imaging.Clone(dc.Image())
}

// TextSize reports the rendered width and height of text at the annotator's
// font size.
func (a *Annotator) TextSize(text string) (w, h float64) {
	dc := gg.NewContext(1, 1)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: a.FontSize}))
	return dc.MeasureString(text)
}

// ResultName returns the file name used for the annotated copy of an upload.
func ResultName(name string) string {
	return "result_" + filepath.Base(name)
}
