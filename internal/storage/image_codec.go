package storage

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultJPEGQuality is used when re-encoding JPEG images.
const DefaultJPEGQuality = 95

// ErrUnsupportedFormat is returned when image data cannot be decoded.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DecodeImage decodes PNG, JPEG, BMP or TIFF data and reports the format name
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// FormatFromFilename maps a file name to an output format. Unknown extensions
// fall back to PNG.
func FormatFromFilename(name string) imaging.Format {
	f, err := imaging.FormatFromFilename(name)
	if err != nil {
		return imaging.PNG
	}
	return f
}

// EncodeImage writes img in the given format
func EncodeImage(w io.Writer, img image.Image, format imaging.Format) error {
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(DefaultJPEGQuality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}
