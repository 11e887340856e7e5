// Package images - Image definition and decoding for the preprocessing stage.
package images

import (
	"bytes"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/nvr-ai/go-cavity/common"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Image represents an encoded photo with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Decode rasterizes the encoded photo.
//
// Returns:
//   - image.Image: The decoded image, rotated upright according to its EXIF orientation.
//   - error: A common.KindImageDecode error if the data is empty or cannot be decoded.
func (i *Image) Decode() (image.Image, error) {
	if i == nil || len(i.Data) == 0 {
		return nil, common.Errorf(common.KindImageDecode, "decode", "image data is empty")
	}
	return Decode(bytes.NewReader(i.Data))
}

// Decode reads and rasterizes an image stream.
//
// Phone cameras store the sensor orientation in EXIF instead of rotating the
// pixels, so the image is auto-oriented before any geometry is computed.
//
// Arguments:
//   - r: The encoded image stream (JPEG, PNG, GIF, BMP, TIFF or WebP).
//
// Returns:
//   - image.Image: The decoded image.
//   - error: A common.KindImageDecode error on failure or a zero-size result.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, common.E(common.KindImageDecode, "decode", err)
	}
	if err := validateBounds(img); err != nil {
		return nil, err
	}
	return img, nil
}

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.E(common.KindImageDecode, "open", err)
	}
	defer f.Close()

	return Decode(f)
}

func validateBounds(img image.Image) error {
	if img == nil {
		return common.Errorf(common.KindImageDecode, "validate", "image is nil")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return common.Errorf(common.KindImageDecode, "validate", "invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}
	return nil
}
