package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultThumbnailMaxDimension is the longest edge of history previews.
const DefaultThumbnailMaxDimension = 256

const thumbnailJPEGQuality = 80

// Thumbnail decodes an image payload (raw bytes) and returns a JPEG no larger
// than maxDimension on its longest edge.
func Thumbnail(data []byte, maxDimension int) ([]byte, string, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultThumbnailMaxDimension
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	newWidth, newHeight := thumbnailDimensions(bounds.Dx(), bounds.Dy(), maxDimension)

	out := img
	if newWidth != bounds.Dx() || newHeight != bounds.Dy() {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", bounds.Dx()).
		Int("orig_height", bounds.Dy()).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Thumbnail generated")

	return buf.Bytes(), "image/jpeg", nil
}

// ThumbnailDataURL is Thumbnail for a data URL payload.
func ThumbnailDataURL(payload string, maxDimension int) ([]byte, string, error) {
	_, data, err := DecodeDataURL(payload)
	if err != nil {
		return nil, "", err
	}
	return Thumbnail(data, maxDimension)
}

// thumbnailDimensions keeps the aspect ratio and never upscales.
func thumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width > height {
		return maxDimension, max(1, int(float64(height)*float64(maxDimension)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxDimension)/float64(height))), maxDimension
}
