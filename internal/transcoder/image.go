package transcoder

import (
	"fmt"
	"image"
	"os"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support

	"asset-store/internal/logging"
)

// MaxImagePixels bounds the decoded size of a fallback source. A 20MP RGBA
// image is about 80MB.
const MaxImagePixels = 20_000_000

// ImageDimensions returns the dimensions of the image at path without
// decoding pixel data.
func ImageDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}

// imagingThumbnail decodes src, scales it to at most width pixels wide and
// encodes it to dest in the format named by dest's extension.
func imagingThumbnail(src, dest string, width int) error {
	w, h, err := ImageDimensions(src)
	if err != nil {
		return fmt.Errorf("read image header: %w", err)
	}
	if w*h > MaxImagePixels {
		return fmt.Errorf("image %dx%d exceeds %d pixel limit", w, h, MaxImagePixels)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, dest, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return nil
}
