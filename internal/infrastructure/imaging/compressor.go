package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"chatkit/internal/domain/entity"
	"chatkit/pkg/errors"
	"chatkit/pkg/logger"
)

const (
	startQuality   = 90
	qualityStep    = 10
	qualityFloor   = 10
	DefaultMaxSize = 800 * 1024
)

// Compress re-encodes the image as JPEG under maxBytes, stepping quality down
// by a fixed quantum until the budget is met or the quality floor is reached.
// The floor wins over the budget: the result may exceed maxBytes at minimum
// quality. Returns the encoded bytes and the source pixel dimensions.
func Compress(data []byte, maxBytes int) ([]byte, entity.ImageSize, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSize
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, entity.ImageSize{}, errors.BadRequest("Unsupported image data", err)
	}

	bounds := img.Bounds()
	size := entity.ImageSize{
		Width:  float64(bounds.Dx()),
		Height: float64(bounds.Dy()),
	}

	var buf bytes.Buffer
	quality := startQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, entity.ImageSize{}, errors.Internal("Failed to encode image", err)
		}
		if buf.Len() <= maxBytes || quality <= qualityFloor {
			break
		}
		quality -= qualityStep
	}

	logger.Debug("Image compressed: %dx%d, quality=%d, size=%dKB",
		bounds.Dx(), bounds.Dy(), quality, buf.Len()/1024)

	return buf.Bytes(), size, nil
}
