package biometric

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxSampleWidth and MaxSampleHeight bound the image sent to the embedding server.
	MaxSampleWidth  = 800
	MaxSampleHeight = 600

	// DefaultMinFaceSize is the smallest accepted face (and image) edge in pixels.
	DefaultMinFaceSize = 20

	sampleJPEGQuality = 85
)

// PrepareSample decodes a raw capture, rejects images that cannot contain a usable
// face and downscales large captures to fit within MaxSampleWidth x MaxSampleHeight.
// Images that already fit are returned unchanged.
func PrepareSample(data []byte, minSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty sample", ErrLowQuality)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrLowQuality, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < minSize || h < minSize {
		return nil, fmt.Errorf("%w: image %dx%d is smaller than %d px", ErrLowQuality, w, h, minSize)
	}

	if w <= MaxSampleWidth && h <= MaxSampleHeight {
		return data, nil
	}

	ratio := min(float64(MaxSampleWidth)/float64(w), float64(MaxSampleHeight)/float64(h))
	newW := max(int(float64(w)*ratio), 1)
	newH := max(int(float64(h)*ratio), 1)

	resized := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: sampleJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBase64Sample accepts raw base64 or a "data:image/...;base64," URL.
func DecodeBase64Sample(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, errors.New("malformed data URL")
		}
		s = s[idx+1:]
	}
	if s == "" {
		return nil, errors.New("empty image data")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some capture clients drop the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image: %w", err)
		}
	}
	return data, nil
}
