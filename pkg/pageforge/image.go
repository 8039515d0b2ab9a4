package pageforge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	// Register the decoders the image cache understands.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes raw image bytes into a CachedImage ready for
// insertion. Decoding is the expensive step the image cache exists to
// amortize; callers run it inside the cache's fetch callback.
func DecodeImage(source string, data []byte) (*CachedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no image data")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image from %s: %w", source, err)
	}

	bounds := img.Bounds()
	hasAlpha := false
	if opaque, ok := img.(interface{ Opaque() bool }); ok {
		hasAlpha = !opaque.Opaque()
	}

	return &CachedImage{
		Source:   source,
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		HasAlpha: hasAlpha,
		Data:     data,
	}, nil
}

// ParseDataURI parses a data URI and returns the MIME type and decoded data.
func ParseDataURI(dataURI string) (string, []byte, error) {
	if dataURI == "" {
		return "", nil, fmt.Errorf("empty data URI")
	}

	// Data URI format: data:[<mediatype>][;base64],<data>
	if !strings.HasPrefix(dataURI, "data:") {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	dataURI = dataURI[5:]

	commaIndex := strings.Index(dataURI, ",")
	if commaIndex == -1 {
		return "", nil, fmt.Errorf("invalid data URI format")
	}

	metadata := dataURI[:commaIndex]
	dataStr := dataURI[commaIndex+1:]
	if dataStr == "" {
		return "", nil, fmt.Errorf("no image data")
	}

	if !strings.HasSuffix(metadata, ";base64") {
		return "", nil, fmt.Errorf("missing base64 marker")
	}
	mimeType := strings.TrimSuffix(metadata, ";base64")

	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff", "image/webp":
	default:
		return "", nil, fmt.Errorf("unsupported image type: %s", mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 data: %w", err)
	}

	return mimeType, data, nil
}

// IsDataURI reports whether the source string is an inline data URI.
func IsDataURI(source string) bool {
	return strings.HasPrefix(source, "data:")
}
