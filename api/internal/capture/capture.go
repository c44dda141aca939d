// Package capture turns a chosen file or a camera frame into an image data URI.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"kisan-mitra/api/internal/diagnose"
)

// MaxImageBytes matches the relay request body limit.
const MaxImageBytes = 10 << 20

var (
	ErrPermissionDenied = errors.New("capture: camera permission denied")
	ErrNoCamera         = errors.New("capture: no camera available")
	ErrUnsupported      = errors.New("capture: camera capture not supported")
	ErrNotImage         = errors.New("capture: not an image")
	ErrTooLarge         = errors.New("capture: image too large")
)

// UserMessage is the text shown to the farmer for a capture failure.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "Sorry, your device doesn't support camera access."
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNoCamera):
		return "Could not access the camera. Please ensure you have given permission."
	case errors.Is(err, ErrTooLarge):
		return "The image is too large. Please choose a photo under 10 MB."
	case errors.Is(err, ErrNotImage):
		return "Please choose an image file."
	default:
		return "Could not read the image. Please try again."
	}
}

func FromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return FromReader(f, "")
}

// FromReader reads at most MaxImageBytes. declaredType may be empty, in
// which case the type is sniffed from the content.
func FromReader(r io.Reader, declaredType string) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return FromBytes(b, declaredType)
}

func FromBytes(b []byte, declaredType string) (string, error) {
	if len(b) == 0 {
		return "", ErrNotImage
	}
	if len(b) > MaxImageBytes {
		return "", ErrTooLarge
	}

	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" && !strings.HasPrefix(declared, "image/") {
		return "", fmt.Errorf("%w: declared %s", ErrNotImage, declared)
	}

	detected := mimetype.Detect(b).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	mime := detected
	if !strings.HasPrefix(mime, "image/") {
		if !strings.HasPrefix(declared, "image/") {
			return "", fmt.Errorf("%w: detected %s", ErrNotImage, detected)
		}
		mime = declared
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(b)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return diagnose.EncodeDataURI(mime, b), nil
}
