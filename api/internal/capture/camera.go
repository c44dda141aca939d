package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"

	"kisan-mitra/api/internal/diagnose"
)

type Facing int

const (
	FacingEnvironment Facing = iota
	FacingUser
)

func (f Facing) String() string {
	if f == FacingUser {
		return "user"
	}
	return "environment"
}

// Camera is a device that can stream frames.
type Camera interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

type Stream interface {
	Frame() (image.Image, error)
	Close() error
}

const (
	DefaultQuality   = 92
	DefaultMaxPixels = 4_000_000
)

type options struct {
	quality   int
	maxPixels int
}

type Option func(*options)

func WithQuality(q int) Option {
	return func(o *options) {
		if q > 0 && q <= 100 {
			o.quality = q
		}
	}
}

// WithMaxPixels downscales frames above n pixels. n <= 0 disables scaling.
func WithMaxPixels(n int) Option {
	return func(o *options) { o.maxPixels = n }
}

// Capture grabs one frame, preferring the environment-facing camera, and
// returns it as a JPEG data URI. The stream is always closed.
func Capture(ctx context.Context, cam Camera, opts ...Option) (uri string, err error) {
	if cam == nil {
		return "", ErrUnsupported
	}
	o := options{quality: DefaultQuality, maxPixels: DefaultMaxPixels}
	for _, fn := range opts {
		fn(&o)
	}

	stream, err := cam.Open(ctx, FacingEnvironment)
	if errors.Is(err, ErrNoCamera) {
		stream, err = cam.Open(ctx, FacingUser)
	}
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close camera: %w", cerr)
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	frame, err := stream.Frame()
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return "", fmt.Errorf("%w: empty frame", ErrNotImage)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b, err := EncodeJPEG(frame, o.maxPixels, o.quality)
	if err != nil {
		return "", err
	}
	if len(b) > MaxImageBytes {
		return "", ErrTooLarge
	}
	return diagnose.EncodeDataURI("image/jpeg", b), nil
}

// EncodeJPEG draws img onto an RGBA canvas, scaling it down when it has more
// than maxPixels pixels, and encodes it.
func EncodeJPEG(img image.Image, maxPixels, quality int) ([]byte, error) {
	sb := img.Bounds()
	w, h := sb.Dx(), sb.Dy()

	if total := w * h; maxPixels > 0 && total > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(total))
		w = max(1, int(float64(w)*scale+0.5))
		h = max(1, int(float64(h)*scale+0.5))
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), img, sb.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, sb, draw.Src, nil)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
