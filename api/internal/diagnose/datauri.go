package diagnose

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotDataURI   = errors.New("not a data:<mime>;base64,<payload> URI")
	ErrNotImageMIME = errors.New("data URI is not an image")
	ErrEmptyPayload = errors.New("data URI payload is empty")
)

// Image is a decoded data URI.
type Image struct {
	MIME string
	Data []byte
}

// ParseDataURI decodes data:<mime>;base64,<payload>. The mime must be image/*
// and the payload must decode to at least one byte.
func ParseDataURI(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if len(s) < len("data:") || !strings.EqualFold(s[:len("data:")], "data:") {
		return Image{}, ErrNotDataURI
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return Image{}, ErrNotDataURI
	}
	meta := s[len("data:"):comma] // "<mime>;base64"
	semi := strings.LastIndexByte(meta, ';')
	if semi < 0 || !strings.EqualFold(meta[semi+1:], "base64") {
		return Image{}, ErrNotDataURI
	}
	mime := strings.ToLower(strings.TrimSpace(meta[:semi]))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		// drop parameters such as ;name=leaf.jpg
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") || len(mime) == len("image/") {
		return Image{}, ErrNotImageMIME
	}

	payload := s[comma+1:]
	if payload == "" {
		return Image{}, ErrEmptyPayload
	}
	data, err := decodeBase64(payload)
	if err != nil {
		return Image{}, fmt.Errorf("bad base64 payload: %w", err)
	}
	if len(data) == 0 {
		return Image{}, ErrEmptyPayload
	}
	return Image{MIME: mime, Data: data}, nil
}

// standard alphabet first, then URL-safe, with and without padding
func decodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b2, err2 := enc.DecodeString(s); err2 == nil {
			return b2, nil
		}
	}
	return nil, err
}

// EncodeDataURI is the inverse of ParseDataURI.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
