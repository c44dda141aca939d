package diagnose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURI(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	img, err := ParseDataURI(EncodeDataURI("image/png", payload))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, payload, img.Data)

	img, err = ParseDataURI("DATA:Image/JPEG;name=leaf.jpg;BASE64,/9j/")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIME)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, img.Data)

	// URL-safe alphabet without padding
	img, err = ParseDataURI("data:image/webp;base64,_-8")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xEF}, img.Data)
}

func TestParseDataURIErrors(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"hello", ErrNotDataURI},
		{"data:image/png;base64", ErrNotDataURI},
		{"data:image/png,aGk=", ErrNotDataURI},
		{"data:text/plain;base64,aGk=", ErrNotImageMIME},
		{"data:image/;base64,aGk=", ErrNotImageMIME},
		{"data:image/png;base64,", ErrEmptyPayload},
	}
	for _, c := range cases {
		_, err := ParseDataURI(c.in)
		assert.True(t, errors.Is(err, c.want), "%q: got %v", c.in, err)
	}

	_, err := ParseDataURI("data:image/png;base64,***")
	assert.ErrorContains(t, err, "bad base64")
}
