package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
)

// Codec abstracts image decoding and encoding so the concrete format
// library is swappable and tests can run against synthetic images.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	Encode(w io.Writer, img image.Image) error
}

// PNG is the codec for cache entries: avatars are requested from the
// CDN as PNG and persisted as they decode.
type PNG struct{}

func (PNG) Decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

func (PNG) Encode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// DecodeError reports malformed image bytes. It is deliberately
// distinct from a connectivity failure: the fetch completed, the
// payload did not decode.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("imaging: response bytes did not decode as an image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
