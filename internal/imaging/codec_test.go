package imaging_test

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micdrop/avatar-bridge/internal/imaging"
	"github.com/micdrop/avatar-bridge/internal/testhelpers"
)

func TestPNGRoundTrip(t *testing.T) {
	codec := imaging.PNG{}

	src := testhelpers.SolidImage(3, 3, color.NRGBA{R: 0x10, G: 0x80, B: 0xf0, A: 0xff})

	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, src))

	decoded, err := codec.Decode(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, src.Bounds(), decoded.Bounds())
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			sr, sg, sb, sa := src.At(x, y).RGBA()
			dr, dg, db, da := decoded.At(x, y).RGBA()
			assert.Equal(t, [4]uint32{sr, sg, sb, sa}, [4]uint32{dr, dg, db, da})
		}
	}
}

func TestPNGDecode_MalformedBytes(t *testing.T) {
	codec := imaging.PNG{}

	_, err := codec.Decode([]byte("this is not a png"))

	var decodeErr *imaging.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}
