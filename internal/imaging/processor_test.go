package imaging_test

import (
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micdrop/avatar-bridge/internal/cache"
	"github.com/micdrop/avatar-bridge/internal/imaging"
	"github.com/micdrop/avatar-bridge/internal/testhelpers"
)

// writeBaseEntry seeds an effect-0 cache entry for an identifier and
// returns its path.
func writeBaseEntry(t *testing.T, store cache.Store, identifier string, c color.Color) string {
	t.Helper()

	path := store.PathFor(identifier, 0)
	require.NoError(t, store.Write(path, testhelpers.EncodePNG(t, testhelpers.SolidImage(4, 4, c))))
	return path
}

func TestDerive_EffectZeroIsNoOp(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	processor := imaging.NewProcessor(store, imaging.PNG{})

	base := writeBaseEntry(t, store, "42", color.NRGBA{R: 0xff, A: 0xff})

	path, err := processor.Derive(base, 0)

	require.NoError(t, err)
	assert.Equal(t, base, path)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "effect 0 must not create a new file")
}

func TestDerive_GrayscaleCreatesVariant(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	codec := imaging.PNG{}
	processor := imaging.NewProcessor(store, codec)

	base := writeBaseEntry(t, store, "42", color.NRGBA{R: 0xe0, G: 0x40, B: 0x10, A: 0xff})
	baseBefore, err := os.ReadFile(base)
	require.NoError(t, err)

	path, err := processor.Derive(base, imaging.EffectGrayscale)
	require.NoError(t, err)

	assert.NotEqual(t, base, path)
	assert.Equal(t, store.PathFor("42", 1), path)

	// the variant decodes and every channel is equal
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := codec.Decode(data)
	require.NoError(t, err)
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			assert.Equal(t, r, g)
			assert.Equal(t, g, b)
		}
	}

	// the base entry is untouched
	baseAfter, err := os.ReadFile(base)
	require.NoError(t, err)
	assert.Equal(t, baseBefore, baseAfter)
}

func TestDerive_UnrecognizedEffectPassesThrough(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	processor := imaging.NewProcessor(store, imaging.PNG{})

	base := writeBaseEntry(t, store, "42", color.NRGBA{G: 0xff, A: 0xff})

	path, err := processor.Derive(base, 99)

	require.NoError(t, err)
	assert.Equal(t, base, path)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "an unrecognized effect must not create a file")
}

func TestDerive_MissingBaseEntry(t *testing.T) {
	store := cache.NewStore(t.TempDir())
	processor := imaging.NewProcessor(store, imaging.PNG{})

	_, err := processor.Derive(store.PathFor("42", 0), imaging.EffectGrayscale)
	assert.Error(t, err)
}

func TestApply_Recognition(t *testing.T) {
	img := testhelpers.SolidImage(2, 2, color.NRGBA{B: 0xff, A: 0xff})

	_, recognized := imaging.Apply(img, imaging.EffectGrayscale)
	assert.True(t, recognized)

	out, recognized := imaging.Apply(img, 99)
	assert.False(t, recognized)
	assert.Equal(t, img, out)

	assert.True(t, imaging.Recognized(imaging.EffectNone))
	assert.True(t, imaging.Recognized(imaging.EffectGrayscale))
	assert.False(t, imaging.Recognized(99))
	assert.False(t, imaging.Recognized(-1))
}
