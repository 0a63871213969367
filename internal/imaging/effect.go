package imaging

import (
	"image"
	"image/draw"
)

// Effect codes select a post-processing transform for a cached avatar.
// Code 0 is the identity. Unrecognized non-zero codes pass through
// untouched so manifests written for newer effect sets keep working
// against older binaries.
const (
	EffectNone      = 0
	EffectGrayscale = 1
)

// Recognized reports whether an effect code names a transform this
// build knows how to apply.
func Recognized(effect int) bool {
	switch effect {
	case EffectNone, EffectGrayscale:
		return true
	}
	return false
}

// Apply returns the transformed image and whether the effect code was
// recognized as a real transform. Identity and unrecognized codes
// return the input unchanged.
func Apply(img image.Image, effect int) (image.Image, bool) {
	switch effect {
	case EffectGrayscale:
		return grayscale(img), true
	}
	return img, false
}

func grayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)
	return out
}
