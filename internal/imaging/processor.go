package imaging

import (
	"bytes"
	"fmt"
	"os"

	"github.com/micdrop/avatar-bridge/internal/cache"
)

// Processor derives effect variants from a base cache entry. The base
// entry is read, transformed, and written under the variant's own cache
// key; the source entry is never modified.
type Processor struct {
	store cache.Store
	codec Codec
}

func NewProcessor(store cache.Store, codec Codec) Processor {
	return Processor{
		store: store,
		codec: codec,
	}
}

// Derive produces the cache entry for the requested effect from an
// existing base entry, returning the variant's path. Effect 0 and
// unrecognized codes are no-ops: the base path is returned unchanged
// and nothing is written.
func (p Processor) Derive(basePath string, effect int) (string, error) {
	if effect == EffectNone || !Recognized(effect) {
		return basePath, nil
	}

	data, err := os.ReadFile(basePath)
	if err != nil {
		return "", fmt.Errorf("could not read base cache entry: %w", err)
	}

	img, err := p.codec.Decode(data)
	if err != nil {
		return "", err
	}

	out, _ := Apply(img, effect)

	identifier, err := p.store.IdentifierOf(basePath)
	if err != nil {
		return "", fmt.Errorf("could not recover identifier from cache entry: %w", err)
	}

	variantPath := p.store.PathFor(identifier, effect)

	var buf bytes.Buffer
	if err := p.codec.Encode(&buf, out); err != nil {
		return "", fmt.Errorf("could not encode effect %d variant: %w", effect, err)
	}

	if err := p.store.Write(variantPath, buf.Bytes()); err != nil {
		return "", err
	}

	return variantPath, nil
}
