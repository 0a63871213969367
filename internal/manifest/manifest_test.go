package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micdrop/avatar-bridge/internal/manifest"
)

func TestParse(t *testing.T) {
	m, err := manifest.Parse([]byte(`
avatars:
  - uid: "_1010885414850154587"
    name: Phan Huy
    effect: 1
  - uid: "42"
    name: somebody
`))
	require.NoError(t, err)

	require.Len(t, m.Avatars, 2)
	assert.Equal(t, "1010885414850154587", m.Avatars[0].UID, "the spreadsheet underscore prefix is stripped")
	assert.Equal(t, 1, m.Avatars[0].Effect)
	assert.Equal(t, "42", m.Avatars[1].UID)
	assert.Equal(t, 0, m.Avatars[1].Effect)

	assert.Equal(t, []string{"1010885414850154587", "42"}, m.Identifiers())
}

func TestParse_RejectsNegativeEffect(t *testing.T) {
	_, err := manifest.Parse([]byte(`
avatars:
  - uid: "42"
    effect: -1
`))
	assert.ErrorContains(t, err, "negative effect code")
}

func TestParse_RejectsMalformedYAML(t *testing.T) {
	_, err := manifest.Parse([]byte("avatars: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatars.yaml")
	require.NoError(t, os.WriteFile(path, []byte("avatars:\n  - uid: \"42\"\n"), 0o644))

	m, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, m.Identifiers())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := manifest.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"Phan Huy":    "phanhuy",
		"Ñandú Pérez": "nanduperez",
		"user_42":     "user_42",
		"Zoë!!":       "zoe",
		"  spaced  ":  "spaced",
	}

	for input, expected := range cases {
		assert.Equal(t, expected, manifest.CleanName(input), "input %q", input)
	}
}
