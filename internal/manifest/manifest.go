package manifest

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Manifest lists the avatars a slide run needs. It is the boundary
// artifact between spreadsheet handling (which happens elsewhere) and
// the download pipeline: one entry per account, in slide order.
type Manifest struct {
	Avatars []Entry `yaml:"avatars"`
}

type Entry struct {
	// UID is the account identifier. Spreadsheets prefix identifiers
	// with an underscore to stop cell values being rounded; the prefix
	// is stripped on load.
	UID string `yaml:"uid"`

	// Name is the display name used to match the entry to a slide row.
	Name string `yaml:"name"`

	// Effect selects the variant to derive after download; 0 keeps the
	// original.
	Effect int `yaml:"effect"`
}

func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("could not read manifest: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("could not parse manifest: %w", err)
	}

	for i := range m.Avatars {
		entry := &m.Avatars[i]
		entry.UID = strings.TrimPrefix(strings.TrimSpace(entry.UID), "_")

		if entry.Effect < 0 {
			return Manifest{}, fmt.Errorf("avatar %d (%s): negative effect code %d", i, entry.UID, entry.Effect)
		}
	}

	return m, nil
}

// Identifiers returns the uid column in manifest order.
func (m Manifest) Identifiers() []string {
	ids := make([]string, len(m.Avatars))
	for i, entry := range m.Avatars {
		ids[i] = entry.UID
	}
	return ids
}

var nonUsernameChar = regexp.MustCompile(`[^A-Za-z0-9_]`)

// CleanName normalizes a display name for matching against spreadsheet
// rows: diacritics are folded to their base letters, characters outside
// the username alphabet are dropped, and the result is lowercased. When
// stripping would remove everything, the folded name is kept so
// non-Latin names still produce a usable key.
func CleanName(name string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	cleaned := nonUsernameChar.ReplaceAllString(folded, "")
	if cleaned == "" {
		cleaned = folded
	}

	return strings.ToLower(strings.ReplaceAll(cleaned, " ", ""))
}
