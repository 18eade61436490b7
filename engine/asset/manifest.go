package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the well-known file a package directory is identified by.
const ManifestFileName = "manifest.toml"

// Manifest is the versioned asset index of one package.
type Manifest struct {
	PackageName    string    `toml:"package_name"`
	PackageVersion string    `toml:"package_version"`
	CreatedAt      time.Time `toml:"created_at"`
	// How asset file names were derived from locations; see NameStyle*.
	OutputNameStyle string       `toml:"output_name_style,omitempty"`
	Assets          []*AssetInfo `toml:"assets"`

	index map[string]*AssetInfo
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m := &Manifest{}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.PackageName == "" {
		return nil, fmt.Errorf("manifest %s has no package name", path)
	}
	m.buildIndex()
	return m, nil
}

func (m *Manifest) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest for %s: %w", m.PackageName, err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0o644)
}

func (m *Manifest) buildIndex() {
	m.index = make(map[string]*AssetInfo, len(m.Assets))
	for _, ai := range m.Assets {
		ai.PackageName = m.PackageName
		m.index[ai.Location] = ai
	}
}

// Lookup returns the descriptor for a location, nil when unregistered.
func (m *Manifest) Lookup(location string) *AssetInfo {
	if m.index == nil {
		m.buildIndex()
	}
	return m.index[location]
}

// ByTags collects every descriptor carrying at least one of the tags.
func (m *Manifest) ByTags(tags ...string) []*AssetInfo {
	var out []*AssetInfo
	for _, ai := range m.Assets {
		if ai.HasTag(tags...) {
			out = append(out, ai)
		}
	}
	return out
}

func (m *Manifest) Locations() []string {
	out := make([]string, 0, len(m.Assets))
	for _, ai := range m.Assets {
		out = append(out, ai.Location)
	}
	return out
}
