package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spaghettifunk/quiver/engine/core"
)

// File naming styles for packed output. Location keeps the source-relative
// path; hash names files after their content digest, which hides the asset
// layout from players poking at the install directory.
const (
	NameStyleLocation = "location"
	NameStyleHash     = "hash"
)

// Packer scans a source directory and produces the manifest that offline and
// host-online packages are served from. The editor-side build pipeline and
// simulate mode both run it.
type Packer struct {
	SrcDir      string
	PackageName string
	Version     string
	// Tags maps a file extension (".wav") to a tag applied to every matching
	// asset.
	Tags map[string]string
	// MarkEmbedded flags every scanned asset as shipped in the read-only dir.
	MarkEmbedded bool
	// OutputNameStyle selects how FileName is derived from Location.
	// Empty means NameStyleLocation.
	OutputNameStyle string
}

// Build walks SrcDir and returns the manifest without writing anything.
func (p *Packer) Build() (*Manifest, error) {
	if p.SrcDir == "" || p.PackageName == "" {
		return nil, fmt.Errorf("packer needs a source directory and a package name: %w", core.ErrInvalidArgument)
	}
	version := p.Version
	if version == "" {
		version = time.Now().UTC().Format("2006-01-02-150405")
	}
	nameStyle := p.OutputNameStyle
	if nameStyle == "" {
		nameStyle = NameStyleLocation
	}
	if nameStyle != NameStyleLocation && nameStyle != NameStyleHash {
		return nil, fmt.Errorf("unknown output name style '%s': %w", nameStyle, core.ErrInvalidArgument)
	}

	m := &Manifest{
		PackageName:     p.PackageName,
		PackageVersion:  version,
		CreatedAt:       time.Now().UTC(),
		OutputNameStyle: nameStyle,
	}

	err := filepath.Walk(p.SrcDir, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.SrcDir, walkPath)
		if err != nil {
			return err
		}
		location := filepath.ToSlash(rel)
		if location == ManifestFileName {
			return nil
		}
		assetType := TypeForPath(location)
		if assetType == TypeNone {
			core.LogDebug("packer: skipping '%s', unknown asset type", location)
			return nil
		}

		hash, err := hashFile(walkPath)
		if err != nil {
			return err
		}

		fileName := location
		if nameStyle == NameStyleHash {
			fileName = hash + strings.ToLower(filepath.Ext(location))
		}

		ai := &AssetInfo{
			Location:    location,
			FileName:    fileName,
			PackageName: p.PackageName,
			AssetType:   assetType,
			Size:        fi.Size(),
			Hash:        hash,
			Embedded:    p.MarkEmbedded,
		}
		if tag, ok := p.Tags[strings.ToLower(filepath.Ext(location))]; ok {
			ai.Tags = append(ai.Tags, tag)
		}
		m.Assets = append(m.Assets, ai)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("packer failed to scan %s: %w", p.SrcDir, err)
	}

	m.buildIndex()
	core.LogInfo("packer: indexed %d assets for package '%s' version '%s'", len(m.Assets), p.PackageName, version)
	return m, nil
}

// BuildTo builds the manifest, writes it into outDir and copies every asset
// file alongside it in the buildin layout.
func (p *Packer) BuildTo(outDir string) (*Manifest, error) {
	m, err := p.Build()
	if err != nil {
		return nil, err
	}
	for _, ai := range m.Assets {
		src := filepath.Join(p.SrcDir, filepath.FromSlash(ai.Location))
		dst := filepath.Join(outDir, filepath.FromSlash(ai.FileName))
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
	}
	if err := m.Save(outDir); err != nil {
		return nil, err
	}
	return m, nil
}

// HashBytes returns the hex digest used for manifest entries and download
// verification.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
