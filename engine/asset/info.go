package asset

import (
	"path"
	"strings"
)

type Type uint8

const (
	TypeNone Type = iota
	TypeText
	TypeBinary
	TypeImage
	TypeFont
	TypeAudio
	TypeMaterial
	TypeModel
	TypeScene
)

func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeBinary:
		return "binary"
	case TypeImage:
		return "image"
	case TypeFont:
		return "font"
	case TypeAudio:
		return "audio"
	case TypeMaterial:
		return "material"
	case TypeModel:
		return "model"
	case TypeScene:
		return "scene"
	default:
		return "none"
	}
}

// AssetInfo describes one located asset inside a package manifest. The
// resource module treats it as opaque and only the package engine produces
// them.
type AssetInfo struct {
	// Location is the slash-separated identifier the game refers to, e.g.
	// "town/bgm.wav". It doubles as the package-relative file path.
	Location    string   `toml:"location"`
	FileName    string   `toml:"file_name"`
	PackageName string   `toml:"-"`
	AssetType   Type     `toml:"asset_type"`
	Size        int64    `toml:"size"`
	Hash        string   `toml:"hash"`
	Tags        []string `toml:"tags,omitempty"`
	// Embedded marks files shipped in the read-only buildin directory; they
	// never require a remote fetch.
	Embedded bool `toml:"embedded"`
}

// HasTag reports whether the asset carries at least one of the given tags.
func (ai *AssetInfo) HasTag(tags ...string) bool {
	for _, want := range tags {
		for _, t := range ai.Tags {
			if t == want {
				return true
			}
		}
	}
	return false
}

func TypeForPath(p string) Type {
	switch strings.ToLower(path.Ext(p)) {
	case ".tga", ".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".webp":
		return TypeImage
	case ".fnt":
		return TypeFont
	case ".wav", ".ogg", ".mp3":
		return TypeAudio
	case ".txt", ".json", ".toml", ".md", ".shadercfg":
		return TypeText
	case ".kmt":
		return TypeMaterial
	case ".obj", ".ksm", ".mtl":
		return TypeModel
	case ".scene":
		return TypeScene
	case ".bin", ".bytes", ".dat":
		return TypeBinary
	default:
		return TypeNone
	}
}

// CheckLocationSyntax reports whether a location string is structurally
// sound: non-empty, slash separated, relative, clean and carrying a file
// extension. It says nothing about whether the asset exists.
func CheckLocationSyntax(location string) bool {
	if strings.TrimSpace(location) == "" {
		return false
	}
	if strings.ContainsRune(location, '\\') {
		return false
	}
	if strings.HasPrefix(location, "/") {
		return false
	}
	if path.Clean(location) != location {
		return false
	}
	if strings.HasPrefix(location, "..") {
		return false
	}
	if path.Ext(location) == "" {
		return false
	}
	return true
}
