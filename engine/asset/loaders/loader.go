package loaders

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/core"
)

// Asset is a decoded asset object handed to load callbacks. Data holds the
// typed decode result (image.Image, string, *bmfont.Descriptor, ...); Bytes
// keeps the raw payload for loaders that do not interpret it.
type Asset struct {
	Info  *asset.AssetInfo
	Type  asset.Type
	Data  interface{}
	Bytes []byte
}

type Loader interface {
	Load(info *asset.AssetInfo, data []byte) (*Asset, error)
}

// Registry maps asset types to loaders. Types without a registered loader
// fall back to the raw loader.
type Registry struct {
	mu      sync.RWMutex
	loaders map[asset.Type]Loader
}

func NewRegistry() *Registry {
	r := &Registry{
		loaders: make(map[asset.Type]Loader),
	}
	// Auto-register known loader types here.
	r.Register(asset.TypeText, &TextLoader{})
	r.Register(asset.TypeImage, &ImageLoader{})
	r.Register(asset.TypeFont, &FontLoader{})
	r.Register(asset.TypeBinary, &RawLoader{})
	r.Register(asset.TypeAudio, &RawLoader{})
	r.Register(asset.TypeScene, &TextLoader{})
	return r
}

// Register installs a loader for a type. A loader of the same type must not
// already exist; in that case nothing is changed and FALSE is returned.
func (r *Registry) Register(t asset.Type, l Loader) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.loaders[t]; exists {
		core.LogError("loader registry: loader of type %s already exists and will not be registered", t)
		return false
	}
	r.loaders[t] = l
	return true
}

func (r *Registry) Load(info *asset.AssetInfo, data []byte) (*Asset, error) {
	r.mu.RLock()
	l, ok := r.loaders[info.AssetType]
	r.mu.RUnlock()
	if !ok {
		l = &RawLoader{}
	}
	return l.Load(info, data)
}

type RawLoader struct{}

func (rl *RawLoader) Load(info *asset.AssetInfo, data []byte) (*Asset, error) {
	return &Asset{
		Info:  info,
		Type:  info.AssetType,
		Data:  data,
		Bytes: data,
	}, nil
}

type TextLoader struct{}

func (tl *TextLoader) Load(info *asset.AssetInfo, data []byte) (*Asset, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text asset '%s' is not valid UTF-8", info.Location)
	}
	return &Asset{
		Info:  info,
		Type:  info.AssetType,
		Data:  string(data),
		Bytes: data,
	}, nil
}
