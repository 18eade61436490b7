package loaders

import (
	"bytes"
	"fmt"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/quiver/engine/asset"
	"github.com/spaghettifunk/quiver/engine/core"
)

// FontLoader parses AngelCode .fnt bitmap font descriptors. Page sheet
// images are separate image assets and load through the image loader.
type FontLoader struct{}

func (fl *FontLoader) Load(info *asset.AssetInfo, data []byte) (*Asset, error) {
	desc, err := bmfont.ReadDescriptor(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bitmap font '%s': %w", info.Location, err)
	}

	core.LogDebug("loaded bitmap font '%s' face '%s' with %d glyphs", info.Location, desc.Info.Face, len(desc.Chars))

	return &Asset{
		Info:  info,
		Type:  info.AssetType,
		Data:  desc,
		Bytes: data,
	}, nil
}
