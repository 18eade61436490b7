package loaders

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/quiver/engine/asset"
)

// DecodedImage is the Data payload produced by the image loader.
type DecodedImage struct {
	Image  image.Image
	Format string
	Width  int
	Height int
}

type ImageLoader struct{}

func (il *ImageLoader) Load(info *asset.AssetInfo, data []byte) (*Asset, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image asset '%s': %w", info.Location, err)
	}
	bounds := img.Bounds()
	return &Asset{
		Info: info,
		Type: info.AssetType,
		Data: &DecodedImage{
			Image:  img,
			Format: format,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		},
		Bytes: data,
	}, nil
}
