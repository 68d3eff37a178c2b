package extract

import (
	"context"

	"github.com/eargollo/piifinder/internal/media"
)

// Image reads GPS coordinates from image metadata. It never produces text.
type Image struct{}

// NewImage returns an Image extractor.
func NewImage() *Image { return &Image{} }

func (*Image) Name() string                 { return "image" }
func (*Image) SupportedMIMETypes() []string { return []string{"image/*"} }
func (*Image) Priority() int                { return 50 }

// Extract returns a document with GPS set when the image carries a
// position. An image without metadata, or with a metadata block that cannot
// be decoded, yields an empty document and no error.
func (*Image) Extract(_ context.Context, path string) (*Document, error) {
	pos, err := media.ReadGPS(path)
	if err != nil {
		return nil, err
	}
	return &Document{GPS: pos}, nil
}
