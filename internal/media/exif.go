package media

import (
	"fmt"
	"math"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// Coordinates is a GPS position read from image metadata.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String renders the position the way it appears in reports.
func (c Coordinates) String() string {
	return fmt.Sprintf("Lat:%.6f Long:%.6f", c.Lat, c.Lon)
}

// ReadGPS returns the GPS position embedded in the EXIF block of the image
// at path. Images without EXIF, without GPS tags, or with a metadata block
// the decoder cannot parse return nil and no error; only failing to open the
// file is an error.
func ReadGPS(path string) (*Coordinates, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, nil
	}

	lat, lon, err := x.LatLong()
	if err != nil {
		return nil, nil
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return nil, nil
	}

	return &Coordinates{Lat: lat, Lon: lon}, nil
}
