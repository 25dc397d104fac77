package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Positions are stored as EPSG:3857 so that SQLite, which has no spatial
// support, can still round-trip them through WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// maxMercatorLatitude is where web mercator is cut off.
const maxMercatorLatitude = 85.05112878

// ParseLonLat parses "long,lat" in WGS84 degrees.
func ParseLonLat(coords string) (lon, lat float64, err error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidCoordinates
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	if err := validLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

func validLonLat(lon, lat float64) error {
	if math.IsNaN(lon) || math.IsNaN(lat) || lon < -180 || lon > 180 || math.Abs(lat) > maxMercatorLatitude {
		return fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, lon, lat)
	}
	return nil
}

// Projector maps local simulation positions (metres, X east, Y north, Z up)
// onto EPSG:3857 around a WGS84 origin.
type Projector struct {
	lon, lat float64
	origin   geom.XY
	// scale converts ground metres to mercator metres at the origin latitude.
	scale   float64
	inverse func(a, b, c float64) (float64, float64, float64)
}

// NewProjector places the local origin at lon/lat (degrees).
func NewProjector(lon, lat float64) (*Projector, error) {
	if err := validLonLat(lon, lat); err != nil {
		return nil, err
	}
	epsg := wgs84.EPSG()
	x, y, _ := epsg.Transform(4326, 3857)(lon, lat, 0)
	return &Projector{
		lon:     lon,
		lat:     lat,
		origin:  geom.XY{X: x, Y: y},
		scale:   1 / math.Cos(mgl64.DegToRad(lat)),
		inverse: epsg.Transform(3857, 4326),
	}, nil
}

// Origin returns the WGS84 origin in degrees.
func (p *Projector) Origin() (lon, lat float64) {
	return p.lon, p.lat
}

// Mercator returns the EPSG:3857 coordinates of a local position.
func (p *Projector) Mercator(pos mgl64.Vec3) geom.XY {
	return geom.XY{
		X: p.origin.X + pos.X()*p.scale,
		Y: p.origin.Y + pos.Y()*p.scale,
	}
}

// Point returns the local position as an XYZ point in EPSG:3857 with the
// elevation kept in metres.
func (p *Projector) Point(pos mgl64.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   p.Mercator(pos),
		Z:    pos.Z(),
		Type: geom.DimXYZ,
	})
}

// LonLat converts a local position back to WGS84 degrees.
func (p *Projector) LonLat(pos mgl64.Vec3) (lon, lat float64) {
	xy := p.Mercator(pos)
	lon, lat, _ = p.inverse(xy.X, xy.Y, 0)
	return lon, lat
}

// Local is the inverse of Point. Points without coordinates map to the origin.
func (p *Projector) Local(pt geom.Point) mgl64.Vec3 {
	c, ok := pt.Coordinates()
	if !ok {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{
		(c.X - p.origin.X) / p.scale,
		(c.Y - p.origin.Y) / p.scale,
		c.Z,
	}
}
