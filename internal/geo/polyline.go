package geo

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Track builds the EPSG:3857 line through the given local positions.
func (p *Projector) Track(positions []mgl64.Vec3) (geom.LineString, error) {
	if len(positions) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(positions))
	}
	flat := make([]float64, 0, len(positions)*3)
	for _, pos := range positions {
		xy := p.Mercator(pos)
		flat = append(flat, xy.X, xy.Y, pos.Z())
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ)), nil
}
