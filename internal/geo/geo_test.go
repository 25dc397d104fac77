package geo

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLonLat(t *testing.T) {
	lon, lat, err := ParseLonLat(" 13.4050, 52.52 ")
	require.NoError(t, err)
	assert.Equal(t, 13.405, lon)
	assert.Equal(t, 52.52, lat)

	for _, bad := range []string{"", "1", "1,2,3", "x,2", "1,y", "200,0", "0,89"} {
		t.Run(bad, func(t *testing.T) {
			_, _, err := ParseLonLat(bad)
			assert.ErrorIs(t, err, ErrInvalidCoordinates)
		})
	}
}

func TestNewProjector_Invalid(t *testing.T) {
	_, err := NewProjector(0, 90)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	_, err = NewProjector(math.NaN(), 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestProjector_OriginAtEquator(t *testing.T) {
	p, err := NewProjector(0, 0)
	require.NoError(t, err)

	pt := p.Point(mgl64.Vec3{100, 200, 7})
	c, ok := pt.Coordinates()
	require.True(t, ok)
	assert.Equal(t, geom.DimXYZ, c.Type)
	assert.InDelta(t, 100, c.X, 1e-6)
	assert.InDelta(t, 200, c.Y, 1e-6)
	assert.Equal(t, 7.0, c.Z)
}

func TestProjector_KnownOrigin(t *testing.T) {
	p, err := NewProjector(13.405, 52.52)
	require.NoError(t, err)

	xy := p.Mercator(mgl64.Vec3{})
	// EPSG:3857 of Berlin
	assert.InDelta(t, 1492232.0, xy.X, 50)
	assert.InDelta(t, 6894699.0, xy.Y, 50)

	lon, lat := p.Origin()
	assert.Equal(t, 13.405, lon)
	assert.Equal(t, 52.52, lat)
}

func TestProjector_LonLatRoundTrip(t *testing.T) {
	p, err := NewProjector(-3.7038, 40.4168)
	require.NoError(t, err)

	lon, lat := p.LonLat(mgl64.Vec3{})
	assert.InDelta(t, -3.7038, lon, 1e-7)
	assert.InDelta(t, 40.4168, lat, 1e-7)

	// 1000 m north is about 0.009 degrees of latitude.
	_, north := p.LonLat(mgl64.Vec3{0, 1000, 0})
	assert.InDelta(t, 40.4168+1000.0/111_000, north, 1e-3)
}

func TestProjector_Track(t *testing.T) {
	p, err := NewProjector(0, 0)
	require.NoError(t, err)

	ls, err := p.Track([]mgl64.Vec3{{0, 0, 1}, {10, 0, 1}, {10, 10, 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, ls.Coordinates().Length())
	assert.InDelta(t, 20, ls.Length(), 1e-6)

	_, err = p.Track([]mgl64.Vec3{{0, 0, 0}})
	assert.Error(t, err)
}

func TestProjector_LocalInvertsPoint(t *testing.T) {
	p, err := NewProjector(13.4, 52.5)
	require.NoError(t, err)

	pos := mgl64.Vec3{120.5, -42, 3.25}
	got := p.Local(p.Point(pos))
	assert.InDelta(t, pos.X(), got.X(), 1e-6)
	assert.InDelta(t, pos.Y(), got.Y(), 1e-6)
	assert.InDelta(t, pos.Z(), got.Z(), 1e-9)
}
