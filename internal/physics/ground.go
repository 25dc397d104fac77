package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// FlatGround is an infinite horizontal plane at Height.
type FlatGround struct {
	Height float64
	Group  CollisionGroup
}

// Cast intersects the ray with the plane. Origins below the plane never hit.
func (g FlatGround) Cast(origin, dir mgl64.Vec3, maxDist float64, mask CollisionGroup) (Hit, bool) {
	group := g.Group
	if group == 0 {
		group = GroupTerrain
	}
	if mask&group == 0 || maxDist <= 0 {
		return Hit{}, false
	}
	above := origin.Z() - g.Height
	if above < 0 || dir.Z() >= 0 {
		return Hit{}, false
	}
	t := above / -dir.Z()
	if t > maxDist {
		return Hit{}, false
	}
	return Hit{
		Distance: t,
		Point:    origin.Add(dir.Mul(t)),
		Normal:   mgl64.Vec3{0, 0, 1},
		Group:    group,
	}, true
}

// HeightField is a regular grid of terrain heights with bilinear interpolation.
// Samples are row-major, Rows along Y and Cols along X, starting at Origin.
type HeightField struct {
	Origin  mgl64.Vec2
	Spacing float64
	Cols    int
	Rows    int
	Heights []float64
	Group   CollisionGroup
}

// HeightAt returns the interpolated terrain height, or false outside the grid.
func (h *HeightField) HeightAt(x, y float64) (float64, bool) {
	if h.Spacing <= 0 || h.Cols < 2 || h.Rows < 2 || len(h.Heights) < h.Cols*h.Rows {
		return 0, false
	}
	gx := (x - h.Origin.X()) / h.Spacing
	gy := (y - h.Origin.Y()) / h.Spacing
	if gx < 0 || gy < 0 || gx > float64(h.Cols-1) || gy > float64(h.Rows-1) {
		return 0, false
	}
	c0 := int(math.Min(math.Floor(gx), float64(h.Cols-2)))
	r0 := int(math.Min(math.Floor(gy), float64(h.Rows-2)))
	fx, fy := gx-float64(c0), gy-float64(r0)

	at := func(c, r int) float64 { return h.Heights[r*h.Cols+c] }
	bottom := at(c0, r0)*(1-fx) + at(c0+1, r0)*fx
	top := at(c0, r0+1)*(1-fx) + at(c0+1, r0+1)*fx
	return bottom*(1-fy) + top*fy, true
}

// normalAt estimates the surface normal by central differences.
func (h *HeightField) normalAt(x, y float64) mgl64.Vec3 {
	d := h.Spacing / 2
	hl, okl := h.HeightAt(x-d, y)
	hr, okr := h.HeightAt(x+d, y)
	hd, okd := h.HeightAt(x, y-d)
	hu, oku := h.HeightAt(x, y+d)
	if !okl || !okr || !okd || !oku {
		return mgl64.Vec3{0, 0, 1}
	}
	n := mgl64.Vec3{hl - hr, hd - hu, 2 * d}
	return n.Normalize()
}

// Cast supports straight-down rays only, which is all the hover model issues.
func (h *HeightField) Cast(origin, dir mgl64.Vec3, maxDist float64, mask CollisionGroup) (Hit, bool) {
	group := h.Group
	if group == 0 {
		group = GroupTerrain
	}
	if mask&group == 0 || maxDist <= 0 || dir.Z() >= 0 {
		return Hit{}, false
	}
	height, ok := h.HeightAt(origin.X(), origin.Y())
	if !ok {
		return Hit{}, false
	}
	above := origin.Z() - height
	if above < 0 {
		return Hit{}, false
	}
	t := above / -dir.Z()
	if t > maxDist {
		return Hit{}, false
	}
	return Hit{
		Distance: t,
		Point:    mgl64.Vec3{origin.X(), origin.Y(), height},
		Normal:   h.normalAt(origin.X(), origin.Y()),
		Group:    group,
	}, true
}
