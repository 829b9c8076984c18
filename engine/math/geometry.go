package math

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extents returns the half-size of the box along each axis.
func (b AABB) Extents() Vec3 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

// Radius returns the radius of the bounding sphere enclosing the box.
func (b AABB) Radius() float32 {
	return b.Extents().Length()
}

// Transformed returns the axis-aligned box of this box under the given
// transform. The eight corners are transformed and re-bounded.
func (b AABB) Transformed(mat Mat4) AABB {
	corners := [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
	out := AABB{
		Min: Vec3{K_INFINITY, K_INFINITY, K_INFINITY},
		Max: Vec3{-K_INFINITY, -K_INFINITY, -K_INFINITY},
	}
	for _, c := range corners {
		p := mat.TransformPoint(c)
		out.Min.X = Min(out.Min.X, p.X)
		out.Min.Y = Min(out.Min.Y, p.Y)
		out.Min.Z = Min(out.Min.Z, p.Z)
		out.Max.X = Max(out.Max.X, p.X)
		out.Max.Y = Max(out.Max.Y, p.Y)
		out.Max.Z = Max(out.Max.Z, p.Z)
	}
	return out
}

// Plane in the form dot(Normal, p) + D = 0; Normal points inside the
// accepted half space.
type Plane struct {
	Normal Vec3
	D      float32
}

func (p Plane) normalized() Plane {
	l := p.Normal.Length()
	if l < K_FLOAT_EPSILON {
		return p
	}
	return Plane{Normal: p.Normal.Scale(1.0 / l), D: p.D / l}
}

// SignedDistance returns the distance of point from the plane, positive on
// the accepted side.
func (p Plane) SignedDistance(point Vec3) float32 {
	return p.Normal.Dot(point) + p.D
}

// Frustum holds the six clip planes of a view-projection matrix.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustumFromViewProjection extracts the frustum planes from a combined
// view-projection matrix (Gribb/Hartmann).
func NewFrustumFromViewProjection(vp Mat4) Frustum {
	r0 := vp.Row(0)
	r1 := vp.Row(1)
	r2 := vp.Row(2)
	r3 := vp.Row(3)

	plane := func(a, b Vec4, sub bool) Plane {
		var v Vec4
		if sub {
			v = Vec4{X: b.X - a.X, Y: b.Y - a.Y, Z: b.Z - a.Z, W: b.W - a.W}
		} else {
			v = Vec4{X: b.X + a.X, Y: b.Y + a.Y, Z: b.Z + a.Z, W: b.W + a.W}
		}
		return Plane{Normal: Vec3{v.X, v.Y, v.Z}, D: v.W}.normalized()
	}

	f := Frustum{}
	f.Planes[0] = plane(r0, r3, false) // left
	f.Planes[1] = plane(r0, r3, true)  // right
	f.Planes[2] = plane(r1, r3, false) // bottom
	f.Planes[3] = plane(r1, r3, true)  // top
	f.Planes[4] = plane(r2, r3, false) // near
	f.Planes[5] = plane(r2, r3, true)  // far
	return f
}

// IntersectsAABB reports whether the box is at least partially inside the
// frustum. Conservative: boxes fully outside any single plane are rejected.
func (f Frustum) IntersectsAABB(b AABB) bool {
	center := b.Center()
	extents := b.Extents()
	for _, p := range f.Planes {
		r := extents.X*Abs(p.Normal.X) + extents.Y*Abs(p.Normal.Y) + extents.Z*Abs(p.Normal.Z)
		if p.SignedDistance(center) < -r {
			return false
		}
	}
	return true
}
