package native

import "math"

// Vec2 is a point or a vector in the layout plane.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Length() float64      { return math.Hypot(v.X, v.Y) }
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Rotate(a float64) Vec2 {
	s, c := math.Sincos(a)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// Normalize returns v scaled to unit length, or v itself if it is zero.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Transform is the placement applied by a reference or a copy: reflect
// about the x axis, scale, rotate, then translate.
type Transform struct {
	Origin        Vec2
	Rotation      float64
	Magnification float64
	XReflection   bool
}

// Identity is the transform that leaves geometry unchanged.
var Identity = Transform{Magnification: 1}

// Scale returns the magnification, treating zero as 1.
func (t Transform) Scale() float64 {
	if t.Magnification == 0 {
		return 1
	}
	return t.Magnification
}

// IsIdentity reports whether t leaves geometry unchanged.
func (t Transform) IsIdentity() bool {
	return t.Origin == Vec2{} && t.Rotation == 0 && t.Scale() == 1 && !t.XReflection
}

// Apply maps p through t.
func (t Transform) Apply(p Vec2) Vec2 {
	return t.linear(p).Add(t.Origin)
}

// ApplyVector maps a direction through t, ignoring the translation.
func (t Transform) ApplyVector(v Vec2) Vec2 {
	return t.linear(v)
}

func (t Transform) linear(p Vec2) Vec2 {
	if t.XReflection {
		p.Y = -p.Y
	}
	return p.Scale(t.Scale()).Rotate(t.Rotation)
}

// Then returns the transform equivalent to applying t first and outer second.
func (t Transform) Then(outer Transform) Transform {
	rot := t.Rotation
	if outer.XReflection {
		rot = -rot
	}
	return Transform{
		Origin:        outer.Apply(t.Origin),
		Rotation:      rot + outer.Rotation,
		Magnification: t.Scale() * outer.Scale(),
		XReflection:   t.XReflection != outer.XReflection,
	}
}

func transformPoints(pts []Vec2, t Transform) {
	for i, p := range pts {
		pts[i] = t.Apply(p)
	}
}
