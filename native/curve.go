package native

import "github.com/wippyai/gdsbridge/errors"

// Curve accumulates points for building polygons out of drawing commands.
type Curve struct {
	Points         []Vec2
	ParametricFunc ParametricFunc
	ParametricData any
	Tolerance      float64
}

// NewCurve starts a curve at origin.
func NewCurve(origin Vec2, tolerance float64) *Curve {
	return &Curve{Points: []Vec2{origin}, Tolerance: tolerance}
}

// Segment appends straight segments to pts, relative to the last point when
// relative is set.
func (c *Curve) Segment(pts []Vec2, relative bool) {
	var base Vec2
	if relative && len(c.Points) > 0 {
		base = c.Points[len(c.Points)-1]
	}
	for _, p := range pts {
		c.Points = append(c.Points, base.Add(p))
	}
}

// ParametricTo samples the curve's parametric function and appends the
// points, like FlexPath.ParametricTo.
func (c *Curve) ParametricTo(n int, relative bool) error {
	if c.ParametricFunc == nil {
		return errors.NotFound(errors.PhaseCallback, "parametric function", 0)
	}
	pts, err := sample(c.ParametricFunc, c.ParametricData, n, relative, c.Points)
	if err != nil {
		return err
	}
	c.Points = append(c.Points, pts...)
	return nil
}

// Clear releases the point buffer.
func (c *Curve) Clear() {
	c.Points = nil
	c.ParametricFunc = nil
	c.ParametricData = nil
}
