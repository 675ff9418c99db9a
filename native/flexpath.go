package native

import (
	"math"

	"github.com/wippyai/gdsbridge/errors"
)

// JoinType selects how consecutive path segments are joined.
type JoinType uint8

const (
	JoinNatural JoinType = iota
	JoinMiter
	JoinBevel
	JoinRound
	JoinSmooth
	JoinFunction
)

// EndType selects how a path element is capped.
type EndType uint8

const (
	EndFlush EndType = iota
	EndRound
	EndHalfWidth
	EndExtended
	EndSmooth
	EndFunction
)

// BendType selects how path corners are rounded.
type BendType uint8

const (
	BendNone BendType = iota
	BendCircular
	BendFunction
)

var joinNames = map[string]JoinType{
	"natural":  JoinNatural,
	"miter":    JoinMiter,
	"bevel":    JoinBevel,
	"round":    JoinRound,
	"smooth":   JoinSmooth,
	"function": JoinFunction,
}

var endNames = map[string]EndType{
	"flush":     EndFlush,
	"round":     EndRound,
	"halfwidth": EndHalfWidth,
	"extended":  EndExtended,
	"smooth":    EndSmooth,
	"function":  EndFunction,
}

// ParseJoin parses a join policy name.
func ParseJoin(s string) (JoinType, bool) {
	j, ok := joinNames[s]
	return j, ok
}

// ParseEnd parses an end policy name. "extend" is the half-width extension.
func ParseEnd(s string) (EndType, bool) {
	if s == "extend" {
		return EndHalfWidth, true
	}
	e, ok := endNames[s]
	return e, ok
}

func (j JoinType) String() string {
	for name, v := range joinNames {
		if v == j {
			return name
		}
	}
	return "unknown"
}

func (e EndType) String() string {
	for name, v := range endNames {
		if v == e {
			return name
		}
	}
	return "unknown"
}

// Custom generator signatures. The engine calls the function stored on an
// element and passes the element's data word back unchanged.
type (
	JoinFunc       func(p0, v0, p1, v1, center Vec2, width float64, data any) ([]Vec2, error)
	EndFunc        func(p0, v0, p1, v1 Vec2, data any) ([]Vec2, error)
	BendFunc       func(radius, initialAngle, finalAngle float64, center Vec2, data any) ([]Vec2, error)
	ParametricFunc func(u float64, data any) (Vec2, error)
)

// FlexPathElement is one parallel track of a flexible path. Each spine point
// has a matching HalfWidthAndOffset entry: X is the half width, Y the
// offset from the spine.
type FlexPathElement struct {
	HalfWidthAndOffset []Vec2

	JoinFunc JoinFunc
	JoinData any
	EndFunc  EndFunc
	EndData  any
	BendFunc BendFunc
	BendData any

	EndExtensions Vec2
	BendRadius    float64
	Tag           Tag
	Join          JoinType
	End           EndType
	Bend          BendType
}

// FlexPath is a spine with one or more elements following it.
type FlexPath struct {
	Spine    []Vec2
	Elements []FlexPathElement

	ParametricFunc ParametricFunc
	ParametricData any

	Repetition Repetition
	Tolerance  float64
	SimplePath bool
	ScaleWidth bool
}

// Copy returns an independent path. Function fields and their data words are
// copied as-is; callers owning the data must re-point them.
func (p *FlexPath) Copy() *FlexPath {
	c := *p
	c.Spine = append([]Vec2(nil), p.Spine...)
	c.Elements = make([]FlexPathElement, len(p.Elements))
	for i, el := range p.Elements {
		el.HalfWidthAndOffset = append([]Vec2(nil), el.HalfWidthAndOffset...)
		c.Elements[i] = el
	}
	c.Repetition = p.Repetition.Copy()
	return &c
}

// Transform maps the spine through t. Widths and offsets are scaled when
// ScaleWidth is set; offsets change sign under reflection.
func (p *FlexPath) Transform(t Transform) {
	transformPoints(p.Spine, t)
	scale := 1.0
	if p.ScaleWidth {
		scale = t.Scale()
	}
	sign := 1.0
	if t.XReflection {
		sign = -1
	}
	for i := range p.Elements {
		el := &p.Elements[i]
		for j, wo := range el.HalfWidthAndOffset {
			el.HalfWidthAndOffset[j] = Vec2{wo.X * scale, wo.Y * scale * sign}
		}
		el.BendRadius *= t.Scale()
	}
	p.Repetition.Transform(t)
}

// RemoveElement removes element i by moving the last element into its
// place. It returns the former index of the moved element, or -1 when i was
// the last one.
func (p *FlexPath) RemoveElement(i int) int {
	last := len(p.Elements) - 1
	p.Elements[i].HalfWidthAndOffset = nil
	moved := -1
	if i != last {
		p.Elements[i] = p.Elements[last]
		moved = last
	}
	p.Elements[last] = FlexPathElement{}
	p.Elements = p.Elements[:last]
	return moved
}

// Clear releases the spine and element buffers.
func (p *FlexPath) Clear() {
	p.Spine = nil
	p.Elements = nil
	p.ParametricFunc = nil
	p.ParametricData = nil
	p.Repetition = Repetition{}
}

func (p *FlexPath) element(i int) (*FlexPathElement, error) {
	if i < 0 || i >= len(p.Elements) {
		return nil, errors.InvalidArgument(errors.PhaseCallback, "element index out of range")
	}
	return &p.Elements[i], nil
}

func (el *FlexPathElement) widthOffset(i int) (float64, float64) {
	if i < len(el.HalfWidthAndOffset) {
		wo := el.HalfWidthAndOffset[i]
		return wo.X, wo.Y
	}
	if n := len(el.HalfWidthAndOffset); n > 0 {
		wo := el.HalfWidthAndOffset[n-1]
		return wo.X, wo.Y
	}
	return 0, 0
}

func normal(d Vec2) Vec2 { return Vec2{-d.Y, d.X} }

// JoinAt builds the join of element elem at interior spine vertex i.
func (p *FlexPath) JoinAt(elem, i int) ([]Vec2, error) {
	el, err := p.element(elem)
	if err != nil {
		return nil, err
	}
	if i <= 0 || i >= len(p.Spine)-1 {
		return nil, errors.InvalidArgument(errors.PhaseCallback, "join vertex must be interior")
	}
	hw, off := el.widthOffset(i)
	v0 := p.Spine[i].Sub(p.Spine[i-1]).Normalize()
	v1 := p.Spine[i+1].Sub(p.Spine[i]).Normalize()
	center := p.Spine[i]
	p0 := center.Add(normal(v0).Scale(off))
	p1 := center.Add(normal(v1).Scale(off))

	switch el.Join {
	case JoinFunction:
		if el.JoinFunc == nil {
			return nil, errors.NotFound(errors.PhaseCallback, "join function", 0)
		}
		return el.JoinFunc(p0, v0, p1, v1, center, 2*hw, el.JoinData)
	case JoinMiter:
		if x, ok := intersect(p0, v0, p1, v1); ok {
			return []Vec2{x}, nil
		}
		return []Vec2{p0, p1}, nil
	case JoinRound:
		a0 := math.Atan2(p0.Y-center.Y, p0.X-center.X)
		a1 := math.Atan2(p1.Y-center.Y, p1.X-center.X)
		return arc(center, p0.Sub(center).Length(), a0, a1, 8), nil
	default:
		return []Vec2{p0, p1}, nil
	}
}

// EndAt builds the cap of element elem at the path start or end.
func (p *FlexPath) EndAt(elem int, atEnd bool) ([]Vec2, error) {
	el, err := p.element(elem)
	if err != nil {
		return nil, err
	}
	if len(p.Spine) < 2 {
		return nil, errors.InvalidArgument(errors.PhaseCallback, "path needs at least two points")
	}
	idx, prev := 0, 1
	if atEnd {
		idx, prev = len(p.Spine)-1, len(p.Spine)-2
	}
	hw, off := el.widthOffset(idx)
	dir := p.Spine[idx].Sub(p.Spine[prev]).Normalize()
	n := normal(dir)
	c := p.Spine[idx].Add(n.Scale(off))
	left := c.Add(n.Scale(hw))
	right := c.Sub(n.Scale(hw))

	switch el.End {
	case EndFunction:
		if el.EndFunc == nil {
			return nil, errors.NotFound(errors.PhaseCallback, "end function", 0)
		}
		return el.EndFunc(left, dir, right, dir.Scale(-1), el.EndData)
	case EndHalfWidth:
		ext := dir.Scale(hw)
		return []Vec2{left.Add(ext), right.Add(ext)}, nil
	case EndExtended:
		ext := dir.Scale(el.EndExtensions.Y)
		if !atEnd {
			ext = dir.Scale(el.EndExtensions.X)
		}
		return []Vec2{left.Add(ext), right.Add(ext)}, nil
	case EndRound, EndSmooth:
		a := math.Atan2(n.Y, n.X)
		return arc(c, hw, a, a-math.Pi, 8), nil
	default:
		return []Vec2{left, right}, nil
	}
}

// BendAt builds the bend of element elem at interior spine vertex i.
func (p *FlexPath) BendAt(elem, i int) ([]Vec2, error) {
	el, err := p.element(elem)
	if err != nil {
		return nil, err
	}
	if i <= 0 || i >= len(p.Spine)-1 {
		return nil, errors.InvalidArgument(errors.PhaseCallback, "bend vertex must be interior")
	}
	if el.Bend == BendNone || (el.BendRadius <= 0 && el.Bend != BendFunction) {
		return []Vec2{p.Spine[i]}, nil
	}
	corner := p.Spine[i]
	a := p.Spine[i-1].Sub(corner).Normalize()
	b := p.Spine[i+1].Sub(corner).Normalize()
	half := math.Acos(math.Max(-1, math.Min(1, a.Dot(b)))) / 2
	if half == 0 || half == math.Pi/2 {
		return []Vec2{corner}, nil
	}
	r := el.BendRadius
	center := corner.Add(a.Add(b).Normalize().Scale(r / math.Sin(half)))
	t0 := corner.Add(a.Scale(r / math.Tan(half)))
	t1 := corner.Add(b.Scale(r / math.Tan(half)))
	a0 := math.Atan2(t0.Y-center.Y, t0.X-center.X)
	a1 := math.Atan2(t1.Y-center.Y, t1.X-center.X)

	if el.Bend == BendFunction {
		if el.BendFunc == nil {
			return nil, errors.NotFound(errors.PhaseCallback, "bend function", 0)
		}
		return el.BendFunc(r, a0, a1, center, el.BendData)
	}
	return arc(center, r, a0, a1, 8), nil
}

// ParametricTo samples the path's parametric function at n+1 evenly spaced
// parameters in [0, 1] and appends the points to the spine. With relative
// set, samples are offsets from the current last spine point.
func (p *FlexPath) ParametricTo(n int, relative bool) error {
	if p.ParametricFunc == nil {
		return errors.NotFound(errors.PhaseCallback, "parametric function", 0)
	}
	pts, err := sample(p.ParametricFunc, p.ParametricData, n, relative, p.Spine)
	if err != nil {
		return err
	}
	p.Spine = append(p.Spine, pts...)
	for i := range p.Elements {
		el := &p.Elements[i]
		if len(el.HalfWidthAndOffset) == 0 {
			continue
		}
		last := el.HalfWidthAndOffset[len(el.HalfWidthAndOffset)-1]
		for range pts {
			el.HalfWidthAndOffset = append(el.HalfWidthAndOffset, last)
		}
	}
	return nil
}

func sample(fn ParametricFunc, data any, n int, relative bool, existing []Vec2) ([]Vec2, error) {
	if n < 1 {
		return nil, errors.InvalidArgument(errors.PhaseCallback, "sample count must be positive")
	}
	var base Vec2
	if relative && len(existing) > 0 {
		base = existing[len(existing)-1]
	}
	start := 0
	if len(existing) > 0 {
		// u=0 coincides with the current end point
		start = 1
	}
	out := make([]Vec2, 0, n+1-start)
	for i := start; i <= n; i++ {
		v, err := fn(float64(i)/float64(n), data)
		if err != nil {
			return nil, err
		}
		out = append(out, base.Add(v))
	}
	return out, nil
}

func intersect(p0, v0, p1, v1 Vec2) (Vec2, bool) {
	den := v0.Cross(v1)
	if math.Abs(den) < 1e-12 {
		return Vec2{}, false
	}
	t := p1.Sub(p0).Cross(v1) / den
	return p0.Add(v0.Scale(t)), true
}

func arc(center Vec2, r, a0, a1 float64, steps int) []Vec2 {
	out := make([]Vec2, 0, steps+1)
	for i := 0; i <= steps; i++ {
		a := a0 + (a1-a0)*float64(i)/float64(steps)
		s, c := math.Sincos(a)
		out = append(out, Vec2{center.X + r*c, center.Y + r*s})
	}
	return out
}
