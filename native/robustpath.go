package native

// RobustPathElement is one track of a robust path with constant width and
// offset.
type RobustPathElement struct {
	EndExtensions Vec2
	Width         float64
	Offset        float64
	Tag           Tag
	End           EndType
}

// RobustPath is a path whose elements are evaluated analytically from the
// spine rather than per point.
type RobustPath struct {
	Spine      []Vec2
	Elements   []RobustPathElement
	Repetition Repetition
	Tolerance  float64
	MaxEvals   uint64
	SimplePath bool
	ScaleWidth bool
}

// Copy returns an independent path.
func (p *RobustPath) Copy() *RobustPath {
	c := *p
	c.Spine = append([]Vec2(nil), p.Spine...)
	c.Elements = append([]RobustPathElement(nil), p.Elements...)
	c.Repetition = p.Repetition.Copy()
	return &c
}

// Transform maps the spine through t.
func (p *RobustPath) Transform(t Transform) {
	transformPoints(p.Spine, t)
	scale := 1.0
	if p.ScaleWidth {
		scale = t.Scale()
	}
	for i := range p.Elements {
		el := &p.Elements[i]
		el.Width *= scale
		el.Offset *= scale
		if t.XReflection {
			el.Offset = -el.Offset
		}
	}
	p.Repetition.Transform(t)
}

// RemoveElement removes element i unordered, returning the former index of
// the element moved into its place or -1.
func (p *RobustPath) RemoveElement(i int) int {
	last := len(p.Elements) - 1
	moved := -1
	if i != last {
		p.Elements[i] = p.Elements[last]
		moved = last
	}
	p.Elements = p.Elements[:last]
	return moved
}
