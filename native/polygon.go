package native

// Polygon is a closed point list on one tag.
type Polygon struct {
	Points     []Vec2
	Repetition Repetition
	Tag        Tag
}

// NewPolygon returns a polygon owning a copy of points.
func NewPolygon(points []Vec2, tag Tag) *Polygon {
	return &Polygon{Points: append([]Vec2(nil), points...), Tag: tag}
}

// Copy returns an independent polygon.
func (p *Polygon) Copy() *Polygon {
	return &Polygon{
		Points:     append([]Vec2(nil), p.Points...),
		Repetition: p.Repetition.Copy(),
		Tag:        p.Tag,
	}
}

// Transform maps every point through t.
func (p *Polygon) Transform(t Transform) {
	transformPoints(p.Points, t)
	p.Repetition.Transform(t)
}

// Translate moves the polygon by d.
func (p *Polygon) Translate(d Vec2) {
	for i := range p.Points {
		p.Points[i] = p.Points[i].Add(d)
	}
}

// Clear releases the point buffer.
func (p *Polygon) Clear() {
	p.Points = nil
	p.Repetition = Repetition{}
}
