package native

// RepetitionType selects how a Repetition lays out its copies.
type RepetitionType uint8

const (
	RepetitionNone RepetitionType = iota
	RepetitionRectangular
	RepetitionRegular
	RepetitionExplicit
	RepetitionExplicitX
	RepetitionExplicitY
)

// Repetition places copies of an object at a set of offsets. It is stored
// by value inside the object it repeats.
type Repetition struct {
	Offsets []Vec2
	Coords  []float64
	Spacing Vec2
	V1, V2  Vec2
	Columns uint64
	Rows    uint64
	Type    RepetitionType
}

// Rectangular returns a columns by rows grid with the given spacing.
func Rectangular(columns, rows uint64, spacing Vec2) Repetition {
	return Repetition{Type: RepetitionRectangular, Columns: columns, Rows: rows, Spacing: spacing}
}

// Count returns the number of placements, including the original.
func (r Repetition) Count() int {
	switch r.Type {
	case RepetitionRectangular, RepetitionRegular:
		return int(r.Columns * r.Rows)
	case RepetitionExplicit:
		return len(r.Offsets) + 1
	case RepetitionExplicitX, RepetitionExplicitY:
		return len(r.Coords) + 1
	}
	return 0
}

// Positions returns every placement offset. The first is always the origin.
func (r Repetition) Positions() []Vec2 {
	switch r.Type {
	case RepetitionRectangular:
		out := make([]Vec2, 0, r.Count())
		for i := uint64(0); i < r.Columns; i++ {
			for j := uint64(0); j < r.Rows; j++ {
				out = append(out, Vec2{float64(i) * r.Spacing.X, float64(j) * r.Spacing.Y})
			}
		}
		return out
	case RepetitionRegular:
		out := make([]Vec2, 0, r.Count())
		for i := uint64(0); i < r.Columns; i++ {
			for j := uint64(0); j < r.Rows; j++ {
				out = append(out, r.V1.Scale(float64(i)).Add(r.V2.Scale(float64(j))))
			}
		}
		return out
	case RepetitionExplicit:
		return append([]Vec2{{}}, r.Offsets...)
	case RepetitionExplicitX:
		out := []Vec2{{}}
		for _, x := range r.Coords {
			out = append(out, Vec2{X: x})
		}
		return out
	case RepetitionExplicitY:
		out := []Vec2{{}}
		for _, y := range r.Coords {
			out = append(out, Vec2{Y: y})
		}
		return out
	}
	return nil
}

// Copy returns a repetition with its own offset storage.
func (r Repetition) Copy() Repetition {
	c := r
	c.Offsets = append([]Vec2(nil), r.Offsets...)
	c.Coords = append([]float64(nil), r.Coords...)
	return c
}

// Transform applies the linear part of t to the repetition vectors.
// Rotated or reflected grids become regular lattices.
func (r *Repetition) Transform(t Transform) {
	linearOnly := t.Rotation == 0 && !t.XReflection
	switch r.Type {
	case RepetitionRectangular:
		if linearOnly {
			r.Spacing = r.Spacing.Scale(t.Scale())
			return
		}
		r.Type = RepetitionRegular
		r.V1 = t.ApplyVector(Vec2{X: r.Spacing.X})
		r.V2 = t.ApplyVector(Vec2{Y: r.Spacing.Y})
		r.Spacing = Vec2{}
	case RepetitionRegular:
		r.V1 = t.ApplyVector(r.V1)
		r.V2 = t.ApplyVector(r.V2)
	case RepetitionExplicit:
		for i, o := range r.Offsets {
			r.Offsets[i] = t.ApplyVector(o)
		}
	case RepetitionExplicitX, RepetitionExplicitY:
		if linearOnly {
			for i := range r.Coords {
				r.Coords[i] *= t.Scale()
			}
			return
		}
		pos := r.Positions()[1:]
		r.Type = RepetitionExplicit
		r.Coords = nil
		r.Offsets = make([]Vec2, len(pos))
		for i, o := range pos {
			r.Offsets[i] = t.ApplyVector(o)
		}
	}
}
