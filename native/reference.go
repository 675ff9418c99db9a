package native

// ReferenceType says what a reference points at.
type ReferenceType uint8

const (
	ReferenceCell ReferenceType = iota
	ReferenceRawCell
	ReferenceName
)

func (t ReferenceType) String() string {
	switch t {
	case ReferenceCell:
		return "cell"
	case ReferenceRawCell:
		return "rawcell"
	case ReferenceName:
		return "name"
	}
	return "unknown"
}

// Reference places another cell inside a cell. Target holds the address of
// a Cell or RawCell; a Name reference is unresolved and only carries Name.
type Reference struct {
	Name          string
	Repetition    Repetition
	Origin        Vec2
	Rotation      float64
	Magnification float64
	Target        Addr
	Type          ReferenceType
	XReflection   bool
}

// Placement returns the transform the reference applies to its target.
func (r *Reference) Placement() Transform {
	return Transform{
		Origin:        r.Origin,
		Rotation:      r.Rotation,
		Magnification: r.Magnification,
		XReflection:   r.XReflection,
	}
}

// Copy returns an independent reference to the same target.
func (r *Reference) Copy() *Reference {
	c := *r
	c.Repetition = r.Repetition.Copy()
	return &c
}

// Transform composes t after the reference placement.
func (r *Reference) Transform(t Transform) {
	p := r.Placement().Then(t)
	r.Origin = p.Origin
	r.Rotation = p.Rotation
	r.Magnification = p.Magnification
	r.XReflection = p.XReflection
	r.Repetition.Transform(t)
}

// Clear drops the target.
func (r *Reference) Clear() {
	r.Target = 0
	r.Name = ""
	r.Repetition = Repetition{}
}
