package native

// Anchor is the text position relative to the label origin.
type Anchor uint8

const (
	AnchorNW Anchor = iota
	AnchorN
	AnchorNE
	AnchorW
	AnchorO
	AnchorE
	AnchorSW
	AnchorS
	AnchorSE
)

var anchorNames = map[string]Anchor{
	"nw": AnchorNW, "n": AnchorN, "ne": AnchorNE,
	"w": AnchorW, "o": AnchorO, "e": AnchorE,
	"sw": AnchorSW, "s": AnchorS, "se": AnchorSE,
}

// ParseAnchor parses an anchor name such as "o" or "sw".
func ParseAnchor(s string) (Anchor, bool) {
	a, ok := anchorNames[s]
	return a, ok
}

// Label is a text annotation. Its tag carries the layer and texttype.
type Label struct {
	Text          string
	Repetition    Repetition
	Origin        Vec2
	Rotation      float64
	Magnification float64
	Tag           Tag
	Anchor        Anchor
	XReflection   bool
}

// Copy returns an independent label.
func (l *Label) Copy() *Label {
	c := *l
	c.Repetition = l.Repetition.Copy()
	return &c
}

// Transform places the label through t.
func (l *Label) Transform(t Transform) {
	l.Origin = t.Apply(l.Origin)
	rot := l.Rotation
	if t.XReflection {
		rot = -rot
	}
	l.Rotation = rot + t.Rotation
	mag := l.Magnification
	if mag == 0 {
		mag = 1
	}
	l.Magnification = mag * t.Scale()
	l.XReflection = l.XReflection != t.XReflection
	l.Repetition.Transform(t)
}

// Clear releases the label text.
func (l *Label) Clear() {
	l.Text = ""
	l.Repetition = Repetition{}
}
