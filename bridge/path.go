package bridge

import (
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
)

// FlexPathElementSpec describes one element of a new flexible path. Nil
// Join, End and Bend select natural joins, flush ends and sharp corners.
type FlexPathElementSpec struct {
	Join     Join
	End      End
	Bend     Bend
	Width    float64
	Offset   float64
	Layer    uint32
	Datatype uint32
}

// FlexPathOptions configures NewFlexPath.
type FlexPathOptions struct {
	Elements   []FlexPathElementSpec
	Tolerance  float64
	SimplePath bool
	ScaleWidth bool
}

// DefaultFlexPathOptions returns a single-element path of the given width.
func DefaultFlexPathOptions(width float64) FlexPathOptions {
	return FlexPathOptions{
		Elements:   []FlexPathElementSpec{{Width: width}},
		Tolerance:  1e-2,
		ScaleWidth: true,
	}
}

// UniformElements returns n elements of equal width spaced offset apart and
// centered on the spine.
func UniformElements(n int, width, offset float64, layer, datatype uint32) []FlexPathElementSpec {
	out := make([]FlexPathElementSpec, n)
	for i := range out {
		out[i] = FlexPathElementSpec{
			Width:    width,
			Offset:   (float64(i) - 0.5*float64(n-1)) * offset,
			Layer:    layer,
			Datatype: datatype,
		}
	}
	return out
}

func checkJoin(j Join) error {
	switch j := j.(type) {
	case JoinPolicy:
		if native.JoinType(j) == native.JoinFunction {
			return errors.InvalidArgument(errors.PhaseCallback, "function join needs a callable")
		}
	case CustomJoin:
		if j == nil {
			return errors.InvalidArgument(errors.PhaseCallback, "nil join function")
		}
	}
	return nil
}

func checkEnd(e End) error {
	switch e := e.(type) {
	case EndPolicy:
		if t := native.EndType(e); t == native.EndFunction || t == native.EndExtended {
			return errors.InvalidArgument(errors.PhaseCallback, "end policy "+t.String()+" needs arguments")
		}
	case CustomEnd:
		if e == nil {
			return errors.InvalidArgument(errors.PhaseCallback, "nil end function")
		}
	}
	return nil
}

func checkBend(bd Bend) error {
	switch bd := bd.(type) {
	case CircularBend:
		if bd.Radius < 0 {
			return errors.InvalidArgument(errors.PhaseCallback, "negative bend radius")
		}
	case CustomBend:
		if bd.Func == nil {
			return errors.InvalidArgument(errors.PhaseCallback, "nil bend function")
		}
		if bd.Radius < 0 {
			return errors.InvalidArgument(errors.PhaseCallback, "negative bend radius")
		}
	}
	return nil
}

// applyJoin updates the registry before the element's kind flag.
func (b *Bridge) applyJoin(addr native.Addr, el *native.FlexPathElement, i int, j Join) {
	s := slot{i, RoleJoin}
	switch j := j.(type) {
	case JoinPolicy:
		b.evict(addr, s)
		el.Join = native.JoinType(j)
	case CustomJoin:
		b.install(addr, s, JoinFunc(j))
		el.Join = native.JoinFunction
	default:
		b.evict(addr, s)
		el.Join = native.JoinNatural
	}
}

func (b *Bridge) applyEnd(addr native.Addr, el *native.FlexPathElement, i int, e End) {
	s := slot{i, RoleEnd}
	switch e := e.(type) {
	case EndPolicy:
		b.evict(addr, s)
		el.End = native.EndType(e)
	case ExtendedEnd:
		b.evict(addr, s)
		el.End = native.EndExtended
		el.EndExtensions = native.Vec2{X: e.Start, Y: e.End}
	case CustomEnd:
		b.install(addr, s, EndFunc(e))
		el.End = native.EndFunction
	default:
		b.evict(addr, s)
		el.End = native.EndFlush
	}
}

func (b *Bridge) applyBend(addr native.Addr, el *native.FlexPathElement, i int, bd Bend) {
	s := slot{i, RoleBend}
	switch bd := bd.(type) {
	case CircularBend:
		b.evict(addr, s)
		el.Bend = native.BendCircular
		el.BendRadius = bd.Radius
	case CustomBend:
		b.install(addr, s, bd.Func)
		el.Bend = native.BendFunction
		el.BendRadius = bd.Radius
	default:
		b.evict(addr, s)
		el.Bend = native.BendNone
		el.BendRadius = 0
	}
}

// NewFlexPath creates a flexible path along points.
func (b *Bridge) NewFlexPath(points []native.Vec2, opts FlexPathOptions) (*resource.Ref, error) {
	if len(points) == 0 {
		return nil, errors.InvalidArgument(errors.PhaseHost, "path needs at least one point")
	}
	if len(opts.Elements) == 0 {
		return nil, errors.InvalidArgument(errors.PhaseHost, "path needs at least one element")
	}
	if opts.Tolerance <= 0 {
		return nil, errors.InvalidArgument(errors.PhaseHost, "tolerance must be positive")
	}
	for _, spec := range opts.Elements {
		if spec.Width < 0 {
			return nil, errors.InvalidArgument(errors.PhaseHost, "negative width")
		}
		if err := multiCheck(checkJoin(spec.Join), checkEnd(spec.End), checkBend(spec.Bend)); err != nil {
			return nil, err
		}
	}

	p := &native.FlexPath{
		Spine:      append([]native.Vec2(nil), points...),
		Elements:   make([]native.FlexPathElement, len(opts.Elements)),
		Tolerance:  opts.Tolerance,
		SimplePath: opts.SimplePath,
		ScaleWidth: opts.ScaleWidth,
	}
	for i, spec := range opts.Elements {
		el := &p.Elements[i]
		el.Tag = native.MakeTag(spec.Layer, spec.Datatype)
		el.HalfWidthAndOffset = make([]native.Vec2, len(points))
		for j := range el.HalfWidthAndOffset {
			el.HalfWidthAndOffset[j] = native.Vec2{X: spec.Width / 2, Y: spec.Offset}
		}
	}
	h, err := b.newObject(p)
	if err != nil {
		return nil, err
	}
	addr := h.Handle()
	for i, spec := range opts.Elements {
		el := &p.Elements[i]
		b.applyJoin(addr, el, i, spec.Join)
		b.applyEnd(addr, el, i, spec.End)
		b.applyBend(addr, el, i, spec.Bend)
	}
	b.syncPath(addr, p)
	return h, nil
}

func multiCheck(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) pathElement(h *resource.Ref, element int) (native.Addr, *native.FlexPath, *native.FlexPathElement, error) {
	addr, obj, err := b.resolve(errors.PhaseCallback, h, native.KindFlexPath)
	if err != nil {
		return 0, nil, nil, err
	}
	p := obj.(*native.FlexPath)
	if element < 0 || element >= len(p.Elements) {
		return 0, nil, nil, errors.InvalidArgument(errors.PhaseCallback, "element index out of range")
	}
	return addr, p, &p.Elements[element], nil
}

// SetJoin changes the join of one path element. Installing a CustomJoin
// replaces any previous join function.
func (b *Bridge) SetJoin(h *resource.Ref, element int, j Join) error {
	if err := checkJoin(j); err != nil {
		return err
	}
	addr, p, el, err := b.pathElement(h, element)
	if err != nil {
		return err
	}
	b.applyJoin(addr, el, element, j)
	b.syncPath(addr, p)
	return nil
}

// SetEnd changes the end cap of one path element.
func (b *Bridge) SetEnd(h *resource.Ref, element int, e End) error {
	if err := checkEnd(e); err != nil {
		return err
	}
	addr, p, el, err := b.pathElement(h, element)
	if err != nil {
		return err
	}
	b.applyEnd(addr, el, element, e)
	b.syncPath(addr, p)
	return nil
}

// SetBend changes how one path element rounds corners.
func (b *Bridge) SetBend(h *resource.Ref, element int, bd Bend) error {
	if err := checkBend(bd); err != nil {
		return err
	}
	addr, p, el, err := b.pathElement(h, element)
	if err != nil {
		return err
	}
	b.applyBend(addr, el, element, bd)
	b.syncPath(addr, p)
	return nil
}

// SetPathParametric installs fn as the path's parametric generator and
// appends samples+1 points drawn from it (the first is skipped when it
// would repeat the current end point).
func (b *Bridge) SetPathParametric(h *resource.Ref, fn ParametricFunc, samples int, relative bool) error {
	if fn == nil {
		return errors.InvalidArgument(errors.PhaseCallback, "nil parametric function")
	}
	if samples < 1 {
		return errors.InvalidArgument(errors.PhaseCallback, "sample count must be positive")
	}
	addr, obj, err := b.resolve(errors.PhaseCallback, h, native.KindFlexPath)
	if err != nil {
		return err
	}
	p := obj.(*native.FlexPath)
	b.install(addr, slot{PathElement, RoleParametric}, fn)
	b.syncPath(addr, p)
	return p.ParametricTo(samples, relative)
}

// FlexPathSegment appends spine points. Element profiles keep their last
// width and offset.
func (b *Bridge) FlexPathSegment(h *resource.Ref, points []native.Vec2, relative bool) error {
	_, obj, err := b.resolve(errors.PhaseHost, h, native.KindFlexPath)
	if err != nil {
		return err
	}
	p := obj.(*native.FlexPath)
	var base native.Vec2
	if relative && len(p.Spine) > 0 {
		base = p.Spine[len(p.Spine)-1]
	}
	for _, pt := range points {
		p.Spine = append(p.Spine, base.Add(pt))
	}
	for i := range p.Elements {
		el := &p.Elements[i]
		last := native.Vec2{}
		if n := len(el.HalfWidthAndOffset); n > 0 {
			last = el.HalfWidthAndOffset[n-1]
		}
		for range points {
			el.HalfWidthAndOffset = append(el.HalfWidthAndOffset, last)
		}
	}
	return nil
}

// RobustPathElementSpec describes one element of a new robust path. Robust
// paths take built-in or extended ends only.
type RobustPathElementSpec struct {
	End      End
	Width    float64
	Offset   float64
	Layer    uint32
	Datatype uint32
}

// RobustPathOptions configures NewRobustPath.
type RobustPathOptions struct {
	Elements   []RobustPathElementSpec
	Tolerance  float64
	MaxEvals   uint64
	SimplePath bool
	ScaleWidth bool
}

// DefaultRobustPathOptions returns a single-element robust path of the
// given width.
func DefaultRobustPathOptions(width float64) RobustPathOptions {
	return RobustPathOptions{
		Elements:   []RobustPathElementSpec{{Width: width}},
		Tolerance:  1e-2,
		MaxEvals:   1000,
		ScaleWidth: true,
	}
}

// NewRobustPath creates a robust path starting at origin. Robust paths
// cannot be torn down yet: releasing the last owner reports unsupported and
// leaves the block allocated.
func (b *Bridge) NewRobustPath(origin native.Vec2, opts RobustPathOptions) (*resource.Ref, error) {
	if len(opts.Elements) == 0 {
		return nil, errors.InvalidArgument(errors.PhaseHost, "path needs at least one element")
	}
	if opts.Tolerance <= 0 {
		return nil, errors.InvalidArgument(errors.PhaseHost, "tolerance must be positive")
	}
	p := &native.RobustPath{
		Spine:      []native.Vec2{origin},
		Elements:   make([]native.RobustPathElement, len(opts.Elements)),
		Tolerance:  opts.Tolerance,
		MaxEvals:   opts.MaxEvals,
		SimplePath: opts.SimplePath,
		ScaleWidth: opts.ScaleWidth,
	}
	for i, spec := range opts.Elements {
		if spec.Width < 0 {
			return nil, errors.InvalidArgument(errors.PhaseHost, "negative width")
		}
		el := &p.Elements[i]
		el.Width = spec.Width
		el.Offset = spec.Offset
		el.Tag = native.MakeTag(spec.Layer, spec.Datatype)
		switch e := spec.End.(type) {
		case nil:
		case EndPolicy:
			if err := checkEnd(e); err != nil {
				return nil, err
			}
			el.End = native.EndType(e)
		case ExtendedEnd:
			el.End = native.EndExtended
			el.EndExtensions = native.Vec2{X: e.Start, Y: e.End}
		default:
			return nil, errors.Unsupported(errors.PhaseCallback, "custom end on a robust path")
		}
	}
	return b.newObject(p)
}

// NewCurve starts a curve at origin.
func (b *Bridge) NewCurve(origin native.Vec2, tolerance float64) (*resource.Ref, error) {
	if tolerance <= 0 {
		return nil, errors.InvalidArgument(errors.PhaseHost, "tolerance must be positive")
	}
	return b.newObject(native.NewCurve(origin, tolerance))
}

// CurveSegment appends straight segments to a curve.
func (b *Bridge) CurveSegment(h *resource.Ref, points []native.Vec2, relative bool) error {
	c, err := b.Curve(h)
	if err != nil {
		return err
	}
	c.Segment(points, relative)
	return nil
}

// SetCurveParametric installs fn as the curve's parametric generator and
// samples it like SetPathParametric.
func (b *Bridge) SetCurveParametric(h *resource.Ref, fn ParametricFunc, samples int, relative bool) error {
	if fn == nil {
		return errors.InvalidArgument(errors.PhaseCallback, "nil parametric function")
	}
	if samples < 1 {
		return errors.InvalidArgument(errors.PhaseCallback, "sample count must be positive")
	}
	addr, obj, err := b.resolve(errors.PhaseCallback, h, native.KindCurve)
	if err != nil {
		return err
	}
	c := obj.(*native.Curve)
	b.install(addr, slot{PathElement, RoleParametric}, fn)
	b.syncCurve(addr, c)
	return c.ParametricTo(samples, relative)
}
