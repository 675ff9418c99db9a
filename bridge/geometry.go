package bridge

import (
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/multierr"
)

// NewPolygon creates a polygon on (layer, datatype).
func (b *Bridge) NewPolygon(points []native.Vec2, layer, datatype uint32) (*resource.Ref, error) {
	if len(points) < 3 {
		return nil, errors.InvalidArgument(errors.PhaseAlloc, "polygon needs at least 3 points")
	}
	return b.newObject(native.NewPolygon(points, native.MakeTag(layer, datatype)))
}

// NewRectangle creates an axis-aligned rectangle with corners c0 and c1.
func (b *Bridge) NewRectangle(c0, c1 native.Vec2, layer, datatype uint32) (*resource.Ref, error) {
	return b.NewPolygon([]native.Vec2{c0, {X: c1.X, Y: c0.Y}, c1, {X: c0.X, Y: c1.Y}}, layer, datatype)
}

// LabelOptions places and tags a label.
type LabelOptions struct {
	Anchor        native.Anchor
	Rotation      float64
	Magnification float64
	XReflection   bool
	Layer         uint32
	Texttype      uint32
}

// DefaultLabelOptions returns a centered, unscaled label on layer 0.
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{Anchor: native.AnchorO, Magnification: 1}
}

// NewLabel creates a text label at origin.
func (b *Bridge) NewLabel(text string, origin native.Vec2, opts LabelOptions) (*resource.Ref, error) {
	mag := opts.Magnification
	if mag == 0 {
		mag = 1
	}
	return b.newObject(&native.Label{
		Text:          text,
		Origin:        origin,
		Rotation:      opts.Rotation,
		Magnification: mag,
		Tag:           native.MakeTag(opts.Layer, opts.Texttype),
		Anchor:        opts.Anchor,
		XReflection:   opts.XReflection,
	})
}

// SetRepetition stores a copy of rep in a polygon, label, path or reference.
func (b *Bridge) SetRepetition(h *resource.Ref, rep native.Repetition) error {
	_, obj, err := b.resolve(errors.PhaseHost, h, repeatable...)
	if err != nil {
		return err
	}
	rep = rep.Copy()
	switch o := obj.(type) {
	case *native.Polygon:
		o.Repetition = rep
	case *native.Label:
		o.Repetition = rep
	case *native.FlexPath:
		o.Repetition = rep
	case *native.RobustPath:
		o.Repetition = rep
	case *native.Reference:
		o.Repetition = rep
	}
	return nil
}

// SetTag moves a polygon or label to another layer and data or text type.
func (b *Bridge) SetTag(h *resource.Ref, layer, typ uint32) error {
	_, obj, err := b.resolve(errors.PhaseHost, h, native.KindPolygon, native.KindLabel)
	if err != nil {
		return err
	}
	switch o := obj.(type) {
	case *native.Polygon:
		o.Tag = native.MakeTag(layer, typ)
	case *native.Label:
		o.Tag = native.MakeTag(layer, typ)
	}
	return nil
}

var repeatable = []native.Kind{
	native.KindPolygon, native.KindLabel, native.KindFlexPath, native.KindRobustPath, native.KindReference,
}

// CopyObject returns the owner of an independent copy of a polygon, label,
// path or reference. A copied reference keeps the same target alive and a
// copied flexible path calls the same custom functions.
func (b *Bridge) CopyObject(h *resource.Ref) (*resource.Ref, error) {
	addr, _, err := b.resolve(errors.PhaseCopy, h, repeatable...)
	if err != nil {
		return nil, err
	}
	c, err := b.arena.CopyObject(addr)
	if err != nil {
		return nil, err
	}
	dst := b.newRef(c.Dst, c.Kind)
	if err := b.adopt(c); err != nil {
		return nil, multierr.Append(err, release(dst))
	}
	return dst, nil
}

// ApplyRepetition expands the object's repetition. The object stays at the
// first placement and the returned owners hold copies at the others; none
// of them keeps a repetition. Copied references each hold their own link
// to the target.
func (b *Bridge) ApplyRepetition(h *resource.Ref) ([]*resource.Ref, error) {
	addr, _, err := b.resolve(errors.PhaseCopy, h, repeatable...)
	if err != nil {
		return nil, err
	}
	clones, err := b.arena.ApplyRepetition(addr)
	out := make([]*resource.Ref, 0, len(clones))
	for _, c := range clones {
		out = append(out, b.newRef(c.Dst, c.Kind))
		err = multierr.Append(err, b.adopt(c))
	}
	if err != nil {
		return nil, multierr.Append(err, releaseAll(out))
	}
	return out, nil
}
