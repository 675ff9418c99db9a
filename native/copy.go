package native

import (
	"slices"

	"github.com/wippyai/gdsbridge/errors"
)

type transformer interface {
	Object
	Transform(Transform)
}

func cloneObject(obj Object) transformer {
	switch o := obj.(type) {
	case *Polygon:
		return o.Copy()
	case *Label:
		return o.Copy()
	case *FlexPath:
		return o.Copy()
	case *RobustPath:
		return o.Copy()
	case *Reference:
		return o.Copy()
	}
	return nil
}

func copyObject(obj Object, t Transform) Object {
	c := cloneObject(obj)
	if c == nil {
		return nil
	}
	if !t.IsIdentity() {
		c.Transform(t)
	}
	return c
}

// repetitionOf returns the repetition stored in obj, or nil when the kind
// has none.
func repetitionOf(obj Object) *Repetition {
	switch o := obj.(type) {
	case *Polygon:
		return &o.Repetition
	case *Label:
		return &o.Repetition
	case *FlexPath:
		return &o.Repetition
	case *RobustPath:
		return &o.Repetition
	case *Reference:
		return &o.Repetition
	}
	return nil
}

// inherit gives obj the repetition of the reference it was placed through,
// mapped by the linear transform lin. Objects with their own repetition
// keep it.
func inherit(obj Object, rep Repetition, lin Transform) {
	r := repetitionOf(obj)
	if r == nil || r.Type != RepetitionNone {
		return
	}
	*r = rep.Copy()
	r.Transform(lin)
}

func translation(off Vec2) Transform {
	return Transform{Origin: off, Magnification: 1}
}

// CopyObject allocates an independent copy of a polygon, label, path or
// reference.
func (a *Arena) CopyObject(addr Addr) (Clone, error) {
	obj, err := a.Get(addr)
	if err != nil {
		return Clone{}, err
	}
	cp := cloneObject(obj)
	if cp == nil {
		return Clone{}, errors.WrongKind(errors.PhaseCopy, obj.Kind().String(), "Polygon|Label|FlexPath|RobustPath|Reference")
	}
	naddr, err := a.Allocate(cp)
	if err != nil {
		return Clone{}, err
	}
	return Clone{Kind: cp.Kind(), Src: addr, Dst: naddr}, nil
}

// ApplyRepetition expands the object's repetition into copies translated to
// every placement but the first, which the object itself keeps. The object
// and the copies are left without a repetition.
func (a *Arena) ApplyRepetition(addr Addr) ([]Clone, error) {
	obj, err := a.Get(addr)
	if err != nil {
		return nil, err
	}
	rep := repetitionOf(obj)
	if rep == nil {
		return nil, errors.WrongKind(errors.PhaseCopy, obj.Kind().String(), "Polygon|Label|FlexPath|RobustPath|Reference")
	}
	if rep.Type == RepetitionNone {
		return nil, nil
	}
	offsets := rep.Positions()[1:]
	*rep = Repetition{}

	out := make([]Clone, 0, len(offsets))
	for _, off := range offsets {
		naddr, err := a.Allocate(copyObject(obj, translation(off)))
		if err != nil {
			return out, err
		}
		out = append(out, Clone{Kind: obj.Kind(), Src: addr, Dst: naddr})
	}
	return out, nil
}

// GatherOptions selects what Gather copies out of a cell and the cells it
// references.
type GatherOptions struct {
	Kinds []Kind
	// Depth limits how many reference levels are searched; zero reads the
	// cell alone and negative means unlimited.
	Depth int
	// ApplyRepetitions expands repetitions into separate copies.
	ApplyRepetitions bool
	// Filter keeps only objects tagged Tag. Paths keep their matching
	// elements and are skipped when none match.
	Filter bool
	Tag    Tag
}

// Gather copies the selected objects of the cell, and of every Cell it
// references, placed in the cell's frame. The copies belong to no cell.
// Paths whose elements were filtered carry the edits in their Clone.
func (a *Arena) Gather(cellAddr Addr, opts GatherOptions) ([]Clone, error) {
	places, err := a.gather(cellAddr, Identity, nil, opts, opts.Depth, nil, nil)
	if err != nil {
		return nil, err
	}

	type pending struct {
		obj   Object
		src   Addr
		edits []ElementEdit
	}
	drop := func(t Tag) bool { return t != opts.Tag }
	var objs []pending
	for _, p := range places {
		obj, err := a.Get(p.src)
		if err != nil {
			return nil, err
		}
		if opts.Filter {
			switch o := obj.(type) {
			case *Polygon:
				if drop(o.Tag) {
					continue
				}
			case *Label:
				if drop(o.Tag) {
					continue
				}
			}
		}

		offsets := []Vec2{{}}
		own := repetitionOf(obj)
		expand := opts.ApplyRepetitions && own != nil && own.Type != RepetitionNone
		if expand {
			offsets = own.Positions()
		}
		for _, off := range offsets {
			cp := cloneObject(obj)
			if expand {
				*repetitionOf(cp) = Repetition{}
				if off != (Vec2{}) {
					cp.Transform(translation(off))
				}
			}
			var edits []ElementEdit
			if opts.Filter {
				var gone bool
				if edits, gone = pruneElements(cp, 0, drop); gone {
					break
				}
			}
			if !p.t.IsIdentity() {
				cp.Transform(p.t)
			}
			if p.rep != nil {
				inherit(cp, *p.rep, Transform{Magnification: 1})
			}
			objs = append(objs, pending{obj: cp, src: p.src, edits: edits})
		}
	}

	out := make([]Clone, 0, len(objs))
	for _, p := range objs {
		naddr, err := a.Allocate(p.obj)
		if err != nil {
			return out, err
		}
		for i := range p.edits {
			p.edits[i].Path = naddr
		}
		out = append(out, Clone{Kind: p.obj.Kind(), Src: p.src, Dst: naddr, Edits: p.edits})
	}
	return out, nil
}

// gather lists the placements of the selected objects under cellAddr. rep is
// the repetition of an enclosing reference, already in the top cell's frame.
func (a *Arena) gather(cellAddr Addr, t Transform, rep *Repetition, opts GatherOptions, depth int, stack []Addr, out []placement) ([]placement, error) {
	cell, err := a.Cell(cellAddr)
	if err != nil {
		return nil, err
	}
	if slices.Contains(stack, cellAddr) {
		return nil, errors.Cycle(errors.PhaseCopy, a.cycleNames(append(stack, cellAddr)))
	}
	stack = append(stack, cellAddr)

	for _, k := range opts.Kinds {
		for _, addr := range cell.ArrayFor(k).Items() {
			out = append(out, placement{src: addr, t: t, rep: rep})
		}
	}
	if depth == 0 {
		return out, nil
	}

	for _, raddr := range cell.References.Items() {
		ref, err := a.Reference(raddr)
		if err != nil {
			return nil, err
		}
		if ref.Type != ReferenceCell {
			continue
		}
		offsets := []Vec2{{}}
		inner := rep
		if ref.Repetition.Type != RepetitionNone {
			if opts.ApplyRepetitions {
				offsets = ref.Repetition.Positions()
			} else if inner == nil {
				r := ref.Repetition.Copy()
				lin := t
				lin.Origin = Vec2{}
				r.Transform(lin)
				inner = &r
			}
		}
		for _, off := range offsets {
			base := ref.Placement()
			base.Origin = base.Origin.Add(off)
			out, err = a.gather(ref.Target, base.Then(t), inner, opts, depth-1, stack, out)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
