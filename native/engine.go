package native

import (
	"slices"

	"github.com/wippyai/gdsbridge/errors"
)

// Clone records one object produced by a copy. For shallow copies Src and
// Dst are the same address.
type Clone struct {
	// Edits lists path elements removed from the copy, keyed by Dst.
	Edits []ElementEdit
	Kind  Kind
	Src   Addr
	Dst   Addr
}

// Shared reports whether the clone shares the source object.
func (c Clone) Shared() bool { return c.Src == c.Dst }

// CopyCell creates a new cell named name holding the contents of src. A
// non-identity transform forces a deep copy.
func (a *Arena) CopyCell(src Addr, name string, deep bool, t Transform) (Addr, []Clone, error) {
	cell, err := a.Cell(src)
	if err != nil {
		return 0, nil, err
	}
	if !t.IsIdentity() {
		deep = true
	}

	// resolve everything before allocating so a bad address leaves no
	// partial copy behind
	objs := make(map[Addr]Object, cell.Len())
	if deep {
		for _, k := range GeometryKinds {
			for _, addr := range cell.ArrayFor(k).Items() {
				obj, err := a.Get(addr)
				if err != nil {
					return 0, nil, err
				}
				objs[addr] = obj
			}
		}
	}

	dstAddr, dstObj, err := a.AllocateClear(KindCell)
	if err != nil {
		return 0, nil, err
	}
	dst := dstObj.(*Cell)
	dst.Name = name

	var clones []Clone
	for _, k := range GeometryKinds {
		from := cell.ArrayFor(k)
		to := dst.ArrayFor(k)
		for _, addr := range from.Items() {
			if !deep {
				to.Append(addr)
				clones = append(clones, Clone{Kind: k, Src: addr, Dst: addr})
				continue
			}
			cp := copyObject(objs[addr], t)
			naddr, err := a.Allocate(cp)
			if err != nil {
				return 0, nil, err
			}
			to.Append(naddr)
			clones = append(clones, Clone{Kind: k, Src: addr, Dst: naddr})
		}
	}
	return dstAddr, clones, nil
}

// FlattenOptions bounds a flatten.
type FlattenOptions struct {
	// Depth limits how many reference levels are expanded; negative means
	// unlimited and zero leaves the cell untouched. References below the
	// limit are copied as references.
	Depth int
	// ApplyRepetitions expands reference repetitions into separate copies.
	ApplyRepetitions bool
}

// FlattenResult lists what a flatten changed in the cell.
type FlattenResult struct {
	// Removed holds the cell references taken out of the cell.
	Removed []Addr
	// Added holds the new objects; Src is the object they were copied from.
	Added []Clone
}

type placement struct {
	rep *Repetition
	t   Transform
	src Addr
}

// Flatten replaces every Cell reference in the cell with transformed copies
// of the referenced geometry. RawCell and Name references are kept.
func (a *Arena) Flatten(cellAddr Addr, opts FlattenOptions) (FlattenResult, error) {
	cell, err := a.Cell(cellAddr)
	if err != nil {
		return FlattenResult{}, err
	}

	var res FlattenResult
	if opts.Depth == 0 {
		return res, nil
	}
	var places []placement
	stack := []Addr{cellAddr}
	for _, raddr := range cell.References.Items() {
		ref, err := a.Reference(raddr)
		if err != nil {
			return FlattenResult{}, err
		}
		if ref.Type != ReferenceCell {
			continue
		}
		res.Removed = append(res.Removed, raddr)
		places, err = a.collect(ref, Identity, opts, 0, stack, places)
		if err != nil {
			return FlattenResult{}, err
		}
	}

	objs := make([]Object, len(places))
	for i, p := range places {
		obj, err := a.Get(p.src)
		if err != nil {
			return FlattenResult{}, err
		}
		cp := copyObject(obj, p.t)
		if p.rep != nil {
			lin := p.t
			lin.Origin = Vec2{}
			inherit(cp, *p.rep, lin)
		}
		objs[i] = cp
	}

	kept := cell.References.Items()[:0:0]
	for _, raddr := range cell.References.Items() {
		if !slices.Contains(res.Removed, raddr) {
			kept = append(kept, raddr)
		}
	}
	cell.References = Array[Addr]{items: kept}

	for i, obj := range objs {
		naddr, err := a.Allocate(obj)
		if err != nil {
			return res, err
		}
		cell.ArrayFor(obj.Kind()).Append(naddr)
		res.Added = append(res.Added, Clone{Kind: obj.Kind(), Src: places[i].src, Dst: naddr})
	}
	return res, nil
}

func (a *Arena) collect(ref *Reference, outer Transform, opts FlattenOptions, depth int, stack []Addr, out []placement) ([]placement, error) {
	target, err := a.Cell(ref.Target)
	if err != nil {
		return nil, err
	}
	if slices.Contains(stack, ref.Target) {
		return nil, errors.Cycle(errors.PhaseFlatten, a.cycleNames(append(stack, ref.Target)))
	}
	stack = append(stack, ref.Target)

	offsets := []Vec2{{}}
	var rep *Repetition
	if ref.Repetition.Type != RepetitionNone {
		if opts.ApplyRepetitions {
			offsets = ref.Repetition.Positions()
		} else {
			r := ref.Repetition
			rep = &r
		}
	}

	for _, off := range offsets {
		base := ref.Placement()
		base.Origin = base.Origin.Add(off)
		t := base.Then(outer)

		for _, k := range [...]Kind{KindPolygon, KindFlexPath, KindRobustPath, KindLabel} {
			for _, addr := range target.ArrayFor(k).Items() {
				out = append(out, placement{src: addr, t: t, rep: rep})
			}
		}
		for _, caddr := range target.References.Items() {
			child, err := a.Reference(caddr)
			if err != nil {
				return nil, err
			}
			expand := child.Type == ReferenceCell && (opts.Depth < 0 || depth+1 < opts.Depth)
			if !expand {
				out = append(out, placement{src: caddr, t: t, rep: rep})
				continue
			}
			out, err = a.collect(child, t, opts, depth+1, stack, out)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (a *Arena) cycleNames(path []Addr) []string {
	names := make([]string, len(path))
	for i, addr := range path {
		if c, err := a.Cell(addr); err == nil {
			names[i] = c.Name
		}
	}
	return names
}

// FilterSpec selects objects by tag for removal.
type FilterSpec struct {
	TagFilter
	Polygons bool
	Paths    bool
	Labels   bool
	// Keep inverts the selection: matching objects stay and the rest go.
	Keep bool
}

// ElementEdit records one unordered element removal inside a path.
type ElementEdit struct {
	Path    Addr
	Kind    Kind
	Removed int
	// Moved is the former index of the element now at Removed, or -1.
	Moved int
}

// Removal is an object taken out of a cell.
type Removal struct {
	Kind Kind
	Addr Addr
}

// FilterResult lists what a filter changed, in the order it happened.
type FilterResult struct {
	Removed []Removal
	Edits   []ElementEdit
}

// Filter removes the selected objects from the cell. Paths lose matching
// elements and are removed once every element matches.
func (a *Arena) Filter(cellAddr Addr, spec FilterSpec) (FilterResult, error) {
	cell, err := a.Cell(cellAddr)
	if err != nil {
		return FilterResult{}, err
	}
	drop := func(t Tag) bool { return spec.Match(t) != spec.Keep }

	// resolve first so a bad address fails before anything moves
	kinds := []Kind{}
	if spec.Polygons {
		kinds = append(kinds, KindPolygon)
	}
	if spec.Paths {
		kinds = append(kinds, KindFlexPath, KindRobustPath)
	}
	if spec.Labels {
		kinds = append(kinds, KindLabel)
	}
	objs := map[Addr]Object{}
	for _, k := range kinds {
		for _, addr := range cell.ArrayFor(k).Items() {
			obj, err := a.Get(addr)
			if err != nil {
				return FilterResult{}, err
			}
			objs[addr] = obj
		}
	}

	var res FilterResult
	for _, k := range kinds {
		arr := cell.ArrayFor(k)
		i := 0
		for i < arr.Len() {
			addr := arr.At(i)
			if a.filterOne(objs[addr], addr, drop, &res) {
				arr.RemoveUnordered(i)
				res.Removed = append(res.Removed, Removal{Kind: k, Addr: addr})
				continue
			}
			i++
		}
	}
	return res, nil
}

// filterOne reports whether the whole object goes. Partial path edits are
// applied in place and recorded.
func (a *Arena) filterOne(obj Object, addr Addr, drop func(Tag) bool, res *FilterResult) bool {
	switch o := obj.(type) {
	case *Polygon:
		return drop(o.Tag)
	case *Label:
		return drop(o.Tag)
	case *FlexPath, *RobustPath:
		edits, gone := pruneElements(o, addr, drop)
		res.Edits = append(res.Edits, edits...)
		return gone
	}
	return false
}

// pruneElements removes the path elements drop selects. When every element
// is selected the path is left untouched and gone is true.
func pruneElements(obj Object, addr Addr, drop func(Tag) bool) (edits []ElementEdit, gone bool) {
	var tags []Tag
	var remove func(int) int
	switch o := obj.(type) {
	case *FlexPath:
		for _, el := range o.Elements {
			tags = append(tags, el.Tag)
		}
		remove = o.RemoveElement
	case *RobustPath:
		for _, el := range o.Elements {
			tags = append(tags, el.Tag)
		}
		remove = o.RemoveElement
	default:
		return nil, false
	}

	n := 0
	for _, t := range tags {
		if drop(t) {
			n++
		}
	}
	if n == len(tags) {
		return nil, true
	}
	for j := 0; j < len(tags); {
		if !drop(tags[j]) {
			j++
			continue
		}
		moved := remove(j)
		edits = append(edits, ElementEdit{Path: addr, Kind: obj.Kind(), Removed: j, Moved: moved})
		last := len(tags) - 1
		tags[j] = tags[last]
		tags = tags[:last]
	}
	return edits, false
}

// Dependencies returns the cells and raw cells referenced by the cell, in
// order of first appearance. Recursive walks follow cell references.
func (a *Arena) Dependencies(cellAddr Addr, recursive bool) ([]Addr, []Addr, error) {
	var cells, raws []Addr
	seen := map[Addr]bool{cellAddr: true}
	var walk func(Addr) error
	walk = func(addr Addr) error {
		cell, err := a.Cell(addr)
		if err != nil {
			return err
		}
		for _, raddr := range cell.References.Items() {
			ref, err := a.Reference(raddr)
			if err != nil {
				return err
			}
			if ref.Type == ReferenceName || seen[ref.Target] {
				continue
			}
			seen[ref.Target] = true
			switch ref.Type {
			case ReferenceRawCell:
				raws = append(raws, ref.Target)
			case ReferenceCell:
				cells = append(cells, ref.Target)
				if recursive {
					if err := walk(ref.Target); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := walk(cellAddr); err != nil {
		return nil, nil, err
	}
	return cells, raws, nil
}

// TopLevel returns the library members that no other member references,
// either by address or by name.
func (a *Arena) TopLevel(libAddr Addr) ([]Addr, []Addr, error) {
	lib, err := a.Library(libAddr)
	if err != nil {
		return nil, nil, err
	}
	used := map[Addr]bool{}
	names := map[string]bool{}
	for _, caddr := range lib.Cells.Items() {
		cell, err := a.Cell(caddr)
		if err != nil {
			return nil, nil, err
		}
		for _, raddr := range cell.References.Items() {
			ref, err := a.Reference(raddr)
			if err != nil {
				return nil, nil, err
			}
			if ref.Type == ReferenceName {
				names[ref.Name] = true
			} else if ref.Target != caddr {
				used[ref.Target] = true
			}
		}
	}

	var cells, raws []Addr
	for _, caddr := range lib.Cells.Items() {
		cell, _ := a.Cell(caddr)
		if !used[caddr] && !names[cell.Name] {
			cells = append(cells, caddr)
		}
	}
	for _, raddr := range lib.RawCells.Items() {
		raw, err := a.RawCell(raddr)
		if err != nil {
			return nil, nil, err
		}
		if !used[raddr] && !names[raw.Name] {
			raws = append(raws, raddr)
		}
	}
	return cells, raws, nil
}

// FindCell returns the library cell with the given name.
func (a *Arena) FindCell(libAddr Addr, name string) (Addr, bool) {
	lib, err := a.Library(libAddr)
	if err != nil {
		return 0, false
	}
	for _, caddr := range lib.Cells.Items() {
		if c, err := a.Cell(caddr); err == nil && c.Name == name {
			return caddr, true
		}
	}
	return 0, false
}

// ShapeTags returns the sorted set of polygon and path tags used by the
// library's cells.
func (a *Arena) ShapeTags(libAddr Addr) ([]Tag, error) {
	return a.libraryTags(libAddr, func(c *Cell, add func(Tag)) error {
		for _, addr := range c.Polygons.Items() {
			p, err := a.Polygon(addr)
			if err != nil {
				return err
			}
			add(p.Tag)
		}
		for _, addr := range c.FlexPaths.Items() {
			p, err := a.FlexPath(addr)
			if err != nil {
				return err
			}
			for _, el := range p.Elements {
				add(el.Tag)
			}
		}
		for _, addr := range c.RobustPaths.Items() {
			p, err := a.RobustPath(addr)
			if err != nil {
				return err
			}
			for _, el := range p.Elements {
				add(el.Tag)
			}
		}
		return nil
	})
}

// LabelTags returns the sorted set of label tags used by the library's
// cells.
func (a *Arena) LabelTags(libAddr Addr) ([]Tag, error) {
	return a.libraryTags(libAddr, func(c *Cell, add func(Tag)) error {
		for _, addr := range c.Labels.Items() {
			l, err := a.Label(addr)
			if err != nil {
				return err
			}
			add(l.Tag)
		}
		return nil
	})
}

func (a *Arena) libraryTags(libAddr Addr, visit func(*Cell, func(Tag)) error) ([]Tag, error) {
	lib, err := a.Library(libAddr)
	if err != nil {
		return nil, err
	}
	set := map[Tag]bool{}
	add := func(t Tag) { set[t] = true }
	for _, caddr := range lib.Cells.Items() {
		cell, err := a.Cell(caddr)
		if err != nil {
			return nil, err
		}
		if err := visit(cell, add); err != nil {
			return nil, err
		}
	}
	tags := make([]Tag, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	slices.SortFunc(tags, func(x, y Tag) int {
		if x.Layer() != y.Layer() {
			return int(x.Layer()) - int(y.Layer())
		}
		return int(x.Type()) - int(y.Type())
	})
	return tags, nil
}
