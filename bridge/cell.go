package bridge

import (
	"iter"

	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// NewCell creates an empty cell.
func (b *Bridge) NewCell(name string) (*resource.Ref, error) {
	if name == "" {
		return nil, errors.InvalidArgument(errors.PhaseHost, "cell name must not be empty")
	}
	return b.newObject(&native.Cell{Name: name})
}

// NewRawCell creates a raw cell holding data verbatim.
func (b *Bridge) NewRawCell(name string, data []byte) (*resource.Ref, error) {
	if name == "" {
		return nil, errors.InvalidArgument(errors.PhaseHost, "cell name must not be empty")
	}
	return b.newObject(&native.RawCell{Name: name, Data: append([]byte(nil), data...)})
}

// SetCellName renames a cell. References held by name are not updated; use
// LibraryRenameCell for that.
func (b *Bridge) SetCellName(h *resource.Ref, name string) error {
	if name == "" {
		return errors.InvalidArgument(errors.PhaseHost, "cell name must not be empty")
	}
	c, err := b.Cell(h)
	if err != nil {
		return err
	}
	c.Name = name
	return nil
}

type operand struct {
	h    *resource.Ref
	addr native.Addr
	kind native.Kind
}

// geometry resolves objs as cell contents.
func (b *Bridge) geometry(phase errors.Phase, objs []*resource.Ref) ([]operand, error) {
	out := make([]operand, 0, len(objs))
	for _, h := range objs {
		addr, obj, err := b.resolve(phase, h,
			native.KindPolygon, native.KindReference, native.KindFlexPath, native.KindRobustPath, native.KindLabel)
		if err != nil {
			return nil, err
		}
		out = append(out, operand{h: h, addr: addr, kind: obj.Kind()})
	}
	return out, nil
}

// CellAdd appends objects to the cell. The cell takes its own owner of each
// one. Nothing is added if any object has the wrong kind or is already in
// the cell.
func (b *Bridge) CellAdd(cell *resource.Ref, objs ...*resource.Ref) error {
	caddr, obj, err := b.resolve(errors.PhaseAttach, cell, native.KindCell)
	if err != nil {
		return err
	}
	c := obj.(*native.Cell)
	ops, err := b.geometry(errors.PhaseAttach, objs)
	if err != nil {
		return err
	}
	seen := make(map[native.Addr]bool, len(ops))
	for _, op := range ops {
		if _, dup := b.owner(caddr, op.kind, op.addr); dup || seen[op.addr] {
			return errors.DuplicateAttachment(errors.PhaseAttach, op.kind.String(), uint64(op.addr))
		}
		seen[op.addr] = true
	}
	for _, op := range ops {
		c.ArrayFor(op.kind).Append(op.addr)
		if err := b.attach(caddr, op.kind, op.addr, op.h.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// CellRemove takes objects out of the cell and releases the cell's owners.
// Objects that are not in the cell are skipped.
func (b *Bridge) CellRemove(cell *resource.Ref, objs ...*resource.Ref) error {
	caddr, obj, err := b.resolve(errors.PhaseDetach, cell, native.KindCell)
	if err != nil {
		return err
	}
	c := obj.(*native.Cell)
	ops, err := b.geometry(errors.PhaseDetach, objs)
	if err != nil {
		return err
	}
	var held []*resource.Ref
	for _, op := range ops {
		if !c.ArrayFor(op.kind).RemoveItem(op.addr) {
			continue
		}
		h, err := b.detach(caddr, op.kind, op.addr)
		if err != nil {
			return err
		}
		held = append(held, h)
	}
	return releaseAll(held)
}

func releaseAll(hs []*resource.Ref) error {
	var errs error
	for _, h := range hs {
		errs = multierr.Append(errs, release(h))
	}
	return errs
}

// CellPolygons yields the cell's polygons.
func (b *Bridge) CellPolygons(cell *resource.Ref) iter.Seq2[*resource.Ref, error] {
	return b.Members(cell, native.KindPolygon)
}

// CellReferences yields the cell's references.
func (b *Bridge) CellReferences(cell *resource.Ref) iter.Seq2[*resource.Ref, error] {
	return b.Members(cell, native.KindReference)
}

// CellLabels yields the cell's labels.
func (b *Bridge) CellLabels(cell *resource.Ref) iter.Seq2[*resource.Ref, error] {
	return b.Members(cell, native.KindLabel)
}

// CellPaths yields the cell's flexible paths followed by its robust paths.
func (b *Bridge) CellPaths(cell *resource.Ref) iter.Seq2[*resource.Ref, error] {
	return func(yield func(*resource.Ref, error) bool) {
		for _, k := range [...]native.Kind{native.KindFlexPath, native.KindRobustPath} {
			for h, err := range b.Members(cell, k) {
				if !yield(h, err) || err != nil {
					return
				}
			}
		}
	}
}

// CopyOptions configures CellCopy.
type CopyOptions struct {
	// Transform is applied to every copied object. A non-identity transform
	// forces a deep copy.
	Transform native.Transform
	// Deep allocates new objects instead of sharing the source's.
	Deep bool
}

// DefaultCopyOptions returns an untransformed deep copy.
func DefaultCopyOptions() CopyOptions {
	return CopyOptions{Transform: native.Identity, Deep: true}
}

// CellCopy creates a new cell named name with the contents of cell. Shallow
// copies share objects with the source; deep copies own fresh ones, with
// references linked to the same targets and path callbacks reinstalled.
func (b *Bridge) CellCopy(cell *resource.Ref, name string, opts CopyOptions) (*resource.Ref, error) {
	if name == "" {
		return nil, errors.InvalidArgument(errors.PhaseCopy, "cell name must not be empty")
	}
	caddr, obj, err := b.resolve(errors.PhaseCopy, cell, native.KindCell)
	if err != nil {
		return nil, err
	}
	src := obj.(*native.Cell)
	for _, k := range native.GeometryKinds {
		for _, item := range src.ArrayFor(k).Items() {
			if _, ok := b.owner(caddr, k, item); !ok {
				return nil, errors.NotFound(errors.PhaseCopy, k.String(), uint64(item))
			}
		}
	}

	daddr, clones, err := b.arena.CopyCell(caddr, name, opts.Deep, opts.Transform)
	if err != nil {
		return nil, err
	}
	dst := b.newRef(daddr, native.KindCell)
	for _, c := range clones {
		var h *resource.Ref
		if c.Shared() {
			owner, _ := b.owner(caddr, c.Kind, c.Src)
			h = owner.Clone()
		} else {
			h = b.newRef(c.Dst, c.Kind)
			if err := b.adopt(c); err != nil {
				return dst, err
			}
		}
		if err := b.attach(daddr, c.Kind, c.Dst, h); err != nil {
			return dst, err
		}
	}
	Logger().Debug("copy cell", addrField(caddr), zap.String("cell", name), zap.Bool("deep", opts.Deep || !opts.Transform.IsIdentity()))
	return dst, nil
}

// adopt carries the registry state of a copied object over to its copy:
// references share the source's target and flexible paths call the same
// functions, following any element edits made to the copy.
func (b *Bridge) adopt(c native.Clone) error {
	switch c.Kind {
	case native.KindReference:
		if target, ok := b.linked(c.Src); ok {
			return b.link(c.Dst, target.Clone())
		}
	case native.KindFlexPath:
		b.copyCallbacks(c.Src, c.Dst)
		for _, e := range c.Edits {
			b.evictElement(c.Dst, e.Removed)
			if e.Moved >= 0 {
				b.rekey(c.Dst, e.Moved, e.Removed)
			}
		}
		p, err := b.arena.FlexPath(c.Dst)
		if err != nil {
			return err
		}
		b.syncPath(c.Dst, p)
	}
	return nil
}

// FilterSpec selects the objects CellFilter removes. With Keep unset,
// objects whose tag matches go; with Keep set, matching objects stay and
// the rest go.
type FilterSpec = native.FilterSpec

// CellFilter removes objects from the cell by tag. Paths lose the matching
// elements and are removed once none is left.
func (b *Bridge) CellFilter(cell *resource.Ref, spec FilterSpec) error {
	caddr, _, err := b.resolve(errors.PhaseFilter, cell, native.KindCell)
	if err != nil {
		return err
	}
	res, err := b.arena.Filter(caddr, spec)
	if err != nil {
		return err
	}

	touched := map[native.Addr]bool{}
	for _, e := range res.Edits {
		if e.Kind != native.KindFlexPath {
			continue
		}
		b.evictElement(e.Path, e.Removed)
		if e.Moved >= 0 {
			b.rekey(e.Path, e.Moved, e.Removed)
		}
		touched[e.Path] = true
	}
	for addr := range touched {
		p, err := b.arena.FlexPath(addr)
		if err != nil {
			return err
		}
		b.syncPath(addr, p)
	}

	held := make([]*resource.Ref, 0, len(res.Removed))
	for _, r := range res.Removed {
		h, err := b.detach(caddr, r.Kind, r.Addr)
		if err != nil {
			return err
		}
		held = append(held, h)
	}
	Logger().Debug("filter", addrField(caddr), zap.Int("removed", len(res.Removed)), zap.Int("edits", len(res.Edits)))
	return releaseAll(held)
}

// CellFlatten replaces the cell's Cell references with transformed copies of
// the referenced geometry, down to Options.MaxDepth levels. Copies are
// attached before the removed references are released.
func (b *Bridge) CellFlatten(cell *resource.Ref, applyRepetitions bool) error {
	caddr, _, err := b.resolve(errors.PhaseFlatten, cell, native.KindCell)
	if err != nil {
		return err
	}
	res, err := b.arena.Flatten(caddr, native.FlattenOptions{
		Depth:            b.opts.MaxDepth,
		ApplyRepetitions: applyRepetitions,
	})
	if err != nil && len(res.Removed) == 0 {
		return err
	}
	errs := err

	for _, c := range res.Added {
		if err := b.adopt(c); err != nil {
			errs = multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, b.attach(caddr, c.Kind, c.Dst, b.newRef(c.Dst, c.Kind)))
	}
	var held []*resource.Ref
	for _, raddr := range res.Removed {
		h, err := b.detach(caddr, native.KindReference, raddr)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		held = append(held, h)
	}
	Logger().Debug("flatten", addrField(caddr), zap.Int("removed", len(res.Removed)), zap.Int("added", len(res.Added)))
	return multierr.Append(errs, releaseAll(held))
}

// GatherOptions configures CellGetPolygons, CellGetPaths and CellGetLabels.
type GatherOptions struct {
	// Depth limits how many reference levels are searched; zero reads the
	// cell alone and negative means unlimited.
	Depth int
	// ApplyRepetitions expands repetitions into separate copies.
	ApplyRepetitions bool
	// Filter keeps only objects on Layer with datatype or texttype Type.
	Filter bool
	Layer  uint32
	Type   uint32
}

// DefaultGatherOptions searches every level and expands repetitions.
func DefaultGatherOptions() GatherOptions {
	return GatherOptions{Depth: -1, ApplyRepetitions: true}
}

// CellGetPolygons returns copies of the polygons in the cell and in the
// cells it references, placed in the cell's frame. Each copy has a single
// owner held by the caller and belongs to no cell.
func (b *Bridge) CellGetPolygons(cell *resource.Ref, opts GatherOptions) ([]*resource.Ref, error) {
	return b.gather(cell, opts, native.KindPolygon)
}

// CellGetPaths returns copies of the flexible and robust paths, like
// CellGetPolygons. Filtered paths keep only their matching elements; copied
// flexible paths call the source's custom functions.
func (b *Bridge) CellGetPaths(cell *resource.Ref, opts GatherOptions) ([]*resource.Ref, error) {
	return b.gather(cell, opts, native.KindFlexPath, native.KindRobustPath)
}

// CellGetLabels returns copies of the labels, like CellGetPolygons.
func (b *Bridge) CellGetLabels(cell *resource.Ref, opts GatherOptions) ([]*resource.Ref, error) {
	return b.gather(cell, opts, native.KindLabel)
}

func (b *Bridge) gather(cell *resource.Ref, opts GatherOptions, kinds ...native.Kind) ([]*resource.Ref, error) {
	caddr, _, err := b.resolve(errors.PhaseCopy, cell, native.KindCell)
	if err != nil {
		return nil, err
	}
	clones, err := b.arena.Gather(caddr, native.GatherOptions{
		Kinds:            kinds,
		Depth:            opts.Depth,
		ApplyRepetitions: opts.ApplyRepetitions,
		Filter:           opts.Filter,
		Tag:              native.MakeTag(opts.Layer, opts.Type),
	})
	out := make([]*resource.Ref, 0, len(clones))
	for _, c := range clones {
		out = append(out, b.newRef(c.Dst, c.Kind))
		err = multierr.Append(err, b.adopt(c))
	}
	if err != nil {
		return nil, multierr.Append(err, releaseAll(out))
	}
	Logger().Debug("gather", addrField(caddr), zap.Int("copies", len(out)))
	return out, nil
}

// CellDependencies returns owners of the cells and raw cells the cell
// references, recursively if asked. Name references are not resolved.
func (b *Bridge) CellDependencies(cell *resource.Ref, recursive bool) (cells, raws []*resource.Ref, err error) {
	caddr, _, err := b.resolve(errors.PhaseHost, cell, native.KindCell)
	if err != nil {
		return nil, nil, err
	}
	caddrs, raddrs, err := b.arena.Dependencies(caddr, recursive)
	if err != nil {
		return nil, nil, err
	}
	if cells, err = b.ownersOf(caddrs); err != nil {
		return nil, nil, err
	}
	if raws, err = b.ownersOf(raddrs); err != nil {
		_ = releaseAll(cells)
		return nil, nil, err
	}
	return cells, raws, nil
}

func (b *Bridge) ownersOf(addrs []native.Addr) ([]*resource.Ref, error) {
	out := make([]*resource.Ref, 0, len(addrs))
	for _, addr := range addrs {
		h, ok := b.ownerOf(addr)
		if !ok {
			_ = releaseAll(out)
			return nil, errors.NotFound(errors.PhaseLink, "reference target", uint64(addr))
		}
		out = append(out, h.Clone())
	}
	return out, nil
}
