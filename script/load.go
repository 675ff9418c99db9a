package script

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/gdsbridge/bridge"
	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
)

const (
	defaultUnit      = 1e-6
	defaultPrecision = 1e-9
)

// Options configures script evaluation.
type Options struct {
	// Variables are visible to expressions as var.<name>.
	Variables map[string]cty.Value
}

// DefaultOptions returns options with no variables.
func DefaultOptions() Options {
	return Options{}
}

func (o Options) evalContext() *hcl.EvalContext {
	if len(o.Variables) == 0 {
		return nil
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(o.Variables)},
	}
}

// Parse decodes a script from src. filename is used in diagnostics.
func Parse(filename string, src []byte, opts Options) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.ParseFailed(filename, diags)
	}
	return decode(filename, file, opts)
}

// ParseFile reads and decodes the script at path.
func ParseFile(path string, opts Options) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.ParseFailed(path, diags)
	}
	return decode(path, file, opts)
}

func decode(name string, file *hcl.File, opts Options) (*File, error) {
	var f File
	if diags := gohcl.DecodeBody(file.Body, opts.evalContext(), &f); diags.HasErrors() {
		return nil, errors.ParseFailed(name, diags)
	}
	return &f, nil
}

// Load parses the script at path and builds it into b.
func Load(b *bridge.Bridge, path string, opts Options) (*Layout, error) {
	f, err := ParseFile(path, opts)
	if err != nil {
		return nil, err
	}
	return Build(b, f)
}

// Layout holds the owners created for a built script.
type Layout struct {
	Libraries []*Library
}

// Library is a built library and its cells in declaration order.
type Library struct {
	Name  string
	Ref   *resource.Ref
	Cells []*Cell
}

// Cell is a built cell.
type Cell struct {
	Name string
	Ref  *resource.Ref
}

// Library returns the built library named name, or nil.
func (l *Layout) Library(name string) *Library {
	for _, lib := range l.Libraries {
		if lib.Name == name {
			return lib
		}
	}
	return nil
}

// Cell returns the owner of the cell named name, or nil.
func (l *Library) Cell(name string) *resource.Ref {
	for _, c := range l.Cells {
		if c.Name == name {
			return c.Ref
		}
	}
	return nil
}

// Release drops every owner the layout holds. Cells stay alive while their
// library does.
func (l *Layout) Release() error {
	var errs error
	for _, lib := range l.Libraries {
		for _, c := range lib.Cells {
			errs = multierr.Append(errs, c.Ref.Release())
		}
		errs = multierr.Append(errs, lib.Ref.Release())
	}
	return errs
}

// Build creates the libraries, cells and geometry described by f. On error
// everything created so far is released.
func Build(b *bridge.Bridge, f *File) (*Layout, error) {
	l := &Layout{}
	for _, lb := range f.Libraries {
		if err := l.buildLibrary(b, lb); err != nil {
			return nil, multierr.Append(err, l.Release())
		}
	}
	Logger().Debug("script built", zap.Int("libraries", len(l.Libraries)))
	return l, nil
}

func (l *Layout) buildLibrary(b *bridge.Bridge, lb *LibraryBlock) error {
	unit, precision := defaultUnit, defaultPrecision
	if lb.Unit != nil {
		unit = *lb.Unit
	}
	if lb.Precision != nil {
		precision = *lb.Precision
	}
	ref, err := b.NewLibrary(lb.Name, unit, precision)
	if err != nil {
		return fmt.Errorf("library %s: %w", lb.Name, err)
	}
	lib := &Library{Name: lb.Name, Ref: ref}
	l.Libraries = append(l.Libraries, lib)

	// cells first so references may name cells declared later
	for _, cb := range lb.Cells {
		if lib.Cell(cb.Name) != nil {
			return errors.InvalidData(errors.PhaseScript, []string{lb.Name, cb.Name}, "duplicate cell name")
		}
		c, err := b.LibraryNewCell(ref, cb.Name)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", lb.Name, cb.Name, err)
		}
		lib.Cells = append(lib.Cells, &Cell{Name: cb.Name, Ref: c})
	}
	for i, cb := range lb.Cells {
		bl := builder{b: b, lib: lib, cell: lib.Cells[i].Ref, path: []string{lb.Name, cb.Name}}
		if err := bl.populate(cb); err != nil {
			return err
		}
	}
	// filters everywhere before any flatten copies filtered geometry
	for i, cb := range lb.Cells {
		bl := builder{b: b, lib: lib, cell: lib.Cells[i].Ref, path: []string{lb.Name, cb.Name}}
		if err := bl.filter(cb); err != nil {
			return err
		}
	}
	for i, cb := range lb.Cells {
		bl := builder{b: b, lib: lib, cell: lib.Cells[i].Ref, path: []string{lb.Name, cb.Name}}
		if err := bl.flatten(cb); err != nil {
			return err
		}
	}
	Logger().Debug("library built", zap.String("library", lb.Name), zap.Int("cells", len(lb.Cells)))
	return nil
}

// builder adds the contents of one cell block.
type builder struct {
	b    *bridge.Bridge
	lib  *Library
	cell *resource.Ref
	path []string
}

func (bl builder) fail(what string, err error) error {
	return fmt.Errorf("%s/%s: %w", strings.Join(bl.path, "/"), what, err)
}

func (bl builder) invalid(what, detail string) error {
	return errors.InvalidData(errors.PhaseScript, append(append([]string(nil), bl.path...), what), detail)
}

// add attaches a new object and drops the creator's owner.
func (bl builder) add(what string, h *resource.Ref, err error) error {
	if h != nil {
		defer h.Release()
	}
	if err != nil {
		return bl.fail(what, err)
	}
	if err := bl.b.CellAdd(bl.cell, h); err != nil {
		return bl.fail(what, err)
	}
	return nil
}

func (bl builder) repeat(what string, h *resource.Ref, rb *RepetitionBlock) error {
	if rb == nil {
		return nil
	}
	sp, err := bl.vec(what, rb.Spacing)
	if err != nil {
		return err
	}
	if err := bl.b.SetRepetition(h, native.Rectangular(rb.Columns, rb.Rows, sp)); err != nil {
		return bl.fail(what, err)
	}
	return nil
}

func (bl builder) vec(what string, v []float64) (native.Vec2, error) {
	switch len(v) {
	case 0:
		return native.Vec2{}, nil
	case 2:
		return native.Vec2{X: v[0], Y: v[1]}, nil
	}
	return native.Vec2{}, bl.invalid(what, fmt.Sprintf("expected [x, y], got %d values", len(v)))
}

func (bl builder) points(what string, raw [][]float64) ([]native.Vec2, error) {
	pts := make([]native.Vec2, len(raw))
	for i, p := range raw {
		if len(p) != 2 {
			return nil, bl.invalid(what, fmt.Sprintf("point %d: expected [x, y], got %d values", i, len(p)))
		}
		pts[i] = native.Vec2{X: p[0], Y: p[1]}
	}
	return pts, nil
}

func (bl builder) populate(cb *CellBlock) error {
	for _, pb := range cb.Polygons {
		pts, err := bl.points("polygon", pb.Points)
		if err != nil {
			return err
		}
		h, err := bl.b.NewPolygon(pts, pb.Layer, pb.Datatype)
		if err == nil {
			if rerr := bl.repeat("polygon", h, pb.Repetition); rerr != nil {
				h.Release()
				return rerr
			}
		}
		if err := bl.add("polygon", h, err); err != nil {
			return err
		}
	}
	for _, rb := range cb.Rectangles {
		c0, err := bl.vec("rectangle", rb.Corner1)
		if err != nil {
			return err
		}
		c1, err := bl.vec("rectangle", rb.Corner2)
		if err != nil {
			return err
		}
		h, err := bl.b.NewRectangle(c0, c1, rb.Layer, rb.Datatype)
		if err == nil {
			if rerr := bl.repeat("rectangle", h, rb.Repetition); rerr != nil {
				h.Release()
				return rerr
			}
		}
		if err := bl.add("rectangle", h, err); err != nil {
			return err
		}
	}
	for _, lb := range cb.Labels {
		if err := bl.label(lb); err != nil {
			return err
		}
	}
	for _, pb := range cb.Paths {
		if err := bl.flexPath(pb); err != nil {
			return err
		}
	}
	for _, rb := range cb.References {
		if err := bl.reference(rb); err != nil {
			return err
		}
	}
	return nil
}

func (bl builder) label(lb *LabelBlock) error {
	origin, err := bl.vec("label", lb.Origin)
	if err != nil {
		return err
	}
	opts := bridge.DefaultLabelOptions()
	if lb.Anchor != "" {
		a, ok := native.ParseAnchor(lb.Anchor)
		if !ok {
			return bl.invalid("label", "unknown anchor "+lb.Anchor)
		}
		opts.Anchor = a
	}
	if lb.Magnification != nil {
		opts.Magnification = *lb.Magnification
	}
	opts.Rotation = lb.Rotation
	opts.XReflection = lb.XReflection
	opts.Layer = lb.Layer
	opts.Texttype = lb.Texttype
	h, err := bl.b.NewLabel(lb.Text, origin, opts)
	return bl.add("label", h, err)
}

func (bl builder) flexPath(pb *PathBlock) error {
	pts, err := bl.points("path", pb.Points)
	if err != nil {
		return err
	}
	n := max(pb.Elements, 1)
	opts := bridge.DefaultFlexPathOptions(pb.Width)
	opts.Elements = bridge.UniformElements(n, pb.Width, pb.Separation, pb.Layer, pb.Datatype)
	if pb.Tolerance != nil {
		opts.Tolerance = *pb.Tolerance
	}

	var join bridge.Join
	if pb.Join != "" {
		j, ok := native.ParseJoin(pb.Join)
		if !ok || j == native.JoinFunction {
			return bl.invalid("path", "unknown join "+pb.Join)
		}
		join = bridge.JoinPolicy(j)
	}
	var end bridge.End
	switch {
	case len(pb.Extensions) > 0:
		ext, err := bl.vec("path", pb.Extensions)
		if err != nil {
			return err
		}
		end = bridge.ExtendedEnd{Start: ext.X, End: ext.Y}
	case pb.End != "":
		e, ok := native.ParseEnd(pb.End)
		if !ok || e == native.EndFunction || e == native.EndExtended {
			return bl.invalid("path", "unknown end "+pb.End)
		}
		end = bridge.EndPolicy(e)
	}
	var bend bridge.Bend
	if pb.BendRadius > 0 {
		bend = bridge.CircularBend{Radius: pb.BendRadius}
	}
	for i := range opts.Elements {
		opts.Elements[i].Join = join
		opts.Elements[i].End = end
		opts.Elements[i].Bend = bend
	}
	h, err := bl.b.NewFlexPath(pts, opts)
	return bl.add("path", h, err)
}

func (bl builder) reference(rb *ReferenceBlock) error {
	origin, err := bl.vec("reference", rb.Origin)
	if err != nil {
		return err
	}
	spacing, err := bl.vec("reference", rb.Spacing)
	if err != nil {
		return err
	}
	opts := bridge.DefaultReferenceOptions()
	opts.Origin = origin
	opts.Spacing = spacing
	opts.Rotation = rb.Rotation
	opts.XReflection = rb.XReflection
	if rb.Magnification != nil {
		opts.Magnification = *rb.Magnification
	}
	if rb.Columns != nil {
		opts.Columns = *rb.Columns
	}
	if rb.Rows != nil {
		opts.Rows = *rb.Rows
	}

	var target bridge.Target = bridge.NameTarget{Name: rb.Cell}
	if c := bl.lib.Cell(rb.Cell); c != nil {
		target = bridge.CellTarget{Cell: c}
	}
	h, err := bl.b.NewReference(target, opts)
	return bl.add("reference", h, err)
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (bl builder) filter(cb *CellBlock) error {
	for _, fb := range cb.Filters {
		op := native.FilterAnd
		if fb.Operation != "" {
			var ok bool
			if op, ok = native.ParseFilterOp(fb.Operation); !ok {
				return bl.invalid("filter", "unknown operation "+fb.Operation)
			}
		}
		spec := bridge.FilterSpec{
			TagFilter: native.TagFilter{Layers: fb.Layers, Types: fb.Types, Op: op},
			Polygons:  boolOr(fb.Polygons, true),
			Paths:     boolOr(fb.Paths, true),
			Labels:    boolOr(fb.Labels, true),
			Keep:      fb.Keep,
		}
		if err := bl.b.CellFilter(bl.cell, spec); err != nil {
			return bl.fail("filter", err)
		}
	}
	return nil
}

func (bl builder) flatten(cb *CellBlock) error {
	if cb.Flatten {
		if err := bl.b.CellFlatten(bl.cell, cb.ApplyRepetitions); err != nil {
			return bl.fail("flatten", err)
		}
	}
	return nil
}
