package bridge

import (
	"slices"
	"strings"

	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"github.com/wippyai/gdsbridge/resource"
	"go.uber.org/zap"
)

// Options configures bridge behavior.
type Options struct {
	// MaxDepth bounds CellFlatten; negative flattens every level and zero none.
	MaxDepth int
}

// DefaultOptions returns default bridge configuration.
func DefaultOptions() Options {
	return Options{
		MaxDepth: -1,
	}
}

// Bridge keeps native blocks alive for as long as a host handle or another
// native block needs them. All registries are keyed by native address.
//
// A Bridge is not safe for concurrent use.
type Bridge struct {
	arena     *native.Arena
	owners    map[native.Addr]*ownerTable
	links     map[native.Addr]*resource.Ref
	members   map[native.Addr]*memberSet
	callbacks map[native.Addr]map[slot]any
	finalized map[native.Kind]int
	observers []resource.Observer
	opts      Options
}

// New creates a bridge over a fresh arena.
func New(opts Options) *Bridge {
	return &Bridge{
		arena:     native.NewArena(),
		owners:    make(map[native.Addr]*ownerTable),
		links:     make(map[native.Addr]*resource.Ref),
		members:   make(map[native.Addr]*memberSet),
		callbacks: make(map[native.Addr]map[slot]any),
		finalized: make(map[native.Kind]int),
		opts:      opts,
	}
}

// NewWithDefaults creates a bridge with default options.
func NewWithDefaults() *Bridge {
	return New(DefaultOptions())
}

// Arena returns the native allocator.
func (b *Bridge) Arena() *native.Arena {
	return b.arena
}

// Options returns the configuration.
func (b *Bridge) Options() Options {
	return b.opts
}

// Subscribe registers o for block lifecycle events: EventCreated and
// EventDropped from the arena, EventFinalized after each finalizer.
func (b *Bridge) Subscribe(o resource.Observer) {
	b.arena.Subscribe(o)
	b.observers = append(b.observers, o)
}

// Unsubscribe removes an observer.
func (b *Bridge) Unsubscribe(o resource.Observer) {
	b.arena.Unsubscribe(o)
	for i, obs := range b.observers {
		if obs == o {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return
		}
	}
}

func (b *Bridge) notify(e resource.Event) {
	for _, o := range b.observers {
		o.OnResourceEvent(e)
	}
}

// Stats is a snapshot of registry sizes.
type Stats struct {
	Finalized map[native.Kind]int
	Blocks    int
	Owned     int
	Links     int
	Members   int
	Callbacks int
}

// Stats reports live blocks, registry entries and finalizer counts.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Blocks:    b.arena.Len(),
		Links:     len(b.links),
		Finalized: make(map[native.Kind]int, len(b.finalized)),
	}
	for _, t := range b.owners {
		s.Owned += t.len()
	}
	for _, m := range b.members {
		s.Members += len(m.cells) + len(m.raws)
	}
	for _, slots := range b.callbacks {
		s.Callbacks += len(slots)
	}
	for k, n := range b.finalized {
		s.Finalized[k] = n
	}
	return s
}

// newObject allocates obj and returns its first owner.
func (b *Bridge) newObject(obj native.Object) (*resource.Ref, error) {
	addr, err := b.arena.Allocate(obj)
	if err != nil {
		return nil, err
	}
	return b.newRef(addr, obj.Kind()), nil
}

// newRef creates the first owner of an allocated block.
func (b *Bridge) newRef(addr native.Addr, kind native.Kind) *resource.Ref {
	return resource.NewRef(addr, uint32(kind), func() error {
		return b.finalize(addr, kind)
	})
}

// resolve checks a host handle and returns the block it owns.
func (b *Bridge) resolve(phase errors.Phase, h *resource.Ref, want ...native.Kind) (native.Addr, native.Object, error) {
	if h.Released() {
		return 0, nil, errors.InvalidArgument(phase, "handle was released")
	}
	if h.Finalized() {
		return 0, nil, errors.StaleHandle(phase, uint64(h.Handle()))
	}
	obj, err := b.arena.Get(h.Handle())
	if err != nil {
		return 0, nil, err
	}
	if len(want) > 0 && !slices.Contains(want, obj.Kind()) {
		names := make([]string, len(want))
		for i, k := range want {
			names[i] = k.String()
		}
		return 0, nil, errors.WrongKind(phase, obj.Kind().String(), strings.Join(names, "|"))
	}
	return h.Handle(), obj, nil
}

// Object returns the native block owned by h.
func (b *Bridge) Object(h *resource.Ref) (native.Object, error) {
	_, obj, err := b.resolve(errors.PhaseHost, h)
	return obj, err
}

func resolveTyped[T native.Object](b *Bridge, h *resource.Ref, kind native.Kind) (T, error) {
	var zero T
	_, obj, err := b.resolve(errors.PhaseHost, h, kind)
	if err != nil {
		return zero, err
	}
	return obj.(T), nil
}

// Polygon returns the polygon owned by h.
func (b *Bridge) Polygon(h *resource.Ref) (*native.Polygon, error) {
	return resolveTyped[*native.Polygon](b, h, native.KindPolygon)
}

// Label returns the label owned by h.
func (b *Bridge) Label(h *resource.Ref) (*native.Label, error) {
	return resolveTyped[*native.Label](b, h, native.KindLabel)
}

// FlexPath returns the flexible path owned by h.
func (b *Bridge) FlexPath(h *resource.Ref) (*native.FlexPath, error) {
	return resolveTyped[*native.FlexPath](b, h, native.KindFlexPath)
}

// RobustPath returns the robust path owned by h.
func (b *Bridge) RobustPath(h *resource.Ref) (*native.RobustPath, error) {
	return resolveTyped[*native.RobustPath](b, h, native.KindRobustPath)
}

// Curve returns the curve owned by h.
func (b *Bridge) Curve(h *resource.Ref) (*native.Curve, error) {
	return resolveTyped[*native.Curve](b, h, native.KindCurve)
}

// Reference returns the reference owned by h.
func (b *Bridge) Reference(h *resource.Ref) (*native.Reference, error) {
	return resolveTyped[*native.Reference](b, h, native.KindReference)
}

// Cell returns the cell owned by h.
func (b *Bridge) Cell(h *resource.Ref) (*native.Cell, error) {
	return resolveTyped[*native.Cell](b, h, native.KindCell)
}

// RawCell returns the raw cell owned by h.
func (b *Bridge) RawCell(h *resource.Ref) (*native.RawCell, error) {
	return resolveTyped[*native.RawCell](b, h, native.KindRawCell)
}

// Library returns the library owned by h.
func (b *Bridge) Library(h *resource.Ref) (*native.Library, error) {
	return resolveTyped[*native.Library](b, h, native.KindLibrary)
}

func addrField(addr native.Addr) zap.Field {
	return zap.Uint64("addr", uint64(addr))
}
