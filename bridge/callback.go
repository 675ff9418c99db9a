package bridge

import (
	"fmt"

	"github.com/wippyai/gdsbridge/errors"
	"github.com/wippyai/gdsbridge/native"
	"go.uber.org/zap"
)

// Role names which custom generator a callback serves.
type Role uint8

const (
	RoleJoin Role = iota
	RoleEnd
	RoleBend
	RoleParametric
)

func (r Role) String() string {
	switch r {
	case RoleJoin:
		return "join"
	case RoleEnd:
		return "end"
	case RoleBend:
		return "bend"
	case RoleParametric:
		return "parametric"
	}
	return "unknown"
}

// PathElement marks a callback installed on the whole path or curve rather
// than on one element.
const PathElement = -1

// CallbackKey is the data word the native engine hands back to a
// trampoline. It names the callback registry entry to invoke.
type CallbackKey struct {
	Addr    native.Addr
	Element int
	Role    Role
}

func (k CallbackKey) String() string {
	return fmt.Sprintf("%#x/%d/%s", uint64(k.Addr), k.Element, k.Role)
}

type slot struct {
	Element int
	Role    Role
}

// Host-side generators. They see the same arguments as the native function
// minus the data word.
type (
	JoinFunc       func(p0, v0, p1, v1, center native.Vec2, width float64) ([]native.Vec2, error)
	EndFunc        func(p0, v0, p1, v1 native.Vec2) ([]native.Vec2, error)
	BendFunc       func(radius, initialAngle, finalAngle float64, center native.Vec2) ([]native.Vec2, error)
	ParametricFunc func(u float64) (native.Vec2, error)
)

// Join is either a built-in JoinPolicy or a CustomJoin.
type Join interface{ join() }

// JoinPolicy selects a built-in join.
type JoinPolicy native.JoinType

// CustomJoin generates joins with a host function.
type CustomJoin JoinFunc

func (JoinPolicy) join() {}
func (CustomJoin) join() {}

// End is an EndPolicy, an ExtendedEnd or a CustomEnd.
type End interface{ end() }

// EndPolicy selects a built-in end cap.
type EndPolicy native.EndType

// ExtendedEnd extends the element past the spine ends by fixed lengths.
type ExtendedEnd struct {
	Start, End float64
}

// CustomEnd generates end caps with a host function.
type CustomEnd EndFunc

func (EndPolicy) end()   {}
func (ExtendedEnd) end() {}
func (CustomEnd) end()   {}

// Bend is a CircularBend or a CustomBend. A nil Bend leaves corners sharp.
type Bend interface{ bend() }

// CircularBend rounds corners with arcs of the given radius.
type CircularBend struct {
	Radius float64
}

// CustomBend generates bends with a host function. Radius sets the corner
// tangent distance passed to the function.
type CustomBend struct {
	Func   BendFunc
	Radius float64
}

func (CircularBend) bend() {}
func (CustomBend) bend()   {}

// install stores fn under (addr, s), erasing any previous entry first.
func (b *Bridge) install(addr native.Addr, s slot, fn any) {
	slots, ok := b.callbacks[addr]
	if !ok {
		slots = make(map[slot]any)
		b.callbacks[addr] = slots
	}
	delete(slots, s)
	slots[s] = fn
	Logger().Debug("install callback", addrField(addr), zap.Int("element", s.Element), zap.Stringer("role", s.Role))
}

// lookup returns the callable for key.
func (b *Bridge) lookup(key CallbackKey) (any, error) {
	fn, ok := b.callbacks[key.Addr][slot{key.Element, key.Role}]
	if !ok {
		Logger().Error("missing callback", addrField(key.Addr), zap.Int("element", key.Element), zap.Stringer("role", key.Role))
		return nil, errors.NotFound(errors.PhaseCallback, key.Role.String()+" callback", uint64(key.Addr))
	}
	return fn, nil
}

func (b *Bridge) evict(addr native.Addr, s slot) {
	slots := b.callbacks[addr]
	delete(slots, s)
	if len(slots) == 0 {
		delete(b.callbacks, addr)
	}
}

// evictElement removes every callback of one element.
func (b *Bridge) evictElement(addr native.Addr, elem int) {
	for _, r := range [...]Role{RoleJoin, RoleEnd, RoleBend, RoleParametric} {
		b.evict(addr, slot{elem, r})
	}
}

// evictAll removes every callback of a path or curve.
func (b *Bridge) evictAll(addr native.Addr) {
	if n := len(b.callbacks[addr]); n > 0 {
		Logger().Debug("evict callbacks", addrField(addr), zap.Int("count", n))
	}
	delete(b.callbacks, addr)
}

// rekey moves the callbacks of element from to element to.
func (b *Bridge) rekey(addr native.Addr, from, to int) {
	slots := b.callbacks[addr]
	for _, r := range [...]Role{RoleJoin, RoleEnd, RoleBend, RoleParametric} {
		fn, ok := slots[slot{from, r}]
		if !ok {
			continue
		}
		delete(slots, slot{from, r})
		slots[slot{to, r}] = fn
	}
}

// copyCallbacks installs src's callables on dst.
func (b *Bridge) copyCallbacks(src, dst native.Addr) {
	for s, fn := range b.callbacks[src] {
		b.install(dst, s, fn)
	}
}

// syncPath points the path's function fields at the trampolines with keys
// matching its registry entries.
func (b *Bridge) syncPath(addr native.Addr, p *native.FlexPath) {
	slots := b.callbacks[addr]
	for i := range p.Elements {
		el := &p.Elements[i]
		el.JoinFunc, el.JoinData = nil, nil
		el.EndFunc, el.EndData = nil, nil
		el.BendFunc, el.BendData = nil, nil
		if _, ok := slots[slot{i, RoleJoin}]; ok {
			el.JoinFunc, el.JoinData = b.joinTrampoline, CallbackKey{addr, i, RoleJoin}
		}
		if _, ok := slots[slot{i, RoleEnd}]; ok {
			el.EndFunc, el.EndData = b.endTrampoline, CallbackKey{addr, i, RoleEnd}
		}
		if _, ok := slots[slot{i, RoleBend}]; ok {
			el.BendFunc, el.BendData = b.bendTrampoline, CallbackKey{addr, i, RoleBend}
		}
	}
	p.ParametricFunc, p.ParametricData = nil, nil
	if _, ok := slots[slot{PathElement, RoleParametric}]; ok {
		p.ParametricFunc, p.ParametricData = b.parametricTrampoline, CallbackKey{addr, PathElement, RoleParametric}
	}
}

func (b *Bridge) syncCurve(addr native.Addr, c *native.Curve) {
	c.ParametricFunc, c.ParametricData = nil, nil
	if _, ok := b.callbacks[addr][slot{PathElement, RoleParametric}]; ok {
		c.ParametricFunc, c.ParametricData = b.parametricTrampoline, CallbackKey{addr, PathElement, RoleParametric}
	}
}

func keyOf(data any) (CallbackKey, error) {
	key, ok := data.(CallbackKey)
	if !ok {
		return CallbackKey{}, errors.InvalidArgument(errors.PhaseCallback, "callback data is not a registry key")
	}
	return key, nil
}

func (b *Bridge) joinTrampoline(p0, v0, p1, v1, center native.Vec2, width float64, data any) ([]native.Vec2, error) {
	key, err := keyOf(data)
	if err != nil {
		return nil, err
	}
	fn, err := b.lookup(key)
	if err != nil {
		return nil, err
	}
	return fn.(JoinFunc)(p0, v0, p1, v1, center, width)
}

func (b *Bridge) endTrampoline(p0, v0, p1, v1 native.Vec2, data any) ([]native.Vec2, error) {
	key, err := keyOf(data)
	if err != nil {
		return nil, err
	}
	fn, err := b.lookup(key)
	if err != nil {
		return nil, err
	}
	return fn.(EndFunc)(p0, v0, p1, v1)
}

func (b *Bridge) bendTrampoline(radius, initialAngle, finalAngle float64, center native.Vec2, data any) ([]native.Vec2, error) {
	key, err := keyOf(data)
	if err != nil {
		return nil, err
	}
	fn, err := b.lookup(key)
	if err != nil {
		return nil, err
	}
	return fn.(BendFunc)(radius, initialAngle, finalAngle, center)
}

func (b *Bridge) parametricTrampoline(u float64, data any) (native.Vec2, error) {
	key, err := keyOf(data)
	if err != nil {
		return native.Vec2{}, err
	}
	fn, err := b.lookup(key)
	if err != nil {
		return native.Vec2{}, err
	}
	return fn.(ParametricFunc)(u)
}
