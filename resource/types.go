package resource

// Handle is an opaque, generation-tagged reference to a slot in a backend.
// The low 32 bits hold the slot number (1-based), the high 32 bits the slot
// generation at the time the handle was issued.
// Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot))
}

// Slot returns the 1-based slot number.
func (h Handle) Slot() uint32 { return uint32(h) }

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventFinalized
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for resources.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(typeID uint32, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Replace swaps the value stored at handle, keeping the handle valid.
	Replace(handle Handle, value any) bool

	// Drop removes a resource and returns (value, true) if it was live.
	// The slot generation is bumped so the handle never resolves again.
	Drop(handle Handle) (any, bool)

	// Close releases all resources held by the backend.
	Close() error
}

// Table stores typed values behind handles and reports their lifecycle.
type Table interface {
	Insert(typeID uint32, value any) Handle
	Get(handle Handle) (any, bool)
	TypeID(handle Handle) (uint32, bool)

	// Remove takes a value out without dropping it.
	Remove(handle Handle) (any, bool)

	// Release removes a value and drops it.
	Release(handle Handle) error

	Subscribe(Observer)
	Unsubscribe(Observer)
	Len() int

	// Clear releases every value.
	Clear() error
}

// Dropper is optionally implemented by resource values that need cleanup
// when removed from a Table.
type Dropper interface {
	Drop() error
}
