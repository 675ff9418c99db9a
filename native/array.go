package native

import "iter"

// Array is the engine's growable array of block addresses. Removal is
// unordered: the last item moves into the freed position.
type Array[T comparable] struct {
	items []T
}

// Len returns the number of items.
func (a *Array[T]) Len() int { return len(a.items) }

// At returns the item at i.
func (a *Array[T]) At(i int) T { return a.items[i] }

// Items returns the backing slice. Callers must not modify it.
func (a *Array[T]) Items() []T { return a.items }

// Append adds v at the end.
func (a *Array[T]) Append(v T) { a.items = append(a.items, v) }

// Extend appends every value in vs.
func (a *Array[T]) Extend(vs ...T) { a.items = append(a.items, vs...) }

// Insert places v at i, shifting later items.
func (a *Array[T]) Insert(i int, v T) {
	var zero T
	a.items = append(a.items, zero)
	copy(a.items[i+1:], a.items[i:])
	a.items[i] = v
}

// RemoveUnordered removes the item at i by moving the last item into its
// place.
func (a *Array[T]) RemoveUnordered(i int) {
	last := len(a.items) - 1
	a.items[i] = a.items[last]
	var zero T
	a.items[last] = zero
	a.items = a.items[:last]
}

// Remove removes the item at i keeping the order of the rest.
func (a *Array[T]) Remove(i int) {
	copy(a.items[i:], a.items[i+1:])
	var zero T
	a.items[len(a.items)-1] = zero
	a.items = a.items[:len(a.items)-1]
}

// RemoveItem removes the first occurrence of v, unordered.
func (a *Array[T]) RemoveItem(v T) bool {
	i := a.Index(v)
	if i < 0 {
		return false
	}
	a.RemoveUnordered(i)
	return true
}

// Index returns the position of v or -1.
func (a *Array[T]) Index(v T) int {
	for i, x := range a.items {
		if x == v {
			return i
		}
	}
	return -1
}

// Contains reports whether v is present.
func (a *Array[T]) Contains(v T) bool { return a.Index(v) >= 0 }

// Clear empties the array.
func (a *Array[T]) Clear() { a.items = nil }

// All iterates in array order.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, v := range a.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Clone returns a copy with its own backing storage.
func (a *Array[T]) Clone() Array[T] {
	if len(a.items) == 0 {
		return Array[T]{}
	}
	return Array[T]{items: append([]T(nil), a.items...)}
}
