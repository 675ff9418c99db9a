package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	handle, err := b.Create(1, "polygon")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}
	if handle.Slot() != 1 || handle.Generation() != 1 {
		t.Fatalf("Expected slot 1 gen 1, got slot %d gen %d", handle.Slot(), handle.Generation())
	}

	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "polygon" {
		t.Fatalf("Expected 'polygon', got %v", val)
	}

	val, ok = b.Drop(handle)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "polygon" {
		t.Fatalf("Expected 'polygon', got %v", val)
	}

	if _, ok = b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
	if _, ok = b.Drop(handle); ok {
		t.Fatal("Expected second Drop to fail")
	}
}

func TestLocalBackend_TypeID(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(7, "cell")
	typeID, ok := b.TypeID(handle)
	if !ok {
		t.Fatal("TypeID failed")
	}
	if typeID != 7 {
		t.Fatalf("Expected typeID 7, got %d", typeID)
	}
}

func TestLocalBackend_Replace(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(1, "old")
	if !b.Replace(handle, "new") {
		t.Fatal("Replace failed")
	}
	val, _ := b.Get(handle)
	if val != "new" {
		t.Fatalf("Expected 'new', got %v", val)
	}

	b.Drop(handle)
	if b.Replace(handle, "again") {
		t.Fatal("Replace should fail on a dropped handle")
	}
}

func TestLocalBackend_GenerationReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(1, "first")
	b.Create(1, "second")
	b.Drop(h1)

	h3, _ := b.Create(1, "third")
	if h3.Slot() != h1.Slot() {
		t.Fatalf("Expected slot %d to be reused, got %d", h1.Slot(), h3.Slot())
	}
	if h3.Generation() == h1.Generation() {
		t.Fatal("Reused slot must carry a new generation")
	}
	if h3 == h1 {
		t.Fatal("Reused slot must produce a distinct handle")
	}

	if _, ok := b.Get(h1); ok {
		t.Fatal("Stale handle resolved to the new occupant")
	}
	if !b.Stale(h1) {
		t.Fatal("Expected h1 to be stale")
	}
	if b.Stale(h3) {
		t.Fatal("Expected h3 to be live")
	}
	val, ok := b.Get(h3)
	if !ok || val != "third" {
		t.Fatalf("Expected 'third', got %v (ok=%v)", val, ok)
	}
}

func TestLocalBackend_Stale(t *testing.T) {
	b := NewLocalBackend()

	if b.Stale(0) {
		t.Fatal("Handle 0 is invalid, not stale")
	}
	if b.Stale(makeHandle(42, 1)) {
		t.Fatal("Unknown slot is invalid, not stale")
	}

	h, _ := b.Create(1, "x")
	b.Drop(h)
	if !b.Stale(h) {
		t.Fatal("Dropped handle should be stale")
	}
}

type closeDropper struct {
	dropped int
	err     error
}

func (d *closeDropper) Drop() error {
	d.dropped++
	return d.err
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()

	ok := &closeDropper{}
	failing := &closeDropper{err: errors.New("teardown failed")}
	b.Create(1, ok)
	b.Create(1, failing)

	err := b.Close()
	if err == nil {
		t.Fatal("Expected Close to report the drop error")
	}
	if ok.dropped != 1 || failing.dropped != 1 {
		t.Fatalf("Expected each dropper called once, got %d and %d", ok.dropped, failing.dropped)
	}

	_, err = b.Create(1, "test")
	if !errors.Is(err, ErrClosed) {
		t.Fatal("Expected ErrClosed after Close")
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Second Close should be a no-op, got %v", err)
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Create(1, id)
			b.Get(h)
			b.Drop(h)
		}(i)
	}

	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Expected Len() == 0, got %d", b.Len())
	}
}

func TestLocalBackend_Len(t *testing.T) {
	b := NewLocalBackend()

	if b.Len() != 0 {
		t.Fatal("Expected Len() == 0 initially")
	}

	h1, _ := b.Create(1, "a")
	h2, _ := b.Create(1, "b")
	b.Create(1, "c")

	if b.Len() != 3 {
		t.Fatalf("Expected Len() == 3, got %d", b.Len())
	}

	b.Drop(h1)
	if b.Len() != 2 {
		t.Fatalf("Expected Len() == 2, got %d", b.Len())
	}

	b.Drop(h2)
	if b.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()

	b.Create(1, "a")
	h, _ := b.Create(2, "b")
	b.Create(1, "c")
	b.Drop(h)
	h2, _ := b.Create(2, "d")

	seen := map[Handle]any{}
	b.Each(func(h Handle, typeID uint32, value any) bool {
		seen[h] = value
		return true
	})

	if len(seen) != 3 {
		t.Fatalf("Expected to iterate over 3 items, got %d", len(seen))
	}
	if seen[h2] != "d" {
		t.Fatalf("Each must yield the current generation, got %v", seen[h2])
	}

	count := 0
	b.Each(func(h Handle, typeID uint32, value any) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	if _, ok := b.Get(0); ok {
		t.Fatal("Handle 0 should be invalid")
	}
	if _, ok := b.TypeID(0); ok {
		t.Fatal("Handle 0 should be invalid for TypeID")
	}
	if _, ok := b.Drop(0); ok {
		t.Fatal("Handle 0 should fail Drop")
	}
	if _, ok := b.Get(999); ok {
		t.Fatal("Non-existent handle should be invalid")
	}

	h, _ := b.Create(1, "x")
	wrongGen := makeHandle(h.Slot(), h.Generation()+1)
	if _, ok := b.Get(wrongGen); ok {
		t.Fatal("Handle with a future generation should be invalid")
	}
}
