package core

import "sync/atomic"

var sceneSeq atomic.Uint32

// handle is a scene-scoped slot reference with a generation tag.
type handle struct {
	scene uint32
	slot  uint32
	gen   uint32
}

type MeshHandle struct{ h handle }
type GeometryHandle struct{ h handle }
type MaterialHandle struct{ h handle }
type LightHandle struct{ h handle }

// IsZero reports whether the handle was never issued.
func (h MeshHandle) IsZero() bool     { return h.h.scene == 0 }
func (h GeometryHandle) IsZero() bool { return h.h.scene == 0 }
func (h MaterialHandle) IsZero() bool { return h.h.scene == 0 }
func (h LightHandle) IsZero() bool    { return h.h.scene == 0 }

type slotEntry[T any] struct {
	gen   uint32
	live  bool
	value T
}

// slotTable is a generational arena; removed slots are reused with a bumped
// generation so stale handles stop resolving.
type slotTable[T any] struct {
	entries []slotEntry[T]
	free    []uint32
	count   int
}

func (t *slotTable[T]) insert(v T) (uint32, uint32) {
	t.count++
	if n := len(t.free); n > 0 {
		slot := t.free[n-1]
		t.free = t.free[:n-1]
		e := &t.entries[slot]
		e.gen++
		e.live = true
		e.value = v
		return slot, e.gen
	}
	t.entries = append(t.entries, slotEntry[T]{gen: 1, live: true, value: v})
	return uint32(len(t.entries) - 1), 1
}

func (t *slotTable[T]) get(slot, gen uint32) (T, bool) {
	var zero T
	if int(slot) >= len(t.entries) {
		return zero, false
	}
	e := t.entries[slot]
	if !e.live || e.gen != gen {
		return zero, false
	}
	return e.value, true
}

func (t *slotTable[T]) remove(slot, gen uint32) bool {
	if _, ok := t.get(slot, gen); !ok {
		return false
	}
	var zero T
	t.entries[slot].live = false
	t.entries[slot].value = zero
	t.free = append(t.free, slot)
	t.count--
	return true
}

func (t *slotTable[T]) len() int { return t.count }

func (t *slotTable[T]) clear() {
	t.entries = nil
	t.free = nil
	t.count = 0
}
