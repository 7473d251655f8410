package frontier

import (
	"container/heap"
	"time"
)

// wakeEntry is a queue key waiting in a wakeHeap
type wakeEntry struct {
	key   string
	wake  time.Time
	index int
}

// wakeHeap orders queue keys by wake time, then by key. It keeps an index
// of its entries so a key can be removed in O(log n).
type wakeHeap struct {
	entries []*wakeEntry
	byKey   map[string]*wakeEntry
}

func newWakeHeap() *wakeHeap {
	return &wakeHeap{byKey: make(map[string]*wakeEntry)}
}

func (h *wakeHeap) Len() int { return len(h.entries) }

func (h *wakeHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if !a.wake.Equal(b.wake) {
		return a.wake.Before(b.wake)
	}
	return a.key < b.key
}

func (h *wakeHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *wakeHeap) Push(x any) {
	e := x.(*wakeEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *wakeHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	e.index = -1
	return e
}

// add inserts key, or moves it if it is already in the heap
func (h *wakeHeap) add(key string, wake time.Time) {
	if e, ok := h.byKey[key]; ok {
		e.wake = wake
		heap.Fix(h, e.index)
		return
	}

	e := &wakeEntry{key: key, wake: wake}
	h.byKey[key] = e
	heap.Push(h, e)
}

func (h *wakeHeap) remove(key string) {
	e, ok := h.byKey[key]
	if !ok {
		return
	}

	delete(h.byKey, key)
	heap.Remove(h, e.index)
}

func (h *wakeHeap) contains(key string) bool {
	_, ok := h.byKey[key]
	return ok
}

// peek returns the first entry without removing it, nil if the heap is empty
func (h *wakeHeap) peek() *wakeEntry {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[0]
}

func (h *wakeHeap) pop() *wakeEntry {
	if len(h.entries) == 0 {
		return nil
	}

	e := heap.Pop(h).(*wakeEntry)
	delete(h.byKey, e.key)

	return e
}
