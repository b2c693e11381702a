// Package sequence holds ordering containers.
package sequence

import "container/heap"

// DueItem is a scheduled value. Items due on the same tick keep their
// scheduling order.
type DueItem[T any] struct {
	Value T
	Due   uint64
	seq   uint64
	index int
}

type dueHeap[T any] struct {
	items []*DueItem[T]
}

func (h *dueHeap[T]) Len() int {
	return len(h.items)
}

func (h *dueHeap[T]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Due != b.Due {
		return a.Due < b.Due
	}
	return a.seq < b.seq
}

func (h *dueHeap[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *dueHeap[T]) Push(x any) {
	item := x.(*DueItem[T])
	item.index = len(h.items)
	h.items = append(h.items, item)
}

func (h *dueHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	h.items = old[0 : n-1]
	return item
}

// DueQueue releases values once their due tick is reached. It is not safe
// for concurrent use.
type DueQueue[T any] struct {
	h   dueHeap[T]
	seq uint64
}

func NewDueQueue[T any]() *DueQueue[T] {
	q := &DueQueue[T]{}
	heap.Init(&q.h)
	return q
}

func (q *DueQueue[T]) Schedule(value T, due uint64) *DueItem[T] {
	q.seq++
	item := &DueItem[T]{Value: value, Due: due, seq: q.seq}
	heap.Push(&q.h, item)
	return item
}

// Cancel removes a pending item. It reports false if the item was already
// released or cancelled.
func (q *DueQueue[T]) Cancel(item *DueItem[T]) bool {
	if item == nil || item.index < 0 || item.index >= q.h.Len() || q.h.items[item.index] != item {
		return false
	}
	heap.Remove(&q.h, item.index)
	return true
}

// PopDue removes and returns every value with Due <= now, earliest first.
func (q *DueQueue[T]) PopDue(now uint64) []T {
	var out []T
	for q.h.Len() > 0 && q.h.items[0].Due <= now {
		out = append(out, heap.Pop(&q.h).(*DueItem[T]).Value)
	}
	return out
}

// Next returns the earliest due tick.
func (q *DueQueue[T]) Next() (uint64, bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h.items[0].Due, true
}

func (q *DueQueue[T]) Len() int {
	return q.h.Len()
}

func (q *DueQueue[T]) IsEmpty() bool {
	return q.h.Len() == 0
}
