package arena

import (
	"fmt"
	"sort"
)

// Arena owns every entity of one kind: a monotonically increasing counter used to
// mint identifiers and an id-keyed store. One arena per kind is injected into the
// engines that need it.
type Arena[T any] struct {
	prefix string
	width  int
	next   uint64
	items  map[string]T
}

// New returns an arena minting ids like "<prefix><n>" zero-padded to width digits.
// A width of zero disables padding.
func New[T any](prefix string, width int) *Arena[T] {
	return &Arena[T]{
		prefix: prefix,
		width:  width,
		items:  map[string]T{},
	}
}

// NextID reserves the next identifier without storing anything.
func (a *Arena[T]) NextID() string {
	a.next++
	if a.width > 0 {
		return fmt.Sprintf("%s%0*d", a.prefix, a.width, a.next)
	}
	return fmt.Sprintf("%s%d", a.prefix, a.next)
}

// Put stores v under id, replacing any previous value.
func (a *Arena[T]) Put(id string, v T) {
	a.items[id] = v
}

// Get returns the value stored under id.
func (a *Arena[T]) Get(id string) (T, bool) {
	v, ok := a.items[id]
	return v, ok
}

// Delete removes id from the store. The counter is never rewound.
func (a *Arena[T]) Delete(id string) {
	delete(a.items, id)
}

func (a *Arena[T]) Len() int { return len(a.items) }

// Counter reports how many ids have been minted.
func (a *Arena[T]) Counter() uint64 { return a.next }

// IDs returns all stored ids in sorted order.
func (a *Arena[T]) IDs() []string {
	ids := make([]string, 0, len(a.items))
	for id := range a.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each visits stored values in id order. Returning false stops the walk.
func (a *Arena[T]) Each(fn func(id string, v T) bool) {
	for _, id := range a.IDs() {
		if !fn(id, a.items[id]) {
			return
		}
	}
}
