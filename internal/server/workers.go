package server

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Workers is a threadsafe set of running worker ids. Each worker removes
// itself when it finishes, so nothing ever waits to reap it.
type Workers struct {
	active sync.Map
	next   atomic.Int64
	count  atomic.Int64
}

type void struct{} // empty struct complies to 0 bytes
var member void

// Bind registers a new worker and returns its id.
func (w *Workers) Bind() int {
	id := int(w.next.Add(1))
	w.active.Store(id, member)
	w.count.Add(1)
	return id
}

func (w *Workers) Delete(id int) {
	if _, loaded := w.active.LoadAndDelete(id); loaded {
		w.count.Add(-1)
	}
}

// Len returns the number of running workers.
func (w *Workers) Len() int {
	return int(w.count.Load())
}

// IDs returns the ids of running workers in ascending order.
func (w *Workers) IDs() []int {
	var ids []int
	w.active.Range(func(key, _ any) bool {
		ids = append(ids, key.(int))
		return true
	})
	sort.Ints(ids)
	return ids
}
