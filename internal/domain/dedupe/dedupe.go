// Package dedupe remembers which submission batches were already committed so
// a replayed submit request is acknowledged without touching the store.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMaxSize bounds the committed-batch set when no option is given.
const DefaultMaxSize = 50000

// Deduper records committed batch ids.
type Deduper interface {
	// SeenAndRecord reports whether batchID was already recorded and records
	// it if not. Check and insert happen under one lock.
	SeenAndRecord(ctx context.Context, batchID string) bool

	// Unrecord forgets batchID so a failed commit can be retried.
	Unrecord(ctx context.Context, batchID string)

	Size() int64
}

// batchSet is a bounded set that evicts the oldest recorded batch first.
type batchSet struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	index   map[string]*list.Element
}

// NewInMemoryDeduper returns a process-local Deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &batchSet{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.order = list.New()
	d.index = make(map[string]*list.Element)
	return d
}

func (d *batchSet) SeenAndRecord(_ context.Context, batchID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[batchID]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}
	d.index[batchID] = d.order.PushBack(batchID)
	return false
}

func (d *batchSet) Unrecord(_ context.Context, batchID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[batchID]; ok {
		d.order.Remove(el)
		delete(d.index, batchID)
	}
}

func (d *batchSet) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
