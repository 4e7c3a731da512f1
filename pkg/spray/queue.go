package spray

import (
	"container/heap"
	"time"
)

// QueueEntry is one scheduled actuation: a set of post-mapping channels to
// switch on or off at a given fire time. OriginalStart/OriginalEnd are
// carried through from the originating SprayCommand for a future de-dup
// policy; the firing loop does not use them today.
type QueueEntry struct {
	Channels      []uint8
	FireTime      time.Time
	IsOn          bool
	OriginalStart time.Time
	OriginalEnd   time.Time

	seq int // insertion order, used only to break FireTime ties FIFO
}

// entryHeap is a container/heap min-heap ordered by FireTime, with ties
// broken by insertion order so consumers see a stable (if unspecified by
// contract) order for simultaneous entries.
type entryHeap []*QueueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].FireTime.Equal(h[j].FireTime) {
		return h[i].seq < h[j].seq
	}
	return h[i].FireTime.Before(h[j].FireTime)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(*QueueEntry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// Queue is a min-priority queue of QueueEntry keyed by FireTime. Only
// peek-min/pop-min are exercised by the firing loop; a max-priority side
// is not implemented since nothing in this system uses it (see design
// notes on the queue data structure).
type Queue struct {
	entries entryHeap
	nextSeq int
}

// NewQueue returns an empty, ready-to-use queue.
func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.entries)
	return q
}

// Push inserts an entry, assigning it the next insertion sequence number.
func (q *Queue) Push(e *QueueEntry) {
	e.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.entries, e)
}

// PeekMin returns the entry with the smallest FireTime without removing
// it, or nil if the queue is empty.
func (q *Queue) PeekMin() *QueueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// PopMin removes and returns the entry with the smallest FireTime, or nil
// if the queue is empty.
func (q *Queue) PopMin() *QueueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return heap.Pop(&q.entries).(*QueueEntry)
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int {
	return len(q.entries)
}
