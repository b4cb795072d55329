package engine

import (
	"container/heap"
	"time"
)

// schedule is a min-heap of event deadlines keyed by event id.
//
// The Run loop keeps one timer armed for the earliest deadline instead of
// one sleeper per event. Not safe for concurrent use; owned by Run.
type schedule struct {
	items deadlineHeap
	byID  map[string]*deadline
}

type deadline struct {
	id    string
	due   time.Time
	index int
}

func newSchedule() *schedule {
	return &schedule{byID: make(map[string]*deadline)}
}

// Push arms id for due, replacing any existing deadline for id.
func (s *schedule) Push(id string, due time.Time) {
	if d, ok := s.byID[id]; ok {
		d.due = due
		heap.Fix(&s.items, d.index)
		return
	}
	d := &deadline{id: id, due: due}
	heap.Push(&s.items, d)
	s.byID[id] = d
}

// Remove disarms id. Returns false if id was not scheduled.
func (s *schedule) Remove(id string) bool {
	d, ok := s.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&s.items, d.index)
	delete(s.byID, id)
	return true
}

// Peek returns the earliest deadline.
func (s *schedule) Peek() (time.Time, bool) {
	if len(s.items) == 0 {
		return time.Time{}, false
	}
	return s.items[0].due, true
}

// PopDue removes and returns every id whose deadline is at or before now,
// earliest first.
func (s *schedule) PopDue(now time.Time) []string {
	var due []string
	for len(s.items) > 0 && !s.items[0].due.After(now) {
		d := heap.Pop(&s.items).(*deadline)
		delete(s.byID, d.id)
		due = append(due, d.id)
	}
	return due
}

// Has reports whether id is armed.
func (s *schedule) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of armed deadlines.
func (s *schedule) Len() int {
	return len(s.items)
}

type deadlineHeap []*deadline

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].id < h[j].id
	}
	return h[i].due.Before(h[j].due)
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	d := x.(*deadline)
	d.index = len(*h)
	*h = append(*h, d)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	d.index = -1
	*h = old[:n-1]
	return d
}
