package scheduler

import "time"

// event is a single entry in the scheduler's priority queue: the next
// occurrence of one programme. Ordering is smaller FireTime first; ties are
// broken by larger Duration first so that, of two programmes firing at the
// same instant, the longer recording's sink is attached first.
type event struct {
	ProgrammeIndex int
	FireTime       time.Time
	Duration       time.Duration

	index int
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if !h[i].FireTime.Equal(h[j].FireTime) {
		return h[i].FireTime.Before(h[j].FireTime)
	}
	return h[i].Duration > h[j].Duration
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
