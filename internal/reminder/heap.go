package reminder

import "container/heap"

// reminderHeap implements container/heap.Interface, earliest FireAt first,
// ties broken by ID.
type reminderHeap []Reminder

func (h reminderHeap) Len() int           { return len(h) }
func (h reminderHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h reminderHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *reminderHeap) Push(x any) {
	*h = append(*h, x.(Reminder))
}

func (h *reminderHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = Reminder{}
	*h = old[:n-1]
	return x
}

func (h *reminderHeap) push(r Reminder) { heap.Push(h, r) }

// pop removes the head. Panics if the heap is empty.
func (h *reminderHeap) pop() Reminder { return heap.Pop(h).(Reminder) }

// peek returns the head without removing it.
func (h reminderHeap) peek() (Reminder, bool) {
	if len(h) == 0 {
		return Reminder{}, false
	}
	return h[0], true
}
