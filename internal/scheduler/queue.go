package scheduler

import (
	"container/heap"

	"github.com/srcfl/srcful-gateway-sub001/internal/task"
)

// queueItem orders tasks by due time, then by insertion.
type queueItem struct {
	t   task.Task
	due int64
	seq uint64
}

// taskHeap implements heap.Interface. Not safe for concurrent use.
type taskHeap []queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queueItem{}
	*h = old[:n-1]
	return item
}

func (h taskHeap) peek() queueItem { return h[0] }

var _ heap.Interface = (*taskHeap)(nil)
