package scheduler

import (
	"container/heap"
	"image"
	"time"

	"github.com/LavishGent/pageturn/internal/types"
)

// Job is a queued or dispatched rasterization owned by the scheduler.
type Job struct {
	EnqueuedAt time.Time
	Key        types.CacheKey
	Context    types.ContextID
	Target     types.Dims
	ID         uint64
	Token      uint64
	Seq        uint64
	Priority   types.Priority
	Attempt    int
	Clamped    bool

	index int
}

// Spec returns the value copy handed to a worker.
func (j *Job) Spec() JobSpec {
	return JobSpec{
		Key:     j.Key,
		Context: j.Context,
		Target:  j.Target,
		ID:      j.ID,
		Token:   j.Token,
		Attempt: j.Attempt,
	}
}

// JobSpec is the immutable identity of a dispatched job.
type JobSpec struct {
	Key     types.CacheKey
	Context types.ContextID
	Target  types.Dims
	ID      uint64
	Token   uint64
	Attempt int
}

// Result is what a worker sends back for one JobSpec.
type Result struct {
	Image   *image.RGBA
	Preview *types.PixelBuffer
	Err     error
	Spec    JobSpec
	Latency time.Duration
	// Skipped is set when the token went stale before the backend was called.
	Skipped bool
}

// jobHeap orders by priority (highest first) then insertion sequence.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*Job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}

// jobQueue is a bounded priority queue for one tier class.
type jobQueue struct {
	name     string
	capacity int
	items    jobHeap
}

func newJobQueue(name string, capacity int) *jobQueue {
	return &jobQueue{name: name, capacity: capacity}
}

func (q *jobQueue) Len() int { return q.items.Len() }

// push adds j. When the queue is full the lowest-priority, oldest job is
// dropped in its favor, unless j ranks below every queued job, in which
// case j itself is returned as dropped.
func (q *jobQueue) push(j *Job) (dropped *Job) {
	if q.capacity > 0 && q.items.Len() >= q.capacity {
		victim := q.victim()
		if victim == nil || j.Priority < victim.Priority {
			return j
		}
		heap.Remove(&q.items, victim.index)
		dropped = victim
	}
	heap.Push(&q.items, j)
	return dropped
}

// requeue puts back a job taken by pop without applying the capacity rule.
func (q *jobQueue) requeue(j *Job) {
	heap.Push(&q.items, j)
}

func (q *jobQueue) victim() *Job {
	var v *Job
	for _, j := range q.items {
		if v == nil || j.Priority < v.Priority || (j.Priority == v.Priority && j.Seq < v.Seq) {
			v = j
		}
	}
	return v
}

func (q *jobQueue) pop() *Job {
	if q.items.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*Job)
}

func (q *jobQueue) remove(j *Job) bool {
	if j.index < 0 || j.index >= q.items.Len() || q.items[j.index] != j {
		return false
	}
	heap.Remove(&q.items, j.index)
	return true
}

// raise moves j up to priority p if p is higher.
func (q *jobQueue) raise(j *Job, p types.Priority) {
	if p <= j.Priority {
		return
	}
	j.Priority = p
	if j.index >= 0 && j.index < q.items.Len() && q.items[j.index] == j {
		heap.Fix(&q.items, j.index)
	}
}

// removeIf removes every job matching fn and returns them.
func (q *jobQueue) removeIf(fn func(*Job) bool) []*Job {
	var out []*Job
	kept := q.items[:0]
	for _, j := range q.items {
		if fn(j) {
			j.index = -1
			out = append(out, j)
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	for i, j := range q.items {
		j.index = i
	}
	heap.Init(&q.items)
	return out
}

// count returns the number of queued jobs matching fn.
func (q *jobQueue) count(fn func(*Job) bool) int {
	n := 0
	for _, j := range q.items {
		if fn(j) {
			n++
		}
	}
	return n
}
