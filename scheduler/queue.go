package scheduler

// Queue holds tasks that could not be admitted immediately.
//
// Queues are only touched under the owning scheduler's lock and need no
// synchronization of their own.
type Queue interface {
	Push(task Task)
	// Pop removes and returns the next task. It must not be called on an empty queue.
	Pop() Task
	// Peek returns the next task without removing it.
	Peek() Task
	Empty() bool
	Len() int
	// Purge discards every queued task.
	Purge()
}

// FIFOQueue is the default queue: first pushed, first popped.
type FIFOQueue struct {
	tasks []Task
	head  int
}

// NewFIFOQueue returns an empty FIFO queue.
func NewFIFOQueue() *FIFOQueue {
	return &FIFOQueue{}
}

func (q *FIFOQueue) Push(task Task) {
	q.tasks = append(q.tasks, task)
}

func (q *FIFOQueue) Pop() Task {
	task := q.tasks[q.head]
	q.tasks[q.head] = nil
	q.head++
	// Compact once the dead prefix dominates the slice.
	if q.head > 32 && q.head*2 >= len(q.tasks) {
		n := copy(q.tasks, q.tasks[q.head:])
		clear(q.tasks[n:])
		q.tasks = q.tasks[:n]
		q.head = 0
	}
	return task
}

func (q *FIFOQueue) Peek() Task { return q.tasks[q.head] }

func (q *FIFOQueue) Empty() bool { return q.Len() == 0 }

func (q *FIFOQueue) Len() int { return len(q.tasks) - q.head }

func (q *FIFOQueue) Purge() {
	clear(q.tasks)
	q.tasks = q.tasks[:0]
	q.head = 0
}

type priorityItem struct {
	task Task
	seq  uint64
}

// PriorityQueue orders tasks with a caller supplied less function.
// Tasks that compare equal keep their push order.
type PriorityQueue struct {
	less  func(a, b Task) bool
	items []priorityItem
	seq   uint64
}

// NewPriorityQueue returns a heap ordered queue. less reports whether a must
// run before b.
func NewPriorityQueue(less func(a, b Task) bool) *PriorityQueue {
	return &PriorityQueue{less: less}
}

// CheapestFirst orders tasks by ascending cost.
func CheapestFirst(a, b Task) bool { return a.Cost() < b.Cost() }

func (pq *PriorityQueue) Push(task Task) {
	pq.items = append(pq.items, priorityItem{task: task, seq: pq.seq})
	pq.seq++
	pq.siftUp(len(pq.items) - 1)
}

func (pq *PriorityQueue) Pop() Task {
	n := len(pq.items)
	root := pq.items[0]
	last := pq.items[n-1]
	pq.items[n-1] = priorityItem{}
	pq.items = pq.items[:n-1]
	if n-1 > 0 {
		pq.items[0] = last
		pq.siftDown(0)
	}
	return root.task
}

func (pq *PriorityQueue) Peek() Task { return pq.items[0].task }

func (pq *PriorityQueue) Empty() bool { return len(pq.items) == 0 }

func (pq *PriorityQueue) Len() int { return len(pq.items) }

func (pq *PriorityQueue) Purge() {
	clear(pq.items)
	pq.items = pq.items[:0]
}

func (pq *PriorityQueue) before(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if pq.less(a.task, b.task) {
		return true
	}
	if pq.less(b.task, a.task) {
		return false
	}
	return a.seq < b.seq
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.before(i, parent) {
			break
		}
		pq.items[i], pq.items[parent] = pq.items[parent], pq.items[i]
		i = parent
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		best := left
		if right := left + 1; right < n && pq.before(right, left) {
			best = right
		}
		if !pq.before(best, i) {
			return
		}
		pq.items[i], pq.items[best] = pq.items[best], pq.items[i]
		i = best
	}
}
