package ttlstore

// stamp is a scheduled deletion: a key plus the deadline that was live
// when it was enqueued. If the live entry's deadline has moved on (the
// key was refreshed), the stamp is a ghost and the sweep ignores it.
// This lets updates outlive earlier scheduled deletions without ever
// searching the queue.
type stamp[K comparable] struct {
	key K
	exp int64 // absolute UnixNano deadline recorded at scheduling time
}

// delayQueue is a min-heap of stamps ordered by deadline.
// It implements container/heap.Interface; all access happens under the
// store lock.
type delayQueue[K comparable] []stamp[K]

func (q delayQueue[K]) Len() int           { return len(q) }
func (q delayQueue[K]) Less(i, j int) bool { return q[i].exp < q[j].exp }
func (q delayQueue[K]) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *delayQueue[K]) Push(x any) { *q = append(*q, x.(stamp[K])) }

func (q *delayQueue[K]) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
