package match

import "container/list"

// WaitQueue is a FIFO of user ids without duplicates. It is not safe for
// concurrent use; the Engine guards it with its own lock.
type WaitQueue struct {
	order *list.List
	index map[string]*list.Element
}

// NewWaitQueue returns an empty queue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Len returns the number of queued ids.
func (q *WaitQueue) Len() int {
	return q.order.Len()
}

// Contains reports whether id is queued.
func (q *WaitQueue) Contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

// PushBack appends id at the tail. It returns false if id was already queued.
func (q *WaitQueue) PushBack(id string) bool {
	if q.Contains(id) {
		return false
	}
	q.index[id] = q.order.PushBack(id)
	return true
}

// PushFront puts id at the head. It returns false if id was already queued.
func (q *WaitQueue) PushFront(id string) bool {
	if q.Contains(id) {
		return false
	}
	q.index[id] = q.order.PushFront(id)
	return true
}

// PopFront removes and returns the head of the queue.
func (q *WaitQueue) PopFront() (string, bool) {
	front := q.order.Front()
	if front == nil {
		return "", false
	}

	id := q.order.Remove(front).(string)
	delete(q.index, id)
	return id, true
}

// Remove drops id from the queue. Removing an absent id is a no-op that returns false.
func (q *WaitQueue) Remove(id string) bool {
	el, ok := q.index[id]
	if !ok {
		return false
	}

	q.order.Remove(el)
	delete(q.index, id)
	return true
}

// IDs returns the queued ids in order, head first.
func (q *WaitQueue) IDs() []string {
	ids := make([]string, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(string))
	}
	return ids
}
