package core

import (
	"container/heap"
	"errors"
	"sync"
)

// ErrQueueEmpty is returned when Pop() or Top() is called on an empty queue.
var ErrQueueEmpty = errors.New("prompt queue is empty")

// PromptQueue is a thread-safe FIFO of prompts. Prompts pushed to the front
// jump ahead of everything queued, the most recent front push first.
type PromptQueue interface {
	Push(prompt *Prompt, front bool) error
	Pop() (*Prompt, error)
	Top() (*Prompt, error)
	Len() int
	// Pending returns the queued prompts in the order they will be popped.
	Pending() []*Prompt
}

type heapPromptQueue struct {
	pq    priorityQueue
	mu    sync.RWMutex
	back  int64
	front int64
}

func NewPromptQueue() PromptQueue {
	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	return &heapPromptQueue{pq: pq}
}

func (q *heapPromptQueue) Push(prompt *Prompt, front bool) error {
	if prompt == nil {
		return errors.New("cannot push nil prompt")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var order int64
	if front {
		q.front--
		order = q.front
	} else {
		order = q.back
		q.back++
	}
	heap.Push(&q.pq, &item{prompt: prompt, order: order})
	return nil
}

func (q *heapPromptQueue) Pop() (*Prompt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pq.Len() == 0 {
		return nil, ErrQueueEmpty
	}
	it := heap.Pop(&q.pq).(*item)
	return it.prompt, nil
}

func (q *heapPromptQueue) Top() (*Prompt, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.pq.Len() == 0 {
		return nil, ErrQueueEmpty
	}
	return q.pq[0].prompt, nil
}

func (q *heapPromptQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pq.Len()
}

func (q *heapPromptQueue) Pending() []*Prompt {
	q.mu.RLock()
	snapshot := make(priorityQueue, len(q.pq))
	for i, it := range q.pq {
		c := *it
		snapshot[i] = &c
	}
	q.mu.RUnlock()

	prompts := make([]*Prompt, 0, len(snapshot))
	for snapshot.Len() > 0 {
		prompts = append(prompts, heap.Pop(&snapshot).(*item).prompt)
	}
	return prompts
}

type item struct {
	prompt *Prompt
	order  int64
	index  int
}

// priorityQueue implements heap.Interface ordered by insertion order key.
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].order < pq[j].order
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	it := x.(*item)
	it.index = n
	*pq = append(*pq, it)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[0 : n-1]
	return it
}
