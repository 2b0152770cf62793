package transport

import (
	"context"
	"sync"
)

// Queue — неограниченная FIFO-очередь для одного писателя и одного читателя.
// Push никогда не блокируется; Pop ждёт элемент, закрытие очереди или отмену контекста.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	notify chan struct{}
}

// NewQueue создаёт пустую очередь.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Push добавляет элемент в конец очереди. После Close вызов игнорируется и возвращает false.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.wake()
	return true
}

// Pop забирает элемент из начала очереди.
// Возвращает false, когда очередь закрыта и пуста; при отмене ctx возвращает ошибку контекста.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, false, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

// Close закрывает очередь. Уже добавленные элементы ещё можно прочитать.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

// Len возвращает число ожидающих элементов.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
