package jobs

import (
	"context"
	"sync"
)

// Queue は容量付きの FIFO キューです。
// 満杯のときの Enqueue と空のときの Dequeue はブロックします。
type Queue struct {
	mu    sync.Mutex
	items []Job

	// slots は空き枠、ready は取り出し可能な件数を表すセマフォです。
	slots chan struct{}
	ready chan struct{}
}

// NewQueue は Queue を作成します。capacity が 0 以下の場合は既定値を使います。
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		items: make([]Job, 0, min(capacity, 256)),
		slots: make(chan struct{}, capacity),
		ready: make(chan struct{}, capacity),
	}
}

// Enqueue はジョブを末尾に追加します。
// 満杯の間はブロックし、ctx が終了した場合はそのエラーを返します。
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.push(job)
	return nil
}

// TryEnqueue はブロックせずにジョブを追加します。満杯なら ErrQueueFull を返します。
func (q *Queue) TryEnqueue(job Job) error {
	select {
	case q.slots <- struct{}{}:
	default:
		return ErrQueueFull
	}
	q.push(job)
	return nil
}

// Dequeue は先頭のジョブを取り出します。空の間はブロックします。
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-q.ready:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}

	q.mu.Lock()
	job := q.items[0]
	q.items[0] = Job{}
	q.items = q.items[1:]
	q.mu.Unlock()

	<-q.slots
	return job, nil
}

// Snapshot は未処理のジョブを取り出さずに順番どおり複製して返します。
func (q *Queue) Snapshot() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, len(q.items))
	copy(out, q.items)
	return out
}

// Len は未処理のジョブ数を返します。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap はキューの容量を返します。
func (q *Queue) Cap() int {
	return cap(q.slots)
}

func (q *Queue) push(job Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()
	q.ready <- struct{}{}
}
