package voicechat

import "context"

// AudioQueue is a single-slot channel of payloads between producers and the consumer.
type AudioQueue struct {
	ch chan AudioPayload
}

func NewAudioQueue() *AudioQueue {
	return &AudioQueue{ch: make(chan AudioPayload, 1)}
}

// Enqueue waits for the slot to free up. A free slot is always taken; it only
// fails if ctx is done while the slot is occupied.
func (q *AudioQueue) Enqueue(ctx context.Context, payload AudioPayload) error {
	select {
	case q.ch <- payload:
		return nil
	default:
	}
	select {
	case q.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue returns ErrQueueFull instead of waiting when the slot is occupied.
func (q *AudioQueue) TryEnqueue(payload AudioPayload) error {
	select {
	case q.ch <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Receive returns the consumer side of the queue.
func (q *AudioQueue) Receive() <-chan AudioPayload {
	return q.ch
}

// Len is 1 while a payload waits for the consumer.
func (q *AudioQueue) Len() int {
	return len(q.ch)
}
