package queue

import "context"

// Enqueuer publishes messages. key may be nil.
type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, key, data []byte) error
	Close() error
}

type MessageHandler func(ctx context.Context, data []byte) error

// Dequeuer feeds every message of topic to handler until ctx is done.
type Dequeuer interface {
	Dequeue(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}
