package server

import (
	"context"
	"sync"
	"time"
)

const (
	// RealtimeEventProductChanged is emitted whenever any product row changes.
	RealtimeEventProductChanged = "product-change"
	realtimeEventHeartbeat      = "heartbeat"
)

// RealtimeMessage fans a table change out to every connected client. The
// changed product ids ride along so clients can patch single cache entries
// instead of guessing.
type RealtimeMessage struct {
	EventType  string
	ProductIDs []string
	Timestamp  time.Time
}

// RealtimeDispatcher broadcasts product-change notifications to all
// subscribers. Delivery is best effort: a subscriber whose buffer is full
// misses the message and catches up on its next refetch.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

// NewRealtimeDispatcher constructs a dispatcher with a small per-subscriber buffer.
func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  16,
		clock:       time.Now,
	}
}

// Subscribe registers a listener for all product changes. The stream is
// closed off when the context ends or the returned cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	cleanup := func() {
		d.unregisterSubscriber(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the message to every live subscriber without blocking.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*realtimeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// PublishProductChange satisfies products.ChangePublisher.
func (d *RealtimeDispatcher) PublishProductChange(productIDs ...string) {
	if len(productIDs) == 0 {
		return
	}
	d.Publish(RealtimeMessage{
		EventType:  RealtimeEventProductChanged,
		ProductIDs: productIDs,
		Timestamp:  d.clock().UTC(),
	})
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
