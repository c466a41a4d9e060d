package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"complyhq/sentinel/pkg/workflow"
)

// ChannelPublisher fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event rather than blocking the publisher.
type ChannelPublisher struct {
	mu      sync.RWMutex
	subs    map[int]chan workflow.Event
	next    int
	closed  bool
	dropped atomic.Int64
}

// NewChannelPublisher creates a publisher with no subscribers.
func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{subs: make(map[int]chan workflow.Event)}
}

// Subscribe returns a channel receiving future events and a function that
// unsubscribes and closes it.
func (p *ChannelPublisher) Subscribe(buffer int) (<-chan workflow.Event, func()) {
	ch := make(chan workflow.Event, buffer)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.next
	p.next++
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
			}
		})
	}
}

// Publish implements workflow.Publisher.
func (p *ChannelPublisher) Publish(ctx context.Context, ev workflow.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.dropped.Add(1)
		}
	}
	return nil
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (p *ChannelPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close closes every subscriber channel.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	return nil
}
