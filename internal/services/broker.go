package services

import (
	"context"
	"sync"

	"github.com/vortexis/hackhub/backend/pkg/logger"
)

// Subscriber receives encoded frames for the groups it joined. Send must not block;
// it returns false when the frame could not be queued.
type Subscriber interface {
	Send(frame []byte) bool
}

// Publisher is the write side of the broadcast pipeline.
type Publisher interface {
	Publish(ctx context.Context, group string, ev Event) error
}

// Broadcaster fans events out to every subscriber of a group, the sender's own
// connection included. Delivery is at-most-once and nothing is replayed.
type Broadcaster interface {
	Publisher
	Subscribe(group string, sub Subscriber) (unsubscribe func())
	SubscriberCount() int
	Mode() string
}

// LocalBroker is the in-process group registry.
type LocalBroker struct {
	groups map[string]map[Subscriber]struct{}
	mu     sync.RWMutex
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		groups: make(map[string]map[Subscriber]struct{}),
	}
}

func (b *LocalBroker) Mode() string { return "local" }

// Subscribe registers sub under group. The returned func is safe to call more than once.
func (b *LocalBroker) Subscribe(group string, sub Subscriber) func() {
	b.mu.Lock()
	members, ok := b.groups[group]
	if !ok {
		members = make(map[Subscriber]struct{})
		b.groups[group] = members
	}
	members[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(group, sub) })
	}
}

func (b *LocalBroker) unsubscribe(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[group]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(b.groups, group)
	}
}

// Publish encodes ev once and hands the frame to every subscriber of group.
func (b *LocalBroker) Publish(_ context.Context, group string, ev Event) error {
	frame, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	b.Deliver(group, frame)
	return nil
}

// Deliver sends an already encoded frame to local subscribers only.
func (b *LocalBroker) Deliver(group string, frame []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.groups[group] {
		if sub.Send(frame) {
			delivered++
		} else {
			logger.Debug().Str("group", group).Msg("subscriber buffer full, frame dropped")
		}
	}
	return delivered
}

// GroupSize returns the number of subscribers in group.
func (b *LocalBroker) GroupSize(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[group])
}

// SubscriberCount returns the number of subscriptions across all groups.
func (b *LocalBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, members := range b.groups {
		n += len(members)
	}
	return n
}
