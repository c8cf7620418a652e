// Copyright 2025 The kvmux Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package broadcaster is the pub/sub core behind SUBSCRIBE/UNSUBSCRIBE/
// PUBLISH: a topic registry mapping topic name to the set of subscriber
// ids, and a subscription registry mapping id to its delivery channel.
// Publish snapshots a topic's members and releases the topic lock
// before sending, so a slow or churning subscriber set never stalls a
// publisher; dead subscribers (buffer closed, receiver gone) are swept
// as they're discovered mid-publish rather than proactively watched.
package broadcaster

import (
	"sync"
	"sync/atomic"

	"github.com/kvmux/kvmux/common"
	"github.com/kvmux/kvmux/errs"
	"github.com/kvmux/kvmux/internal/rescue"
	"github.com/kvmux/kvmux/message"
)

// nextID is the process-wide subscription id counter shared by every
// Broadcaster; the first id it hands out is 1.
var nextID atomic.Uint32

// Broadcaster is the concurrency-safe pub/sub registry.
type Broadcaster struct {
	topicsMu sync.Mutex
	topics   map[string]map[uint32]struct{}

	subsMu sync.RWMutex
	subs   map[uint32]chan *message.CommandResponse
}

// New builds an empty Broadcaster. Subscriber ids come from the
// process-wide counter, which starts at 1; 0 is reserved and never
// allocated, so callers can use it as a sentinel for "no subscription".
func New() *Broadcaster {
	return &Broadcaster{
		topics: make(map[string]map[uint32]struct{}),
		subs:   make(map[uint32]chan *message.CommandResponse),
	}
}

// Subscribe allocates a subscription id for topic and returns the
// channel future publishes (and the id announcement itself) arrive on.
// The channel is closed by Unsubscribe. Publishers never block on it: a
// subscriber that lets its buffer fill is unsubscribed by the next
// publish that finds it full.
func (b *Broadcaster) Subscribe(topic string) (id uint32, ch <-chan *message.CommandResponse) {
	id = nextID.Add(1)

	out := make(chan *message.CommandResponse, common.SubscriptionBuffer)

	b.topicsMu.Lock()
	members := b.topics[topic]
	if members == nil {
		members = make(map[uint32]struct{})
		b.topics[topic] = members
	}
	members[id] = struct{}{}
	b.topicsMu.Unlock()

	b.subsMu.Lock()
	b.subs[id] = out
	b.subsMu.Unlock()

	out <- message.OK([]message.Value{message.NewInt64(int64(id))}, nil)

	return id, out
}

// Unsubscribe removes id from topic's member set (dropping the topic
// entirely once it's empty) and closes id's delivery channel. It
// returns NotFound if id was never subscribed.
func (b *Broadcaster) Unsubscribe(topic string, id uint32) error {
	b.topicsMu.Lock()
	if members := b.topics[topic]; members != nil {
		delete(members, id)
		if len(members) == 0 {
			delete(b.topics, topic)
		}
	}
	b.topicsMu.Unlock()

	b.subsMu.Lock()
	ch, ok := b.subs[id]
	delete(b.subs, id)
	b.subsMu.Unlock()

	if !ok {
		return errs.NotFound("broadcaster: subscription %d not found", id)
	}
	close(ch)
	return nil
}

// Publish fans payload out to every current subscriber of topic. It
// returns immediately; snapshotting the member set and delivery both run
// in a background goroutine, matching the source's "initiated, not
// awaited" semantics for PUBLISH responses.
func (b *Broadcaster) Publish(topic string, payload *message.CommandResponse) {
	go b.deliver(topic, payload)
}

func (b *Broadcaster) deliver(topic string, payload *message.CommandResponse) {
	defer rescue.HandleCrash()

	b.topicsMu.Lock()
	members := b.topics[topic]
	ids := make([]uint32, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	b.topicsMu.Unlock()

	var dead []uint32
	b.subsMu.RLock()
	for _, id := range ids {
		ch, ok := b.subs[id]
		if !ok {
			continue
		}
		if !trySend(ch, payload) {
			dead = append(dead, id)
		}
	}
	b.subsMu.RUnlock()

	for _, id := range dead {
		_ = b.Unsubscribe(topic, id)
	}
}

// trySend delivers without blocking the publisher on a full buffer; a
// subscriber too slow to keep up misses the message and, because deliver
// treats the failed send as a dead subscriber, is unsubscribed rather
// than stalling every other subscriber of the topic. A closed channel
// (already unsubscribed concurrently) is treated as a failed send.
func trySend(ch chan *message.CommandResponse, payload *message.CommandResponse) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- payload:
		return true
	default:
		return false
	}
}

// NumSubscriptions reports the total subscriber count across every
// topic, for admin/metrics surfaces.
func (b *Broadcaster) NumSubscriptions() int {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	return len(b.subs)
}
