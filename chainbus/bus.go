/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package chainbus delivers ledger change events to interested components.
package chainbus

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/types"
)

// Topics published by the ledger.
const (
	// TopicSealed is published after a block is appended by mining.
	TopicSealed = "chain:sealed"
	// TopicReplaced is published after consensus adopts a peer chain.
	TopicReplaced = "chain:replaced"
	// TopicStaged is published after a record is staged for the next block.
	TopicStaged = "chain:staged"
)

var (
	// ErrNilHandler indicates subscribing without a callback.
	ErrNilHandler = errors.New("nil event handler")
	// ErrNoSubscription indicates unsubscribing an unknown subscription.
	ErrNoSubscription = errors.New("subscription doesn't exist")
)

// Event describes one ledger change. Blocks is a private copy of the whole chain taken under the
// chain lock, handlers may keep it.
type Event struct {
	Topic  string
	Block  *types.Block
	Blocks []*types.Block
	Record *types.Record
}

// Length returns the chain length carried by the event.
func (e *Event) Length() int {
	return len(e.Blocks)
}

// Handler is an event callback.
type Handler func(e *Event)

// SubscriptionID identifies one subscription for Unsubscribe.
type SubscriptionID uint64

// ChainSuber defines subscribing-related bus behavior.
type ChainSuber interface {
	Subscribe(topic string, handler Handler) (SubscriptionID, error)
	SubscribeAsync(topic string, handler Handler, transactional bool) (SubscriptionID, error)
	Unsubscribe(topic string, id SubscriptionID) error
}

// ChainPuber defines publishing-related bus behavior.
type ChainPuber interface {
	Publish(e *Event)
}

// BusController defines bus control behavior (checking handler's presence, synchronization).
type BusController interface {
	HasCallback(topic string) bool
	WaitAsync()
}

// Bus englobes global (subscribe, publish, control) bus behavior.
type Bus interface {
	BusController
	ChainSuber
	ChainPuber
}

// ChainBus - box for handlers and callbacks.
type ChainBus struct {
	handlers map[string][]*eventHandler
	nextID   SubscriptionID
	lock     sync.Mutex // a lock for the map
	wg       sync.WaitGroup
}

type eventHandler struct {
	id            SubscriptionID
	callBack      Handler
	async         bool
	transactional bool
	sync.Mutex    // lock for an event handler - useful for running async callbacks serially
}

// New returns new ChainBus with empty handlers.
func New() Bus {
	return &ChainBus{
		handlers: make(map[string][]*eventHandler),
	}
}

func (bus *ChainBus) doSubscribe(topic string, handler *eventHandler) (id SubscriptionID, err error) {
	if handler.callBack == nil {
		err = errors.Wrapf(ErrNilHandler, "topic %s", topic)
		return
	}
	bus.lock.Lock()
	defer bus.lock.Unlock()
	bus.nextID++
	handler.id = bus.nextID
	bus.handlers[topic] = append(bus.handlers[topic], handler)
	id = handler.id
	return
}

// Subscribe subscribes to a topic, Publish returns after the handler returns.
func (bus *ChainBus) Subscribe(topic string, fn Handler) (SubscriptionID, error) {
	return bus.doSubscribe(topic, &eventHandler{callBack: fn})
}

// SubscribeAsync subscribes to a topic with an asynchronous callback.
// Transactional determines whether subsequent callbacks for a topic are
// run serially (true) or concurrently (false).
func (bus *ChainBus) SubscribeAsync(topic string, fn Handler, transactional bool) (SubscriptionID, error) {
	return bus.doSubscribe(topic, &eventHandler{
		callBack:      fn,
		async:         true,
		transactional: transactional,
	})
}

// HasCallback returns true if exists any callback subscribed to the topic.
func (bus *ChainBus) HasCallback(topic string) bool {
	bus.lock.Lock()
	defer bus.lock.Unlock()
	return len(bus.handlers[topic]) > 0
}

// Unsubscribe removes the subscription id from topic.
func (bus *ChainBus) Unsubscribe(topic string, id SubscriptionID) error {
	bus.lock.Lock()
	defer bus.lock.Unlock()
	handlers := bus.handlers[topic]
	for i, h := range handlers {
		if h.id == id {
			copy(handlers[i:], handlers[i+1:])
			handlers[len(handlers)-1] = nil
			bus.handlers[topic] = handlers[:len(handlers)-1]
			return nil
		}
	}
	return errors.Wrapf(ErrNoSubscription, "topic %s id %d", topic, id)
}

// Publish executes callbacks defined for the event topic. Synchronous handlers run outside the
// bus lock, so they may publish or subscribe themselves.
func (bus *ChainBus) Publish(e *Event) {
	bus.lock.Lock()
	handlers := make([]*eventHandler, len(bus.handlers[e.Topic]))
	copy(handlers, bus.handlers[e.Topic])
	for _, h := range handlers {
		if h.async {
			bus.wg.Add(1)
		}
	}
	bus.lock.Unlock()

	for _, h := range handlers {
		if !h.async {
			h.callBack(e)
			continue
		}
		if h.transactional {
			h.Lock()
		}
		go bus.doPublishAsync(h, e)
	}
}

func (bus *ChainBus) doPublishAsync(handler *eventHandler, e *Event) {
	defer bus.wg.Done()
	if handler.transactional {
		defer handler.Unlock()
	}
	handler.callBack(e)
}

// WaitAsync waits for all async callbacks to complete.
func (bus *ChainBus) WaitAsync() {
	bus.wg.Wait()
}
