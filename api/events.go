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

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CovenantSQL/provenance/chainbus"
	"github.com/CovenantSQL/provenance/client"
	"github.com/CovenantSQL/provenance/utils/log"
)

const (
	eventBufferSize = 64
	eventWriteWait  = 10 * time.Second
)

var (
	upgrader    = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	eventTopics = []string{chainbus.TopicStaged, chainbus.TopicSealed, chainbus.TopicReplaced}
)

// Events pushes chain events to a websocket subscriber. Events are dropped for a subscriber that
// falls behind.
func (a *nodeAPI) Events(rw http.ResponseWriter, r *http.Request) {
	bus := a.chain.Bus()
	ch := make(chan *client.ChainEvent, eventBufferSize)
	handler := func(e *chainbus.Event) {
		select {
		case ch <- &client.ChainEvent{Topic: e.Topic, Length: e.Length(), Block: e.Block, Record: e.Record}:
		default:
			log.WithField("topic", e.Topic).Debug("event subscriber is lagging, drop event")
		}
	}
	for _, topic := range eventTopics {
		id, err := bus.Subscribe(topic, handler)
		if err != nil {
			sendError(err, rw)
			return
		}
		defer bus.Unsubscribe(topic, id)
	}

	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.WithError(err).Warning("upgrade event stream failed")
		return
	}
	defer conn.Close()
	log.WithField("remote", r.RemoteAddr).Debug("event subscriber connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			log.WithField("remote", r.RemoteAddr).Debug("event subscriber disconnected")
			return
		case <-a.quit:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
				time.Now().Add(eventWriteWait))
			return
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err = conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("write event failed")
				return
			}
		}
	}
}
