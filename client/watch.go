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

package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// EventsURL returns the websocket url of the event stream of node.
func EventsURL(node string) (u string, err error) {
	var base string
	if base, err = NodeURL(node); err != nil {
		return
	}
	var parsed *url.URL
	if parsed, err = url.Parse(base); err != nil {
		return
	}
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path += "events"
	u = parsed.String()
	return
}

// Watch streams the chain events of node to fn until ctx is done, the connection breaks or fn
// returns an error.
func (c *Client) Watch(ctx context.Context, node string, fn func(e *ChainEvent) error) (err error) {
	var u string
	if u, err = EventsURL(node); err != nil {
		return
	}
	dialCtx, cancel := c.withTimeout(ctx)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u, nil)
	cancel()
	if err != nil {
		err = errors.Wrapf(ErrPeerUnavailable, "dial %s: %v", u, err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		ev := &ChainEvent{}
		if err = conn.ReadJSON(ev); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return
		}
		if err = fn(ev); err != nil {
			return
		}
	}
}
