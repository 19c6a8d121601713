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
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEventsURL(t *testing.T) {
	Convey("Event stream urls use the websocket scheme", t, func() {
		cases := map[string]string{
			"127.0.0.1:5000":             "ws://127.0.0.1:5000/events",
			"http://127.0.0.1:5000/":     "ws://127.0.0.1:5000/events",
			"https://node.example.com/x": "wss://node.example.com/x/events",
		}
		for node, expected := range cases {
			u, err := EventsURL(node)
			So(err, ShouldBeNil)
			So(u, ShouldEqual, expected)
		}
		_, err := EventsURL("")
		So(errors.Cause(err), ShouldEqual, ErrInvalidNodeAddress)
	})
}

func TestWatchUnavailable(t *testing.T) {
	Convey("Watching an unreachable node fails", t, func() {
		c := New(&Config{Timeout: time.Second})
		err := c.Watch(context.Background(), "127.0.0.1:1", func(e *ChainEvent) error { return nil })
		So(errors.Cause(err), ShouldEqual, ErrPeerUnavailable)
	})
}
