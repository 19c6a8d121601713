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

package blockproducer

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/provenance/chainbus"
	"github.com/CovenantSQL/provenance/pow/cpuminer"
)

func TestChain_ConcurrentStage(t *testing.T) {
	Convey("N concurrent stagings followed by one seal should lose nothing", t, func() {
		const n = 64
		c := newTestChain(t, &Config{})
		defer c.Stop()

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := c.StageRecord("alice", newRecord("alice", i)); err != nil {
					t.Errorf("stage record %d failed: %v", i, err)
				}
			}(i)
		}
		wg.Wait()

		b, err := c.Mine(context.Background())
		So(err, ShouldBeNil)
		So(b.Data, ShouldHaveLength, n)
		seen := make(map[string]bool)
		for _, r := range b.Data {
			So(seen[r.ImageHash], ShouldBeFalse)
			seen[r.ImageHash] = true
		}
		So(seen, ShouldHaveLength, n)
		So(c.ValidateChain(), ShouldBeTrue)
	})
	Convey("Concurrent mining and staging should keep the chain valid", t, func() {
		c := newTestChain(t, &Config{MineRetries: 16})
		defer c.Stop()

		var (
			wg     sync.WaitGroup
			lock   sync.Mutex
			staged int
		)
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 8; j++ {
					if _, err := c.StageRecord("bob", newRecord("bob", i*100+j)); err == nil {
						lock.Lock()
						staged++
						lock.Unlock()
					}
				}
			}(i)
			go func() {
				defer wg.Done()
				if _, err := c.Mine(context.Background()); err != nil {
					t.Errorf("mine failed: %v", err)
				}
			}()
		}
		wg.Wait()
		_, err := c.Mine(context.Background())
		So(err, ShouldBeNil)

		blocks := c.Blocks()
		So(ValidateChain(blocks), ShouldBeTrue)
		So(blocks, ShouldHaveLength, 6)
		sealed := 0
		seen := make(map[string]bool)
		for _, b := range blocks {
			for _, r := range b.Data {
				So(seen[r.ImageHash], ShouldBeFalse)
				seen[r.ImageHash] = true
				sealed++
			}
		}
		So(sealed, ShouldEqual, staged)
	})
}

func TestChain_SealBlock(t *testing.T) {
	Convey("Given a chain with a staged record", t, func() {
		c := newTestChain(t, &Config{})
		defer c.Stop()
		_, err := c.StageRecord("alice", newRecord("alice", 1))
		So(err, ShouldBeNil)
		lastProof, lastHash, err := c.Tip()
		So(err, ShouldBeNil)
		proof := cpuminer.Solve(lastProof)

		Convey("A proof solved against a replaced tip should be stale", func() {
			_, err := c.Mine(context.Background())
			So(err, ShouldBeNil)
			_, err = c.StageRecord("alice", newRecord("alice", 2))
			So(err, ShouldBeNil)

			_, err = c.SealBlock(proof, lastHash)
			So(errors.Cause(err), ShouldEqual, ErrStaleProof)
			So(c.Length(), ShouldEqual, 2)
			_, pending := c.Pending()
			So(pending, ShouldHaveLength, 1)
		})
		Convey("A proof not solving the tip should be rejected", func() {
			bad := proof + 1
			for cpuminer.ValidProof(lastProof, bad) {
				bad++
			}
			_, err := c.SealBlock(bad, "")
			So(errors.Cause(err), ShouldEqual, ErrStaleProof)
			So(c.Length(), ShouldEqual, 1)
			_, pending := c.Pending()
			So(pending, ShouldHaveLength, 1)
		})
		Convey("A matching previous hash should seal", func() {
			b, err := c.SealBlock(proof, lastHash)
			So(err, ShouldBeNil)
			So(b.PreviousHash, ShouldEqual, lastHash)
		})
	})
}

func TestChain_ReplaceChain(t *testing.T) {
	Convey("Given a local chain of length 3 and a longer remote chain", t, func() {
		local := newTestChain(t, &Config{})
		defer local.Stop()
		mineBlocks(t, local, "alice", 2)
		_, err := local.StageRecord("alice", newRecord("alice", 999))
		So(err, ShouldBeNil)

		remote := newTestChain(t, &Config{})
		defer remote.Stop()
		mineBlocks(t, remote, "bob", 3)
		candidate := remote.Blocks()

		Convey("A longer valid chain should be adopted and pending records kept", func() {
			var replaced *chainbus.Event
			_, err := local.Bus().Subscribe(chainbus.TopicReplaced, func(e *chainbus.Event) {
				replaced = e
			})
			So(err, ShouldBeNil)

			So(local.ReplaceChain(candidate, 3), ShouldBeNil)
			So(local.Length(), ShouldEqual, 4)
			So(local.LastBlock().Owner, ShouldEqual, "bob")
			_, pending := local.Pending()
			So(pending, ShouldHaveLength, 1)
			So(replaced, ShouldNotBeNil)
			So(replaced.Length(), ShouldEqual, 4)

			candidate[3].Owner = "mallory"
			So(local.ValidateChain(), ShouldBeTrue)
		})
		Convey("A chain not longer than the local one should be refused", func() {
			err := local.ReplaceChain(candidate[:3], 3)
			So(errors.Cause(err), ShouldEqual, ErrChainChanged)
			So(local.LastBlock().Owner, ShouldEqual, "alice")
		})
		Convey("A local chain that grew meanwhile should win", func() {
			mineBlocks(t, local, "alice", 1)
			err := local.ReplaceChain(candidate, 3)
			So(errors.Cause(err), ShouldEqual, ErrChainChanged)
			So(local.Length(), ShouldEqual, 4)
			So(local.LastBlock().Owner, ShouldEqual, "alice")
		})
		Convey("An invalid chain should be refused", func() {
			candidate[2].Proof++
			err := local.ReplaceChain(candidate, 3)
			So(errors.Cause(err), ShouldEqual, ErrInvalidChain)
			So(local.Length(), ShouldEqual, 3)
		})
	})
}

func TestNewChain(t *testing.T) {
	Convey("A chain should restore from persisted blocks", t, func() {
		origin := newTestChain(t, &Config{})
		defer origin.Stop()
		mineBlocks(t, origin, "carol", 2)

		restored := newTestChain(t, &Config{Blocks: origin.Blocks()})
		defer restored.Stop()
		So(restored.Length(), ShouldEqual, 3)
		So(restored.BlocksByOwner("carol"), ShouldHaveLength, 2)
		So(restored.BlocksByOwner("dave"), ShouldBeEmpty)

		forged := origin.Blocks()
		forged[1].Owner = "mallory"
		_, err := NewChain(&Config{Blocks: forged})
		So(errors.Cause(err), ShouldEqual, ErrInvalidChain)
	})
	Convey("Configured peers should be registered", t, func() {
		c := newTestChain(t, &Config{Peers: []string{"http://10.0.0.2:5000", "10.0.0.1:5000"}})
		defer c.Stop()
		So(c.Peers(), ShouldResemble, []string{"10.0.0.1:5000", "10.0.0.2:5000"})
		_, err := NewChain(&Config{Peers: []string{"http://"}})
		So(errors.Cause(err), ShouldEqual, ErrInvalidPeerAddress)
	})
	Convey("Sealed blocks should be published", t, func() {
		bus := chainbus.New()
		var (
			lock   sync.Mutex
			events []*chainbus.Event
		)
		_, err := bus.SubscribeAsync(chainbus.TopicSealed, func(e *chainbus.Event) {
			lock.Lock()
			defer lock.Unlock()
			events = append(events, e)
		}, true)
		So(err, ShouldBeNil)
		c := newTestChain(t, &Config{Bus: bus})
		mineBlocks(t, c, "alice", 2)
		c.Stop()
		So(events, ShouldHaveLength, 2)
		So(events[1].Block.Index, ShouldEqual, 3)
		So(events[1].Blocks, ShouldHaveLength, 3)
		So(ValidateChain(events[1].Blocks), ShouldBeTrue)
	})
}

func TestNormalizePeerAddress(t *testing.T) {
	Convey("Peer addresses should be normalized to host:port", t, func() {
		cases := map[string]string{
			"http://192.168.0.5:5000":         "192.168.0.5:5000",
			"http://192.168.0.5:5000/":        "192.168.0.5:5000",
			"https://Node.Example.com:8443/x": "node.example.com:8443",
			"192.168.0.5:5000":                "192.168.0.5:5000",
			" localhost:5000 ":                "localhost:5000",
			"example.com":                     "example.com",
			"http://[::1]:5000/get_chain":     "[::1]:5000",
			"node1:05000":                     "node1:5000",
			"http://node1:0005000":            "node1:5000",
		}
		for in, want := range cases {
			got, err := NormalizePeerAddress(in)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
		for _, in := range []string{"", "http://", "http://host:notaport", "host:70000", "host:0"} {
			_, err := NormalizePeerAddress(in)
			So(errors.Cause(err), ShouldEqual, ErrInvalidPeerAddress)
		}
	})
	Convey("Registering peers should have set semantics", t, func() {
		c := newTestChain(t, &Config{})
		defer c.Stop()
		for _, addr := range []string{"http://10.0.0.1:5000", "10.0.0.1:5000", "http://10.0.0.1:5000/"} {
			peer, err := c.RegisterPeer(addr)
			So(err, ShouldBeNil)
			So(peer, ShouldEqual, "10.0.0.1:5000")
		}
		So(c.Peers(), ShouldResemble, []string{"10.0.0.1:5000"})
		for _, addr := range []string{"node1:05000", "node1:5000"} {
			_, err := c.RegisterPeer(addr)
			So(err, ShouldBeNil)
		}
		So(c.Peers(), ShouldResemble, []string{"10.0.0.1:5000", "node1:5000"})
		_, err := c.RegisterPeer("http://")
		So(errors.Cause(err), ShouldEqual, ErrInvalidPeerAddress)
	})
}
