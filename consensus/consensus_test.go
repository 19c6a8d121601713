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

package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/provenance/blockproducer"
	"github.com/CovenantSQL/provenance/client"
	"github.com/CovenantSQL/provenance/metric"
	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

func init() {
	log.SetLevel(log.FatalLevel)
}

func newChain(t *testing.T, owner string, length int) *blockproducer.Chain {
	c, err := blockproducer.NewChain(&blockproducer.Config{})
	if err != nil {
		t.Fatalf("create chain failed: %v", err)
	}
	for c.Length() < length {
		if _, err = c.StageRecord(owner, &types.Record{
			Owner:         owner,
			Description:   "photo",
			WatermarkText: owner,
			ImageHash:     fmt.Sprintf("%016x", c.Length()),
			Filename:      "photo.jpg",
		}); err != nil {
			t.Fatalf("stage record failed: %v", err)
		}
		if _, err = c.Mine(context.Background()); err != nil {
			t.Fatalf("mine failed: %v", err)
		}
	}
	c.Stop()
	return c
}

func servePeer(blocks []*types.Block, delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_chain" {
			http.NotFound(rw, r)
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(&client.ChainResponse{Chain: blocks, Length: len(blocks)})
	}))
}

func peerOf(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func newEngine(t *testing.T, local *blockproducer.Chain, timeout time.Duration, rec *metric.Recorder) *Engine {
	e, err := NewEngine(&Config{
		Chain: local,
		Client: client.New(&client.Config{
			Timeout:    timeout,
			HTTPClient: &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
		}),
		Recorder: rec,
	})
	if err != nil {
		t.Fatalf("create engine failed: %v", err)
	}
	return e
}

func TestEngine_ResolveConflicts(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	Convey("Given a local chain of length 3", t, func() {
		local := newChain(t, "alice", 3)
		localBlocks := local.Blocks()

		Convey("A valid chain of length 4 should win over an invalid one of length 5", func() {
			invalid := newChain(t, "mallory", 5).Blocks()
			invalid[2].Owner = "mallory-forged"
			valid := newChain(t, "bob", 4).Blocks()

			tsInvalid := servePeer(invalid, 0)
			defer tsInvalid.Close()
			tsValid := servePeer(valid, 0)
			defer tsValid.Close()
			_, err := local.RegisterPeer(tsInvalid.URL)
			So(err, ShouldBeNil)
			_, err = local.RegisterPeer(peerOf(tsValid))
			So(err, ShouldBeNil)

			rec := metric.NewRecorder()
			replaced, err := newEngine(t, local, time.Second, rec).ResolveConflicts(context.Background())
			So(err, ShouldBeNil)
			So(replaced, ShouldBeTrue)
			So(local.Length(), ShouldEqual, 4)
			So(local.LastBlock().Owner, ShouldEqual, "bob")
			So(local.ValidateChain(), ShouldBeTrue)

			got, err := types.HashBlock(local.LastBlock())
			So(err, ShouldBeNil)
			want, err := types.HashBlock(valid[3])
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		})
		Convey("The longest of several valid chains should win", func() {
			ts4 := servePeer(newChain(t, "bob", 4).Blocks(), 0)
			defer ts4.Close()
			ts6 := servePeer(newChain(t, "carol", 6).Blocks(), 0)
			defer ts6.Close()
			ts5 := servePeer(newChain(t, "dave", 5).Blocks(), 0)
			defer ts5.Close()
			for _, ts := range []*httptest.Server{ts4, ts6, ts5} {
				_, err := local.RegisterPeer(ts.URL)
				So(err, ShouldBeNil)
			}

			replaced, err := newEngine(t, local, time.Second, nil).ResolveConflicts(context.Background())
			So(err, ShouldBeNil)
			So(replaced, ShouldBeTrue)
			So(local.Length(), ShouldEqual, 6)
			So(local.LastBlock().Owner, ShouldEqual, "carol")
		})
		Convey("Shorter, equal and invalid chains should leave the local chain untouched", func() {
			invalid := newChain(t, "mallory", 5).Blocks()
			invalid[4].PreviousHash = invalid[3].PreviousHash
			peers := []*httptest.Server{
				servePeer(newChain(t, "bob", 2).Blocks(), 0),
				servePeer(newChain(t, "carol", 3).Blocks(), 0),
				servePeer(invalid, 0),
			}
			for _, ts := range peers {
				defer ts.Close()
				_, err := local.RegisterPeer(ts.URL)
				So(err, ShouldBeNil)
			}

			rec := metric.NewRecorder()
			replaced, err := newEngine(t, local, time.Second, rec).ResolveConflicts(context.Background())
			So(err, ShouldBeNil)
			So(replaced, ShouldBeFalse)
			So(local.Blocks(), ShouldResemble, localBlocks)
		})
		Convey("Unavailable peers should be skipped", func() {
			down := httptest.NewServer(http.NotFoundHandler())
			downAddr := peerOf(down)
			down.Close()
			broken := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				http.Error(rw, "boom", http.StatusInternalServerError)
			}))
			defer broken.Close()
			slow := servePeer(newChain(t, "carol", 6).Blocks(), 2*time.Second)
			defer slow.Close()
			good := servePeer(newChain(t, "bob", 4).Blocks(), 0)
			defer good.Close()
			for _, addr := range []string{downAddr, broken.URL, slow.URL, good.URL} {
				_, err := local.RegisterPeer(addr)
				So(err, ShouldBeNil)
			}

			start := time.Now()
			replaced, err := newEngine(t, local, 300*time.Millisecond, nil).ResolveConflicts(context.Background())
			So(err, ShouldBeNil)
			So(replaced, ShouldBeTrue)
			So(time.Since(start), ShouldBeLessThan, 2*time.Second)
			So(local.Length(), ShouldEqual, 4)
			So(local.LastBlock().Owner, ShouldEqual, "bob")
		})
		Convey("No peers should mean no replacement", func() {
			replaced, err := newEngine(t, local, time.Second, nil).ResolveConflicts(context.Background())
			So(err, ShouldBeNil)
			So(replaced, ShouldBeFalse)
		})
	})
}

func TestNewEngine(t *testing.T) {
	Convey("An engine requires a chain", t, func() {
		_, err := NewEngine(nil)
		So(err, ShouldNotBeNil)
		_, err = NewEngine(&Config{})
		So(err, ShouldNotBeNil)

		local := newChain(t, "alice", 1)
		e, err := NewEngine(&Config{Chain: local})
		So(err, ShouldBeNil)
		So(e.workers, ShouldEqual, DefaultWorkers)
		So(e.client, ShouldNotBeNil)
	})
}
