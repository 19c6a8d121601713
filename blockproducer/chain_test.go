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
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/provenance/pow/cpuminer"
	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

func init() {
	log.SetLevel(log.FatalLevel)
}

func newRecord(owner string, i int) *types.Record {
	return &types.Record{
		Owner:         owner,
		Description:   fmt.Sprintf("photo #%d", i),
		WatermarkText: owner,
		ImageHash:     fmt.Sprintf("%016x", i),
		OriginNodeID:  "node0",
		FileURL:       fmt.Sprintf("https://example.com/media/%d.jpg", i),
		Filename:      fmt.Sprintf("%d.jpg", i),
	}
}

func newTestChain(t *testing.T, cfg *Config) *Chain {
	c, err := NewChain(cfg)
	if err != nil {
		t.Fatalf("create chain failed: %v", err)
	}
	return c
}

// mineBlocks seals n blocks, each with one record of owner.
func mineBlocks(t *testing.T, c *Chain, owner string, n int) {
	for i := 0; i < n; i++ {
		if _, err := c.StageRecord(owner, newRecord(owner, c.Length()*100+i)); err != nil {
			t.Fatalf("stage record failed: %v", err)
		}
		if _, err := c.Mine(context.Background()); err != nil {
			t.Fatalf("mine failed: %v", err)
		}
	}
}

func TestChain_EndToEnd(t *testing.T) {
	Convey("Given a fresh chain", t, func() {
		c := newTestChain(t, &Config{NodeID: "node0"})
		defer c.Stop()
		So(c.Length(), ShouldEqual, 1)
		genesis := c.LastBlock()
		So(genesis.PreviousHash, ShouldEqual, types.GenesisPreviousHash)
		So(genesis.Proof, ShouldEqual, types.GenesisProof)
		So(c.ValidateChain(), ShouldBeTrue)

		Convey("Staging and mining a record for alice should seal block 2", func() {
			r1 := newRecord("alice", 1)
			index, err := c.StageRecord("alice", r1)
			So(err, ShouldBeNil)
			So(index, ShouldEqual, 2)

			b, err := c.Mine(context.Background())
			So(err, ShouldBeNil)
			So(b.Index, ShouldEqual, 2)
			So(b.Owner, ShouldEqual, "alice")
			So(b.Data, ShouldHaveLength, 1)
			So(*b.Data[0], ShouldResemble, *r1)
			So(cpuminer.ValidProof(genesis.Proof, b.Proof), ShouldBeTrue)

			genesisHash, err := types.HashBlock(genesis)
			So(err, ShouldBeNil)
			So(b.PreviousHash, ShouldEqual, genesisHash)
			So(c.ValidateChain(), ShouldBeTrue)

			owner, pending := c.Pending()
			So(owner, ShouldBeEmpty)
			So(pending, ShouldBeEmpty)
		})
		Convey("SealBlock with an explicit proof should compute the previous hash", func() {
			_, err := c.StageRecord("alice", newRecord("alice", 1))
			So(err, ShouldBeNil)
			b, err := c.SealBlock(cpuminer.Solve(genesis.Proof), "")
			So(err, ShouldBeNil)
			So(b.Index, ShouldEqual, 2)
			So(c.ValidateChain(), ShouldBeTrue)
		})
		Convey("The last staged owner should own the block", func() {
			_, err := c.StageRecord("alice", newRecord("alice", 1))
			So(err, ShouldBeNil)
			_, err = c.StageRecord("bob", newRecord("bob", 2))
			So(err, ShouldBeNil)
			b, err := c.Mine(context.Background())
			So(err, ShouldBeNil)
			So(b.Owner, ShouldEqual, "bob")
			So(b.Data, ShouldHaveLength, 2)
		})
		Convey("Mining without records should seal an empty block", func() {
			b, err := c.Mine(context.Background())
			So(err, ShouldBeNil)
			So(b.Data, ShouldBeEmpty)
			So(c.ValidateChain(), ShouldBeTrue)
		})
		Convey("Invalid records should not be staged", func() {
			r := newRecord("alice", 1)
			r.ImageHash = ""
			_, err := c.StageRecord("alice", r)
			So(errors.Cause(err), ShouldEqual, types.ErrInvalidRecord)
			_, err = c.StageRecord("", newRecord("alice", 1))
			So(errors.Cause(err), ShouldEqual, types.ErrInvalidRecord)
			_, err = c.StageRecord("alice", nil)
			So(err, ShouldEqual, types.ErrNilRecord)
			_, pending := c.Pending()
			So(pending, ShouldBeEmpty)
		})
		Convey("Staged records should be private copies", func() {
			r := newRecord("alice", 1)
			_, err := c.StageRecord("alice", r)
			So(err, ShouldBeNil)
			r.Description = "changed afterwards"
			_, pending := c.Pending()
			So(pending[0].Description, ShouldEqual, "photo #1")
		})
		Convey("Returned chains should not alias chain state", func() {
			mineBlocks(t, c, "alice", 1)
			blocks := c.Blocks()
			blocks[1].Owner = "mallory"
			blocks[1].Data[0].Description = "forged"
			So(c.LastBlock().Owner, ShouldEqual, "alice")
			So(c.ValidateChain(), ShouldBeTrue)
		})
		Convey("A cancelled mining job should leave the chain untouched", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := c.Mine(ctx)
			So(errors.Cause(err), ShouldEqual, cpuminer.ErrMiningStopped)
			So(c.Length(), ShouldEqual, 1)
		})
	})
}

func TestValidateChain(t *testing.T) {
	Convey("Given a chain of mined blocks", t, func() {
		c := newTestChain(t, &Config{})
		defer c.Stop()
		mineBlocks(t, c, "alice", 3)
		blocks := c.Blocks()
		So(blocks, ShouldHaveLength, 4)
		So(ValidateChain(blocks), ShouldBeTrue)
		So(ValidateChain(blocks[:1]), ShouldBeTrue)

		Convey("Any tampered field should be detected", func() {
			tampers := map[string]func(b []*types.Block){
				"previous hash":    func(b []*types.Block) { b[3].PreviousHash = b[2].PreviousHash },
				"proof":            func(b []*types.Block) { b[2].Proof++ },
				"index":            func(b []*types.Block) { b[3].Index = 7 },
				"genesis index":    func(b []*types.Block) { b[0].Index = 0 },
				"owner":            func(b []*types.Block) { b[1].Owner = "mallory" },
				"record":           func(b []*types.Block) { b[2].Data[0].Description = "forged" },
				"record image":     func(b []*types.Block) { b[1].Data[0].ImageHash = "ffffffffffffffff" },
				"removed record":   func(b []*types.Block) { b[2].Data = b[2].Data[:0] },
				"time":             func(b []*types.Block) { b[0].Time = b[0].Time.Add(1) },
				"genesis proof":    func(b []*types.Block) { b[0].Proof = 101 },
				"nil record":       func(b []*types.Block) { b[1].Data[0] = nil },
				"nil block":        func(b []*types.Block) { b[2] = nil },
				"genesis nil":      func(b []*types.Block) { b[0] = nil },
				"genesis sentinel": func(b []*types.Block) { b[0].PreviousHash = "0" },
			}
			for name, tamper := range tampers {
				forged := copyBlocks(blocks)
				tamper(forged)
				if ValidateChain(forged) {
					t.Errorf("tampered %s was not detected", name)
				}
			}
			So(ValidateChain(blocks), ShouldBeTrue)
		})
		Convey("Reordered and truncated chains should be handled", func() {
			So(ValidateChain(nil), ShouldBeFalse)
			So(ValidateChain(blocks[1:]), ShouldBeFalse)
			So(ValidateChain([]*types.Block{blocks[0], blocks[2]}), ShouldBeFalse)
			So(ValidateChain(blocks[:3]), ShouldBeTrue)
		})
		Convey("CheckChain should report the reason", func() {
			forged := copyBlocks(blocks)
			forged[3].PreviousHash = types.GenesisPreviousHash
			So(errors.Cause(CheckChain(forged)), ShouldEqual, ErrParentNotMatch)
			forged = copyBlocks(blocks)
			forged[2].PreviousHash = strings.Repeat("z", 64)
			So(errors.Cause(CheckChain(forged)), ShouldEqual, ErrParentNotMatch)
			forged = copyBlocks(blocks)
			forged[2].PreviousHash = strings.ToUpper(blocks[2].PreviousHash)
			So(CheckChain(forged), ShouldBeNil)
			forged = copyBlocks(blocks)
			forged[1].Proof = forged[1].Proof + 1
			err := CheckChain(forged)
			So(errors.Cause(err), ShouldBeIn, ErrInvalidProof, ErrParentNotMatch)
			So(errors.Cause(CheckChain(nil)), ShouldEqual, ErrEmptyChain)
		})
	})
}
