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

// Package blockproducer holds the authoritative ledger state of a node and the operations that
// stage records and seal them into blocks.
package blockproducer

import (
	"context"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/chainbus"
	"github.com/CovenantSQL/provenance/pow/cpuminer"
	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

// Chain defines the ledger state.
type Chain struct {
	// The following fields are read-only in runtime
	nodeID      string
	bus         chainbus.Bus
	miner       *cpuminer.CPUMiner
	quit        chan struct{}
	stopOnce    sync.Once
	mineRetries int

	sync.RWMutex // protects following fields
	blocks       []*types.Block
	pending      []*types.Record
	pendingOwner string
	peers        mapset.Set
}

// NewChain creates the ledger state, from cfg.Blocks if provided or from a new genesis block.
func NewChain(cfg *Config) (c *Chain, err error) {
	var blocks []*types.Block
	if len(cfg.Blocks) > 0 {
		if err = CheckChain(cfg.Blocks); err != nil {
			err = errors.Wrap(ErrInvalidChain, err.Error())
			return
		}
		blocks = copyBlocks(cfg.Blocks)
	} else {
		blocks = []*types.Block{types.NewGenesisBlock()}
	}

	quit := make(chan struct{})
	c = &Chain{
		nodeID:      cfg.NodeID,
		bus:         cfg.Bus,
		miner:       cpuminer.NewCPUMiner(quit),
		quit:        quit,
		mineRetries: cfg.MineRetries,
		blocks:      blocks,
		peers:       mapset.NewThreadUnsafeSet(),
	}
	if c.bus == nil {
		c.bus = chainbus.New()
	}
	if c.mineRetries <= 0 {
		c.mineRetries = DefaultMineRetries
	}
	for _, p := range cfg.Peers {
		if _, err = c.RegisterPeer(p); err != nil {
			c = nil
			return
		}
	}

	log.WithFields(log.Fields{
		"node":   c.nodeID,
		"length": len(blocks),
	}).Info("chain initialized")
	return
}

// Bus returns the bus chain events are published to.
func (c *Chain) Bus() chainbus.Bus {
	return c.bus
}

// Stop interrupts running mining jobs and waits for pending event handlers.
func (c *Chain) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
	})
	c.bus.WaitAsync()
}

func copyBlocks(blocks []*types.Block) []*types.Block {
	if blocks == nil {
		return nil
	}
	return deepcopy.Copy(blocks).([]*types.Block)
}

// Blocks returns a private copy of the whole chain.
func (c *Chain) Blocks() []*types.Block {
	c.RLock()
	defer c.RUnlock()
	return copyBlocks(c.blocks)
}

// Length returns the number of blocks including genesis.
func (c *Chain) Length() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.blocks)
}

// LastBlock returns a copy of the chain tip.
func (c *Chain) LastBlock() *types.Block {
	c.RLock()
	defer c.RUnlock()
	return deepcopy.Copy(c.blocks[len(c.blocks)-1]).(*types.Block)
}

// Pending returns copies of the staged records and their owner.
func (c *Chain) Pending() (owner string, records []*types.Record) {
	c.RLock()
	defer c.RUnlock()
	owner = c.pendingOwner
	records = make([]*types.Record, 0, len(c.pending))
	for _, r := range c.pending {
		rc := *r
		records = append(records, &rc)
	}
	return
}

// BlocksByOwner returns copies of the blocks sealed for owner, oldest first.
func (c *Chain) BlocksByOwner(owner string) (blocks []*types.Block) {
	c.RLock()
	var owned []*types.Block
	for _, b := range c.blocks {
		if b.Owner == owner {
			owned = append(owned, b)
		}
	}
	c.RUnlock()
	blocks = copyBlocks(owned)
	if blocks == nil {
		blocks = []*types.Block{}
	}
	return
}

// ValidateChain checks the local chain.
func (c *Chain) ValidateChain() bool {
	return ValidateChain(c.Blocks())
}

// StageRecord appends a copy of r to the pending records of the next block and makes owner the
// owner of that block. The returned index is where the record lands if the next seal happens on
// the current chain, it is advisory only.
func (c *Chain) StageRecord(owner string, r *types.Record) (index int, err error) {
	if owner == "" {
		err = errors.Wrap(types.ErrInvalidRecord, "empty owner")
		return
	}
	if err = r.Validate(); err != nil {
		return
	}
	rc := *r

	c.Lock()
	c.pending = append(c.pending, &rc)
	c.pendingOwner = owner
	index = len(c.blocks) + 1
	staged := len(c.pending)
	c.Unlock()

	log.WithFields(log.Fields{
		"owner":   owner,
		"index":   index,
		"pending": staged,
	}).Debug("staged record")
	c.bus.Publish(&chainbus.Event{Topic: chainbus.TopicStaged, Record: &rc})
	return
}

// Tip returns the proof and digest of the last block, the inputs for mining the next one.
func (c *Chain) Tip() (lastProof int64, lastHash string, err error) {
	c.RLock()
	last := c.blocks[len(c.blocks)-1]
	lastProof = last.Proof
	lastHash, err = types.HashBlock(last)
	c.RUnlock()
	return
}

// SealBlock appends a block built from the pending records. previousHash is the tip digest the
// proof was solved against, empty means the current tip. A proof that does not solve the current
// tip, or a previousHash that is no longer the tip, yields ErrStaleProof and leaves state intact.
func (c *Chain) SealBlock(proof int64, previousHash string) (b *types.Block, err error) {
	var snapshot []*types.Block

	c.Lock()
	last := c.blocks[len(c.blocks)-1]
	var tipHash string
	if tipHash, err = types.HashBlock(last); err != nil {
		c.Unlock()
		err = errors.Wrap(err, "hash tip failed")
		return
	}
	if previousHash != "" && previousHash != tipHash {
		c.Unlock()
		err = errors.Wrapf(ErrStaleProof, "tip moved to block %d", last.Index)
		return
	}
	if !cpuminer.ValidProof(last.Proof, proof) {
		c.Unlock()
		err = errors.Wrapf(ErrStaleProof, "proof %d does not solve tip %d", proof, last.Index)
		return
	}
	sealed := &types.Block{
		Index:        last.Index + 1,
		Time:         time.Now().UTC(),
		Owner:        c.pendingOwner,
		Data:         c.pending,
		Proof:        proof,
		PreviousHash: tipHash,
	}
	if sealed.Data == nil {
		sealed.Data = []*types.Record{}
	}
	c.blocks = append(c.blocks, sealed)
	c.pending = nil
	c.pendingOwner = ""
	b = deepcopy.Copy(sealed).(*types.Block)
	snapshot = copyBlocks(c.blocks)
	c.Unlock()

	log.WithFields(log.Fields{
		"node":    c.nodeID,
		"index":   b.Index,
		"owner":   b.Owner,
		"records": len(b.Data),
	}).Info("sealed block")
	c.bus.Publish(&chainbus.Event{Topic: chainbus.TopicSealed, Block: b, Blocks: snapshot})
	return
}

// Mine solves the puzzle posed by the tip outside the lock and seals the pending records.
// A stale proof is retried against the new tip.
func (c *Chain) Mine(ctx context.Context) (b *types.Block, err error) {
	for attempt := 0; attempt <= c.mineRetries; attempt++ {
		var (
			lastProof, proof int64
			lastHash         string
		)
		if lastProof, lastHash, err = c.Tip(); err != nil {
			return
		}
		if proof, err = c.miner.CalculateProof(ctx, lastProof); err != nil {
			err = errors.Wrap(err, "calculate proof failed")
			return
		}
		if b, err = c.SealBlock(proof, lastHash); err == nil {
			return
		}
		if errors.Cause(err) != ErrStaleProof {
			return
		}
		log.WithFields(log.Fields{
			"attempt": attempt,
		}).WithError(err).Warning("stale proof, retry mining")
	}
	return
}

// ReplaceChain adopts candidate wholesale when it is valid and longer than the local chain.
// expectedLength is the local length the caller compared candidate against, a local chain that
// changed since then and is no longer shorter yields ErrChainChanged. Pending records are kept.
func (c *Chain) ReplaceChain(candidate []*types.Block, expectedLength int) (err error) {
	if err = CheckChain(candidate); err != nil {
		err = errors.Wrap(ErrInvalidChain, err.Error())
		return
	}
	adopted := copyBlocks(candidate)

	c.Lock()
	local := len(c.blocks)
	if len(adopted) <= local {
		c.Unlock()
		if local != expectedLength {
			err = errors.Wrapf(ErrChainChanged, "local length %d, expected %d, candidate %d",
				local, expectedLength, len(adopted))
		} else {
			err = errors.Wrapf(ErrChainChanged, "candidate length %d is not longer than %d",
				len(adopted), local)
		}
		return
	}
	c.blocks = adopted
	snapshot := copyBlocks(adopted)
	c.Unlock()

	log.WithFields(log.Fields{
		"node":     c.nodeID,
		"previous": local,
		"length":   len(snapshot),
	}).Info("replaced chain")
	c.bus.Publish(&chainbus.Event{
		Topic:  chainbus.TopicReplaced,
		Block:  snapshot[len(snapshot)-1],
		Blocks: snapshot,
	})
	return
}
