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

// Package consensus reconciles the local chain with registered peers by adopting the longest
// valid chain.
package consensus

import (
	"context"
	"time"

	"github.com/ivpusic/grpool"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/blockproducer"
	"github.com/CovenantSQL/provenance/client"
	"github.com/CovenantSQL/provenance/metric"
	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

const (
	// DefaultPeerTimeout bounds the chain fetch of a single peer.
	DefaultPeerTimeout = 5 * time.Second
	// DefaultWorkers is the number of peers fetched concurrently.
	DefaultWorkers = 8
)

// Config is the consensus engine configuration.
type Config struct {
	Chain *blockproducer.Chain
	// Client fetches peer chains, a client bounded by PeerTimeout is created when nil.
	Client      *client.Client
	PeerTimeout time.Duration
	Workers     int
	Recorder    *metric.Recorder
}

// Engine resolves conflicts between the local chain and its peers.
type Engine struct {
	chain    *blockproducer.Chain
	client   *client.Client
	workers  int
	recorder *metric.Recorder
}

type candidate struct {
	peer   string
	blocks []*types.Block
}

// NewEngine creates a consensus engine.
func NewEngine(cfg *Config) (e *Engine, err error) {
	if cfg == nil || cfg.Chain == nil {
		err = errors.New("consensus engine requires a chain")
		return
	}
	e = &Engine{
		chain:    cfg.Chain,
		client:   cfg.Client,
		workers:  cfg.Workers,
		recorder: cfg.Recorder,
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	if e.client == nil {
		timeout := cfg.PeerTimeout
		if timeout <= 0 {
			timeout = DefaultPeerTimeout
		}
		e.client = client.New(&client.Config{Timeout: timeout})
	}
	return
}

// fetch returns the chain of peer when it is valid and longer than localLength.
func (e *Engine) fetch(ctx context.Context, peer string, localLength int) (c *candidate) {
	resp, err := e.client.FetchChain(ctx, peer)
	if err != nil {
		log.WithField("peer", peer).WithError(err).Warning("peer contributes nothing")
		e.recorder.PeerFailed(peer)
		return
	}
	if resp.Length <= localLength {
		log.WithFields(log.Fields{
			"peer":   peer,
			"length": resp.Length,
			"local":  localLength,
		}).Debug("peer chain is not longer")
		return
	}
	if err = blockproducer.CheckChain(resp.Chain); err != nil {
		log.WithFields(log.Fields{
			"peer":   peer,
			"length": resp.Length,
		}).WithError(err).Warning("peer chain is invalid")
		e.recorder.PeerFailed(peer)
		return
	}
	return &candidate{peer: peer, blocks: resp.Chain}
}

// ResolveConflicts fetches and validates every peer chain concurrently without holding the chain
// lock, then adopts the longest valid one when it is longer than the local chain was at the
// start. Ties go to the first peer in sorted order. It returns ErrChainChanged if the local
// chain grew past the winner meanwhile.
func (e *Engine) ResolveConflicts(ctx context.Context) (replaced bool, err error) {
	var (
		peers       = e.chain.Peers()
		localLength = e.chain.Length()
		results     = make([]*candidate, len(peers))
		best        *candidate
	)
	if len(peers) == 0 {
		return
	}

	workers := e.workers
	if workers > len(peers) {
		workers = len(peers)
	}
	pool := grpool.NewPool(workers, len(peers))
	defer pool.Release()
	pool.WaitCount(len(peers))
	for i, peer := range peers {
		i, peer := i, peer
		pool.JobQueue <- func() {
			defer pool.JobDone()
			results[i] = e.fetch(ctx, peer, localLength)
		}
	}
	pool.WaitAll()

	for _, c := range results {
		if c != nil && (best == nil || len(c.blocks) > len(best.blocks)) {
			best = c
		}
	}
	if best == nil {
		log.WithFields(log.Fields{
			"peers":  len(peers),
			"length": localLength,
		}).Info("local chain is authoritative")
		return
	}

	if err = e.chain.ReplaceChain(best.blocks, localLength); err != nil {
		if errors.Cause(err) == blockproducer.ErrChainChanged {
			e.recorder.Conflict("consensus")
		}
		return
	}
	log.WithFields(log.Fields{
		"peer":     best.peer,
		"length":   len(best.blocks),
		"previous": localLength,
	}).Info("adopted peer chain")
	replaced = true
	return
}
