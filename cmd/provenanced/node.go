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

package main

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CovenantSQL/provenance/api"
	"github.com/CovenantSQL/provenance/blockproducer"
	"github.com/CovenantSQL/provenance/chainbus"
	"github.com/CovenantSQL/provenance/conf"
	"github.com/CovenantSQL/provenance/consensus"
	"github.com/CovenantSQL/provenance/dedup"
	"github.com/CovenantSQL/provenance/metric"
	"github.com/CovenantSQL/provenance/storage"
	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

const (
	snapshotRetries       = 3
	snapshotRetryInterval = 100 * time.Millisecond
)

type node struct {
	cfg      *conf.Config
	store    storage.Gateway
	bus      chainbus.Bus
	chain    *blockproducer.Chain
	recorder *metric.Recorder
	service  *api.Service
	cancel   context.CancelFunc

	persistLock sync.Mutex
	persisted   int
}

// restore loads the last snapshot, a missing or unusable one starts a fresh chain.
func restore(store storage.Gateway) (blocks []*types.Block) {
	blocks, err := store.Restore()
	switch {
	case err == nil:
		log.WithField("length", len(blocks)).Info("restored chain snapshot")
	case errors.Cause(err) == storage.ErrNoSnapshot:
		log.Info("no chain snapshot, start from genesis")
	default:
		log.WithError(err).Warning("restore chain snapshot failed, start from genesis")
		blocks = nil
	}
	return
}

func newNode(cfg *conf.Config) (n *node, err error) {
	n = &node{
		cfg:      cfg,
		bus:      chainbus.New(),
		recorder: metric.NewRecorder(),
	}
	if n.store, err = storage.Open(cfg.Storage.Backend, cfg.Storage.Path); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			n.store.Close()
			n = nil
		}
	}()

	blocks := restore(n.store)
	n.persisted = len(blocks)
	if n.chain, err = blockproducer.NewChain(&blockproducer.Config{
		NodeID:      cfg.NodeID,
		Blocks:      blocks,
		Peers:       cfg.Peers,
		Bus:         n.bus,
		MineRetries: cfg.MineRetries,
	}); err != nil {
		err = errors.Wrap(err, "init chain failed")
		return
	}
	if err = n.recorder.Subscribe(n.bus); err != nil {
		return
	}
	for _, topic := range []string{chainbus.TopicSealed, chainbus.TopicReplaced} {
		if _, err = n.bus.SubscribeAsync(topic, n.persist, true); err != nil {
			return
		}
	}

	var (
		engine   *consensus.Engine
		detector *dedup.Detector
		registry *prometheus.Registry
	)
	if engine, err = consensus.NewEngine(&consensus.Config{
		Chain:       n.chain,
		PeerTimeout: cfg.PeerTimeout,
		Workers:     cfg.ConsensusWorkers,
		Recorder:    n.recorder,
	}); err != nil {
		return
	}
	if detector, err = dedup.NewDetector(cfg.DedupThreshold, cfg.DedupCacheSize); err != nil {
		return
	}
	if cfg.Metrics.Enabled {
		if registry, err = metric.NewRegistry(n.chain, n.recorder); err != nil {
			err = errors.Wrap(err, "register metrics failed")
			return
		}
	}
	n.service, err = api.NewService(&api.Config{
		NodeID:    cfg.NodeID,
		Chain:     n.chain,
		Consensus: engine,
		Detector:  detector,
		Recorder:  n.recorder,
		Registry:  registry,
		Dashboard: cfg.Metrics.Enabled,
	})
	return
}

func snapshotBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = snapshotRetryInterval
	return backoff.WithMaxRetries(b, snapshotRetries)
}

// persist snapshots the chain carried by a sealed or replaced event. Chains only grow, so an
// event older than the last persisted chain is dropped.
func (n *node) persist(e *chainbus.Event) {
	n.persistLock.Lock()
	defer n.persistLock.Unlock()
	if len(e.Blocks) < n.persisted {
		return
	}
	err := backoff.Retry(func() error {
		return n.store.Snapshot(e.Blocks)
	}, snapshotBackOff())
	if err != nil {
		log.WithFields(log.Fields{
			"topic":  e.Topic,
			"length": len(e.Blocks),
		}).WithError(err).Error("persist chain snapshot failed")
		n.recorder.SnapshotFailed()
		return
	}
	n.persisted = len(e.Blocks)
}

func (n *node) start() (err error) {
	if err = n.service.Start(n.cfg.ListenAddr); err != nil {
		return
	}
	if n.cfg.Metrics.Enabled {
		var ctx context.Context
		ctx, n.cancel = context.WithCancel(context.Background())
		go metric.RunDashboardSampler(ctx, n.chain, n.cfg.Metrics.SampleInterval)
	}
	return
}

// stop shuts the api down, writes a final snapshot and releases the storage.
func (n *node) stop() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.ShutdownTimeout)
	defer cancel()
	if err = n.service.Stop(ctx); err != nil {
		log.WithError(err).Warning("stop api server failed")
	}
	if n.cancel != nil {
		n.cancel()
	}
	n.chain.Stop()

	blocks := n.chain.Blocks()
	n.persist(&chainbus.Event{Topic: "shutdown", Blocks: blocks})
	if cerr := n.store.Close(); cerr != nil {
		log.WithError(cerr).Error("close storage failed")
		if err == nil {
			err = cerr
		}
	}
	log.WithField("length", len(blocks)).Info("node stopped")
	return
}
