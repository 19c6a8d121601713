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

package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CovenantSQL/provenance/chainbus"
)

// Recorder counts ledger events. All methods are no-ops on a nil Recorder.
type Recorder struct {
	blocksSealed     prometheus.Counter
	recordsSealed    prometheus.Counter
	recordsStaged    prometheus.Counter
	replacements     prometheus.Counter
	duplicates       prometheus.Counter
	snapshotFailures prometheus.Counter
	conflicts        *prometheus.CounterVec
	peerFailures     *prometheus.CounterVec
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// NewRecorder creates unregistered event counters.
func NewRecorder() *Recorder {
	return &Recorder{
		blocksSealed:     newCounter("blocks_sealed_total", "Blocks appended by mining."),
		recordsSealed:    newCounter("records_sealed_total", "Records sealed into mined blocks."),
		recordsStaged:    newCounter("records_staged_total", "Records staged for the next block."),
		replacements:     newCounter("chain_replacements_total", "Local chains replaced by consensus."),
		duplicates:       newCounter("duplicates_found_total", "Near duplicate images rejected."),
		snapshotFailures: newCounter("snapshot_failures_total", "Chain snapshots that failed to persist."),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Operations refused because the chain changed underneath them.",
		}, []string{"op"}),
		peerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_failures_total",
			Help:      "Peer chain fetches that contributed nothing.",
		}, []string{"peer"}),
	}
}

// Collectors returns every counter of the recorder.
func (r *Recorder) Collectors() []prometheus.Collector {
	if r == nil {
		return nil
	}
	return []prometheus.Collector{
		r.blocksSealed, r.recordsSealed, r.recordsStaged, r.replacements,
		r.duplicates, r.snapshotFailures, r.conflicts, r.peerFailures,
	}
}

// Subscribe counts chain events published on bus.
func (r *Recorder) Subscribe(bus chainbus.Bus) (err error) {
	if r == nil {
		return
	}
	if _, err = bus.Subscribe(chainbus.TopicSealed, func(e *chainbus.Event) {
		r.blocksSealed.Inc()
		if e.Block != nil {
			r.recordsSealed.Add(float64(len(e.Block.Data)))
		}
	}); err != nil {
		return
	}
	if _, err = bus.Subscribe(chainbus.TopicStaged, func(e *chainbus.Event) {
		r.recordsStaged.Inc()
	}); err != nil {
		return
	}
	_, err = bus.Subscribe(chainbus.TopicReplaced, func(e *chainbus.Event) {
		r.replacements.Inc()
	})
	return
}

// Conflict counts an operation refused with a conflict.
func (r *Recorder) Conflict(op string) {
	if r == nil {
		return
	}
	r.conflicts.WithLabelValues(op).Inc()
}

// PeerFailed counts a peer that contributed nothing to consensus.
func (r *Recorder) PeerFailed(peer string) {
	if r == nil {
		return
	}
	r.peerFailures.WithLabelValues(peer).Inc()
}

// DuplicateFound counts a rejected near duplicate.
func (r *Recorder) DuplicateFound() {
	if r == nil {
		return
	}
	r.duplicates.Inc()
}

// SnapshotFailed counts a failed snapshot.
func (r *Recorder) SnapshotFailed() {
	if r == nil {
		return
	}
	r.snapshotFailures.Inc()
}
