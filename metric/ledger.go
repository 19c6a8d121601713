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
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ledgerStatsMetrics provide description, value, and value type for ledger stat metrics.
type ledgerStatsMetrics []struct {
	desc    *prometheus.Desc
	eval    func(ChainSource) float64
	valType prometheus.ValueType
}

// LedgerCollector collects ledger state metrics at scrape time.
type LedgerCollector struct {
	src ChainSource

	// metrics to describe and collect
	metrics ledgerStatsMetrics
}

func ledgerStatNamespace(s string) string {
	return fmt.Sprintf("%s_ledger_%s", namespace, s)
}

// NewLedgerCollector returns a new LedgerCollector reading src.
func NewLedgerCollector(src ChainSource) prometheus.Collector {
	return &LedgerCollector{
		src: src,
		metrics: ledgerStatsMetrics{
			{
				desc: prometheus.NewDesc(
					ledgerStatNamespace("chain_length"),
					"Number of blocks in the local chain, genesis included.",
					nil,
					nil,
				),
				eval:    ChainLength,
				valType: prometheus.GaugeValue,
			},
			{
				desc: prometheus.NewDesc(
					ledgerStatNamespace("pending_records"),
					"Number of records staged for the next block.",
					nil,
					nil,
				),
				eval:    PendingRecords,
				valType: prometheus.GaugeValue,
			},
			{
				desc: prometheus.NewDesc(
					ledgerStatNamespace("known_peers"),
					"Number of registered peers.",
					nil,
					nil,
				),
				eval:    KnownPeers,
				valType: prometheus.GaugeValue,
			},
		},
	}
}

// Describe returns all descriptions of the collector.
func (lc *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, i := range lc.metrics {
		ch <- i.desc
	}
}

// Collect returns the current state of all metrics of the collector.
func (lc *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	if lc.src == nil {
		return
	}
	for _, i := range lc.metrics {
		ch <- prometheus.MustNewConstMetric(i.desc, i.valType, i.eval(lc.src))
	}
}

// ChainLength gets the local chain length.
func ChainLength(src ChainSource) float64 {
	return float64(src.Length())
}

// PendingRecords gets the staged record count.
func PendingRecords(src ChainSource) float64 {
	_, records := src.Pending()
	return float64(len(records))
}

// KnownPeers gets the registered peer count.
func KnownPeers(src ChainSource) float64 {
	return float64(len(src.Peers()))
}
