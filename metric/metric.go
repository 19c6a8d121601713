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

// Package metric exposes ledger statistics to prometheus and to an expvar dashboard.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"

	"github.com/CovenantSQL/provenance/types"
)

const namespace = "provenance"

// ChainSource provides the ledger state metrics are computed from.
type ChainSource interface {
	Length() int
	Pending() (owner string, records []*types.Record)
	Peers() []string
}

// NewRegistry returns a registry with the runtime collectors, the ledger collector of src and
// the counters of rec.
func NewRegistry(src ChainSource, rec *Recorder) (registry *prometheus.Registry, err error) {
	registry = prometheus.NewRegistry()
	collectors := []prometheus.Collector{
		version.NewCollector(namespace),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		NewLedgerCollector(src),
	}
	if rec != nil {
		collectors = append(collectors, rec.Collectors()...)
	}
	for _, c := range collectors {
		if err = registry.Register(c); err != nil {
			registry = nil
			return
		}
	}
	return
}

// Handler serves the registry in the prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
