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
	"context"
	"expvar"
	"net/http"
	"runtime"
	"time"

	mw "github.com/zserge/metric"
)

const (
	expvarChainLength    = "ledger:chain_length"
	expvarPendingRecords = "ledger:pending_records"
	expvarKnownPeers     = "ledger:known_peers"
	expvarNumGoroutine   = "go:numgoroutine"
	expvarAlloc          = "go:alloc"

	mb = 1 << 20
)

// DefaultSampleInterval is the period RunDashboardSampler samples at.
var DefaultSampleInterval = 5 * time.Second

func publishGauge(name string) mw.Metric {
	var val expvar.Var
	if val = expvar.Get(name); val == nil {
		expvar.Publish(name, mw.NewGauge("1m1s", "5m5s", "1h1m"))
		val = expvar.Get(name)
	}
	return val.(mw.Metric)
}

// SampleDashboard adds one sample of the ledger and runtime state to the dashboard gauges.
func SampleDashboard(src ChainSource) {
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	publishGauge(expvarNumGoroutine).Add(float64(runtime.NumGoroutine()))
	publishGauge(expvarAlloc).Add(float64(m.Alloc) / mb)
	if src == nil {
		return
	}
	publishGauge(expvarChainLength).Add(ChainLength(src))
	publishGauge(expvarPendingRecords).Add(PendingRecords(src))
	publishGauge(expvarKnownPeers).Add(KnownPeers(src))
}

// RunDashboardSampler samples src every interval until ctx is done.
func RunDashboardSampler(ctx context.Context, src ChainSource, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	SampleDashboard(src)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			SampleDashboard(src)
		}
	}
}

// DashboardHandler renders the sampled gauges as the /debug/metrics web page.
func DashboardHandler() http.Handler {
	return mw.Handler(mw.Exposed)
}
