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

// Package api serves the node operations over http.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CovenantSQL/provenance/blockproducer"
	"github.com/CovenantSQL/provenance/consensus"
	"github.com/CovenantSQL/provenance/dedup"
	"github.com/CovenantSQL/provenance/metric"
	"github.com/CovenantSQL/provenance/utils/log"
)

// DefaultTimeout bounds reading a request and writing its response.
const DefaultTimeout = 30 * time.Second

// Config configs the api service.
type Config struct {
	NodeID string
	Chain  *blockproducer.Chain
	// Consensus resolves conflicts before staging, an engine with default settings is created
	// when nil.
	Consensus *consensus.Engine
	// Detector finds near duplicates, a detector with the default threshold is created when nil.
	Detector *dedup.Detector
	Recorder *metric.Recorder
	// Registry is served at /metrics when not nil.
	Registry *prometheus.Registry
	// Dashboard serves the sampled expvar gauges at /debug/metrics.
	Dashboard bool
	Timeout   time.Duration
}

// Service is the http api of a node.
type Service struct {
	api      *nodeAPI
	handler  http.Handler
	timeout  time.Duration
	server   *http.Server
	listener net.Listener
	stopOnce sync.Once
}

// NewService builds the routes of the node api.
func NewService(cfg *Config) (s *Service, err error) {
	if cfg == nil || cfg.Chain == nil {
		err = ErrNoChain
		return
	}
	a := &nodeAPI{
		nodeID:    cfg.NodeID,
		chain:     cfg.Chain,
		consensus: cfg.Consensus,
		detector:  cfg.Detector,
		recorder:  cfg.Recorder,
		quit:      make(chan struct{}),
	}
	if a.consensus == nil {
		if a.consensus, err = consensus.NewEngine(&consensus.Config{
			Chain:    cfg.Chain,
			Recorder: cfg.Recorder,
		}); err != nil {
			return
		}
	}
	if a.detector == nil {
		if a.detector, err = dedup.NewDetector(dedup.DefaultThreshold, dedup.DefaultCacheSize); err != nil {
			return
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		sendResponse(http.StatusOK, true, nil, nil, rw)
	}).Methods("GET")
	router.HandleFunc("/new", a.NewRecord).Methods("POST")
	router.HandleFunc("/mine_block", a.MineBlock).Methods("GET")
	router.HandleFunc("/get_chain", a.GetChain).Methods("GET")
	router.HandleFunc("/valid_chain", a.ValidChain).Methods("GET")
	router.HandleFunc("/connect_node", a.ConnectNode).Methods("POST")
	router.HandleFunc("/consensus", a.Consensus).Methods("GET")
	router.HandleFunc("/users_blocks/{owner}", a.UsersBlocks).Methods("GET")
	router.HandleFunc("/check_duplicate", a.CheckDuplicate).Methods("POST")
	router.HandleFunc("/events", a.Events).Methods("GET")
	if cfg.Registry != nil {
		router.Handle("/metrics", metric.Handler(cfg.Registry)).Methods("GET")
	}
	if cfg.Dashboard {
		router.Handle("/debug/metrics", metric.DashboardHandler()).Methods("GET")
	}

	s = &Service{
		api: a,
		handler: handlers.CORS(
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(router),
		timeout: cfg.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	return
}

// Handler returns the routes of the service.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Start binds listenAddr and serves in background.
func (s *Service) Start(listenAddr string) (err error) {
	if s.listener, err = net.Listen("tcp", listenAddr); err != nil {
		err = errors.Wrapf(err, "listen on %s failed", listenAddr)
		return
	}
	s.server = &http.Server{
		WriteTimeout: s.timeout,
		ReadTimeout:  s.timeout,
		IdleTimeout:  s.timeout,
		Handler:      s.handler,
	}
	server, listener := s.server, s.listener
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("api server stopped unexpectedly")
		}
	}()
	log.WithField("addr", listener.Addr().String()).Info("api server started")
	return
}

// Addr returns the bound address, empty before Start.
func (s *Service) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully and closes the event streams.
func (s *Service) Stop(ctx context.Context) (err error) {
	s.stopOnce.Do(func() {
		close(s.api.quit)
	})
	if s.server == nil {
		return
	}
	return s.server.Shutdown(ctx)
}
