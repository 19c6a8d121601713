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
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/utils/log"
)

// NormalizePeerAddress reduces "http://host:port/path", "host:port" and similar forms to
// the canonical lowercase "host:port".
func NormalizePeerAddress(address string) (peer string, err error) {
	raw := strings.TrimSpace(address)
	if raw == "" {
		err = errors.Wrap(ErrInvalidPeerAddress, "empty address")
		return
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	var u *url.URL
	if u, err = url.Parse(raw); err != nil {
		err = errors.Wrapf(ErrInvalidPeerAddress, "parse %q: %v", address, err)
		return
	}
	if u.Hostname() == "" {
		err = errors.Wrapf(ErrInvalidPeerAddress, "no host in %q", address)
		return
	}
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		var n uint64
		if n, err = strconv.ParseUint(port, 10, 16); err != nil || n == 0 {
			err = errors.Wrapf(ErrInvalidPeerAddress, "bad port in %q", address)
			return
		}
		peer = net.JoinHostPort(host, strconv.FormatUint(n, 10))
		return
	}
	if strings.Contains(host, ":") {
		peer = "[" + host + "]"
		return
	}
	peer = host
	return
}

// RegisterPeer adds the normalized address to the known peers, registering twice is a no-op.
func (c *Chain) RegisterPeer(address string) (peer string, err error) {
	if peer, err = NormalizePeerAddress(address); err != nil {
		return
	}
	c.Lock()
	added := c.peers.Add(peer)
	c.Unlock()
	if added {
		log.WithFields(log.Fields{
			"node": c.nodeID,
			"peer": peer,
		}).Info("registered peer")
	}
	return
}

// Peers returns the known peers in sorted order.
func (c *Chain) Peers() (peers []string) {
	c.RLock()
	peers = make([]string, 0, c.peers.Cardinality())
	for _, p := range c.peers.ToSlice() {
		peers = append(peers, p.(string))
	}
	c.RUnlock()
	sort.Strings(peers)
	return
}
