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

// Package client talks to provenance nodes over their http api, for peers fetching chains and
// for the command line tool.
package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/sling"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

// Client calls node apis.
type Client struct {
	doer    *limitedDoer
	timeout time.Duration
}

// limitedDoer truncates reply bodies, so a peer cannot make the decoder hold more than limit
// bytes; a truncated json document fails to decode.
type limitedDoer struct {
	client *http.Client
	limit  int64
}

type limitedBody struct {
	io.Reader
	io.Closer
}

func (d *limitedDoer) Do(req *http.Request) (res *http.Response, err error) {
	if res, err = d.client.Do(req); err != nil {
		return
	}
	res.Body = &limitedBody{
		Reader: io.LimitReader(res.Body, d.limit),
		Closer: res.Body,
	}
	return
}

// New returns a client with cfg, NewConfig() is used when cfg is nil.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := &Client{
		doer: &limitedDoer{
			client: cfg.HTTPClient,
			limit:  cfg.MaxResponseBytes,
		},
		timeout: cfg.Timeout,
	}
	if c.doer.client == nil {
		c.doer.client = &http.Client{}
	}
	if c.doer.limit <= 0 {
		c.doer.limit = DefaultMaxResponseBytes
	}
	return c
}

func (c *Client) newSling(node string) (s *sling.Sling, err error) {
	var base string
	if base, err = NodeURL(node); err != nil {
		return
	}
	s = sling.New().Doer(c.doer).Base(base).Set("Accept", "application/json")
	return
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// FetchChain gets the chain of peer. Every failure, including a non-success status, a malformed
// body or a length field disagreeing with the chain, is reported as ErrPeerUnavailable.
func (c *Client) FetchChain(ctx context.Context, peer string) (resp *ChainResponse, err error) {
	var (
		s   *sling.Sling
		req *http.Request
		res *http.Response
		cr  ChainResponse
	)
	defer func() {
		if err != nil {
			err = errors.Wrapf(ErrPeerUnavailable, "peer %s: %v", peer, err)
		}
	}()

	if s, err = c.newSling(peer); err != nil {
		return
	}
	if req, err = s.Get("get_chain").Request(); err != nil {
		return
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if res, err = s.Do(req.WithContext(ctx), &cr, nil); err != nil {
		return
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		err = errors.Errorf("unexpected status %d", res.StatusCode)
		return
	}
	if len(cr.Chain) == 0 || cr.Length != len(cr.Chain) {
		err = errors.Errorf("malformed chain: length %d with %d blocks", cr.Length, len(cr.Chain))
		return
	}

	log.WithFields(log.Fields{
		"peer":   peer,
		"length": cr.Length,
	}).Debug("fetched peer chain")
	resp = &cr
	return
}

// call sends the request built by s and decodes the envelope data into data, for both success
// and failure responses. A failure envelope yields ErrRequestFailed with the returned status.
func (c *Client) call(ctx context.Context, s *sling.Sling, data interface{}) (code int, err error) {
	var (
		req              *http.Request
		res              *http.Response
		success, failure Response
	)
	if req, err = s.Request(); err != nil {
		err = errors.Wrap(err, "build request failed")
		return
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if res, err = s.Do(req.WithContext(ctx), &success, &failure); err != nil {
		err = errors.Wrapf(ErrRequestFailed, "%s %s: %v", req.Method, req.URL, err)
		return
	}
	code = res.StatusCode
	env := &success
	if code < 200 || code > 299 {
		env = &failure
	}
	if data != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err = json.Unmarshal(env.Data, data); err != nil {
			err = errors.Wrapf(ErrRequestFailed, "decode %s %s data: %v", req.Method, req.URL, err)
			return
		}
	}
	if !env.Success {
		err = errors.Wrapf(ErrRequestFailed, "%s %s: %d %s", req.Method, req.URL, code, env.Status)
	}
	return
}

// Chain returns the chain of node.
func (c *Client) Chain(ctx context.Context, node string) (blocks []*types.Block, err error) {
	var resp *ChainResponse
	if resp, err = c.FetchChain(ctx, node); err != nil {
		return
	}
	blocks = resp.Chain
	return
}

// AddRecord stages r on node. A near duplicate image yields ErrDuplicateImage and the blocks
// already holding it.
func (c *Client) AddRecord(ctx context.Context, node string, r *types.Record) (
	res *NewRecordResult, dup *DuplicateResult, err error,
) {
	var s *sling.Sling
	if s, err = c.newSling(node); err != nil {
		return
	}
	var raw json.RawMessage
	code, err := c.call(ctx, s.Post("new").BodyJSON(r), &raw)
	if code == http.StatusConflict && len(raw) > 0 {
		dup = &DuplicateResult{}
		if uerr := json.Unmarshal(raw, dup); uerr == nil && dup.Duplicate {
			err = errors.Wrapf(ErrDuplicateImage, "%d blocks", len(dup.FoundedImages))
			return
		}
		dup = nil
	}
	if err != nil {
		return
	}
	res = &NewRecordResult{}
	if len(raw) > 0 {
		if err = json.Unmarshal(raw, res); err != nil {
			err = errors.Wrap(err, "decode record result failed")
		}
	}
	return
}

// Mine asks node to seal its pending records.
func (c *Client) Mine(ctx context.Context, node string) (b *types.Block, err error) {
	var s *sling.Sling
	if s, err = c.newSling(node); err != nil {
		return
	}
	b = &types.Block{}
	if _, err = c.call(ctx, s.Get("mine_block"), b); err != nil {
		b = nil
	}
	return
}

// ValidChain asks node to check its own chain.
func (c *Client) ValidChain(ctx context.Context, node string) (res *ValidResult, err error) {
	var s *sling.Sling
	if s, err = c.newSling(node); err != nil {
		return
	}
	res = &ValidResult{}
	if _, err = c.call(ctx, s.Get("valid_chain"), res); err != nil {
		res = nil
	}
	return
}

// ConnectNodes registers peers on node and returns all peers it knows.
func (c *Client) ConnectNodes(ctx context.Context, node string, peers []string) (res *ConnectResult, err error) {
	var s *sling.Sling
	if s, err = c.newSling(node); err != nil {
		return
	}
	res = &ConnectResult{}
	if _, err = c.call(ctx, s.Post("connect_node").BodyJSON(&ConnectRequest{Nodes: peers}), res); err != nil {
		res = nil
	}
	return
}

// Consensus asks node to resolve conflicts with its peers.
func (c *Client) Consensus(ctx context.Context, node string) (res *ConsensusResult, err error) {
	var s *sling.Sling
	if s, err = c.newSling(node); err != nil {
		return
	}
	res = &ConsensusResult{}
	if _, err = c.call(ctx, s.Get("consensus"), res); err != nil {
		res = nil
	}
	return
}

// UserBlocks returns the blocks node sealed for owner.
func (c *Client) UserBlocks(ctx context.Context, node, owner string) (blocks []*types.Block, err error) {
	var s *sling.Sling
	if s, err = c.newSling(node); err != nil {
		return
	}
	if _, err = c.call(ctx, s.Get("users_blocks/"+url.PathEscape(owner)), &blocks); err != nil {
		blocks = nil
	}
	return
}

// CheckDuplicate asks node for blocks holding near duplicates of imageHash.
func (c *Client) CheckDuplicate(ctx context.Context, node, imageHash string) (res *DuplicateResult, err error) {
	var s *sling.Sling
	if s, err = c.newSling(node); err != nil {
		return
	}
	res = &DuplicateResult{}
	req := s.Post("check_duplicate").BodyJSON(&CheckDuplicateRequest{ImageHash: imageHash})
	if _, err = c.call(ctx, req, res); err != nil {
		res = nil
	}
	return
}
