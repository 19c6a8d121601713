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

package client

import (
	"encoding/json"

	"github.com/CovenantSQL/provenance/types"
)

// ChainResponse is the body of GET /get_chain, served unwrapped to peers.
type ChainResponse struct {
	Chain  []*types.Block `json:"chain"`
	Length int            `json:"length"`
}

// Response is the envelope of every other node api response.
type Response struct {
	Status  string          `json:"status"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// NewRecordResult is the data of a staged record.
type NewRecordResult struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// DuplicateResult lists the blocks holding near duplicates of an image.
type DuplicateResult struct {
	Duplicate     bool           `json:"duplicate"`
	FoundedImages []*types.Block `json:"founded_images"`
}

// CheckDuplicateRequest is the body of POST /check_duplicate.
type CheckDuplicateRequest struct {
	ImageHash string `json:"hash_image"`
}

// ValidResult is the data of GET /valid_chain.
type ValidResult struct {
	Valid  bool `json:"valid"`
	Length int  `json:"length"`
}

// ConnectRequest is the body of POST /connect_node.
type ConnectRequest struct {
	Nodes []string `json:"nodes"`
}

// ConnectResult is the data of POST /connect_node.
type ConnectResult struct {
	Message    string   `json:"message"`
	TotalNodes []string `json:"total_nodes"`
}

// ConsensusResult is the data of GET /consensus.
type ConsensusResult struct {
	Replaced bool           `json:"replaced"`
	Chain    []*types.Block `json:"chain"`
	Length   int            `json:"length"`
}

// ChainEvent is one ledger change pushed to /events subscribers.
type ChainEvent struct {
	Topic  string        `json:"topic"`
	Length int           `json:"length"`
	Block  *types.Block  `json:"block,omitempty"`
	Record *types.Record `json:"record,omitempty"`
}
