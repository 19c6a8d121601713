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

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/blockproducer"
	"github.com/CovenantSQL/provenance/client"
	"github.com/CovenantSQL/provenance/consensus"
	"github.com/CovenantSQL/provenance/dedup"
	"github.com/CovenantSQL/provenance/metric"
	"github.com/CovenantSQL/provenance/pow/cpuminer"
	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

const maxBodySize = 1 << 20

func sendResponse(code int, success bool, msg interface{}, data interface{}, rw http.ResponseWriter) {
	msgStr := "ok"
	if msg != nil {
		msgStr = fmt.Sprint(msg)
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	json.NewEncoder(rw).Encode(map[string]interface{}{
		"status":  msgStr,
		"success": success,
		"data":    data,
	})
}

func errorCode(err error) int {
	switch errors.Cause(err) {
	case ErrBadRequest, types.ErrInvalidRecord, types.ErrNilRecord, dedup.ErrInvalidHash,
		blockproducer.ErrInvalidPeerAddress:
		return http.StatusBadRequest
	case blockproducer.ErrStaleProof, blockproducer.ErrChainChanged:
		return http.StatusConflict
	case cpuminer.ErrMiningStopped, cpuminer.ErrMinerQuit, context.Canceled, context.DeadlineExceeded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sendError(err error, rw http.ResponseWriter) {
	if err == nil {
		sendResponse(http.StatusOK, true, nil, nil, rw)
		return
	}
	sendResponse(errorCode(err), false, err, nil, rw)
}

func decodeBody(r *http.Request, v interface{}) (err error) {
	if err = json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		err = errors.Wrapf(ErrBadRequest, "decode body: %v", err)
	}
	return
}

type nodeAPI struct {
	nodeID    string
	chain     *blockproducer.Chain
	consensus *consensus.Engine
	detector  *dedup.Detector
	recorder  *metric.Recorder
	quit      chan struct{}
}

// duplicates returns the blocks holding near duplicates of imageHash, never nil.
func (a *nodeAPI) duplicates(imageHash string) (found []*types.Block, err error) {
	if found, err = a.detector.FindAll(a.chain.Blocks(), imageHash); err != nil {
		return
	}
	if found == nil {
		found = []*types.Block{}
	}
	return
}

// NewRecord stages a record after checking it against the chain for near duplicates.
func (a *nodeAPI) NewRecord(rw http.ResponseWriter, r *http.Request) {
	rec := &types.Record{}
	if err := decodeBody(r, rec); err != nil {
		sendError(err, rw)
		return
	}
	if rec.OriginNodeID == "" {
		rec.OriginNodeID = a.nodeID
	}
	if err := rec.Validate(); err != nil {
		sendError(err, rw)
		return
	}

	found, err := a.duplicates(rec.ImageHash)
	if err != nil {
		sendError(err, rw)
		return
	}
	if len(found) > 0 {
		a.recorder.DuplicateFound()
		log.WithFields(log.Fields{
			"owner":      rec.Owner,
			"hash_image": rec.ImageHash,
			"found":      len(found),
		}).Info("near duplicate image rejected")
		sendResponse(http.StatusConflict, false, "similar images found in the blockchain",
			&client.DuplicateResult{Duplicate: true, FoundedImages: found}, rw)
		return
	}

	if _, err = a.consensus.ResolveConflicts(r.Context()); err != nil {
		log.WithError(err).Warning("resolve conflicts before staging failed")
	}

	index, err := a.chain.StageRecord(rec.Owner, rec)
	if err != nil {
		sendError(err, rw)
		return
	}
	msg := fmt.Sprintf("Data will be added to Block %d", index)
	sendResponse(http.StatusOK, true, msg, &client.NewRecordResult{Index: index, Message: msg}, rw)
}

// MineBlock seals the pending records into a new block.
func (a *nodeAPI) MineBlock(rw http.ResponseWriter, r *http.Request) {
	b, err := a.chain.Mine(r.Context())
	if err != nil {
		if errorCode(err) == http.StatusConflict {
			a.recorder.Conflict("mine")
		}
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, true, "New Block added to Blockchain!", b, rw)
}

// GetChain serves the whole chain unwrapped, the format peers fetch during consensus.
func (a *nodeAPI) GetChain(rw http.ResponseWriter, r *http.Request) {
	blocks := a.chain.Blocks()
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	json.NewEncoder(rw).Encode(&client.ChainResponse{Chain: blocks, Length: len(blocks)})
}

// ValidChain checks the local chain.
func (a *nodeAPI) ValidChain(rw http.ResponseWriter, r *http.Request) {
	blocks := a.chain.Blocks()
	res := &client.ValidResult{Valid: blockproducer.ValidateChain(blocks), Length: len(blocks)}
	msg := "Blockchain is valid, all blocks are True"
	if !res.Valid {
		msg = "Blockchain is not valid, check blocks!"
	}
	sendResponse(http.StatusOK, true, msg, res, rw)
}

// ConnectNode registers peers, none is registered when any address is malformed.
func (a *nodeAPI) ConnectNode(rw http.ResponseWriter, r *http.Request) {
	req := &client.ConnectRequest{}
	if err := decodeBody(r, req); err != nil {
		sendError(err, rw)
		return
	}
	if len(req.Nodes) == 0 {
		sendResponse(http.StatusBadRequest, false, "No nodes founded, try again!", nil, rw)
		return
	}
	for _, node := range req.Nodes {
		if _, err := blockproducer.NormalizePeerAddress(node); err != nil {
			sendError(err, rw)
			return
		}
	}
	for _, node := range req.Nodes {
		if _, err := a.chain.RegisterPeer(node); err != nil {
			sendError(err, rw)
			return
		}
	}
	sendResponse(http.StatusOK, true, "New nodes have been added in list", &client.ConnectResult{
		Message:    "New nodes have been added in list",
		TotalNodes: a.chain.Peers(),
	}, rw)
}

// Consensus adopts the longest valid peer chain.
func (a *nodeAPI) Consensus(rw http.ResponseWriter, r *http.Request) {
	replaced, err := a.consensus.ResolveConflicts(r.Context())
	if err != nil {
		sendError(err, rw)
		return
	}
	blocks := a.chain.Blocks()
	msg := "All good. The chain is the largest one"
	if replaced {
		msg = "Chain was replaced"
	}
	sendResponse(http.StatusOK, true, msg, &client.ConsensusResult{
		Replaced: replaced,
		Chain:    blocks,
		Length:   len(blocks),
	}, rw)
}

// UsersBlocks lists the blocks owned by the owner path variable.
func (a *nodeAPI) UsersBlocks(rw http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	if owner == "" {
		sendError(ErrBadRequest, rw)
		return
	}
	blocks := a.chain.BlocksByOwner(owner)
	msg := fmt.Sprintf("Blocks for %s", owner)
	if len(blocks) == 0 {
		msg = fmt.Sprintf("No blocks for %s", owner)
	}
	sendResponse(http.StatusOK, true, msg, blocks, rw)
}

// CheckDuplicate reports the blocks holding near duplicates of a hash without staging anything.
func (a *nodeAPI) CheckDuplicate(rw http.ResponseWriter, r *http.Request) {
	req := &client.CheckDuplicateRequest{}
	if err := decodeBody(r, req); err != nil {
		sendError(err, rw)
		return
	}
	found, err := a.duplicates(req.ImageHash)
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, true, nil, &client.DuplicateResult{
		Duplicate:     len(found) > 0,
		FoundedImages: found,
	}, rw)
}
