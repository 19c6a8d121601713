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

import "github.com/pkg/errors"

var (
	// Conflicts, the caller may retry against the new state.

	// ErrStaleProof indicates that a proof was solved against a tip which is no longer the last block.
	ErrStaleProof = errors.New("proof is stale against current tip")
	// ErrChainChanged indicates that the local chain grew while a candidate was being validated.
	ErrChainChanged = errors.New("local chain changed during consensus")

	// Validation failures.

	// ErrInvalidPeerAddress indicates a peer address without a usable host.
	ErrInvalidPeerAddress = errors.New("invalid peer address")
	// ErrInvalidChain indicates a chain failing linkage or proof verification.
	ErrInvalidChain = errors.New("invalid chain")
	// ErrEmptyChain indicates a chain without the genesis block.
	ErrEmptyChain = errors.New("empty chain")
	// ErrIndexNotContiguous indicates a block whose index is not its 1-based position.
	ErrIndexNotContiguous = errors.New("block index is not contiguous")
	// ErrParentNotMatch indicates a block whose previous hash differs from its parent digest.
	ErrParentNotMatch = errors.New("previous hash does not match parent block")
	// ErrInvalidProof indicates a block whose proof does not solve its parent proof.
	ErrInvalidProof = errors.New("proof does not solve parent proof")
)
