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
	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/crypto/hash"
	"github.com/CovenantSQL/provenance/pow/cpuminer"
	"github.com/CovenantSQL/provenance/types"
)

// CheckChain verifies block indexes, linkage and proofs of blocks, walking from the genesis
// block. It never modifies blocks.
func CheckChain(blocks []*types.Block) (err error) {
	if len(blocks) == 0 {
		return ErrEmptyChain
	}
	if blocks[0] == nil {
		return errors.Wrap(types.ErrNilBlock, "genesis")
	}
	if blocks[0].Index != 1 {
		return errors.Wrapf(ErrIndexNotContiguous, "genesis index %d", blocks[0].Index)
	}
	for i := 1; i < len(blocks); i++ {
		var (
			parent = blocks[i-1]
			cur    = blocks[i]
			digest hash.Hash
			linked hash.Hash
		)
		if cur == nil {
			return errors.Wrapf(types.ErrNilBlock, "position %d", i)
		}
		if cur.Index != uint64(i+1) {
			return errors.Wrapf(ErrIndexNotContiguous, "position %d index %d", i, cur.Index)
		}
		if digest, err = parent.Hash(); err != nil {
			return errors.Wrapf(err, "hash block %d failed", parent.Index)
		}
		if linked, err = hash.NewHashFromStr(cur.PreviousHash); err != nil {
			return errors.Wrapf(ErrParentNotMatch, "block %d: %v", cur.Index, err)
		}
		if linked != digest {
			return errors.Wrapf(ErrParentNotMatch, "block %d", cur.Index)
		}
		if !cpuminer.ValidProof(parent.Proof, cur.Proof) {
			return errors.Wrapf(ErrInvalidProof, "block %d", cur.Index)
		}
	}
	return
}

// ValidateChain reports whether blocks form a valid chain. A chain holding only the genesis
// block is valid, an empty or malformed one is not.
func ValidateChain(blocks []*types.Block) bool {
	return CheckChain(blocks) == nil
}
