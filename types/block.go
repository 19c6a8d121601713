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

package types

import (
	"time"

	hsp "github.com/CovenantSQL/HashStablePack/marshalhash"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/crypto/hash"
)

const (
	// GenesisPreviousHash is the sentinel stored as previous hash of the genesis block.
	GenesisPreviousHash = "1"
	// GenesisProof is the proof of the genesis block.
	GenesisProof int64 = 100

	blockFieldCount = 6
)

// Block is one sealed unit of the ledger.
type Block struct {
	Index        uint64    `json:"index"`
	Time         time.Time `json:"time"`
	Owner        string    `json:"owner"`
	Data         []*Record `json:"data"`
	Proof        int64     `json:"proof"`
	PreviousHash string    `json:"previous_hash"`
}

// NewGenesisBlock returns the first block of every ledger.
func NewGenesisBlock() *Block {
	return &Block{
		Index:        1,
		Time:         time.Now().UTC(),
		Data:         []*Record{},
		Proof:        GenesisProof,
		PreviousHash: GenesisPreviousHash,
	}
}

// MarshalHash encodes the block as a fixed tuple of its fields in lexical order of their wire
// names: data, index, owner, previous_hash, proof, time. Time is encoded as unix seconds plus
// nanoseconds, so the time zone of the value never reaches the digest.
func (b *Block) MarshalHash() (o []byte, err error) {
	var buf []byte
	o = hsp.Require(buf, b.Msgsize())
	o = hsp.AppendArrayHeader(o, blockFieldCount)
	o = hsp.AppendArrayHeader(o, uint32(len(b.Data)))
	for _, r := range b.Data {
		if r == nil {
			err = ErrNilRecord
			return
		}
		var enc []byte
		if enc, err = r.MarshalHash(); err != nil {
			return
		}
		o = hsp.AppendBytes(o, enc)
	}
	o = hsp.AppendUint64(o, b.Index)
	o = hsp.AppendString(o, b.Owner)
	o = hsp.AppendString(o, b.PreviousHash)
	o = hsp.AppendInt64(o, b.Proof)
	o = hsp.AppendTime(o, b.Time)
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message.
func (b *Block) Msgsize() (s int) {
	s = 2 * hsp.ArrayHeaderSize
	for _, r := range b.Data {
		if r != nil {
			s += hsp.BytesPrefixSize + r.Msgsize()
		}
	}
	s += hsp.Uint64Size + hsp.StringPrefixSize + len(b.Owner) +
		hsp.StringPrefixSize + len(b.PreviousHash) + hsp.Int64Size + hsp.TimeSize
	return
}

// Hash returns the digest of the canonical block encoding.
func (b *Block) Hash() (h hash.Hash, err error) {
	if b == nil {
		err = ErrNilBlock
		return
	}
	var enc []byte
	if enc, err = b.MarshalHash(); err != nil {
		err = errors.Wrapf(err, "encode block %d failed", b.Index)
		return
	}
	h = hash.THashH(enc)
	return
}

// HashBlock returns the hex digest of b.
func HashBlock(b *Block) (digest string, err error) {
	var h hash.Hash
	if h, err = b.Hash(); err != nil {
		return
	}
	digest = h.String()
	return
}

// FirstImageHash returns the perceptual hash of the first record, the one a block is known by.
func (b *Block) FirstImageHash() (h string, ok bool) {
	if b == nil || len(b.Data) == 0 || b.Data[0] == nil {
		return
	}
	return b.Data[0].ImageHash, true
}
