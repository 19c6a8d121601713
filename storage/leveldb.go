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

package storage

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils"
	"github.com/CovenantSQL/provenance/utils/log"
)

var (
	blockKeyPrefix = []byte("BLOCK_")
	lengthKey      = []byte("LENGTH")
)

// LevelDBStore keeps one msgpack encoded block per key, indexed by block index, plus the chain
// length. A snapshot is written in a single batch.
type LevelDBStore struct {
	db   *leveldb.DB
	path string
}

func blockKey(index uint64) []byte {
	return append(append([]byte{}, blockKeyPrefix...), utils.Uint64ToBytes(index)...)
}

// NewLevelDBStore opens or creates the leveldb database at path.
func NewLevelDBStore(path string) (s *LevelDBStore, err error) {
	var db *leveldb.DB
	if db, err = leveldb.OpenFile(path, nil); err != nil {
		err = persistenceError(err, "open leveldb %s", path)
		return
	}
	s = &LevelDBStore{db: db, path: path}
	return
}

// Snapshot replaces the stored chain with blocks.
func (s *LevelDBStore) Snapshot(blocks []*types.Block) (err error) {
	batch := new(leveldb.Batch)
	for i, b := range blocks {
		var buf *bytes.Buffer
		if buf, err = utils.EncodeMsgPack(b); err != nil {
			return persistenceError(err, "encode block %d", i+1)
		}
		batch.Put(blockKey(uint64(i+1)), buf.Bytes())
	}

	// drop blocks of a longer previous snapshot
	it := s.db.NewIterator(util.BytesPrefix(blockKeyPrefix), nil)
	for it.Next() {
		key := it.Key()
		if len(key) != len(blockKeyPrefix)+8 {
			continue
		}
		if utils.BytesToUint64(key[len(blockKeyPrefix):]) > uint64(len(blocks)) {
			batch.Delete(append([]byte{}, key...))
		}
	}
	it.Release()
	if err = it.Error(); err != nil {
		return persistenceError(err, "scan stale blocks")
	}

	batch.Put(lengthKey, utils.Uint64ToBytes(uint64(len(blocks))))
	if err = s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return persistenceError(err, "write snapshot of %d blocks", len(blocks))
	}
	log.WithFields(log.Fields{
		"path":   s.path,
		"length": len(blocks),
	}).Debug("leveldb snapshot written")
	return
}

// Restore loads and verifies the stored chain.
func (s *LevelDBStore) Restore() (blocks []*types.Block, err error) {
	var raw []byte
	if raw, err = s.db.Get(lengthKey, nil); err == leveldb.ErrNotFound {
		err = ErrNoSnapshot
		return
	} else if err != nil {
		err = persistenceError(err, "read chain length")
		return
	}
	if len(raw) != 8 {
		err = persistenceError(errors.Errorf("got %d bytes", len(raw)), "malformed chain length")
		return
	}
	length := utils.BytesToUint64(raw)
	blocks = make([]*types.Block, 0, length)
	for i := uint64(1); i <= length; i++ {
		if raw, err = s.db.Get(blockKey(i), nil); err != nil {
			blocks = nil
			err = persistenceError(err, "read block %d", i)
			return
		}
		b := &types.Block{}
		if err = utils.DecodeMsgPack(raw, b); err != nil {
			blocks = nil
			err = persistenceError(err, "decode block %d", i)
			return
		}
		blocks = append(blocks, b)
	}
	if err = verify(blocks); err != nil {
		blocks = nil
	}
	return
}

// Close closes the database.
func (s *LevelDBStore) Close() (err error) {
	if err = s.db.Close(); err != nil {
		err = persistenceError(err, "close leveldb %s", s.path)
	}
	return
}
