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
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

// FileStore keeps the chain as a json array of blocks in a single file, replaced atomically.
type FileStore struct {
	sync.Mutex
	path string
}

// NewFileStore returns a store writing to path, creating its directory.
func NewFileStore(path string) (s *FileStore, err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		err = persistenceError(err, "create directory of %s", path)
		return
	}
	s = &FileStore{path: path}
	return
}

// Snapshot writes blocks to a temporary file and renames it over the snapshot.
func (s *FileStore) Snapshot(blocks []*types.Block) (err error) {
	var data []byte
	if data, err = json.MarshalIndent(blocks, "", "  "); err != nil {
		return persistenceError(err, "encode %d blocks", len(blocks))
	}

	s.Lock()
	defer s.Unlock()
	tmp := s.path + ".tmp"
	if err = ioutil.WriteFile(tmp, data, 0644); err != nil {
		return persistenceError(err, "write %s", tmp)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return persistenceError(err, "rename %s", tmp)
	}
	log.WithFields(log.Fields{
		"path":   s.path,
		"length": len(blocks),
	}).Debug("file snapshot written")
	return
}

// Restore loads and verifies the snapshot file.
func (s *FileStore) Restore() (blocks []*types.Block, err error) {
	s.Lock()
	data, rerr := ioutil.ReadFile(s.path)
	s.Unlock()
	if os.IsNotExist(rerr) {
		err = ErrNoSnapshot
		return
	} else if rerr != nil {
		err = persistenceError(rerr, "read %s", s.path)
		return
	}
	if err = json.Unmarshal(data, &blocks); err != nil {
		blocks = nil
		err = persistenceError(err, "decode %s", s.path)
		return
	}
	if err = verify(blocks); err != nil {
		blocks = nil
	}
	return
}

// Close is a no-op, every snapshot is complete when Snapshot returns.
func (s *FileStore) Close() error {
	return nil
}
