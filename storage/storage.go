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

// Package storage persists chain snapshots, to leveldb by default or to a json file.
package storage

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/blockproducer"
	"github.com/CovenantSQL/provenance/types"
)

// Backend names accepted by Open.
const (
	BackendLevelDB = "leveldb"
	BackendFile    = "file"
)

var (
	// ErrPersistence wraps every failure to write or read durable storage.
	ErrPersistence = errors.New("persistence failure")
	// ErrNoSnapshot indicates that nothing was persisted yet.
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Gateway persists whole chains, a snapshot overwrites the previous one.
type Gateway interface {
	Snapshot(blocks []*types.Block) error
	Restore() ([]*types.Block, error)
	Close() error
}

// Open opens the gateway of backend at path.
func Open(backend, path string) (g Gateway, err error) {
	switch strings.ToLower(backend) {
	case BackendLevelDB, "":
		return NewLevelDBStore(path)
	case BackendFile:
		return NewFileStore(path)
	default:
		err = errors.Wrapf(ErrUnknownBackend, "backend %q", backend)
		return
	}
}

func persistenceError(err error, format string, args ...interface{}) error {
	return errors.Wrapf(ErrPersistence, "%s: %v", fmt.Sprintf(format, args...), err)
}

func verify(blocks []*types.Block) (err error) {
	if err = blockproducer.CheckChain(blocks); err != nil {
		err = persistenceError(err, "snapshot of %d blocks is invalid", len(blocks))
	}
	return
}
