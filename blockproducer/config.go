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
	"github.com/CovenantSQL/provenance/chainbus"
	"github.com/CovenantSQL/provenance/types"
)

// DefaultMineRetries is the number of extra attempts Mine makes after a stale proof.
const DefaultMineRetries = 3

// Config is the ledger state configuration.
type Config struct {
	// NodeID identifies this node, it is only used in logs here.
	NodeID string
	// Blocks is a previously persisted chain, a fresh genesis block is created when empty.
	Blocks []*types.Block
	// Peers are registered at startup.
	Peers []string
	// Bus receives chain events, a private bus is created when nil.
	Bus chainbus.Bus
	// MineRetries bounds retries after ErrStaleProof, DefaultMineRetries when zero.
	MineRetries int
}
