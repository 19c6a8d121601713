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

package internal

import (
	"context"

	"github.com/CovenantSQL/provenance/client"
	"github.com/CovenantSQL/provenance/utils"
)

// CmdChain is provenance chain command entity.
var CmdChain = &Command{
	UsageLine:   "provenance chain [common params]",
	Description: "Print the whole chain of a node",
}

// CmdMine is provenance mine command entity.
var CmdMine = &Command{
	UsageLine:   "provenance mine [common params]",
	Description: "Seal the pending records of a node into a new block",
}

// CmdValid is provenance valid command entity.
var CmdValid = &Command{
	UsageLine:   "provenance valid [common params]",
	Description: "Ask a node to validate its chain",
}

// CmdConsensus is provenance consensus command entity.
var CmdConsensus = &Command{
	UsageLine:   "provenance consensus [common params]",
	Description: "Ask a node to adopt the longest valid chain of its peers",
	Long: `
Consensus fetches the chain of every peer registered on the node and replaces the local chain
with the longest valid one when it is longer.
`,
}

// CmdWatch is provenance watch command entity.
var CmdWatch = &Command{
	UsageLine:   "provenance watch [common params]",
	Description: "Stream staged, sealed and replaced chain events of a node",
	Long: `
Watch prints one json line per chain event until interrupted.
`,
}

func init() {
	CmdWatch.Run = runWatch
	addCommonFlags(CmdWatch)

	CmdChain.Run = runChain
	CmdMine.Run = runMine
	CmdValid.Run = runValid
	CmdConsensus.Run = runConsensus

	addCommonFlags(CmdChain)
	addCommonFlags(CmdMine)
	addCommonFlags(CmdValid)
	addCommonFlags(CmdConsensus)
}

func runChain(cmd *Command, args []string) {
	do("get chain", func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.FetchChain(ctx, nodeAddr)
	})
}

func runMine(cmd *Command, args []string) {
	do("mine block", func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.Mine(ctx, nodeAddr)
	})
}

func runValid(cmd *Command, args []string) {
	do("validate chain", func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.ValidChain(ctx, nodeAddr)
	})
}

func runConsensus(cmd *Command, args []string) {
	do("resolve conflicts", func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.Consensus(ctx, nodeAddr)
	})
}

func runWatch(cmd *Command, args []string) {
	ctx, cancel := utils.ExitContext(context.Background())
	defer cancel()
	err := newClient().Watch(ctx, nodeAddr, func(e *client.ChainEvent) error {
		return printJSON(e)
	})
	if err != nil && ctx.Err() == nil {
		ConsoleLog.WithField("node", nodeAddr).WithError(err).Error("watch events failed")
		SetExitStatus(1)
	}
}
