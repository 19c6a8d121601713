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
)

// CmdConnect is provenance connect command entity.
var CmdConnect = &Command{
	UsageLine:   "provenance connect [common params] <peer> [peer ...]",
	Description: "Register peers on a node",
}

func init() {
	CmdConnect.Run = runConnect

	addCommonFlags(CmdConnect)
}

func runConnect(cmd *Command, args []string) {
	if len(args) == 0 {
		ConsoleLog.Error("at least one peer is required")
		SetExitStatus(1)
		return
	}
	do("connect peers", func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.ConnectNodes(ctx, nodeAddr, args)
	})
}
