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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/CovenantSQL/provenance/cmd/provenance/internal"
)

var (
	version = "unknown"
)

func init() {
	internal.Commands = []*internal.Command{
		internal.CmdChain,
		internal.CmdAdd,
		internal.CmdMine,
		internal.CmdValid,
		internal.CmdConnect,
		internal.CmdConsensus,
		internal.CmdUser,
		internal.CmdCheck,
		internal.CmdHash,
		internal.CmdWatch,
		internal.CmdVersion,
		internal.CmdHelp,
	}
}

func main() {
	internal.Version = version

	flag.Usage = internal.MainUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		internal.MainUsage()
	}

	if args[0] != "version" && args[0] != "help" {
		internal.PrintVersion(true)
	}

	for _, cmd := range internal.Commands {
		if cmd.Name() != args[0] {
			continue
		}
		if !cmd.Runnable() {
			continue
		}
		cmd.Flag.Usage = func() { cmd.Usage() }
		cmd.Flag.Parse(args[1:])
		args = cmd.Flag.Args()
		cmd.Run(cmd, args)
		internal.Exit()
		return
	}
	fmt.Fprintf(os.Stderr, "provenance %s: unknown command\nRun 'provenance help' for usage.\n", args[0])
	internal.SetExitStatus(2)
	internal.Exit()
}
