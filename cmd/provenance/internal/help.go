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
	"fmt"
	"os"
	"runtime"
)

const name = "provenance"

var (
	// Version of command, set by main func of version
	Version = "unknown"
)

// CmdVersion is provenance version command entity.
var CmdVersion = &Command{
	UsageLine:   "provenance version",
	Description: "Show provenance build version infomation",
}

// CmdHelp is provenance help command entity.
var CmdHelp = &Command{
	UsageLine:   "provenance help <command>",
	Description: "Show help of a command",
}

func init() {
	CmdVersion.Run = runVersion
	CmdHelp.Run = runHelp
}

// PrintVersion prints program git version.
func PrintVersion(printLog bool) string {
	version := fmt.Sprintf("%v %v %v %v %v\n",
		name, Version, runtime.GOOS, runtime.GOARCH, runtime.Version())

	if printLog {
		ConsoleLog.Debugf("provenance build: %s", version)
	}

	return version
}

func runVersion(cmd *Command, args []string) {
	fmt.Fprint(output, PrintVersion(false))
}

func runHelp(cmd *Command, args []string) {
	if len(args) != 1 {
		MainUsage()
		return
	}
	for _, c := range Commands {
		if c.Name() == args[0] {
			c.Usage()
			return
		}
	}
	fmt.Fprintf(os.Stderr, "provenance help %s: unknown command\n", args[0])
	SetExitStatus(2)
	Exit()
}
