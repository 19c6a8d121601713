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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/CovenantSQL/provenance/client"
)

var (
	nodeAddr string
	timeout  time.Duration
)

func addCommonFlags(cmd *Command) {
	cmd.Flag.StringVar(&nodeAddr, "node", "127.0.0.1:5000", "Node address, host:port or url")
	cmd.Flag.DurationVar(&timeout, "timeout", client.DefaultTimeout, "Timeout of a node request, mining included")
}

func newClient() *client.Client {
	return client.New(&client.Config{Timeout: timeout})
}

// printJSON writes v to output, indented when output is a terminal.
func printJSON(v interface{}) (err error) {
	var out []byte
	if f, ok := output.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return
	}
	_, err = fmt.Fprintln(output, string(out))
	return
}

// do runs fn against the node with a fresh client and prints its result, failures set the exit
// status.
func do(action string, fn func(ctx context.Context, c *client.Client) (interface{}, error)) {
	res, err := fn(context.Background(), newClient())
	if err != nil {
		ConsoleLog.WithField("node", nodeAddr).WithError(err).Errorf("%s failed", action)
		SetExitStatus(1)
		return
	}
	if err = printJSON(res); err != nil {
		ConsoleLog.WithError(err).Error("print result failed")
		SetExitStatus(1)
	}
}
