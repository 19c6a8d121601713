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
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Command is an implementation of a provenance command like provenance add or provenance mine.
type Command struct {
	// Run runs the command.
	// The args are the arguments after the command name.
	Run func(cmd *Command, args []string)

	// UsageLine is the one-line usage message.
	// The words between "provenance" and the first flag or argument in the line are taken to be
	// the command name.
	UsageLine string

	// Description is the short description shown in the 'provenance help' output.
	Description string

	// Long is the long message shown in the 'provenance help <this-command>' output.
	Long string

	// Flag is a set of flags specific to this command.
	Flag flag.FlagSet
}

var (
	// Commands lists the available commands and help topics.
	Commands []*Command

	// ConsoleLog is logging for console.
	ConsoleLog *logrus.Logger

	// output receives command results.
	output io.Writer = os.Stdout

	exitStatus  = 0
	exitMu      sync.Mutex
	atExitFuncs []func()
)

func init() {
	ConsoleLog = logrus.New()
	ConsoleLog.Out = os.Stderr
	ConsoleLog.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
}

// LongName returns the command's long name: all the words in the usage line between "provenance"
// and a flag or argument.
func (c *Command) LongName() string {
	name := c.UsageLine
	if i := strings.Index(name, " ["); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, " <"); i >= 0 {
		name = name[:i]
	}
	if name == "provenance" {
		return ""
	}
	return strings.TrimPrefix(name, "provenance ")
}

// Name returns the command's short name: the last word in the usage line before a flag or
// argument.
func (c *Command) Name() string {
	name := c.LongName()
	if i := strings.LastIndex(name, " "); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Usage prints the usage of the command and exits.
func (c *Command) Usage() {
	fmt.Fprintf(os.Stderr, "usage: %s\n", c.UsageLine)
	if c.Long != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", strings.TrimSpace(c.Long))
	}
	fmt.Fprintln(os.Stderr, "\nParams:")
	c.Flag.SetOutput(os.Stderr)
	c.Flag.PrintDefaults()
	SetExitStatus(2)
	Exit()
}

// Runnable reports whether the command can be run; otherwise it is a documentation pseudo-command.
func (c *Command) Runnable() bool {
	return c.Run != nil
}

// SetExitStatus keeps the highest exit status.
func SetExitStatus(n int) {
	exitMu.Lock()
	if exitStatus < n {
		exitStatus = n
	}
	exitMu.Unlock()
}

// ExitStatus returns the exit status set so far.
func ExitStatus() int {
	exitMu.Lock()
	defer exitMu.Unlock()
	return exitStatus
}

// AtExit registers fn to run before Exit.
func AtExit(fn func()) {
	atExitFuncs = append(atExitFuncs, fn)
}

// Exit runs the registered exit functions and exits with the exit status.
func Exit() {
	for _, f := range atExitFuncs {
		f()
	}
	os.Exit(ExitStatus())
}

// MainUsage prints the commands and exits.
func MainUsage() {
	fmt.Fprintf(os.Stderr, "provenance is a client of image provenance ledger nodes.\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n\n\tprovenance <command> [params] [arguments]\n\nThe commands are:\n\n")
	for _, cmd := range Commands {
		if cmd.Runnable() {
			fmt.Fprintf(os.Stderr, "\t%-10s %s\n", cmd.Name(), cmd.Description)
		}
	}
	fmt.Fprintf(os.Stderr, "\nUse \"provenance help <command>\" for more information about a command.\n")
	SetExitStatus(2)
	Exit()
}
