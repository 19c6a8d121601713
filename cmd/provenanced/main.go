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
	"runtime"

	"github.com/davecgh/go-spew/spew"

	"github.com/CovenantSQL/provenance/conf"
	"github.com/CovenantSQL/provenance/utils"
	"github.com/CovenantSQL/provenance/utils/log"
)

var (
	version = "1"
	commit  = "unknown"
	branch  = "unknown"
)

var (
	showVersion bool
	configFile  string
	listenAddr  string
	logLevel    string
	logFormat   string
)

const name = `provenanced`
const desc = `provenanced keeps an image provenance ledger and syncs it with its peers`

func init() {
	flag.BoolVar(&showVersion, "version", false, "Show version information and exit")
	flag.StringVar(&configFile, "config", "", "Config file path, built-in defaults when empty")
	flag.StringVar(&listenAddr, "listen", "", "Listen address of the http api, overrides config")
	flag.StringVar(&logLevel, "log-level", "", "Log level, overrides config")
	flag.StringVar(&logFormat, "log-format", "", "Log format: text or json, overrides config")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n%s\n\n", desc)
		fmt.Fprintf(os.Stderr, "Usage: %s [arguments]\n", name)
		flag.PrintDefaults()
	}
}

func loadConfig() (cfg *conf.Config, err error) {
	if configFile != "" {
		if cfg, err = conf.LoadConfig(configFile); err != nil {
			return
		}
	} else {
		cfg = conf.NewConfig()
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	err = cfg.Complete()
	return
}

func initLogs(cfg *conf.Config) {
	log.SetStringLevel(cfg.LogLevel, log.InfoLevel)
	log.SetStringFormat(cfg.LogFormat)
	log.Infof("%#v starting, version %#v, commit %#v, branch %#v", name, version, commit, branch)
	log.Infof("%#v, target architecture is %#v, operating system target is %#v",
		runtime.Version(), runtime.GOARCH, runtime.GOOS)
	log.WithFields(log.Fields{
		"node":    cfg.NodeID,
		"listen":  cfg.ListenAddr,
		"storage": cfg.Storage.Backend,
		"path":    cfg.Storage.Path,
		"peers":   len(cfg.Peers),
	}).Info("node config")
	if log.GetLevel() >= log.DebugLevel {
		spewCfg := spew.NewDefaultConfig()
		spewCfg.MaxDepth = 3
		log.Debugf("config:\n%s", spewCfg.Sdump(cfg))
	}
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("%v %v %v %v %v\n",
			name, version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		os.Exit(0)
	}

	flag.Visit(func(f *flag.Flag) {
		log.Infof("args %#v : %s", f.Name, f.Value)
	})

	var err error
	if conf.GConf, err = loadConfig(); err != nil {
		log.WithField("config", configFile).WithError(err).Fatal("load config failed")
	}
	initLogs(conf.GConf)

	n, err := newNode(conf.GConf)
	if err != nil {
		log.WithError(err).Fatal("init node failed")
	}
	if err = n.start(); err != nil {
		log.WithError(err).Fatal("start node failed")
	}

	sig := <-utils.WaitForExit()
	log.WithField("signal", sig.String()).Info("received exit signal")

	if err = n.stop(); err != nil {
		log.WithError(err).Fatal("stop node failed")
	}
	log.Info("server stopped")
}
