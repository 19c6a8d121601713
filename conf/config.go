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

// Package conf loads and validates the node configuration.
package conf

import (
	"io/ioutil"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	validator "gopkg.in/go-playground/validator.v9"
	yaml "gopkg.in/yaml.v2"

	"github.com/CovenantSQL/provenance/utils/log"
)

const (
	defaultListenAddr      = "127.0.0.1:5000"
	defaultStorageBackend  = "leveldb"
	defaultLevelDBPath     = "chain.ldb"
	defaultFilePath        = "backup.json"
	defaultPeerTimeout     = 5 * time.Second
	defaultMineRetries     = 3
	defaultDedupThreshold  = 10
	defaultDedupCacheSize  = 4096
	defaultSampleInterval  = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ErrInvalidConfig indicates a config failing validation.
var ErrInvalidConfig = errors.New("invalid config")

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend string `yaml:"Backend" validate:"required,oneof=leveldb file"`
	// Path is relative to WorkingRoot unless absolute.
	Path string `yaml:"Path" validate:"required"`
}

// MetricsConfig controls the /metrics and /debug/metrics endpoints.
type MetricsConfig struct {
	Enabled        bool          `yaml:"Enabled"`
	SampleInterval time.Duration `yaml:"SampleInterval" validate:"gte=0"`
}

// Config holds all the config read from yaml config file.
type Config struct {
	ListenAddr       string        `yaml:"ListenAddr" validate:"required"`
	NodeID           string        `yaml:"NodeID" validate:"omitempty,alphanum"`
	WorkingRoot      string        `yaml:"WorkingRoot"`
	Storage          StorageConfig `yaml:"Storage"`
	Peers            []string      `yaml:"Peers"`
	PeerTimeout      time.Duration `yaml:"PeerTimeout" validate:"gt=0"`
	ConsensusWorkers int           `yaml:"ConsensusWorkers" validate:"gte=0"`
	MineRetries      int           `yaml:"MineRetries" validate:"gte=0"`
	DedupThreshold   int           `yaml:"DedupThreshold" validate:"gte=0,lte=64"`
	DedupCacheSize   int           `yaml:"DedupCacheSize" validate:"gt=0"`
	ShutdownTimeout  time.Duration `yaml:"ShutdownTimeout" validate:"gt=0"`
	LogLevel         string        `yaml:"LogLevel" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFormat        string        `yaml:"LogFormat" validate:"omitempty,oneof=text json"`
	Metrics          MetricsConfig `yaml:"Metrics"`
}

// GConf is the global config pointer.
var GConf *Config

// NewConfig returns a config filled with default values.
func NewConfig() *Config {
	return &Config{
		ListenAddr:  defaultListenAddr,
		WorkingRoot: ".",
		Storage: StorageConfig{
			Backend: defaultStorageBackend,
		},
		PeerTimeout:     defaultPeerTimeout,
		MineRetries:     defaultMineRetries,
		DedupThreshold:  defaultDedupThreshold,
		DedupCacheSize:  defaultDedupCacheSize,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        "info",
		LogFormat:       "text",
		Metrics: MetricsConfig{
			Enabled:        true,
			SampleInterval: defaultSampleInterval,
		},
	}
}

// NewNodeID returns a random node identifier, a uuid without dashes.
func NewNodeID() string {
	return strings.Replace(uuid.Must(uuid.NewV4()).String(), "-", "", -1)
}

// LoadConfig loads config from configPath, absent keys keep their default values.
func LoadConfig(configPath string) (config *Config, err error) {
	var configBytes []byte
	if configBytes, err = ioutil.ReadFile(configPath); err != nil {
		log.WithError(err).Error("read config file failed")
		return
	}
	config = NewConfig()
	if err = yaml.Unmarshal(configBytes, config); err != nil {
		log.WithError(err).Error("unmarshal config file failed")
		config = nil
		return
	}
	if err = config.Complete(); err != nil {
		config = nil
	}
	return
}

// Complete fills derived values and validates the config.
func (c *Config) Complete() (err error) {
	if c.NodeID == "" {
		c.NodeID = NewNodeID()
	}
	if c.Storage.Path == "" {
		if c.Storage.Backend == "file" {
			c.Storage.Path = defaultFilePath
		} else {
			c.Storage.Path = defaultLevelDBPath
		}
	}
	if !filepath.IsAbs(c.Storage.Path) && c.WorkingRoot != "" {
		c.Storage.Path = filepath.Join(c.WorkingRoot, c.Storage.Path)
	}
	return c.Validate()
}

// Validate checks field constraints and the listen address.
func (c *Config) Validate() (err error) {
	if verr := validator.New().Struct(c); verr != nil {
		if fieldErrs, ok := verr.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			err = errors.Wrapf(ErrInvalidConfig, "%s failed on %s", fe.Namespace(), fe.Tag())
		} else {
			err = errors.Wrap(ErrInvalidConfig, verr.Error())
		}
		log.WithError(err).Error("validate config failed")
		return
	}
	if _, _, serr := net.SplitHostPort(c.ListenAddr); serr != nil {
		err = errors.Wrapf(ErrInvalidConfig, "ListenAddr %q: %v", c.ListenAddr, serr)
		log.WithError(err).Error("validate config failed")
	}
	return
}
