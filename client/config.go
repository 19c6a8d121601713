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

package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultScheme = "http"

var (
	// DefaultTimeout bounds a single request to a node.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxResponseBytes caps how much of a node reply is decoded.
	DefaultMaxResponseBytes int64 = 32 << 20
)

// Config is the client configuration.
type Config struct {
	// Timeout bounds every request, zero disables the bound.
	Timeout time.Duration
	// HTTPClient overrides the http client, a client without its own timeout is used when nil.
	HTTPClient *http.Client
	// MaxResponseBytes caps the decoded part of every reply, zero or less uses
	// DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// NewConfig creates a new config with default value.
func NewConfig() *Config {
	return &Config{
		Timeout:          DefaultTimeout,
		MaxResponseBytes: DefaultMaxResponseBytes,
	}
}

// NodeURL returns the api base url of node, which is a "host:port" peer or a full url.
func NodeURL(node string) (base string, err error) {
	raw := strings.TrimSpace(node)
	if raw == "" {
		err = errors.Wrap(ErrInvalidNodeAddress, "empty address")
		return
	}
	if !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + raw
	}
	var u *url.URL
	if u, err = url.Parse(raw); err != nil {
		err = errors.Wrapf(ErrInvalidNodeAddress, "parse %q: %v", node, err)
		return
	}
	if u.Host == "" {
		err = errors.Wrapf(ErrInvalidNodeAddress, "no host in %q", node)
		return
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	base = u.String()
	return
}
