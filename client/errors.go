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

import "github.com/pkg/errors"

// Various errors the client might returns.
var (
	// ErrPeerUnavailable represents a peer that could not serve its chain.
	ErrPeerUnavailable = errors.New("peer unavailable")
	// ErrRequestFailed represents a node api call answered with failure.
	ErrRequestFailed = errors.New("request failed")
	// ErrDuplicateImage represents a record rejected for a near duplicate image.
	ErrDuplicateImage = errors.New("duplicate image")
	// ErrInvalidNodeAddress represents a node address that can not form an url.
	ErrInvalidNodeAddress = errors.New("invalid node address")
)
