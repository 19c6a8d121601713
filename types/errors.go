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

package types

import "github.com/pkg/errors"

var (
	// ErrInvalidRecord indicates that a record misses a required field or carries a malformed one.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrNilRecord indicates that a nil record was staged or found inside a block.
	ErrNilRecord = errors.New("nil record")
	// ErrNilBlock indicates that a nil block was found in a chain.
	ErrNilBlock = errors.New("nil block")
)
