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

package hash

import (
	"encoding/hex"
	"math/bits"

	"github.com/pkg/errors"
)

// HashSize is the byte length of a digest.
const HashSize = 32

// ErrHashStrSize indicates a digest string that is not 2*HashSize hex characters long.
var ErrHashStrSize = errors.Errorf("hash string length must be %d characters", 2*HashSize)

// Hash is a 32 bytes digest.
type Hash [HashSize]byte

// String returns the digest as lowercase hex in natural byte order.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Difficulty returns the number of leading zero bits of the digest.
func (h Hash) Difficulty() (difficulty int) {
	for i, v := range h {
		if v != 0 {
			return 8*i + bits.LeadingZeros8(v)
		}
	}
	return HashSize * 8
}

// NewHashFromStr parses a digest rendered by String.
func NewHashFromStr(s string) (h Hash, err error) {
	if len(s) != 2*HashSize {
		err = ErrHashStrSize
		return
	}
	if _, err = hex.Decode(h[:], []byte(s)); err != nil {
		err = errors.Wrapf(err, "decode hash %q failed", s)
	}
	return
}
