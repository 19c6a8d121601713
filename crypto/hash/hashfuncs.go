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
	"crypto/sha256"

	blake2b "github.com/minio/blake2b-simd"
)

// HashH returns sha256(b).
func HashH(b []byte) Hash {
	return sha256.Sum256(b)
}

// THashH returns sha256(blake2b-512(b)), the digest used for block linkage.
func THashH(b []byte) Hash {
	inner := blake2b.Sum512(b)
	return sha256.Sum256(inner[:])
}
