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

// Package hash provides the fixed-size digest type shared by block linkage and the
// proof-of-work puzzle.
//
// Digests are rendered in natural byte order as lowercase hexadecimal, the same text a
// sha256 hexdigest produces, so a digest string can be compared across nodes byte for byte.
//
// Block digests use THashH, sha256(blake2b-512(x)). The proof-of-work puzzle uses plain
// sha256 (HashH) over the decimal proof pair.
package hash
