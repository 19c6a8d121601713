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

// Package cpuminer implements CPU based PoW functions.
package cpuminer

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/crypto/hash"
	"github.com/CovenantSQL/provenance/utils/log"
)

// Difficulty is the number of leading zero bits a proof hash must have, four zero hex digits.
const Difficulty = 16

// checkInterval is how many candidates are tried between two cancellation checks.
const checkInterval = 1 << 12

var (
	// ErrMiningStopped indicates the mining job was stopped by its context.
	ErrMiningStopped = errors.New("mining job stopped")
	// ErrMinerQuit indicates the miner was interrupted through its quit channel.
	ErrMinerQuit = errors.New("miner interrupted")
)

// HashProof returns sha256 of the decimal concatenation of last and proof.
func HashProof(last, proof int64) hash.Hash {
	buf := make([]byte, 0, 40)
	buf = strconv.AppendInt(buf, last, 10)
	buf = strconv.AppendInt(buf, proof, 10)
	return hash.HashH(buf)
}

// ValidProof reports whether proof solves the puzzle posed by last.
func ValidProof(last, proof int64) bool {
	h := HashProof(last, proof)
	return h.Difficulty() >= Difficulty
}

// Solve returns the smallest non-negative proof that solves the puzzle posed by last.
func Solve(last int64) (proof int64) {
	for !ValidProof(last, proof) {
		proof++
	}
	return
}

// CPUMiner provides interruptible PoW search.
type CPUMiner struct {
	quit chan struct{}
}

// NewCPUMiner init a new CPU miner, closing quit interrupts every running job.
func NewCPUMiner(quit chan struct{}) *CPUMiner {
	return &CPUMiner{quit: quit}
}

// CalculateProof searches proofs from zero like Solve, until found or interrupted.
func (miner *CPUMiner) CalculateProof(ctx context.Context, last int64) (proof int64, err error) {
	for ; ; proof++ {
		if proof%checkInterval == 0 {
			select {
			case <-ctx.Done():
				log.WithFields(log.Fields{
					"last":  last,
					"tried": proof,
				}).Info("stop mining job")
				err = errors.Wrap(ErrMiningStopped, ctx.Err().Error())
				return
			case <-miner.quit:
				log.WithField("last", last).Info("stop mining worker")
				err = ErrMinerQuit
				return
			default:
			}
		}
		if ValidProof(last, proof) {
			log.WithFields(log.Fields{
				"last":  last,
				"proof": proof,
			}).Debug("found proof")
			return
		}
	}
}
