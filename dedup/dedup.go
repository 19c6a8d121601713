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

// Package dedup detects near duplicate images by the hamming distance of their perceptual hashes.
package dedup

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/corona10/goimagehash"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/types"
	"github.com/CovenantSQL/provenance/utils/log"
)

const (
	// DefaultThreshold is the largest distance at which two images are considered the same.
	DefaultThreshold = 10
	// DefaultCacheSize is the number of parsed stored hashes kept by a detector.
	DefaultCacheSize = 4096
)

var (
	// ErrInvalidHash indicates a perceptual hash that is not a 64 bit hex value.
	ErrInvalidHash = errors.New("invalid perceptual hash")

	defaultDetector = mustNewDetector(DefaultThreshold, DefaultCacheSize)
)

// Detector scans chains for near duplicates of a candidate hash.
type Detector struct {
	Threshold int
	cache     *lru.Cache
}

// NewDetector returns a detector with threshold and a parse cache of cacheSize entries.
func NewDetector(threshold, cacheSize int) (d *Detector, err error) {
	if threshold < 0 {
		err = errors.Errorf("negative threshold %d", threshold)
		return
	}
	d = &Detector{Threshold: threshold}
	if d.cache, err = lru.New(cacheSize); err != nil {
		err = errors.Wrap(err, "create hash cache failed")
		return
	}
	return
}

func mustNewDetector(threshold, cacheSize int) *Detector {
	d, err := NewDetector(threshold, cacheSize)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseHash parses a hex perceptual hash, an optional 0x prefix is accepted.
func ParseHash(s string) (h *goimagehash.ImageHash, err error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if raw == "" || len(raw) > 16 {
		err = errors.Wrapf(ErrInvalidHash, "hash %q", s)
		return
	}
	var v uint64
	if v, err = strconv.ParseUint(raw, 16, 64); err != nil {
		err = errors.Wrapf(ErrInvalidHash, "hash %q", s)
		return
	}
	h = goimagehash.NewImageHash(v, goimagehash.PHash)
	return
}

// Distance returns the hamming distance of two hex perceptual hashes.
func Distance(a, b string) (d int, err error) {
	var ha, hb *goimagehash.ImageHash
	if ha, err = ParseHash(a); err != nil {
		return
	}
	if hb, err = ParseHash(b); err != nil {
		return
	}
	return ha.Distance(hb)
}

// HashImage returns the hex perceptual hash of img.
func HashImage(img image.Image) (s string, err error) {
	var h *goimagehash.ImageHash
	if h, err = goimagehash.PerceptionHash(img); err != nil {
		err = errors.Wrap(err, "compute perceptual hash failed")
		return
	}
	s = fmt.Sprintf("%016x", h.GetHash())
	return
}

func (d *Detector) stored(s string) (h *goimagehash.ImageHash, ok bool) {
	if v, hit := d.cache.Get(s); hit {
		h, ok = v.(*goimagehash.ImageHash)
		return
	}
	var err error
	if h, err = ParseHash(s); err != nil {
		return
	}
	d.cache.Add(s, h)
	return h, true
}

func (d *Detector) scan(blocks []*types.Block, candidate string, all bool) (found []*types.Block, err error) {
	var want *goimagehash.ImageHash
	if want, err = ParseHash(candidate); err != nil {
		return
	}
	// the genesis block carries no image
	for i := 1; i < len(blocks); i++ {
		b := blocks[i]
		s, ok := b.FirstImageHash()
		if !ok {
			continue
		}
		h, ok := d.stored(s)
		if !ok {
			log.WithFields(log.Fields{
				"index": b.Index,
				"hash":  s,
			}).Debug("skip block with unparsable image hash")
			continue
		}
		dist, derr := want.Distance(h)
		if derr != nil || dist > d.Threshold {
			continue
		}
		found = append(found, b)
		if !all {
			return
		}
	}
	return
}

// FindNearDuplicate returns the oldest block whose image is within the threshold of candidate,
// or nil when there is none.
func (d *Detector) FindNearDuplicate(blocks []*types.Block, candidate string) (b *types.Block, err error) {
	var found []*types.Block
	if found, err = d.scan(blocks, candidate, false); err != nil || len(found) == 0 {
		return
	}
	b = found[0]
	return
}

// FindAll returns every block whose image is within the threshold of candidate, oldest first.
func (d *Detector) FindAll(blocks []*types.Block, candidate string) (found []*types.Block, err error) {
	return d.scan(blocks, candidate, true)
}

// FindNearDuplicate scans blocks with DefaultThreshold.
func FindNearDuplicate(blocks []*types.Block, candidate string) (*types.Block, error) {
	return defaultDetector.FindNearDuplicate(blocks, candidate)
}

// FindAll reports every match with DefaultThreshold.
func FindAll(blocks []*types.Block, candidate string) ([]*types.Block, error) {
	return defaultDetector.FindAll(blocks, candidate)
}
