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

package dedup

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CovenantSQL/provenance/types"
)

const baseHash = "0000000000000000"

func chainOf(hashes ...string) (blocks []*types.Block) {
	blocks = append(blocks, types.NewGenesisBlock())
	for i, h := range hashes {
		blocks = append(blocks, &types.Block{
			Index: uint64(i + 2),
			Owner: "alice",
			Data:  []*types.Record{{Owner: "alice", ImageHash: h}},
		})
	}
	return
}

func TestDistance(t *testing.T) {
	Convey("Distance should count differing bits", t, func() {
		d, err := Distance(baseHash, baseHash)
		So(err, ShouldBeNil)
		So(d, ShouldEqual, 0)
		d, err = Distance(baseHash, "00000000000003ff")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, 10)
		d, err = Distance(baseHash, "0x00000000000007FF")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, 11)
		_, err = Distance(baseHash, "zz")
		So(errors.Cause(err), ShouldEqual, ErrInvalidHash)
		_, err = Distance("", baseHash)
		So(errors.Cause(err), ShouldEqual, ErrInvalidHash)
		_, err = Distance(baseHash, "00000000000000000")
		So(errors.Cause(err), ShouldEqual, ErrInvalidHash)
	})
}

func TestFindNearDuplicate(t *testing.T) {
	Convey("Given a chain of images", t, func() {
		Convey("Distance 0 should match", func() {
			b, err := FindNearDuplicate(chainOf(baseHash), baseHash)
			So(err, ShouldBeNil)
			So(b, ShouldNotBeNil)
			So(b.Index, ShouldEqual, 2)
		})
		Convey("Distance 10 should match", func() {
			b, err := FindNearDuplicate(chainOf("00000000000003ff"), baseHash)
			So(err, ShouldBeNil)
			So(b, ShouldNotBeNil)
		})
		Convey("Distance 11 should not match", func() {
			b, err := FindNearDuplicate(chainOf("00000000000007ff"), baseHash)
			So(err, ShouldBeNil)
			So(b, ShouldBeNil)
		})
		Convey("The oldest match should win", func() {
			blocks := chainOf("ffffffffffffffff", "000000000000001f", baseHash)
			b, err := FindNearDuplicate(blocks, baseHash)
			So(err, ShouldBeNil)
			So(b.Index, ShouldEqual, 3)
			all, err := FindAll(blocks, baseHash)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 2)
			So(all[0].Index, ShouldEqual, 3)
			So(all[1].Index, ShouldEqual, 4)
		})
		Convey("Only the first record of a block should count", func() {
			blocks := chainOf("ffffffffffffffff")
			blocks[1].Data = append(blocks[1].Data, &types.Record{ImageHash: baseHash})
			b, err := FindNearDuplicate(blocks, baseHash)
			So(err, ShouldBeNil)
			So(b, ShouldBeNil)
		})
		Convey("The genesis block should be skipped", func() {
			blocks := chainOf()
			blocks[0].Data = []*types.Record{{ImageHash: baseHash}}
			b, err := FindNearDuplicate(blocks, baseHash)
			So(err, ShouldBeNil)
			So(b, ShouldBeNil)
		})
		Convey("Empty and unparsable blocks should be skipped", func() {
			blocks := chainOf("not-hex", baseHash)
			blocks = append(blocks, &types.Block{Index: 4})
			b, err := FindNearDuplicate(blocks, baseHash)
			So(err, ShouldBeNil)
			So(b.Index, ShouldEqual, 3)
		})
		Convey("An invalid candidate should be rejected", func() {
			_, err := FindNearDuplicate(chainOf(baseHash), "xyz")
			So(errors.Cause(err), ShouldEqual, ErrInvalidHash)
		})
	})
	Convey("A detector threshold should be tunable", t, func() {
		d, err := NewDetector(0, 16)
		So(err, ShouldBeNil)
		b, err := d.FindNearDuplicate(chainOf("0000000000000001"), baseHash)
		So(err, ShouldBeNil)
		So(b, ShouldBeNil)
		b, err = d.FindNearDuplicate(chainOf("0000000000000001"), "0000000000000001")
		So(err, ShouldBeNil)
		So(b, ShouldNotBeNil)
		_, err = NewDetector(-1, 16)
		So(err, ShouldNotBeNil)
		_, err = NewDetector(10, 0)
		So(err, ShouldNotBeNil)
	})
}

func TestHashImage(t *testing.T) {
	Convey("Identical images should hash identically", t, func() {
		gradient := func() image.Image {
			img := image.NewRGBA(image.Rect(0, 0, 64, 64))
			for x := 0; x < 64; x++ {
				for y := 0; y < 64; y++ {
					img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
				}
			}
			return img
		}
		a, err := HashImage(gradient())
		So(err, ShouldBeNil)
		So(a, ShouldHaveLength, 16)
		b, err := HashImage(gradient())
		So(err, ShouldBeNil)
		d, err := Distance(a, b)
		So(err, ShouldBeNil)
		So(d, ShouldEqual, 0)
	})
}
