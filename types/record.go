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

import (
	"sync"

	hsp "github.com/CovenantSQL/HashStablePack/marshalhash"
	"github.com/pkg/errors"
	validator "gopkg.in/go-playground/validator.v9"
)

const recordFieldCount = 8

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Record is one image provenance entry staged into a block. Only ImageHash is interpreted by
// the ledger, as the perceptual hash of the image.
type Record struct {
	Owner         string `json:"owner" validate:"required"`
	Description   string `json:"description" validate:"required"`
	WatermarkText string `json:"text_for_watermark" validate:"required"`
	ImageHash     string `json:"hash_image" validate:"required,hexadecimal"`
	OriginNodeID  string `json:"node"`
	Metadata      string `json:"exif"`
	FileURL       string `json:"url" validate:"omitempty,url"`
	Filename      string `json:"name" validate:"required"`
}

// Validate checks required and well-formed fields of the record.
func (r *Record) Validate() (err error) {
	if r == nil {
		return ErrNilRecord
	}
	if verr := recordValidator().Struct(r); verr != nil {
		if fieldErrs, ok := verr.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			err = errors.Wrapf(ErrInvalidRecord, "field %s failed on %s", fe.Field(), fe.Tag())
			return
		}
		err = errors.Wrap(ErrInvalidRecord, verr.Error())
	}
	return
}

// MarshalHash encodes the record as a fixed tuple of its fields in lexical order of their
// wire names: description, exif, hash_image, name, node, owner, text_for_watermark, url.
func (r *Record) MarshalHash() (o []byte, err error) {
	var b []byte
	o = hsp.Require(b, r.Msgsize())
	o = hsp.AppendArrayHeader(o, recordFieldCount)
	o = hsp.AppendString(o, r.Description)
	o = hsp.AppendString(o, r.Metadata)
	o = hsp.AppendString(o, r.ImageHash)
	o = hsp.AppendString(o, r.Filename)
	o = hsp.AppendString(o, r.OriginNodeID)
	o = hsp.AppendString(o, r.Owner)
	o = hsp.AppendString(o, r.WatermarkText)
	o = hsp.AppendString(o, r.FileURL)
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message.
func (r *Record) Msgsize() (s int) {
	s = hsp.ArrayHeaderSize
	for _, v := range []string{
		r.Description, r.Metadata, r.ImageHash, r.Filename,
		r.OriginNodeID, r.Owner, r.WatermarkText, r.FileURL,
	} {
		s += hsp.StringPrefixSize + len(v)
	}
	return
}
