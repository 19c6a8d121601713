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

package internal

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/client"
	"github.com/CovenantSQL/provenance/types"
)

var (
	owner       string
	description string
	watermark   string
	imageHash   string
	imagePath   string
	fileName    string
	fileURL     string
	metadata    string
)

// CmdAdd is provenance add command entity.
var CmdAdd = &Command{
	UsageLine:   "provenance add [common params] -owner owner -desc description -watermark text (-image path | -hash hash) [-name name] [-url url] [-exif json]",
	Description: "Stage an image record on a node",
	Long: `
Add stages a record for the next block of the node. The perceptual hash is computed from -image
when -hash is not given. A near duplicate of an image already on the chain is rejected and the
blocks holding it are printed.
`,
}

// CmdCheck is provenance check command entity.
var CmdCheck = &Command{
	UsageLine:   "provenance check [common params] (-image path | -hash hash)",
	Description: "List the blocks holding near duplicates of an image",
}

// CmdUser is provenance user command entity.
var CmdUser = &Command{
	UsageLine:   "provenance user [common params] <owner>",
	Description: "List the blocks of an owner",
}

func init() {
	CmdAdd.Run = runAdd
	CmdCheck.Run = runCheck
	CmdUser.Run = runUser

	addCommonFlags(CmdAdd)
	CmdAdd.Flag.StringVar(&owner, "owner", "", "Owner of the image")
	CmdAdd.Flag.StringVar(&description, "desc", "", "Description of the image")
	CmdAdd.Flag.StringVar(&watermark, "watermark", "", "Watermark text of the image")
	CmdAdd.Flag.StringVar(&imageHash, "hash", "", "Perceptual hash of the image, 16 hex digits")
	CmdAdd.Flag.StringVar(&imagePath, "image", "", "Image file to compute the perceptual hash from")
	CmdAdd.Flag.StringVar(&fileName, "name", "", "File name, base name of -image by default")
	CmdAdd.Flag.StringVar(&fileURL, "url", "", "Url of the published image")
	CmdAdd.Flag.StringVar(&metadata, "exif", "", "Image metadata")

	addCommonFlags(CmdCheck)
	CmdCheck.Flag.StringVar(&imageHash, "hash", "", "Perceptual hash of the image, 16 hex digits")
	CmdCheck.Flag.StringVar(&imagePath, "image", "", "Image file to compute the perceptual hash from")

	addCommonFlags(CmdUser)
}

// resolveHash returns the -hash flag or the hash of the -image file.
func resolveHash() (h string, err error) {
	switch {
	case imageHash != "":
		h = imageHash
	case imagePath != "":
		h, err = hashFile(imagePath)
	default:
		err = errors.New("either -hash or -image is required")
	}
	return
}

func buildRecord() (r *types.Record, err error) {
	r = &types.Record{
		Owner:         owner,
		Description:   description,
		WatermarkText: watermark,
		FileURL:       fileURL,
		Metadata:      metadata,
		Filename:      fileName,
	}
	if r.ImageHash, err = resolveHash(); err != nil {
		r = nil
		return
	}
	if r.Filename == "" && imagePath != "" {
		r.Filename = filepath.Base(imagePath)
	}
	if err = r.Validate(); err != nil {
		r = nil
	}
	return
}

func runAdd(cmd *Command, args []string) {
	r, err := buildRecord()
	if err != nil {
		ConsoleLog.WithError(err).Error("build record failed")
		SetExitStatus(1)
		return
	}
	do("add record", func(ctx context.Context, c *client.Client) (interface{}, error) {
		res, dup, err := c.AddRecord(ctx, nodeAddr, r)
		if errors.Cause(err) == client.ErrDuplicateImage {
			ConsoleLog.WithField("blocks", len(dup.FoundedImages)).Warning("similar images found in the blockchain")
			SetExitStatus(1)
			return dup, nil
		}
		return res, err
	})
}

func runCheck(cmd *Command, args []string) {
	h, err := resolveHash()
	if err != nil {
		ConsoleLog.WithError(err).Error("resolve image hash failed")
		SetExitStatus(1)
		return
	}
	do("check duplicate", func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.CheckDuplicate(ctx, nodeAddr, h)
	})
}

func runUser(cmd *Command, args []string) {
	if len(args) != 1 || args[0] == "" {
		ConsoleLog.Error("exactly one owner is required")
		SetExitStatus(1)
		return
	}
	do("list owner blocks", func(ctx context.Context, c *client.Client) (interface{}, error) {
		return c.UserBlocks(ctx, nodeAddr, args[0])
	})
}
