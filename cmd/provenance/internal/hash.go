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
	"fmt"
	"image"
	// image decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/provenance/dedup"
)

// CmdHash is provenance hash command entity.
var CmdHash = &Command{
	UsageLine:   "provenance hash <image> [image ...]",
	Description: "Print the perceptual hash of image files",
	Long: `
Hash decodes jpeg, png and gif files and prints their 64 bit perceptual hashes, the value
records carry in hash_image.
`,
}

func init() {
	CmdHash.Run = runHash
}

func hashFile(path string) (h string, err error) {
	var f *os.File
	if f, err = os.Open(path); err != nil {
		return
	}
	defer f.Close()
	var img image.Image
	if img, _, err = image.Decode(f); err != nil {
		err = errors.Wrapf(err, "decode image %s failed", path)
		return
	}
	return dedup.HashImage(img)
}

func runHash(cmd *Command, args []string) {
	if len(args) == 0 {
		ConsoleLog.Error("at least one image is required")
		SetExitStatus(1)
		return
	}
	for _, path := range args {
		h, err := hashFile(path)
		if err != nil {
			ConsoleLog.WithError(err).Error("hash image failed")
			SetExitStatus(1)
			continue
		}
		fmt.Fprintf(output, "%s\t%s\n", h, path)
	}
}
