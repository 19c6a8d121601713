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

package log

import (
	"bytes"
	"errors"
	"io/ioutil"
	"testing"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStandardLogger(t *testing.T) {
	Convey("standard logger levels and fields", t, func() {
		var buf bytes.Buffer
		SetOutput(&buf)
		defer SetOutput(ioutil.Discard)

		SetStringLevel("debug", InfoLevel)
		So(GetLevel(), ShouldEqual, DebugLevel)
		SetStringLevel("not-a-level", InfoLevel)
		So(GetLevel(), ShouldEqual, InfoLevel)

		SetStringFormat("json")
		WithFields(Fields{"index": 2, "owner": "alice"}).Info("sealed")
		So(buf.String(), ShouldContainSubstring, `"owner":"alice"`)
		So(buf.String(), ShouldContainSubstring, `"index":2`)

		buf.Reset()
		SetStringFormat("text")
		WithError(errors.New("boom")).Error("failed")
		So(buf.String(), ShouldContainSubstring, "boom")
		So(buf.String(), ShouldContainSubstring, "caller=")

		buf.Reset()
		WithField("index", 3).Debug("dropped")
		So(buf.Len(), ShouldEqual, 0)
	})
	Convey("nil formatter discards entries", t, func() {
		n := NilFormatter{}
		a, b := n.Format(&logrus.Entry{})
		So(a, ShouldBeNil)
		So(b, ShouldBeNil)
	})
}
