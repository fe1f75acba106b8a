// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import "testing"

// FuzzDecodeHeader checks that decoding never panics and that any decoded
// variable-length header re-encodes to the same bytes.
//
// Run with: go test -fuzz=FuzzDecodeHeader -fuzztime=30s ./internal/frame/
func FuzzDecodeHeader(f *testing.F) {
	f.Add([]byte{0x00, 0x39, 0x00})
	f.Add([]byte{0x00, 0x26, 0x08})
	f.Add([]byte{0xFF, 0xFF, 0xFF})
	f.Add([]byte{})
	f.Add([]byte{0x01})

	f.Fuzz(func(t *testing.T, buf []byte) {
		hdr, err := DecodeHeader(buf)
		if err != nil {
			return
		}
		if hdr.Mode != ModeVariable {
			return
		}
		enc := EncodeHeader(hdr.Block, hdr.Offset, hdr.Write)
		for i := range enc {
			if enc[i] != buf[i] {
				t.Fatalf("re-encoded header %X differs from input %X", enc, buf[:HeaderSize])
			}
		}
	})
}
