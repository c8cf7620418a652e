// Copyright 2025 The kvmux Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmux/kvmux/common"
)

func TestRoundTripSmall(t *testing.T) {
	payload := []byte("hello, kvmux")
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, payload))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCompressionBoundary(t *testing.T) {
	small := bytes.Repeat([]byte("a"), common.CompressionThreshold)
	large := bytes.Repeat([]byte{0}, 16384)

	for _, tc := range []struct {
		name       string
		payload    []byte
		compressed bool
	}{
		{"at-threshold", small, false},
		{"above-threshold", large, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tc.payload))

			header := binary.BigEndian.Uint32(buf.Bytes()[:4])
			assert.Equal(t, tc.compressed, header&compressFlag != 0)

			got, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.payload, got)
		})
	}
}

func TestDecodeEOF(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []byte("hello")))
	truncated := buf.Bytes()[:5] // header + partial body
	_, err := Decode(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestMultipleFramesOnStream(t *testing.T) {
	var buf bytes.Buffer
	msgs := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, m := range msgs {
		require.NoError(t, Encode(&buf, m))
	}

	for _, want := range msgs {
		got, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := Decode(&buf)
	assert.Equal(t, io.EOF, err)
}
