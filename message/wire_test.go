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

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []Value{
		NewString("hello"),
		NewBytes([]byte{0, 1, 2, 255}),
		NewInt64(-42),
		NewFloat64(3.14159),
		NewBool(true),
		Default(),
	}
	for _, v := range cases {
		b, err := v.Marshal()
		require.NoError(t, err)

		var got Value
		require.NoError(t, got.Unmarshal(b))
		assert.True(t, v.Equal(got), "kind=%v", v.Kind())
	}
}

func TestCommandRequestRoundTrip(t *testing.T) {
	req := &CommandRequest{
		Verb:  VerbHMSet,
		Table: "t1",
		Pairs: []KvPair{
			{Key: "k1", Value: NewString("v1")},
			{Key: "k2", Value: NewInt64(7)},
		},
		Keys: []string{"k1", "k2"},
	}
	b, err := req.Marshal()
	require.NoError(t, err)

	var got CommandRequest
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, req.Verb, got.Verb)
	assert.Equal(t, req.Table, got.Table)
	assert.Equal(t, req.Keys, got.Keys)
	require.Len(t, got.Pairs, 2)
	assert.Equal(t, "k1", got.Pairs[0].Key)
	assert.True(t, got.Pairs[1].Value.Equal(NewInt64(7)))
}

func TestCommandResponseRoundTrip(t *testing.T) {
	rsp := OK([]Value{NewString("v1")}, nil)
	b, err := rsp.Marshal()
	require.NoError(t, err)

	var got CommandResponse
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, uint32(200), got.Status)
	require.Len(t, got.Values, 1)
	assert.True(t, got.Values[0].Equal(NewString("v1")))
}

func TestCommandResponseNotFound(t *testing.T) {
	rsp := &CommandResponse{Status: 404, Message: "Not found: key \"k9\""}
	b, err := rsp.Marshal()
	require.NoError(t, err)

	var got CommandResponse
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, uint32(404), got.Status)
	assert.Contains(t, got.Message, "Not found")
}
