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

package mux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/streamio"
)

func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		serverCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-serverCh
	return client, server
}

func TestOpenStreamServedByAcceptLoop(t *testing.T) {
	clientConn, serverConn := tcpPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	handled := make(chan *message.CommandRequest, 1)
	srv, err := Serve(serverConn, func(_ context.Context, stream *streamio.Stream) {
		req, err := stream.ReadRequest()
		if err != nil {
			return
		}
		handled <- req
		_ = stream.WriteResponse(message.OK(nil, nil))
		_ = stream.Flush()
	})
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.AcceptLoop(ctx)

	cli, err := Dial(clientConn)
	require.NoError(t, err)
	defer cli.Close()

	stream, err := cli.OpenStream()
	require.NoError(t, err)

	req := &message.CommandRequest{Verb: message.VerbHGet, Table: "t", Key: "k"}
	require.NoError(t, stream.WriteRequest(req))
	require.NoError(t, stream.Flush())

	select {
	case got := <-handled:
		assert.Equal(t, req.Key, got.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler dispatch")
	}

	rsp, err := stream.ReadResponse()
	require.NoError(t, err)
	assert.EqualValues(t, 200, rsp.Status)
}

func TestClosingOneStreamDoesNotCloseOthers(t *testing.T) {
	clientConn, serverConn := tcpPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	srv, err := Serve(serverConn, func(_ context.Context, stream *streamio.Stream) {
		_, _ = stream.ReadRequest()
	})
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.AcceptLoop(ctx)

	cli, err := Dial(clientConn)
	require.NoError(t, err)
	defer cli.Close()

	s1, err := cli.OpenStream()
	require.NoError(t, err)
	s2, err := cli.OpenStream()
	require.NoError(t, err)

	require.NoError(t, s1.WriteRequest(&message.CommandRequest{Verb: message.VerbHGet}))
	require.NoError(t, s1.Flush())
	require.NoError(t, s1.Close())

	require.NoError(t, s2.WriteRequest(&message.CommandRequest{Verb: message.VerbHGet}))
	require.NoError(t, s2.Flush())
	require.NoError(t, s2.Close())
}
