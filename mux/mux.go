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

// Package mux multiplexes many independent logical sub-streams over one
// authenticated byte connection (a *tls.Conn), via hashicorp/yamux.
// Window updates are released on read, not on receive, so a slow
// consumer's backpressure is real rather than cosmetic — this is
// yamux's native behavior, not something layered on top of it.
package mux

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/yamux"

	"github.com/kvmux/kvmux/internal/rescue"
	"github.com/kvmux/kvmux/logger"
	"github.com/kvmux/kvmux/streamio"
)

func config() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.EnableKeepAlive = true
	cfg.KeepAliveInterval = 30 * time.Second
	cfg.ConnectionWriteTimeout = 10 * time.Second
	return cfg
}

// Handler processes one inbound sub-stream. Returning leaves the
// sub-stream's cleanup to the caller; it does not close other
// sub-streams on the same connection.
type Handler func(ctx context.Context, stream *streamio.Stream)

// Server wraps a single authenticated connection, dispatching every
// inbound sub-stream to handler until the connection closes.
type Server struct {
	session *yamux.Session
	connID  string
	handler Handler
}

// Serve wraps conn (typically a *tls.Conn straight off Accept) as a
// yamux session and starts a per-connection id used to correlate log
// lines across its sub-streams.
func Serve(conn net.Conn, handler Handler) (*Server, error) {
	session, err := yamux.Server(conn, config())
	if err != nil {
		return nil, err
	}
	return &Server{session: session, connID: uuid.New().String(), handler: handler}, nil
}

// AcceptLoop blocks accepting inbound sub-streams and dispatching each
// to a new goroutine running handler, until the session closes or ctx
// is done. A panic in one sub-stream's handler is contained by
// internal/rescue and does not bring down the connection.
func (s *Server) AcceptLoop(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.session.Close()
	}()

	for {
		conn, err := s.session.Accept()
		if err != nil {
			if s.session.IsClosed() {
				return nil
			}
			return err
		}
		logger.Debugf("mux: conn=%s accepted sub-stream", s.connID)
		go s.serveStream(ctx, conn)
	}
}

func (s *Server) serveStream(ctx context.Context, conn io.ReadWriteCloser) {
	defer rescue.HandleCrash()
	defer conn.Close()
	s.handler(ctx, streamio.New(conn, 0))
}

// Close tears down every sub-stream on the connection.
func (s *Server) Close() error {
	return s.session.Close()
}

// NumStreams reports the number of currently open sub-streams, for
// admin/metrics surfaces.
func (s *Server) NumStreams() int {
	return s.session.NumStreams()
}

// Client wraps a single authenticated connection from the caller's
// side, opening outbound sub-streams on demand.
type Client struct {
	session *yamux.Session
	connID  string
}

// Dial wraps conn (typically a *tls.Conn straight off Dial) as a yamux
// session.
func Dial(conn net.Conn) (*Client, error) {
	session, err := yamux.Client(conn, config())
	if err != nil {
		return nil, err
	}
	return &Client{session: session, connID: uuid.New().String()}, nil
}

// OpenStream opens a new outbound sub-stream wrapped by the framed
// message adapter.
func (c *Client) OpenStream() (*streamio.Stream, error) {
	conn, err := c.session.Open()
	if err != nil {
		return nil, err
	}
	logger.Debugf("mux: conn=%s opened sub-stream", c.connID)
	return streamio.New(conn, 0), nil
}

// Close tears down every sub-stream on the connection.
func (c *Client) Close() error {
	return c.session.Close()
}
