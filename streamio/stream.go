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

// Package streamio turns a bidirectional byte stream (one multiplexed
// sub-stream) into a typed message stream: decoded CommandRequest/
// CommandResponse in, framed bytes buffered out until Flush.
package streamio

import (
	"bufio"
	"io"
	"sync"

	"github.com/kvmux/kvmux/frame"
	"github.com/kvmux/kvmux/message"
)

// Stream wraps one bidirectional byte stream. Reading and writing may
// proceed concurrently only if the underlying rwc supports split
// half-duplex use (true of yamux streams and TLS connections); callers
// that can't guarantee that must synchronize externally.
type Stream struct {
	rwc io.ReadWriteCloser

	writeMu sync.Mutex
	w       *bufio.Writer
}

// New wraps rwc. bufSize controls the outbound buffering threshold; 0
// selects bufio's default.
func New(rwc io.ReadWriteCloser, bufSize int) *Stream {
	var w *bufio.Writer
	if bufSize > 0 {
		w = bufio.NewWriterSize(rwc, bufSize)
	} else {
		w = bufio.NewWriter(rwc)
	}
	return &Stream{rwc: rwc, w: w}
}

// ReadRequest blocks for the next frame and decodes it as a
// CommandRequest. It returns io.EOF when the peer closed the stream
// cleanly between frames.
func (s *Stream) ReadRequest() (*message.CommandRequest, error) {
	payload, err := frame.Decode(s.rwc)
	if err != nil {
		return nil, err
	}
	req := new(message.CommandRequest)
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	return req, nil
}

// ReadResponse is ReadRequest's client-side counterpart.
func (s *Stream) ReadResponse() (*message.CommandResponse, error) {
	payload, err := frame.Decode(s.rwc)
	if err != nil {
		return nil, err
	}
	rsp := new(message.CommandResponse)
	if err := rsp.Unmarshal(payload); err != nil {
		return nil, err
	}
	return rsp, nil
}

// WriteRequest encodes req and appends it to the write buffer; call
// Flush to guarantee delivery to the underlying stream.
func (s *Stream) WriteRequest(req *message.CommandRequest) error {
	payload, err := req.Marshal()
	if err != nil {
		return err
	}
	return s.writeFrame(payload)
}

// WriteResponse is WriteRequest's server-side counterpart.
func (s *Stream) WriteResponse(rsp *message.CommandResponse) error {
	payload, err := rsp.Marshal()
	if err != nil {
		return err
	}
	return s.writeFrame(payload)
}

func (s *Stream) writeFrame(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return frame.Encode(s.w, payload)
}

// Flush guarantees every WriteRequest/WriteResponse accepted so far has
// reached the underlying stream.
func (s *Stream) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.w.Flush()
}

// Close flushes then closes the underlying stream.
func (s *Stream) Close() error {
	_ = s.Flush()
	return s.rwc.Close()
}
