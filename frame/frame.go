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

// Package frame implements the length-prefixed, optionally Gzip-compressed
// wire envelope described by spec §4.1: a 4-byte big-endian header (high
// bit: compression flag, low 31 bits: payload length) followed by the
// payload.
package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/kvmux/kvmux/common"
	"github.com/kvmux/kvmux/errs"
)

const (
	headerSize   = 4
	compressFlag = uint32(1) << 31
	lengthMask   = compressFlag - 1
)

var gzipWriterPool = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

var gzipBufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Encode serializes payload into the wire envelope, compressing with
// Gzip when it exceeds common.CompressionThreshold bytes.
func Encode(w io.Writer, payload []byte) error {
	if len(payload) > common.MaxFrameLength {
		return errs.Frame("frame: payload too large (%d bytes)", len(payload))
	}

	body := payload
	compressed := false
	if len(payload) > common.CompressionThreshold {
		buf := gzipBufPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer gzipBufPool.Put(buf)

		gz := gzipWriterPool.Get().(*gzip.Writer)
		defer gzipWriterPool.Put(gz)
		gz.Reset(buf)

		if _, err := gz.Write(payload); err != nil {
			return errs.Frame("frame: gzip write: %v", err)
		}
		if err := gz.Close(); err != nil {
			return errs.Frame("frame: gzip close: %v", err)
		}
		body = buf.Bytes()
		compressed = true
	}

	header := uint32(len(body))
	if compressed {
		header |= compressFlag
	}

	var hb [headerSize]byte
	binary.BigEndian.PutUint32(hb[:], header)
	if _, err := w.Write(hb[:]); err != nil {
		return errs.Frame("frame: write header: %v", err)
	}
	if _, err := w.Write(body); err != nil {
		return errs.Frame("frame: write body: %v", err)
	}
	return nil
}

// Decode reads one envelope from r and returns the decompressed payload.
// It returns io.EOF (unwrapped) when r is exhausted cleanly between
// frames, and a *errs.Error of KindFrame on mid-frame truncation or an
// oversized length.
func Decode(r io.Reader) ([]byte, error) {
	var hb [headerSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errs.Frame("frame: read header: %v", err)
	}

	header := binary.BigEndian.Uint32(hb[:])
	compressed := header&compressFlag != 0
	length := header & lengthMask
	if length > common.MaxFrameLength {
		return nil, errs.Frame("frame: length %d exceeds maximum", length)
	}
	if length == 0 {
		return nil, errs.Frame("frame: zero-length frame")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errs.Frame("frame: truncated payload: %v", err)
	}

	if !compressed {
		return body, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Frame("frame: gzip open: %v", err)
	}
	defer gz.Close()

	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, errs.Frame("frame: gzip read: %v", err)
	}
	return out, nil
}
