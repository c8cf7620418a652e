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

// Package tracekit generates and extracts trace/span ids; the service
// pipeline generates one pair per dispatch and logs it. The ids are not
// passed to the pipeline's observer hooks.
package tracekit

import (
	"crypto/rand"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const headerTraceParent = "traceparent"

// TraceIDFromHTTPHeader extracts a TraceID from a W3C traceparent
// header: "00-{trace-id}-{parent-id}-{trace-flags}".
func TraceIDFromHTTPHeader(h http.Header) (trace.TraceID, bool) {
	var empty trace.TraceID
	s := h.Get(headerTraceParent)
	if s == "" {
		return empty, false
	}

	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return empty, false
	}
	if parts[0] != "00" {
		return empty, false
	}

	id, err := trace.TraceIDFromHex(parts[1])
	if err != nil {
		return empty, false
	}
	return id, true
}

// RandomTraceID generates a TraceID for a connection or request that
// arrived without an upstream traceparent header.
func RandomTraceID() trace.TraceID {
	var id trace.TraceID
	_, _ = rand.Read(id[:])
	return id
}

// RandomSpanID generates a SpanID for one pipeline hop.
func RandomSpanID() trace.SpanID {
	var id trace.SpanID
	_, _ = rand.Read(id[:])
	return id
}
