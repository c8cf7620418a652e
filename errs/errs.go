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

// Package errs defines the unified error taxonomy shared by storage,
// command dispatch, framing and transport.
package errs

import (
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies an error for response-status mapping and logging.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidCommand
	KindFrame
	KindDecode
	KindStorage
	KindCertificate
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidCommand:
		return "invalid_command"
	case KindFrame:
		return "frame_error"
	case KindDecode:
		return "decode_error"
	case KindStorage:
		return "storage_error"
	case KindCertificate:
		return "certificate_parse_error"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Status maps a Kind onto the HTTP-style status convention used by
// message.CommandResponse.
func (k Kind) Status() uint32 {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidCommand:
		return http.StatusBadRequest
	case KindFrame, KindDecode, KindStorage, KindCertificate, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the concrete type behind every taxonomy member; it carries a
// Kind alongside the wrapped cause so callers can both pattern-match on
// Kind and print a full stack via %+v.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string {
	return e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Kind() Kind {
	return e.kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

// NotFound builds a KindNotFound error naming the missing thing.
func NotFound(what string, args ...any) *Error {
	return newError(KindNotFound, what, args...)
}

// InvalidCommand builds a KindInvalidCommand error.
func InvalidCommand(reason string, args ...any) *Error {
	return newError(KindInvalidCommand, reason, args...)
}

// Frame wraps a framing-layer failure (corrupt length, oversized frame).
func Frame(format string, args ...any) *Error {
	return newError(KindFrame, format, args...)
}

// Decode wraps a message-decode failure.
func Decode(format string, args ...any) *Error {
	return newError(KindDecode, format, args...)
}

// Storage wraps a backend I/O or encoding failure.
func Storage(cause error) *Error {
	return &Error{kind: KindStorage, cause: errors.WithStack(cause)}
}

// Certificate wraps a TLS setup failure, fatal at process scope.
func Certificate(role, kind string, cause error) *Error {
	return &Error{kind: KindCertificate, cause: errors.Wrapf(cause, "%s certificate (%s)", role, kind)}
}

// Internal is the escape hatch for unexpected conditions.
func Internal(format string, args ...any) *Error {
	return newError(KindInternal, format, args...)
}

// KindOf extracts the Kind of err, defaulting to KindInternal for any
// error that did not originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// StatusOf is shorthand for KindOf(err).Status().
func StatusOf(err error) uint32 {
	return KindOf(err).Status()
}
