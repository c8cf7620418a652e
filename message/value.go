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

// Package message defines the serializable request/response/value schema
// shared by every command verb, encoded protobuf-wire-compatible.
package message

import (
	"github.com/spf13/cast"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindBytes
	KindInt64
	KindFloat64
	KindBool
)

// Value is a tagged variant holding exactly one of string/blob/int64/
// float64/bool. The zero Value is KindNone, used as the "no previous
// value" default returned by HSET on a fresh key.
type Value struct {
	kind Kind
	str  string
	blob []byte
	i64  int64
	f64  float64
	b    bool
}

func NewString(s string) Value   { return Value{kind: KindString, str: s} }
func NewBytes(b []byte) Value    { return Value{kind: KindBytes, blob: b} }
func NewInt64(i int64) Value     { return Value{kind: KindInt64, i64: i} }
func NewFloat64(f float64) Value { return Value{kind: KindFloat64, f64: f} }
func NewBool(b bool) Value       { return Value{kind: KindBool, b: b} }

// Default is the "no previous value" placeholder returned in values[0]
// when HSET had nothing to overwrite.
func Default() Value { return Value{} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBytes:
		return string(v.blob)
	default:
		s, _ := cast.ToStringE(v.asAny())
		return s
	}
}

func (v Value) Bytes() []byte {
	if v.kind == KindBytes {
		return v.blob
	}
	return []byte(v.String())
}

// Int64E coerces the value to an int64, using spf13/cast for the
// cross-kind conversions (e.g. a numeric string or a bool sent where an
// integer was expected).
func (v Value) Int64E() (int64, error) {
	if v.kind == KindInt64 {
		return v.i64, nil
	}
	return cast.ToInt64E(v.asAny())
}

// Float64E coerces the value to a float64.
func (v Value) Float64E() (float64, error) {
	if v.kind == KindFloat64 {
		return v.f64, nil
	}
	return cast.ToFloat64E(v.asAny())
}

// BoolE coerces the value to a bool.
func (v Value) BoolE() (bool, error) {
	if v.kind == KindBool {
		return v.b, nil
	}
	return cast.ToBoolE(v.asAny())
}

func (v Value) asAny() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindBytes:
		return string(v.blob)
	case KindInt64:
		return v.i64
	case KindFloat64:
		return v.f64
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Equal reports whether two values are totally comparable for equality:
// same kind, same payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBytes:
		return string(v.blob) == string(o.blob)
	case KindInt64:
		return v.i64 == o.i64
	case KindFloat64:
		return v.f64 == o.f64
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// Less implements the partial ordering: only two strings, two int64s or
// two float64s are orderable; ok is false otherwise.
func (v Value) Less(o Value) (less bool, ok bool) {
	if v.kind != o.kind {
		return false, false
	}
	switch v.kind {
	case KindString:
		return v.str < o.str, true
	case KindInt64:
		return v.i64 < o.i64, true
	case KindFloat64:
		return v.f64 < o.f64, true
	default:
		return false, false
	}
}

// KvPair is a (key, value) pair scoped to a table.
type KvPair struct {
	Key   string
	Value Value
}
