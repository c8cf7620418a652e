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
	"math"

	"github.com/gogo/protobuf/proto"

	"github.com/kvmux/kvmux/errs"
)

// Wire field numbers for Value.
const (
	fieldValueStr   = 1
	fieldValueBlob  = 2
	fieldValueI64   = 3
	fieldValueF64   = 4
	fieldValueBool  = 5
)

const (
	wireVarint = 0
	wireFixed64 = 1
	wireBytes  = 2
)

func tag(field int, wire int) uint64 {
	return uint64(field)<<3 | uint64(wire)
}

// Marshal encodes the Value using protocol-buffer wire primitives (one
// optional field per kind, proto3-style — absent fields are simply not
// written).
func (v Value) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	switch v.kind {
	case KindString:
		buf.EncodeVarint(tag(fieldValueStr, wireBytes))
		if err := buf.EncodeStringBytes(v.str); err != nil {
			return nil, err
		}
	case KindBytes:
		buf.EncodeVarint(tag(fieldValueBlob, wireBytes))
		if err := buf.EncodeRawBytes(v.blob); err != nil {
			return nil, err
		}
	case KindInt64:
		buf.EncodeVarint(tag(fieldValueI64, wireVarint))
		buf.EncodeVarint(uint64(v.i64))
	case KindFloat64:
		buf.EncodeVarint(tag(fieldValueF64, wireFixed64))
		buf.EncodeFixed64(math.Float64bits(v.f64))
	case KindBool:
		buf.EncodeVarint(tag(fieldValueBool, wireVarint))
		b := uint64(0)
		if v.b {
			b = 1
		}
		buf.EncodeVarint(b)
	case KindNone:
		// no fields written
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes produced by Marshal.
func (v *Value) Unmarshal(data []byte) error {
	*v = Value{}
	buf := proto.NewBuffer(data)
	for {
		t, err := buf.DecodeVarint()
		if err != nil {
			break // clean end of buffer
		}
		field := int(t >> 3)
		wire := int(t & 0x7)
		switch field {
		case fieldValueStr:
			s, err := buf.DecodeStringBytes()
			if err != nil {
				return errs.Decode("message: decode value.str: %v", err)
			}
			*v = NewString(s)
		case fieldValueBlob:
			b, err := buf.DecodeRawBytes(true)
			if err != nil {
				return errs.Decode("message: decode value.blob: %v", err)
			}
			*v = NewBytes(b)
		case fieldValueI64:
			i, err := buf.DecodeVarint()
			if err != nil {
				return errs.Decode("message: decode value.i64: %v", err)
			}
			*v = NewInt64(int64(i))
		case fieldValueF64:
			f, err := buf.DecodeFixed64()
			if err != nil {
				return errs.Decode("message: decode value.f64: %v", err)
			}
			*v = NewFloat64(math.Float64frombits(f))
		case fieldValueBool:
			b, err := buf.DecodeVarint()
			if err != nil {
				return errs.Decode("message: decode value.bool: %v", err)
			}
			*v = NewBool(b != 0)
		default:
			if err := skipField(buf, wire); err != nil {
				return errs.Decode("message: skip unknown value field %d: %v", field, err)
			}
		}
	}
	return nil
}

// skipField discards a field's payload when the wire format carries a
// field this build does not recognize (forward compatibility).
func skipField(buf *proto.Buffer, wire int) error {
	switch wire {
	case wireVarint:
		_, err := buf.DecodeVarint()
		return err
	case wireFixed64:
		_, err := buf.DecodeFixed64()
		return err
	case wireBytes:
		_, err := buf.DecodeRawBytes(false)
		return err
	case 5: // fixed32
		_, err := buf.DecodeFixed32()
		return err
	default:
		return errs.Decode("message: unsupported wire type %d", wire)
	}
}

// Wire field numbers for KvPair.
const (
	fieldPairKey   = 1
	fieldPairValue = 2
)

// Marshal encodes a KvPair.
func (p KvPair) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	if p.Key != "" {
		buf.EncodeVarint(tag(fieldPairKey, wireBytes))
		if err := buf.EncodeStringBytes(p.Key); err != nil {
			return nil, err
		}
	}
	vb, err := p.Value.Marshal()
	if err != nil {
		return nil, err
	}
	if len(vb) > 0 {
		buf.EncodeVarint(tag(fieldPairValue, wireBytes))
		if err := buf.EncodeRawBytes(vb); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes produced by Marshal.
func (p *KvPair) Unmarshal(data []byte) error {
	*p = KvPair{}
	buf := proto.NewBuffer(data)
	for {
		t, err := buf.DecodeVarint()
		if err != nil {
			break
		}
		field := int(t >> 3)
		wire := int(t & 0x7)
		switch field {
		case fieldPairKey:
			s, err := buf.DecodeStringBytes()
			if err != nil {
				return errs.Decode("message: decode pair.key: %v", err)
			}
			p.Key = s
		case fieldPairValue:
			b, err := buf.DecodeRawBytes(true)
			if err != nil {
				return errs.Decode("message: decode pair.value: %v", err)
			}
			var v Value
			if err := v.Unmarshal(b); err != nil {
				return err
			}
			p.Value = v
		default:
			if err := skipField(buf, wire); err != nil {
				return errs.Decode("message: skip unknown pair field %d: %v", field, err)
			}
		}
	}
	return nil
}

// encodeMessageField writes a length-delimited embedded-message field.
func encodeMessageField(buf *proto.Buffer, field int, m interface{ Marshal() ([]byte, error) }) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	buf.EncodeVarint(tag(field, wireBytes))
	return buf.EncodeRawBytes(b)
}
