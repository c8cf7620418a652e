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
	"github.com/gogo/protobuf/proto"

	"github.com/kvmux/kvmux/errs"
)

// Verb tags the single variant carried by a CommandRequest.
type Verb uint8

const (
	VerbUnknown Verb = iota
	VerbHGet
	VerbHGetAll
	VerbHSet
	VerbHMGet
	VerbHMSet
	VerbHDel
	VerbHMDel
	VerbHExist
	VerbHMExist
	VerbSubscribe
	VerbUnsubscribe
	VerbPublish
)

func (v Verb) String() string {
	switch v {
	case VerbHGet:
		return "HGET"
	case VerbHGetAll:
		return "HGETALL"
	case VerbHSet:
		return "HSET"
	case VerbHMGet:
		return "HMGET"
	case VerbHMSet:
		return "HMSET"
	case VerbHDel:
		return "HDEL"
	case VerbHMDel:
		return "HMDEL"
	case VerbHExist:
		return "HEXIST"
	case VerbHMExist:
		return "HMEXIST"
	case VerbSubscribe:
		return "SUBSCRIBE"
	case VerbUnsubscribe:
		return "UNSUBSCRIBE"
	case VerbPublish:
		return "PUBLISH"
	default:
		return "UNKNOWN"
	}
}

// IsPubSub reports whether the verb is handled by the broadcaster rather
// than a storage-backed unary handler.
func (v Verb) IsPubSub() bool {
	switch v {
	case VerbSubscribe, VerbUnsubscribe, VerbPublish:
		return true
	default:
		return false
	}
}

// CommandRequest is a tagged variant carrying exactly one verb's
// arguments; unused fields for a given Verb are simply zero.
type CommandRequest struct {
	Verb  Verb
	Table string
	Key   string
	Keys  []string
	Pair  KvPair
	Pairs []KvPair

	Topic string
	SubID uint32
	Values []Value
}

// Wire field numbers for CommandRequest.
const (
	fieldReqVerb   = 1
	fieldReqTable  = 2
	fieldReqKey    = 3
	fieldReqKeys   = 4
	fieldReqPair   = 5
	fieldReqPairs  = 6
	fieldReqTopic  = 7
	fieldReqSubID  = 8
	fieldReqValues = 9
)

// Marshal encodes the request.
func (r *CommandRequest) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	buf.EncodeVarint(tag(fieldReqVerb, wireVarint))
	buf.EncodeVarint(uint64(r.Verb))

	if r.Table != "" {
		buf.EncodeVarint(tag(fieldReqTable, wireBytes))
		if err := buf.EncodeStringBytes(r.Table); err != nil {
			return nil, err
		}
	}
	if r.Key != "" {
		buf.EncodeVarint(tag(fieldReqKey, wireBytes))
		if err := buf.EncodeStringBytes(r.Key); err != nil {
			return nil, err
		}
	}
	for _, k := range r.Keys {
		buf.EncodeVarint(tag(fieldReqKeys, wireBytes))
		if err := buf.EncodeStringBytes(k); err != nil {
			return nil, err
		}
	}
	if !r.Pair.Value.IsNone() || r.Pair.Key != "" {
		if err := encodeMessageField(buf, fieldReqPair, r.Pair); err != nil {
			return nil, err
		}
	}
	for _, p := range r.Pairs {
		if err := encodeMessageField(buf, fieldReqPairs, p); err != nil {
			return nil, err
		}
	}
	if r.Topic != "" {
		buf.EncodeVarint(tag(fieldReqTopic, wireBytes))
		if err := buf.EncodeStringBytes(r.Topic); err != nil {
			return nil, err
		}
	}
	if r.SubID != 0 {
		buf.EncodeVarint(tag(fieldReqSubID, wireVarint))
		buf.EncodeVarint(uint64(r.SubID))
	}
	for _, v := range r.Values {
		if err := encodeMessageField(buf, fieldReqValues, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes produced by Marshal; unknown verbs are
// rejected by the caller (the dispatcher), not here — this layer only
// rejects malformed wire data.
func (r *CommandRequest) Unmarshal(data []byte) error {
	*r = CommandRequest{}
	buf := proto.NewBuffer(data)
	for {
		t, err := buf.DecodeVarint()
		if err != nil {
			break
		}
		field := int(t >> 3)
		wire := int(t & 0x7)
		switch field {
		case fieldReqVerb:
			v, err := buf.DecodeVarint()
			if err != nil {
				return errs.Decode("message: decode request.verb: %v", err)
			}
			r.Verb = Verb(v)
		case fieldReqTable:
			s, err := buf.DecodeStringBytes()
			if err != nil {
				return errs.Decode("message: decode request.table: %v", err)
			}
			r.Table = s
		case fieldReqKey:
			s, err := buf.DecodeStringBytes()
			if err != nil {
				return errs.Decode("message: decode request.key: %v", err)
			}
			r.Key = s
		case fieldReqKeys:
			s, err := buf.DecodeStringBytes()
			if err != nil {
				return errs.Decode("message: decode request.keys: %v", err)
			}
			r.Keys = append(r.Keys, s)
		case fieldReqPair:
			b, err := buf.DecodeRawBytes(true)
			if err != nil {
				return errs.Decode("message: decode request.pair: %v", err)
			}
			var p KvPair
			if err := p.Unmarshal(b); err != nil {
				return err
			}
			r.Pair = p
		case fieldReqPairs:
			b, err := buf.DecodeRawBytes(true)
			if err != nil {
				return errs.Decode("message: decode request.pairs: %v", err)
			}
			var p KvPair
			if err := p.Unmarshal(b); err != nil {
				return err
			}
			r.Pairs = append(r.Pairs, p)
		case fieldReqTopic:
			s, err := buf.DecodeStringBytes()
			if err != nil {
				return errs.Decode("message: decode request.topic: %v", err)
			}
			r.Topic = s
		case fieldReqSubID:
			v, err := buf.DecodeVarint()
			if err != nil {
				return errs.Decode("message: decode request.sub_id: %v", err)
			}
			r.SubID = uint32(v)
		case fieldReqValues:
			b, err := buf.DecodeRawBytes(true)
			if err != nil {
				return errs.Decode("message: decode request.values: %v", err)
			}
			var v Value
			if err := v.Unmarshal(b); err != nil {
				return err
			}
			r.Values = append(r.Values, v)
		default:
			if err := skipField(buf, wire); err != nil {
				return errs.Decode("message: skip unknown request field %d: %v", field, err)
			}
		}
	}
	return nil
}

// CommandResponse mirrors HTTP status conventions; Message is empty on
// success.
type CommandResponse struct {
	Status  uint32
	Message string
	Values  []Value
	Pairs   []KvPair
}

// Wire field numbers for CommandResponse.
const (
	fieldRspStatus  = 1
	fieldRspMessage = 2
	fieldRspValues  = 3
	fieldRspPairs   = 4
)

// OK builds a 200 response carrying the given values/pairs.
func OK(values []Value, pairs []KvPair) *CommandResponse {
	return &CommandResponse{Status: 200, Values: values, Pairs: pairs}
}

// FromError builds a response reflecting err's taxonomy Kind.
func FromError(err error) *CommandResponse {
	return &CommandResponse{Status: errs.StatusOf(err), Message: err.Error()}
}

// Marshal encodes the response.
func (r *CommandResponse) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	buf.EncodeVarint(tag(fieldRspStatus, wireVarint))
	buf.EncodeVarint(uint64(r.Status))

	if r.Message != "" {
		buf.EncodeVarint(tag(fieldRspMessage, wireBytes))
		if err := buf.EncodeStringBytes(r.Message); err != nil {
			return nil, err
		}
	}
	for _, v := range r.Values {
		if err := encodeMessageField(buf, fieldRspValues, v); err != nil {
			return nil, err
		}
	}
	for _, p := range r.Pairs {
		if err := encodeMessageField(buf, fieldRspPairs, p); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes bytes produced by Marshal.
func (r *CommandResponse) Unmarshal(data []byte) error {
	*r = CommandResponse{}
	buf := proto.NewBuffer(data)
	for {
		t, err := buf.DecodeVarint()
		if err != nil {
			break
		}
		field := int(t >> 3)
		wire := int(t & 0x7)
		switch field {
		case fieldRspStatus:
			v, err := buf.DecodeVarint()
			if err != nil {
				return errs.Decode("message: decode response.status: %v", err)
			}
			r.Status = uint32(v)
		case fieldRspMessage:
			s, err := buf.DecodeStringBytes()
			if err != nil {
				return errs.Decode("message: decode response.message: %v", err)
			}
			r.Message = s
		case fieldRspValues:
			b, err := buf.DecodeRawBytes(true)
			if err != nil {
				return errs.Decode("message: decode response.values: %v", err)
			}
			var v Value
			if err := v.Unmarshal(b); err != nil {
				return err
			}
			r.Values = append(r.Values, v)
		case fieldRspPairs:
			b, err := buf.DecodeRawBytes(true)
			if err != nil {
				return errs.Decode("message: decode response.pairs: %v", err)
			}
			var p KvPair
			if err := p.Unmarshal(b); err != nil {
				return err
			}
			r.Pairs = append(r.Pairs, p)
		default:
			if err := skipField(buf, wire); err != nil {
				return errs.Decode("message: skip unknown response field %d: %v", field, err)
			}
		}
	}
	return nil
}
