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

// Package command executes the storage-backed KV verbs (HGET, HSET and
// their bulk/existence counterparts) against a storage.Store, turning a
// decoded CommandRequest into a CommandResponse. The pub/sub verbs
// (SUBSCRIBE/UNSUBSCRIBE/PUBLISH) are not handled here — they dispatch
// through the broadcaster instead, selected upstream by Verb.IsPubSub.
package command

import (
	"context"

	"github.com/kvmux/kvmux/errs"
	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/storage"
)

// Handler executes the storage-backed verb set against one Store.
type Handler struct {
	store storage.Store
}

// New builds a Handler over store.
func New(store storage.Store) *Handler {
	return &Handler{store: store}
}

// Execute dispatches req.Verb. Callers must not pass a pub/sub verb
// (req.Verb.IsPubSub()); Execute rejects it as an invalid command.
func (h *Handler) Execute(ctx context.Context, req *message.CommandRequest) *message.CommandResponse {
	var (
		rsp *message.CommandResponse
		err error
	)
	switch req.Verb {
	case message.VerbHGet:
		rsp, err = h.hget(ctx, req)
	case message.VerbHGetAll:
		rsp, err = h.hgetAll(ctx, req)
	case message.VerbHSet:
		rsp, err = h.hset(ctx, req)
	case message.VerbHMGet:
		rsp, err = h.hmget(ctx, req)
	case message.VerbHMSet:
		rsp, err = h.hmset(ctx, req)
	case message.VerbHDel:
		rsp, err = h.hdel(ctx, req)
	case message.VerbHMDel:
		rsp, err = h.hmdel(ctx, req)
	case message.VerbHExist:
		rsp, err = h.hexist(ctx, req)
	case message.VerbHMExist:
		rsp, err = h.hmexist(ctx, req)
	default:
		err = errs.InvalidCommand("command: unsupported verb %s", req.Verb)
	}
	if err != nil {
		return message.FromError(err)
	}
	return rsp
}

func (h *Handler) hget(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	v, ok, err := h.store.Get(ctx, req.Table, req.Key)
	if err != nil {
		return nil, errs.Storage(err)
	}
	if !ok {
		return nil, errs.NotFound("command: Not found: key %q in table %q", req.Key, req.Table)
	}
	return message.OK([]message.Value{v}, nil), nil
}

func (h *Handler) hgetAll(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	pairs, err := h.store.GetAll(ctx, req.Table)
	if err != nil {
		return nil, errs.Storage(err)
	}
	return message.OK(nil, pairs), nil
}

func (h *Handler) hset(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	prev, had, err := h.store.Set(ctx, req.Table, req.Pair.Key, req.Pair.Value)
	if err != nil {
		return nil, errs.Storage(err)
	}
	if !had {
		prev = message.Default()
	}
	return message.OK([]message.Value{prev}, nil), nil
}

// hmget returns one value per requested key, in request order; a
// missing key contributes the default value rather than shortening the
// result or failing the whole batch.
func (h *Handler) hmget(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	values := make([]message.Value, len(req.Keys))
	for i, key := range req.Keys {
		v, ok, err := h.store.Get(ctx, req.Table, key)
		if err != nil {
			return nil, errs.Storage(err)
		}
		if ok {
			values[i] = v
		} else {
			values[i] = message.Default()
		}
	}
	return message.OK(values, nil), nil
}

// hmset applies every pair in order and returns each one's previous
// value, aligned by index with req.Pairs.
func (h *Handler) hmset(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	values := make([]message.Value, len(req.Pairs))
	for i, p := range req.Pairs {
		prev, had, err := h.store.Set(ctx, req.Table, p.Key, p.Value)
		if err != nil {
			return nil, errs.Storage(err)
		}
		if had {
			values[i] = prev
		} else {
			values[i] = message.Default()
		}
	}
	return message.OK(values, nil), nil
}

func (h *Handler) hdel(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	prev, had, err := h.store.Del(ctx, req.Table, req.Key)
	if err != nil {
		return nil, errs.Storage(err)
	}
	if !had {
		prev = message.Default()
	}
	return message.OK([]message.Value{prev}, nil), nil
}

func (h *Handler) hmdel(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	values := make([]message.Value, len(req.Keys))
	for i, key := range req.Keys {
		prev, had, err := h.store.Del(ctx, req.Table, key)
		if err != nil {
			return nil, errs.Storage(err)
		}
		if had {
			values[i] = prev
		} else {
			values[i] = message.Default()
		}
	}
	return message.OK(values, nil), nil
}

func (h *Handler) hexist(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	ok, err := h.store.Contains(ctx, req.Table, req.Key)
	if err != nil {
		return nil, errs.Storage(err)
	}
	return message.OK([]message.Value{message.NewBool(ok)}, nil), nil
}

func (h *Handler) hmexist(ctx context.Context, req *message.CommandRequest) (*message.CommandResponse, error) {
	values := make([]message.Value, len(req.Keys))
	for i, key := range req.Keys {
		ok, err := h.store.Contains(ctx, req.Table, key)
		if err != nil {
			return nil, errs.Storage(err)
		}
		values[i] = message.NewBool(ok)
	}
	return message.OK(values, nil), nil
}
