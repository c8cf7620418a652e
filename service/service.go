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

// Package service is the dispatch pipeline between a decoded
// CommandRequest and the uniform response stream a transport loop
// forwards to the caller. It registers four observer hook slices once
// at construction (on_received/on_executed/on_before_send/on_after_send)
// and walks them in order around every dispatch, mirroring the donor
// pipeline's register-once, walk-in-order idiom.
package service

import (
	"context"

	"github.com/kvmux/kvmux/broadcaster"
	"github.com/kvmux/kvmux/command"
	"github.com/kvmux/kvmux/errs"
	"github.com/kvmux/kvmux/internal/tracekit"
	"github.com/kvmux/kvmux/logger"
	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/storage"
)

// ReceivedHook observes a request as it enters the pipeline.
type ReceivedHook func(ctx context.Context, req *message.CommandRequest)

// ExecutedHook observes a unary response right after the handler ran.
type ExecutedHook func(ctx context.Context, req *message.CommandRequest, rsp *message.CommandResponse)

// BeforeSendHook may mutate a unary response before it is handed to the
// transport. It is the only hook permitted to mutate.
type BeforeSendHook func(ctx context.Context, rsp *message.CommandResponse)

// AfterSendHook observes that a unary response was handed off.
type AfterSendHook func(ctx context.Context)

// Hooks is the immutable set of observer slices, registered once at
// construction and walked in order on every dispatch.
type Hooks struct {
	OnReceived   []ReceivedHook
	OnExecuted   []ExecutedHook
	OnBeforeSend []BeforeSendHook
	OnAfterSend  []AfterSendHook
}

// Service is the ServiceInner equivalent: one storage-backed command
// handler, one broadcaster, and the registered hook set.
type Service struct {
	handler     *command.Handler
	broadcaster *broadcaster.Broadcaster
	hooks       Hooks
}

// New builds a Service over store, sharing bcast for every SUBSCRIBE/
// UNSUBSCRIBE/PUBLISH this service dispatches.
func New(store storage.Store, bcast *broadcaster.Broadcaster, hooks Hooks) *Service {
	return &Service{
		handler:     command.New(store),
		broadcaster: bcast,
		hooks:       hooks,
	}
}

// Execute dispatches req and returns the uniform response channel: a
// one-element channel for every KV verb, or the broadcaster's own
// channel directly for SUBSCRIBE. Callers drain until the channel
// closes (unary channels close after their single send).
func (s *Service) Execute(ctx context.Context, req *message.CommandRequest) <-chan *message.CommandResponse {
	traceID := tracekit.RandomTraceID()
	spanID := tracekit.RandomSpanID()
	logger.Debugf("service: dispatch trace=%s span=%s verb=%s table=%s", traceID, spanID, req.Verb, req.Table)

	for _, hook := range s.hooks.OnReceived {
		hook(ctx, req)
	}

	if req.Verb.IsPubSub() {
		return s.executePubSub(ctx, req)
	}
	return s.executeUnary(ctx, req)
}

func (s *Service) executeUnary(ctx context.Context, req *message.CommandRequest) <-chan *message.CommandResponse {
	rsp := s.handler.Execute(ctx, req)

	for _, hook := range s.hooks.OnExecuted {
		hook(ctx, req, rsp)
	}
	// on_before_send is invoked only for unary results, never for the
	// broadcaster's streaming channel — the source never runs its
	// mutating hook on fanned-out publish payloads, and this pipeline
	// preserves that asymmetry rather than smoothing it away.
	for _, hook := range s.hooks.OnBeforeSend {
		hook(ctx, rsp)
	}

	out := make(chan *message.CommandResponse, 1)
	out <- rsp
	close(out)

	for _, hook := range s.hooks.OnAfterSend {
		hook(ctx)
	}
	return out
}

func (s *Service) executePubSub(ctx context.Context, req *message.CommandRequest) <-chan *message.CommandResponse {
	switch req.Verb {
	case message.VerbSubscribe:
		_, ch := s.broadcaster.Subscribe(req.Topic)
		return ch

	case message.VerbUnsubscribe:
		out := make(chan *message.CommandResponse, 1)
		err := s.broadcaster.Unsubscribe(req.Topic, req.SubID)
		if err != nil {
			out <- message.FromError(err)
		} else {
			out <- message.OK(nil, nil)
		}
		close(out)
		for _, hook := range s.hooks.OnAfterSend {
			hook(ctx)
		}
		return out

	case message.VerbPublish:
		out := make(chan *message.CommandResponse, 1)
		s.broadcaster.Publish(req.Topic, message.OK(req.Values, nil))
		out <- message.OK(nil, nil)
		close(out)
		for _, hook := range s.hooks.OnAfterSend {
			hook(ctx)
		}
		return out

	default:
		out := make(chan *message.CommandResponse, 1)
		out <- message.FromError(errs.InvalidCommand("service: unreachable pub/sub verb %s", req.Verb))
		close(out)
		return out
	}
}
