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

package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmux/kvmux/broadcaster"
	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/storage/memstore"
)

func TestUnaryDispatchClosesAfterOneResponse(t *testing.T) {
	svc := New(memstore.New(), broadcaster.New(), Hooks{})
	ctx := context.Background()

	ch := svc.Execute(ctx, &message.CommandRequest{
		Verb:  message.VerbHSet,
		Table: "t1",
		Pair:  message.KvPair{Key: "k", Value: message.NewString("v")},
	})

	rsp, ok := <-ch
	require.True(t, ok)
	assert.EqualValues(t, http.StatusOK, rsp.Status)

	_, ok = <-ch
	assert.False(t, ok)
}

func TestOnBeforeSendMutatesUnaryOnly(t *testing.T) {
	var mutated int
	hooks := Hooks{
		OnBeforeSend: []BeforeSendHook{
			func(_ context.Context, rsp *message.CommandResponse) {
				mutated++
				rsp.Message = "touched"
			},
		},
	}
	svc := New(memstore.New(), broadcaster.New(), hooks)
	ctx := context.Background()

	ch := svc.Execute(ctx, &message.CommandRequest{Verb: message.VerbHGetAll, Table: "t1"})
	rsp := <-ch
	assert.Equal(t, "touched", rsp.Message)
	assert.Equal(t, 1, mutated)

	// SUBSCRIBE streams through the broadcaster channel directly; the
	// mutating hook must not run against its fanned-out payloads.
	sub := svc.Execute(ctx, &message.CommandRequest{Verb: message.VerbSubscribe, Topic: "t"})
	first := <-sub
	assert.NotEqual(t, "touched", first.Message)
	assert.Equal(t, 1, mutated)
}

func TestSubscribeThenPublishDelivers(t *testing.T) {
	bc := broadcaster.New()
	svc := New(memstore.New(), bc, Hooks{})
	ctx := context.Background()

	sub := svc.Execute(ctx, &message.CommandRequest{Verb: message.VerbSubscribe, Topic: "news"})
	idRsp := <-sub
	subID, err := idRsp.Values[0].Int64E()
	require.NoError(t, err)

	pub := svc.Execute(ctx, &message.CommandRequest{Verb: message.VerbPublish, Topic: "news", Values: []message.Value{message.NewString("hi")}})
	rsp := <-pub
	assert.EqualValues(t, http.StatusOK, rsp.Status)

	select {
	case got := <-sub:
		assert.Equal(t, "hi", got.Values[0].String())
	case <-time.After(time.Second):
		t.Fatal("expected published payload")
	}

	unsub := svc.Execute(ctx, &message.CommandRequest{Verb: message.VerbUnsubscribe, Topic: "news", SubID: uint32(subID)})
	rsp = <-unsub
	assert.EqualValues(t, http.StatusOK, rsp.Status)
}

func TestUnsubscribeUnknownIsNotFound(t *testing.T) {
	svc := New(memstore.New(), broadcaster.New(), Hooks{})
	ch := svc.Execute(context.Background(), &message.CommandRequest{Verb: message.VerbUnsubscribe, Topic: "t", SubID: 999})
	rsp := <-ch
	assert.EqualValues(t, http.StatusNotFound, rsp.Status)
}

func TestHooksRunInOrder(t *testing.T) {
	var order []string
	hooks := Hooks{
		OnReceived:   []ReceivedHook{func(context.Context, *message.CommandRequest) { order = append(order, "received") }},
		OnExecuted:   []ExecutedHook{func(context.Context, *message.CommandRequest, *message.CommandResponse) { order = append(order, "executed") }},
		OnBeforeSend: []BeforeSendHook{func(context.Context, *message.CommandResponse) { order = append(order, "before_send") }},
		OnAfterSend:  []AfterSendHook{func(context.Context) { order = append(order, "after_send") }},
	}
	svc := New(memstore.New(), broadcaster.New(), hooks)
	<-svc.Execute(context.Background(), &message.CommandRequest{Verb: message.VerbHGetAll, Table: "t"})

	assert.Equal(t, []string{"received", "executed", "before_send", "after_send"}, order)
}
