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

package common

const (
	// App 应用程序名称
	App = "kvmux"

	// Version 应用程序版本
	Version = "v0.1.0"

	// CompressionThreshold 帧体超过该字节数时启用 Gzip 压缩
	//
	// 略低于典型以太网 MTU 减去 IP/TCP/TLS 开销后的大小
	// 小消息避免压缩开销 大消息从压缩中获益
	CompressionThreshold = 1436

	// MaxFrameLength 帧长度字段的最大取值 (2^31 - 1)
	MaxFrameLength = 1<<31 - 1

	// SubscriptionBuffer 单个订阅投递队列的默认容量
	SubscriptionBuffer = 128

	// ALPNProto 多路复用连接使用的 ALPN 协议标识
	ALPNProto = "kv"
)
