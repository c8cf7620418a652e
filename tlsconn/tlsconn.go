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

// Package tlsconn builds the immutable server/client TLS configuration
// the multiplexer authenticates and encrypts every connection with.
// crypto/tls and crypto/x509 are the one stdlib-by-necessity component
// in this module: no library in the dependency graph supersedes
// building a *tls.Config from PEM material.
package tlsconn

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/kvmux/kvmux/common"
	"github.com/kvmux/kvmux/errs"
)

// ServerConfig builds the immutable *tls.Config a listener accepts
// connections with.
type ServerConfig struct {
	cfg *tls.Config
}

// NewServerConfig parses certPEM/keyPEM as the server's identity. When
// caPEM is non-empty, client certificates are required and verified
// against it (mTLS); otherwise clients are not authenticated.
func NewServerConfig(certPEM, keyPEM, caPEM []byte) (*ServerConfig, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errs.Certificate("server", "keypair", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{common.ALPNProto},
		MinVersion:   tls.VersionTLS12,
	}

	if len(caPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errs.Certificate("server", "ca", errInvalidPEM)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return &ServerConfig{cfg: cfg}, nil
}

// TLSConfig exposes the built config for use with tls.Server or
// tls.Listen.
func (s *ServerConfig) TLSConfig() *tls.Config {
	return s.cfg
}

// ClientConfig builds the immutable *tls.Config a dialer connects with.
type ClientConfig struct {
	cfg *tls.Config
}

// NewClientConfig builds a config that verifies the server's
// certificate against serverName (and, when caPEM is set, against a
// pinned custom CA rather than the system roots). certPEM/keyPEM are
// optional and present the client's own identity for mTLS.
func NewClientConfig(serverName string, certPEM, keyPEM, caPEM []byte) (*ClientConfig, error) {
	cfg := &tls.Config{
		ServerName: serverName,
		NextProtos: []string{common.ALPNProto},
		MinVersion: tls.VersionTLS12,
	}

	if len(certPEM) > 0 {
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		if err != nil {
			return nil, errs.Certificate("client", "keypair", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if len(caPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errs.Certificate("client", "ca", errInvalidPEM)
		}
		cfg.RootCAs = pool
	}

	return &ClientConfig{cfg: cfg}, nil
}

// TLSConfig exposes the built config for use with tls.Client or
// tls.Dial.
func (c *ClientConfig) TLSConfig() *tls.Config {
	return c.cfg
}

var errInvalidPEM = errs.Internal("tlsconn: no certificates found in PEM block")
