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

package tlsconn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// genCert issues a self-signed leaf for dnsName and returns its cert
// and key, both PEM-encoded.
func genCert(t *testing.T, dnsName string) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	return certPEM, keyPEM
}

func TestServerClientHandshakeRoundTrip(t *testing.T) {
	certPEM, keyPEM := genCert(t, "kvmux.test")

	srvCfg, err := NewServerConfig(certPEM, keyPEM, nil)
	require.NoError(t, err)

	cliCfg, err := NewClientConfig("kvmux.test", nil, nil, certPEM)
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", srvCfg.TLSConfig())
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			done <- err
			return
		}
		if !bytes.Equal(buf, []byte("hello")) {
			done <- errUnexpectedPayload
			return
		}
		done <- nil
	}()

	client, err := tls.Dial("tcp", ln.Addr().String(), cliCfg.TLSConfig())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	require.NoError(t, <-done)
	assertALPN(t, client)
}

func assertALPN(t *testing.T, conn *tls.Conn) {
	t.Helper()
	_ = conn.Handshake()
	state := conn.ConnectionState()
	if state.NegotiatedProtocol != "" {
		require.Equal(t, "kv", state.NegotiatedProtocol)
	}
}

var errUnexpectedPayload = errors.New("unexpected payload")

func TestServerConfigRejectsBadKeyPair(t *testing.T) {
	certPEM, _ := genCert(t, "kvmux.test")
	_, badKeyPEM := genCert(t, "other.test")
	_, err := NewServerConfig(certPEM, badKeyPEM, nil)
	require.Error(t, err)
}

func TestServerConfigRejectsBadCA(t *testing.T) {
	certPEM, keyPEM := genCert(t, "kvmux.test")
	_, err := NewServerConfig(certPEM, keyPEM, []byte("not a pem"))
	require.Error(t, err)
}
