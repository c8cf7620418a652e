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

package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kvmux/kvmux/broadcaster"
	"github.com/kvmux/kvmux/common"
	"github.com/kvmux/kvmux/confengine"
	"github.com/kvmux/kvmux/config"
	"github.com/kvmux/kvmux/internal/fasttime"
	"github.com/kvmux/kvmux/internal/rescue"
	"github.com/kvmux/kvmux/internal/sigs"
	"github.com/kvmux/kvmux/logger"
	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/mux"
	"github.com/kvmux/kvmux/server"
	"github.com/kvmux/kvmux/service"
	"github.com/kvmux/kvmux/storage"
	"github.com/kvmux/kvmux/streamio"
	"github.com/kvmux/kvmux/tlsconn"
)

var serverConfigPath string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the kvmux server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(serverConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		srv, err := newKVServer(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
			os.Exit(1)
		}

		for {
			select {
			case <-sigs.Terminate():
				if err := srv.Stop(); err != nil {
					logger.Errorf("shutdown error: %v", err)
				}
				return

			case <-sigs.Reload():
				cfg, err := confengine.LoadConfigPath(serverConfigPath)
				if err != nil {
					logger.Errorf("failed to reload config: %v", err)
					continue
				}
				if err := srv.Reload(cfg); err != nil {
					logger.Errorf("failed to apply reloaded config: %v", err)
				}
			}
		}
	},
	Example: "# kvmux server --config kvmux.yaml",
}

func init() {
	serverCmd.Flags().StringVar(&serverConfigPath, "config", "kvmux.yaml", "Configuration file path")
	rootCmd.AddCommand(serverCmd)
}

// kvServer owns every long-lived component of one running instance:
// storage, the broadcaster, the dispatch pipeline, the TLS listener and
// the admin HTTP surface. Accepted multiplexed connections are served on
// their own goroutines and are not tracked here.
type kvServer struct {
	cfg   config.ServerConfig
	store storage.Store
	bcast *broadcaster.Broadcaster
	svc   *service.Service

	listener net.Listener
	admin    *server.Server

	startedAt time.Time
}

func newKVServer(conf *confengine.Config) (*kvServer, error) {
	var cfg config.ServerConfig
	if err := conf.Unpack(&cfg); err != nil {
		return nil, err
	}

	if cfg.Logger.Filename != "" || cfg.Logger.Stdout {
		logger.SetOptions(cfg.Logger)
	}

	store, err := config.OpenStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	bcast := broadcaster.New()
	hooks := service.Hooks{
		OnReceived: []service.ReceivedHook{func(_ context.Context, req *message.CommandRequest) {
			logger.Debugf("received verb=%s table=%s", req.Verb, req.Table)
		}},
		OnExecuted: []service.ExecutedHook{func(_ context.Context, req *message.CommandRequest, rsp *message.CommandResponse) {
			logger.Debugf("executed verb=%s status=%d", req.Verb, rsp.Status)
		}},
	}
	svc := service.New(store, bcast, hooks)

	admin, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	s := &kvServer{cfg: cfg, store: store, bcast: bcast, svc: svc, admin: admin}
	if admin != nil {
		s.registerAdminRoutes()
	}
	return s, nil
}

// Start loads the TLS identity, opens the listener, and begins
// accepting connections; each accepted connection is multiplexed and
// served in its own goroutine, guarded against panics by rescue.
func (s *kvServer) Start() error {
	certPEM, err := os.ReadFile(s.cfg.TLS.CertFile)
	if err != nil {
		return err
	}
	keyPEM, err := os.ReadFile(s.cfg.TLS.KeyFile)
	if err != nil {
		return err
	}
	var caPEM []byte
	if s.cfg.TLS.CAFile != "" {
		caPEM, err = os.ReadFile(s.cfg.TLS.CAFile)
		if err != nil {
			return err
		}
	}

	tlsCfg, err := tlsconn.NewServerConfig(certPEM, keyPEM, caPEM)
	if err != nil {
		return err
	}

	ln, err := newTLSListener(s.cfg.Listen, tlsCfg)
	if err != nil {
		return err
	}
	s.listener = ln
	s.startedAt = time.Now()

	go s.acceptLoop()

	if s.admin != nil {
		go func() {
			defer rescue.HandleCrash()
			if err := s.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("admin server: %v", err)
			}
		}()
	}

	logger.Infof("kvmux server listening on %s", s.cfg.Listen)
	return nil
}

func newTLSListener(addr string, cfg *tlsconn.ServerConfig) (net.Listener, error) {
	return tls.Listen("tcp", addr, cfg.TLSConfig())
}

func (s *kvServer) acceptLoop() {
	defer rescue.HandleCrash()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serveConn(conn)
	}
}

func (s *kvServer) serveConn(conn net.Conn) {
	defer rescue.HandleCrash()

	session, err := mux.Serve(conn, s.handleStream)
	if err != nil {
		logger.Errorf("mux: failed to establish session: %v", err)
		_ = conn.Close()
		return
	}
	if err := session.AcceptLoop(context.Background()); err != nil {
		logger.Debugf("mux: session ended: %v", err)
	}
}

// handleStream serves every request on one sub-stream in arrival
// order; a unary response is fully written before the next request is
// read, but a streaming (SUBSCRIBE) response drains on its own
// goroutine so the client can still send UNSUBSCRIBE on the same
// sub-stream without waiting for publishes to stop.
func (s *kvServer) handleStream(ctx context.Context, stream *streamio.Stream) {
	for {
		req, err := stream.ReadRequest()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debugf("stream: read error: %v", err)
			}
			return
		}

		ch := s.svc.Execute(ctx, req)
		if req.Verb == message.VerbSubscribe {
			go drainResponses(stream, ch)
			continue
		}
		drainResponses(stream, ch)
	}
}

func drainResponses(stream *streamio.Stream, ch <-chan *message.CommandResponse) {
	for rsp := range ch {
		if err := stream.WriteResponse(rsp); err != nil {
			logger.Debugf("stream: write error: %v", err)
			return
		}
		if err := stream.Flush(); err != nil {
			logger.Debugf("stream: flush error: %v", err)
			return
		}
	}
}

// Reload re-reads the configuration and re-applies only its logger
// options; the admin server, storage backend and listener are not
// hot-swapped (restart for that).
func (s *kvServer) Reload(conf *confengine.Config) error {
	var cfg config.ServerConfig
	if err := conf.Unpack(&cfg); err != nil {
		return err
	}
	if cfg.Logger.Filename != "" || cfg.Logger.Stdout {
		logger.SetOptions(cfg.Logger)
	}
	s.cfg.Logger = cfg.Logger
	return nil
}

// Stop closes the listener and the storage backend. Connections that
// were already accepted are not closed by Stop.
func (s *kvServer) Stop() error {
	var result *multierror.Error
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (s *kvServer) registerAdminRoutes() {
	s.admin.RegisterGetRoute("/metrics", promhttp.Handler().ServeHTTP)
	s.admin.RegisterGetRoute("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.admin.RegisterGetRoute("/-/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{
			"subscriptions":   s.bcast.NumSubscriptions(),
			"uptimeSeconds":   fasttime.UnixTimestamp() - s.startedAt.Unix(),
			"processStarted":  common.Started(),
			"concurrencyHint": common.Concurrency(),
		}
		b, err := json.Marshal(stats)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})
}
