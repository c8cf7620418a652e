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
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/mux"
	"github.com/kvmux/kvmux/tlsconn"
)

var clientConfig struct {
	Address    string
	ServerName string
	CertFile   string
	KeyFile    string
	CAFile     string
}

var clientCmd = &cobra.Command{
	Use:   "client <verb> <table> [key] [value]",
	Short: "Send one command to a kvmux server and print the response",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		req, err := parseClientRequest(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid command: %v\n", err)
			os.Exit(1)
		}

		rsp, err := runClientRequest(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
			os.Exit(1)
		}
		printResponse(rsp)
	},
	Example: "# kvmux client hget t1 k1",
}

func init() {
	clientCmd.Flags().StringVar(&clientConfig.Address, "address", "127.0.0.1:7000", "Server address")
	clientCmd.Flags().StringVar(&clientConfig.ServerName, "server-name", "localhost", "Expected server certificate name")
	clientCmd.Flags().StringVar(&clientConfig.CertFile, "cert", "", "Client certificate (for mTLS)")
	clientCmd.Flags().StringVar(&clientConfig.KeyFile, "key", "", "Client private key (for mTLS)")
	clientCmd.Flags().StringVar(&clientConfig.CAFile, "ca", "", "Custom CA to verify the server against")
	rootCmd.AddCommand(clientCmd)
}

var verbsByName = map[string]message.Verb{
	"hget":      message.VerbHGet,
	"hgetall":   message.VerbHGetAll,
	"hset":      message.VerbHSet,
	"hmget":     message.VerbHMGet,
	"hmset":     message.VerbHMSet,
	"hdel":      message.VerbHDel,
	"hmdel":     message.VerbHMDel,
	"hexist":    message.VerbHExist,
	"hmexist":   message.VerbHMExist,
	"subscribe": message.VerbSubscribe,
	"publish":   message.VerbPublish,
}

func parseClientRequest(args []string) (*message.CommandRequest, error) {
	verb, ok := verbsByName[strings.ToLower(args[0])]
	if !ok {
		return nil, fmt.Errorf("unknown verb %q", args[0])
	}

	req := &message.CommandRequest{Verb: verb, Table: args[1]}
	rest := args[2:]

	switch verb {
	case message.VerbHGet, message.VerbHDel, message.VerbHExist:
		if len(rest) < 1 {
			return nil, fmt.Errorf("%s requires a key", args[0])
		}
		req.Key = rest[0]
	case message.VerbHGetAll:
		// table only
	case message.VerbHSet:
		if len(rest) < 2 {
			return nil, fmt.Errorf("hset requires a key and a value")
		}
		req.Pair = message.KvPair{Key: rest[0], Value: message.NewString(rest[1])}
	case message.VerbHMGet, message.VerbHMDel, message.VerbHMExist:
		req.Keys = rest
	case message.VerbSubscribe:
		req.Topic = args[1]
	case message.VerbPublish:
		req.Topic = args[1]
		for _, v := range rest {
			req.Values = append(req.Values, message.NewString(v))
		}
	}
	return req, nil
}

func runClientRequest(req *message.CommandRequest) (*message.CommandResponse, error) {
	var certPEM, keyPEM, caPEM []byte
	var err error
	if clientConfig.CertFile != "" {
		if certPEM, err = os.ReadFile(clientConfig.CertFile); err != nil {
			return nil, err
		}
		if keyPEM, err = os.ReadFile(clientConfig.KeyFile); err != nil {
			return nil, err
		}
	}
	if clientConfig.CAFile != "" {
		if caPEM, err = os.ReadFile(clientConfig.CAFile); err != nil {
			return nil, err
		}
	}

	tlsCfg, err := tlsconn.NewClientConfig(clientConfig.ServerName, certPEM, keyPEM, caPEM)
	if err != nil {
		return nil, err
	}

	conn, err := tls.Dial("tcp", clientConfig.Address, tlsCfg.TLSConfig())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	session, err := mux.Dial(conn)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	stream, err := session.OpenStream()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.WriteRequest(req); err != nil {
		return nil, err
	}
	if err := stream.Flush(); err != nil {
		return nil, err
	}

	return stream.ReadResponse()
}

func printResponse(rsp *message.CommandResponse) {
	fmt.Printf("status: %d\n", rsp.Status)
	if rsp.Message != "" {
		fmt.Printf("message: %s\n", rsp.Message)
	}
	for i, v := range rsp.Values {
		fmt.Printf("values[%d]: %s\n", i, v.String())
	}
	for _, p := range rsp.Pairs {
		fmt.Printf("%s: %s\n", p.Key, p.Value.String())
	}
}
