// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"sync"
	"time"

	ouroboros "github.com/blinklabs-io/ouroboros-agent"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/keepalive"
	"github.com/blinklabs-io/ouroboros-agent/protocol/peersharing"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func peersCmd(flags *globalFlags) *cobra.Command {
	var amount uint8
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Request peer addresses with peer-sharing",
		RunE: func(cmd *cobra.Command, args []string) error {
			done := make(chan error, 1)
			cfg := peersharing.NewConfig(
				peersharing.WithSharePeersFunc(
					func(ctx peersharing.CallbackContext, peers []peersharing.PeerAddress) error {
						if len(peers) == 0 {
							pterm.Warning.Println("peer returned no addresses")
						} else {
							items := make([]pterm.BulletListItem, 0, len(peers))
							for _, peer := range peers {
								items = append(items, pterm.BulletListItem{Level: 0, Text: peer.String()})
							}
							if err := pterm.DefaultBulletList.WithItems(items).Render(); err != nil {
								return err
							}
						}
						ctx.Client.MarkDone()
						done <- nil
						return nil
					},
				),
			)
			client := peersharing.NewClient(&cfg, protocol.WithLogger(logger))
			requestPeers := func() error {
				return client.RequestPeers(amount)
			}
			return flags.runSession(
				cmd.Context(),
				true,
				[]protocol.Driver{client},
				requestPeers,
				done,
				ouroboros.WithPeerSharing(true),
			)
		},
	}
	cmd.Flags().Uint8Var(&amount, "amount", 10, "number of peer addresses to request")
	return cmd
}

func pingCmd(flags *globalFlags) *cobra.Command {
	var count int
	var interval time.Duration
	var cookie uint16
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Measure round trip times with keep-alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.New("--count must be at least 1")
			}
			responses := make(chan time.Time, 1)
			cfg := keepalive.NewConfig(
				keepalive.WithCookie(cookie),
				keepalive.WithPeriod(0),
				keepalive.WithKeepAliveResponseFunc(
					func(keepalive.CallbackContext, uint16) error {
						responses <- time.Now()
						return nil
					},
				),
			)
			client := keepalive.NewClient(&cfg, protocol.WithLogger(logger))
			done := make(chan error, 1)
			var startOnce sync.Once
			start := func() error {
				// The loop keeps pinging across reconnects
				startOnce.Do(func() {
					go func() {
						done <- pingLoop(client, responses, count, interval)
					}()
				})
				return nil
			}
			return flags.runSession(
				cmd.Context(),
				true,
				[]protocol.Driver{client},
				start,
				done,
			)
		},
	}
	cmd.Flags().IntVar(&count, "count", 4, "number of pings to send")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "delay between pings")
	cmd.Flags().Uint16Var(&cookie, "cookie", 0, "initial keep-alive cookie")
	return cmd
}

func pingLoop(client *keepalive.Client, responses <-chan time.Time, count int, interval time.Duration) error {
	var total time.Duration
	for i := range count {
		if i > 0 {
			time.Sleep(interval)
		}
		cookie := client.Cookie()
		sent := time.Now()
		if err := client.Ping(); err != nil {
			return err
		}
		select {
		case received := <-responses:
			rtt := received.Sub(sent)
			total += rtt
			pterm.Info.Printfln("cookie %d: %s", cookie, rtt.Round(time.Microsecond))
		case <-time.After(keepalive.DefaultKeepAlivePeriod * time.Second):
			return errors.New("timed out waiting for keep-alive response")
		}
	}
	pterm.Success.Printfln(
		"%d pings, average round trip %s",
		count,
		(total / time.Duration(count)).Round(time.Microsecond),
	)
	return nil
}
