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
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/blockfetch"
	"github.com/blinklabs-io/ouroboros-agent/protocol/chainsync"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func chainSyncCmd(flags *globalFlags) *cobra.Command {
	var points []string
	var count int
	cmd := &cobra.Command{
		Use:   "chain-sync",
		Short: "Follow the chain from an intersection point",
		RunE: func(cmd *cobra.Command, args []string) error {
			intersect, err := parsePoints(points)
			if err != nil {
				return err
			}
			done := make(chan error, 1)
			received := 0
			cfg := chainsync.NewConfig(
				chainsync.WithIntersectPoints(intersect...),
				chainsync.WithIntersectFoundFunc(
					func(_ chainsync.CallbackContext, point common.Point, tip common.Tip) error {
						pterm.Info.Printfln("intersect found at %s, tip %s", point, tip)
						return nil
					},
				),
				chainsync.WithIntersectNotFoundFunc(
					func(_ chainsync.CallbackContext, tip common.Tip) error {
						done <- fmt.Errorf("no intersection found, tip %s", tip)
						return nil
					},
				),
				chainsync.WithRollBackwardFunc(
					func(_ chainsync.CallbackContext, point common.Point, tip common.Tip) error {
						pterm.Warning.Printfln("roll backward to %s, tip %s", point, tip)
						return nil
					},
				),
				chainsync.WithRollForwardFunc(
					func(ctx chainsync.CallbackContext, msg *chainsync.MsgRollForward) error {
						content, err := msg.Unwrap()
						if err != nil {
							return err
						}
						pterm.Info.Printfln(
							"roll forward: %d bytes, hash %s, tip %s",
							len(content),
							common.Blake2b256Hash(content),
							msg.Tip,
						)
						received++
						if count > 0 && received >= count {
							ctx.Client.Pause()
							select {
							case done <- nil:
							default:
							}
						}
						return nil
					},
				),
				chainsync.WithAwaitReplyFunc(
					func(chainsync.CallbackContext) error {
						pterm.Info.Println("caught up with tip, waiting for the next block")
						return nil
					},
				),
			)
			protocolId := chainsync.ProtocolIdNtC
			if flags.ntn {
				protocolId = chainsync.ProtocolIdNtN
			}
			client := chainsync.NewClient(
				&cfg,
				protocol.WithProtocolId(protocolId),
				protocol.WithLogger(logger),
			)
			return flags.runSession(
				cmd.Context(),
				flags.ntn,
				[]protocol.Driver{client},
				nil,
				done,
			)
		},
	}
	cmd.Flags().StringArrayVar(&points, "point", nil, "intersect point as <slot>.<hash> or origin (repeatable)")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many roll forwards (0 follows forever)")
	return cmd
}

func fetchCmd(flags *globalFlags) *cobra.Command {
	var startStr, endStr string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a range of blocks from a node-to-node peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parsePoint(startStr)
			if err != nil {
				return err
			}
			end := start
			if endStr != "" {
				if end, err = parsePoint(endStr); err != nil {
					return err
				}
			}
			done := make(chan error, 1)
			blocks := 0
			cfg := blockfetch.NewConfig(
				blockfetch.WithNoBlocksFunc(func(blockfetch.CallbackContext) error {
					done <- fmt.Errorf("peer has no blocks between %s and %s", start, end)
					return nil
				}),
				blockfetch.WithBlockFunc(
					func(_ blockfetch.CallbackContext, msg *blockfetch.MsgBlock) error {
						blocks++
						block := msg.BlockCbor()
						pterm.Info.Printfln(
							"block %d: %d bytes, hash %s",
							blocks,
							len(block),
							common.Blake2b256Hash(block),
						)
						return nil
					},
				),
				blockfetch.WithBatchDoneFunc(func(blockfetch.CallbackContext) error {
					pterm.Success.Printfln("fetched %d blocks", blocks)
					done <- nil
					return nil
				}),
			)
			client := blockfetch.NewClient(&cfg, protocol.WithLogger(logger))
			requestRange := func() error {
				blocks = 0
				if err := client.RequestRange(start, end); err != nil {
					return err
				}
				client.MarkDone()
				return nil
			}
			return flags.runSession(
				cmd.Context(),
				true,
				[]protocol.Driver{client},
				requestRange,
				done,
			)
		},
	}
	cmd.Flags().StringVar(&startStr, "start", "", "first block as <slot>.<hash>")
	cmd.Flags().StringVar(&endStr, "end", "", "last block as <slot>.<hash> (defaults to --start)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}
