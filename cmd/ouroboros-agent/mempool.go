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
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localtxmonitor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func parseTxId(value string) (common.Blake2b256, error) {
	data, err := hex.DecodeString(value)
	if err != nil {
		return common.Blake2b256{}, fmt.Errorf("invalid transaction id %q: %w", value, err)
	}
	if len(data) != common.Blake2b256Size {
		return common.Blake2b256{}, fmt.Errorf("invalid transaction id %q: expected %d bytes", value, common.Blake2b256Size)
	}
	return common.NewBlake2b256(data), nil
}

func mempoolCmd(flags *globalFlags) *cobra.Command {
	var hasTx []string
	var listTxs bool
	cmd := &cobra.Command{
		Use:   "mempool",
		Short: "Inspect the node mempool over local-tx-monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			txIds := make([]common.Blake2b256, 0, len(hasTx))
			for _, value := range hasTx {
				txId, err := parseTxId(value)
				if err != nil {
					return err
				}
				txIds = append(txIds, txId)
			}
			done := make(chan error, 1)
			finish := func(client *localtxmonitor.Client) {
				if client.Pending() > 0 {
					return
				}
				client.MarkDone()
				select {
				case done <- nil:
				default:
				}
			}
			txCount := 0
			cfg := localtxmonitor.NewConfig(
				localtxmonitor.WithAcquiredFunc(
					func(_ localtxmonitor.CallbackContext, slot uint64) error {
						pterm.Info.Printfln("acquired mempool snapshot at slot %d", slot)
						return nil
					},
				),
				localtxmonitor.WithSizesFunc(
					func(ctx localtxmonitor.CallbackContext, sizes localtxmonitor.Sizes) error {
						pterm.Info.Printfln(
							"mempool: %d transactions, %d of %d bytes used",
							sizes.NumberOfTxs,
							sizes.Size,
							sizes.Capacity,
						)
						finish(ctx.Client)
						return nil
					},
				),
				localtxmonitor.WithHasTxFunc(
					func(ctx localtxmonitor.CallbackContext, txId common.Blake2b256, found bool) error {
						pterm.Info.Printfln("transaction %s in mempool: %t", txId, found)
						finish(ctx.Client)
						return nil
					},
				),
				localtxmonitor.WithNextTxFunc(
					func(ctx localtxmonitor.CallbackContext, era uint8, tx []byte) error {
						if tx == nil {
							pterm.Info.Printfln("listed %d transactions", txCount)
							finish(ctx.Client)
							return nil
						}
						txCount++
						txId, err := common.TxIdFromCbor(tx)
						if err != nil {
							return err
						}
						pterm.Info.Printfln("transaction %s (era %d, %d bytes)", txId, era, len(tx))
						return ctx.Client.NextTx()
					},
				),
			)
			client := localtxmonitor.NewClient(&cfg, protocol.WithLogger(logger))
			queueRequests := func() error {
				txCount = 0
				if err := client.GetSizes(); err != nil {
					return err
				}
				for _, txId := range txIds {
					if err := client.HasTx(txId); err != nil {
						return err
					}
				}
				if listTxs {
					return client.NextTx()
				}
				return nil
			}
			return flags.runSession(
				cmd.Context(),
				false,
				[]protocol.Driver{client},
				queueRequests,
				done,
			)
		},
	}
	cmd.Flags().StringArrayVar(&hasTx, "has-tx", nil, "check whether the mempool contains this transaction id (repeatable)")
	cmd.Flags().BoolVar(&listTxs, "list", false, "list the transactions in the mempool")
	return cmd
}
