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
	"slices"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localtxsubmission"
	"github.com/blinklabs-io/ouroboros-agent/protocol/txsubmission"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Conway
const defaultTxEra = 6

func submitTxCmd(flags *globalFlags) *cobra.Command {
	var txFile string
	var era uint16
	cmd := &cobra.Command{
		Use:   "submit-tx",
		Short: "Submit a transaction",
		Long: `Submit a transaction with local-tx-submission, or offer it to a peer with
tx-submission when --ntn is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := readTxFile(txFile)
			if err != nil {
				return err
			}
			done := make(chan error, 1)
			var agent protocol.Driver
			var submit func() error
			if flags.ntn {
				var txId common.Blake2b256
				cfg := txsubmission.NewConfig(
					txsubmission.WithAcknowledgedFunc(
						func(_ txsubmission.CallbackContext, ids []common.Blake2b256) error {
							if slices.Contains(ids, txId) {
								pterm.Success.Printfln("transaction %s acknowledged by peer", txId)
								done <- nil
							}
							return nil
						},
					),
				)
				client := txsubmission.NewClient(&cfg, protocol.WithLogger(logger))
				submit = func() error {
					var err error
					txId, err = client.AddTx(era, tx)
					return err
				}
				agent = client
			} else {
				cfg := localtxsubmission.NewConfig(
					localtxsubmission.WithAcceptedFunc(
						func(_ localtxsubmission.CallbackContext, txId common.Blake2b256) error {
							pterm.Success.Printfln("transaction %s accepted", txId)
							done <- nil
							return nil
						},
					),
					localtxsubmission.WithRejectedFunc(
						func(_ localtxsubmission.CallbackContext, txId common.Blake2b256, reason cbor.RawMessage) error {
							done <- fmt.Errorf("transaction %s rejected: %x", txId, []byte(reason))
							return nil
						},
					),
				)
				client := localtxsubmission.NewClient(&cfg, protocol.WithLogger(logger))
				submit = func() error {
					if _, err := client.SubmitTx(era, tx); err != nil {
						return err
					}
					client.MarkDone()
					return nil
				}
				agent = client
			}
			return flags.runSession(
				cmd.Context(),
				flags.ntn,
				[]protocol.Driver{agent},
				submit,
				done,
			)
		},
	}
	cmd.Flags().StringVar(&txFile, "tx-file", "", "transaction as raw CBOR, hex, or a cardano-cli text envelope")
	cmd.Flags().Uint16Var(&era, "era", defaultTxEra, "hard fork era of the transaction")
	_ = cmd.MarkFlagRequired("tx-file")
	return cmd
}
