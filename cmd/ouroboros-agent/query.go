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
	"bytes"
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
	"github.com/blinklabs-io/ouroboros-agent/protocol/localstatequery"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// queryResultFunc prints a query result. It may queue follow-up queries on the client
type queryResultFunc func(client *localstatequery.Client, query cbor.RawMessage, result cbor.RawMessage) error

var acquireFailureReasons = map[uint64]string{
	localstatequery.AcquireFailurePointTooOld:     "point too old",
	localstatequery.AcquireFailurePointNotOnChain: "point not on chain",
}

func queryCmd(flags *globalFlags) *cobra.Command {
	var pointStr string
	var immutable bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the ledger state over local-state-query",
	}
	cmd.PersistentFlags().StringVar(&pointStr, "point", "", "acquire this point as <slot>.<hash> instead of the tip")
	cmd.PersistentFlags().BoolVar(&immutable, "immutable", false, "acquire the immutable tip instead of the volatile tip")
	newQuerySubCmd := func(use string, short string, queries []cbor.RawMessage, resultFunc queryResultFunc) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				options := []localstatequery.LocalStateQueryOptionFunc{}
				var acquirePoint *common.Point
				if pointStr != "" {
					point, err := parsePoint(pointStr)
					if err != nil {
						return err
					}
					acquirePoint = &point
				} else if immutable {
					options = append(options, localstatequery.WithImmutableTip())
				}
				return runQueries(cmd, flags, options, acquirePoint, queries, resultFunc)
			},
		}
	}
	cmd.AddCommand(
		newQuerySubCmd(
			"system-start",
			"Print the chain start time",
			[]cbor.RawMessage{localstatequery.NewSystemStartQuery()},
			func(_ *localstatequery.Client, _ cbor.RawMessage, result cbor.RawMessage) error {
				start, err := localstatequery.DecodeSystemStartResult(result)
				if err != nil {
					return err
				}
				pterm.Info.Printfln("system start: %s", start)
				return nil
			},
		),
		newQuerySubCmd(
			"tip",
			"Print the chain tip",
			[]cbor.RawMessage{
				localstatequery.NewChainPointQuery(),
				localstatequery.NewChainBlockNoQuery(),
			},
			func(_ *localstatequery.Client, query cbor.RawMessage, result cbor.RawMessage) error {
				if bytes.Equal(query, localstatequery.NewChainPointQuery()) {
					point, err := localstatequery.DecodeChainPointResult(result)
					if err != nil {
						return err
					}
					pterm.Info.Printfln("tip point: %s", point)
					return nil
				}
				return printBlockNo(result)
			},
		),
		newQuerySubCmd(
			"block-no",
			"Print the block number of the chain tip",
			[]cbor.RawMessage{localstatequery.NewChainBlockNoQuery()},
			func(_ *localstatequery.Client, _ cbor.RawMessage, result cbor.RawMessage) error {
				return printBlockNo(result)
			},
		),
		newQuerySubCmd(
			"era",
			"Print the current era",
			[]cbor.RawMessage{localstatequery.NewCurrentEraQuery()},
			func(_ *localstatequery.Client, _ cbor.RawMessage, result cbor.RawMessage) error {
				era, err := localstatequery.DecodeCurrentEraResult(result)
				if err != nil {
					return err
				}
				pterm.Info.Printfln("current era: %d", era)
				return nil
			},
		),
		newQuerySubCmd(
			"epoch",
			"Print the current epoch",
			[]cbor.RawMessage{localstatequery.NewCurrentEraQuery()},
			func(client *localstatequery.Client, query cbor.RawMessage, result cbor.RawMessage) error {
				if bytes.Equal(query, localstatequery.NewCurrentEraQuery()) {
					era, err := localstatequery.DecodeCurrentEraResult(result)
					if err != nil {
						return err
					}
					// The epoch query is era-specific
					return client.Query(localstatequery.NewEpochNoQuery(int(era)))
				}
				epoch, err := localstatequery.DecodeEpochNoResult(result)
				if err != nil {
					return err
				}
				pterm.Info.Printfln("current epoch: %d", epoch)
				return nil
			},
		),
	)
	return cmd
}

func printBlockNo(result cbor.RawMessage) error {
	blockNo, ok, err := localstatequery.DecodeChainBlockNoResult(result)
	if err != nil {
		return err
	}
	if !ok {
		pterm.Info.Println("chain is at origin")
		return nil
	}
	pterm.Info.Printfln("tip block number: %d", blockNo)
	return nil
}

func runQueries(
	cmd *cobra.Command,
	flags *globalFlags,
	options []localstatequery.LocalStateQueryOptionFunc,
	acquirePoint *common.Point,
	queries []cbor.RawMessage,
	resultFunc queryResultFunc,
) error {
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	options = append(
		options,
		localstatequery.WithFailureFunc(
			func(_ localstatequery.CallbackContext, reason uint64) error {
				msg, ok := acquireFailureReasons[reason]
				if !ok {
					msg = fmt.Sprintf("failure %d", reason)
				}
				finish(fmt.Errorf("failed to acquire state: %s", msg))
				return nil
			},
		),
		localstatequery.WithResultFunc(
			func(ctx localstatequery.CallbackContext, query cbor.RawMessage, result cbor.RawMessage) error {
				if err := resultFunc(ctx.Client, query, result); err != nil {
					finish(err)
					return err
				}
				if ctx.Client.Pending() == 0 {
					ctx.Client.MarkDone()
					finish(nil)
				}
				return nil
			},
		),
	)
	cfg := localstatequery.NewConfig(options...)
	client := localstatequery.NewClient(&cfg, protocol.WithLogger(logger))
	queueQueries := func() error {
		if acquirePoint != nil {
			if err := client.SetAcquirePoint(acquirePoint); err != nil {
				return err
			}
		}
		for _, query := range queries {
			if err := client.Query(query); err != nil {
				return err
			}
		}
		return nil
	}
	return flags.runSession(
		cmd.Context(),
		false,
		[]protocol.Driver{client},
		queueQueries,
		done,
	)
}
