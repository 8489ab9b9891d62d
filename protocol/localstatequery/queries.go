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

package localstatequery

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// Query types
const (
	QueryTypeBlock        = 0
	QueryTypeSystemStart  = 1
	QueryTypeChainBlockNo = 2
	QueryTypeChainPoint   = 3

	// Block query sub-types
	QueryTypeShelley  = 0
	QueryTypeHardFork = 2

	// Hard fork query sub-types
	QueryTypeHardForkEraHistory = 0
	QueryTypeHardForkCurrentEra = 1

	// Shelley query sub-types
	QueryTypeShelleyLedgerTip = 0
	QueryTypeShelleyEpochNo   = 1
)

func buildQuery(queryType int, params ...any) []any {
	ret := []any{queryType}
	if len(params) > 0 {
		ret = append(ret, params...)
	}
	return ret
}

func buildHardForkQuery(queryType int, params ...any) []any {
	return buildQuery(
		QueryTypeBlock,
		buildQuery(
			QueryTypeHardFork,
			buildQuery(queryType, params...),
		),
	)
}

func buildShelleyQuery(era int, queryType int, params ...any) []any {
	return buildQuery(
		QueryTypeBlock,
		buildQuery(
			QueryTypeShelley,
			buildQuery(
				era,
				buildQuery(queryType, params...),
			),
		),
	)
}

func encodeQuery(query []any) cbor.RawMessage {
	// Queries are built from ints and slices only, which always encode
	data, _ := cbor.Encode(query)
	return data
}

// NewSystemStartQuery returns a query for the chain start time
func NewSystemStartQuery() cbor.RawMessage {
	return encodeQuery(buildQuery(QueryTypeSystemStart))
}

// NewChainBlockNoQuery returns a query for the block number of the acquired point
func NewChainBlockNoQuery() cbor.RawMessage {
	return encodeQuery(buildQuery(QueryTypeChainBlockNo))
}

// NewChainPointQuery returns a query for the acquired point
func NewChainPointQuery() cbor.RawMessage {
	return encodeQuery(buildQuery(QueryTypeChainPoint))
}

// NewCurrentEraQuery returns a query for the index of the current era
func NewCurrentEraQuery() cbor.RawMessage {
	return encodeQuery(buildHardForkQuery(QueryTypeHardForkCurrentEra))
}

// NewEpochNoQuery returns a query for the current epoch in the given era
func NewEpochNoQuery(era int) cbor.RawMessage {
	return encodeQuery(buildShelleyQuery(era, QueryTypeShelleyEpochNo))
}

type SystemStartResult struct {
	cbor.StructAsArray
	Year        uint64
	Day         int
	Picoseconds uint64
}

func (s SystemStartResult) String() string {
	return fmt.Sprintf(
		"%d-%03d+%dps",
		s.Year,
		s.Day,
		s.Picoseconds,
	)
}

// DecodeSystemStartResult decodes the result of a system start query
func DecodeSystemStartResult(data []byte) (SystemStartResult, error) {
	var ret SystemStartResult
	if _, err := cbor.Decode(data, &ret); err != nil {
		return ret, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	return ret, nil
}

// DecodeChainBlockNoResult decodes the result of a chain block number query. The
// second return value is false when the chain is at origin
func DecodeChainBlockNoResult(data []byte) (uint64, bool, error) {
	var tmp []uint64
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return 0, false, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	switch {
	case len(tmp) == 1 && tmp[0] == 0:
		return 0, false, nil
	case len(tmp) == 2 && tmp[0] == 1:
		return tmp[1], true, nil
	}
	return 0, false, fmt.Errorf("%s: invalid block number result", ProtocolName)
}

// DecodeChainPointResult decodes the result of a chain point query
func DecodeChainPointResult(data []byte) (common.Point, error) {
	var ret common.Point
	if _, err := cbor.Decode(data, &ret); err != nil {
		return ret, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	return ret, nil
}

// DecodeCurrentEraResult decodes the result of a current era query
func DecodeCurrentEraResult(data []byte) (uint, error) {
	var ret uint
	if _, err := cbor.Decode(data, &ret); err != nil {
		return 0, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	return ret, nil
}

// ErrEraMismatch is returned when an era-specific query was run against a different era
var ErrEraMismatch = errors.New("era mismatch")

// DecodeEpochNoResult decodes the result of an epoch number query
func DecodeEpochNoResult(data []byte) (uint64, error) {
	// Era-specific results are wrapped in a single element list. Anything else
	// describes an era mismatch
	var tmp []cbor.RawMessage
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return 0, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	if len(tmp) != 1 {
		return 0, fmt.Errorf("%s: %w", ProtocolName, ErrEraMismatch)
	}
	var ret uint64
	if _, err := cbor.Decode(tmp[0], &ret); err != nil {
		return 0, fmt.Errorf("%s: %w", ProtocolName, err)
	}
	return ret, nil
}
