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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blinklabs-io/ouroboros-agent/protocol/common"
)

// parsePoint parses a point given as "origin" or "<slot>.<block hash hex>"
func parsePoint(value string) (common.Point, error) {
	if strings.EqualFold(value, "origin") {
		return common.NewPointOrigin(), nil
	}
	slotStr, hashStr, ok := strings.Cut(value, ".")
	if !ok {
		return common.Point{}, fmt.Errorf("invalid point %q: expected <slot>.<hash>", value)
	}
	slot, err := strconv.ParseUint(slotStr, 10, 64)
	if err != nil {
		return common.Point{}, fmt.Errorf("invalid point slot %q: %w", slotStr, err)
	}
	hash, err := hex.DecodeString(hashStr)
	if err != nil {
		return common.Point{}, fmt.Errorf("invalid point hash %q: %w", hashStr, err)
	}
	if len(hash) != common.Blake2b256Size {
		return common.Point{}, fmt.Errorf("invalid point hash %q: expected %d bytes", hashStr, common.Blake2b256Size)
	}
	return common.NewPoint(slot, hash), nil
}

func parsePoints(values []string) ([]common.Point, error) {
	ret := make([]common.Point, 0, len(values))
	for _, value := range values {
		point, err := parsePoint(value)
		if err != nil {
			return nil, err
		}
		ret = append(ret, point)
	}
	return ret, nil
}

// textEnvelope is the JSON format cardano-cli writes transactions in
type textEnvelope struct {
	Type    string `json:"type"`
	CborHex string `json:"cborHex"`
}

// decodeTx accepts a transaction as raw CBOR, hex text, or a cardano-cli text envelope
func decodeTx(data []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var envelope textEnvelope
		if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
			return nil, fmt.Errorf("failed to parse text envelope: %w", err)
		}
		if envelope.CborHex == "" {
			return nil, errors.New("text envelope has no cborHex")
		}
		trimmed = envelope.CborHex
	}
	if trimmed == "" {
		return nil, errors.New("empty transaction")
	}
	if tx, err := hex.DecodeString(trimmed); err == nil {
		return tx, nil
	}
	return data, nil
}

func readTxFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeTx(data)
}
