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

package common

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"golang.org/x/crypto/blake2b"
)

const Blake2b256Size = 32

// Blake2b256 is a 32-byte Blake2b hash, as used for transaction ids
type Blake2b256 [Blake2b256Size]byte

func NewBlake2b256(data []byte) Blake2b256 {
	b := Blake2b256{}
	copy(b[:], data)
	return b
}

func (b Blake2b256) String() string {
	return hex.EncodeToString(b[:])
}

func (b Blake2b256) Bytes() []byte {
	return b[:]
}

func (b Blake2b256) MarshalCBOR() ([]byte, error) {
	// Ensure we always encode a full-sized bytestring, even if the hash is zero-valued
	hashBytes := make([]byte, Blake2b256Size)
	copy(hashBytes, b[:])
	return cbor.Encode(hashBytes)
}

// Blake2b256Hash generates a Blake2b-256 hash from the provided data
func Blake2b256Hash(data []byte) Blake2b256 {
	tmpHash, err := blake2b.New(Blake2b256Size, nil)
	if err != nil {
		panic(
			fmt.Sprintf(
				"unexpected error generating empty blake2b hash: %s",
				err,
			),
		)
	}
	tmpHash.Write(data)
	return Blake2b256(tmpHash.Sum(nil))
}

// TxIdFromCbor returns the id of a transaction, which is the hash of the transaction body.
// The body is the first element of the transaction CBOR array, and is hashed as it was
// encoded
func TxIdFromCbor(txCbor []byte) (Blake2b256, error) {
	var tmp []cbor.RawMessage
	if _, err := cbor.Decode(txCbor, &tmp); err != nil {
		return Blake2b256{}, fmt.Errorf("failed to decode transaction: %w", err)
	}
	if len(tmp) == 0 {
		return Blake2b256{}, errors.New("failed to decode transaction: empty list")
	}
	return Blake2b256Hash(tmp[0]), nil
}
