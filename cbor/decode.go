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

package cbor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

// ErrIncomplete is returned when the provided data does not yet contain a complete
// CBOR data item
var ErrIncomplete = errors.New("incomplete CBOR data item")

var (
	cachedDecMode     _cbor.DecMode
	cachedDecModeErr  error
	cachedDecModeOnce sync.Once
)

// getDecMode returns a cached DecMode, initializing it on first use.
func getDecMode() (_cbor.DecMode, error) {
	cachedDecModeOnce.Do(func() {
		decOptions := _cbor.DecOptions{
			ExtraReturnErrors: _cbor.ExtraDecErrorUnknownField,
			// This defaults to 32, but there are blocks in the wild using >64 nested levels
			MaxNestedLevels: 256,
		}
		cachedDecMode, cachedDecModeErr = decOptions.DecModeWithTags(customTagSet)
	})
	return cachedDecMode, cachedDecModeErr
}

// Decode decodes the first CBOR data item in the provided data into dest and returns
// the number of bytes consumed. Any trailing data is ignored
func Decode(dataBytes []byte, dest any) (int, error) {
	decMode, err := getDecMode()
	if err != nil {
		return 0, err
	}
	rest, err := decMode.UnmarshalFirst(dataBytes, dest)
	if err != nil {
		return 0, err
	}
	return len(dataBytes) - len(rest), nil
}

// DecodeFirst splits the first complete CBOR data item from the provided data. It
// returns the raw bytes of that item and the remaining data. ErrIncomplete is
// returned when more bytes are needed, which callers should treat as a signal to
// wait rather than as a failure. Any other error means the data is malformed
func DecodeFirst(data []byte) (RawMessage, []byte, error) {
	if len(data) == 0 {
		return nil, data, ErrIncomplete
	}
	decMode, err := getDecMode()
	if err != nil {
		return nil, data, err
	}
	var item RawMessage
	rest, err := decMode.UnmarshalFirst(data, &item)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, data, ErrIncomplete
		}
		return nil, data, err
	}
	return data[:len(data)-len(rest)], rest, nil
}

// DecodeIdFromList extracts the first item from a CBOR list. This will return the first
// item from the provided list if it's numeric and an error otherwise
func DecodeIdFromList(cborData []byte) (int, error) {
	// If the list length is <= the max simple uint and the first list value
	// is <= the max simple uint, then we can extract the value straight from
	// the byte slice
	listLen, err := ListLength(cborData)
	if err != nil {
		return 0, err
	}
	if listLen == 0 {
		return 0, errors.New("cannot return first item from empty list")
	}
	if listLen < int(CborMaxUintSimple) && len(cborData) > 1 {
		if cborData[1] <= CborMaxUintSimple {
			return int(cborData[1]), nil
		}
	}
	// If we couldn't use the shortcut above, actually decode the list
	var tmp []RawMessage
	if _, err := Decode(cborData, &tmp); err != nil {
		return 0, err
	}
	var id uint64
	if _, err := Decode(tmp[0], &id); err != nil {
		return 0, fmt.Errorf("first list item was not numeric: %w", err)
	}
	if id > uint64(math.MaxInt) {
		return 0, errors.New("decoded numeric value too large: uint64 > int")
	}
	return int(id), nil
}

// ListLength determines the length of a CBOR list
func ListLength(cborData []byte) (int, error) {
	if !IsArray(cborData) {
		return 0, fmt.Errorf("data is not a CBOR list (major type 0x%02x)", MajorType(cborData))
	}
	// If the list length is <= the max simple uint, then we can extract the length
	// value straight from the byte slice (with a little math)
	if cborData[0] <= (CborTypeArray + CborMaxUintSimple) {
		return int(cborData[0]) - int(CborTypeArray), nil
	}
	// If we couldn't use the shortcut above, actually decode the list
	var tmp []RawMessage
	if _, err := Decode(cborData, &tmp); err != nil {
		return 0, err
	}
	return len(tmp), nil
}
