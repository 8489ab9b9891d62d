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

package test

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/blinklabs-io/ouroboros-agent/muxer"
)

// DecodeHexString is a helper function for tests that decodes hex strings. It doesn't return
// an error value, which makes it usable inline.
func DecodeHexString(hexData string) []byte {
	// Strip off any leading/trailing whitespace in hex string
	hexData = strings.TrimSpace(hexData)
	decoded, err := hex.DecodeString(hexData)
	if err != nil {
		panic(fmt.Sprintf("error decoding hex: %s", err))
	}
	return decoded
}

// Sender records the segments sent by an agent
type Sender struct {
	mutex    sync.Mutex
	segments []*muxer.Segment
	Err      error
}

func (s *Sender) Send(segment *muxer.Segment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.segments = append(s.segments, segment)
	return nil
}

// Segments returns the recorded segments
func (s *Sender) Segments() []*muxer.Segment {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := make([]*muxer.Segment, len(s.segments))
	copy(ret, s.segments)
	return ret
}

// Last returns the most recently recorded segment, or nil
func (s *Sender) Last() *muxer.Segment {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.segments) == 0 {
		return nil
	}
	return s.segments[len(s.segments)-1]
}

// Reset discards the recorded segments
func (s *Sender) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.segments = nil
}
