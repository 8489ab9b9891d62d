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

package peersharing

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/blinklabs-io/ouroboros-agent/cbor"
	"github.com/blinklabs-io/ouroboros-agent/protocol"
)

// Message types
const (
	MessageTypeShareRequest = 0
	MessageTypeSharePeers   = 1
	MessageTypeDone         = 2
)

// NewMsgFromCbor parses a peer-sharing message from CBOR
func NewMsgFromCbor(msgType uint, data []byte) (protocol.Message, error) {
	var ret protocol.Message
	switch msgType {
	case MessageTypeShareRequest:
		ret = &MsgShareRequest{}
	case MessageTypeSharePeers:
		ret = &MsgSharePeers{}
	case MessageTypeDone:
		ret = &MsgDone{}
	default:
		return nil, nil
	}
	if _, err := cbor.Decode(data, ret); err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	// Store the raw message CBOR
	ret.SetCbor(data)
	return ret, nil
}

type MsgShareRequest struct {
	protocol.MessageBase
	Amount uint8
}

func NewMsgShareRequest(amount uint8) *MsgShareRequest {
	m := &MsgShareRequest{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeShareRequest,
		},
		Amount: amount,
	}
	return m
}

type MsgSharePeers struct {
	protocol.MessageBase
	PeerAddresses []PeerAddress
}

func NewMsgSharePeers(peerAddresses []PeerAddress) *MsgSharePeers {
	if peerAddresses == nil {
		peerAddresses = []PeerAddress{}
	}
	m := &MsgSharePeers{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeSharePeers,
		},
		PeerAddresses: peerAddresses,
	}
	return m
}

type MsgDone struct {
	protocol.MessageBase
}

func NewMsgDone() *MsgDone {
	m := &MsgDone{
		MessageBase: protocol.MessageBase{
			MessageType: MessageTypeDone,
		},
	}
	return m
}

// Peer address types
const (
	peerTypeIPv4 = 0
	peerTypeIPv6 = 1
)

// PeerAddress is an IP address and port shared by a peer. Address words are carried in
// host order of the sending node, which is little endian on every supported platform
type PeerAddress struct {
	IP   net.IP
	Port uint16
}

func (p PeerAddress) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

type peerAddressIPv4 struct {
	cbor.StructAsArray
	PeerType int
	Address  uint32
	Port     uint16
}

type peerAddressIPv6 struct {
	cbor.StructAsArray
	PeerType int
	Address1 uint32
	Address2 uint32
	Address3 uint32
	Address4 uint32
	Port     uint16
}

// Older versions also carry the flow info and scope id, which are ignored
type peerAddressIPv6Legacy struct {
	cbor.StructAsArray
	PeerType int
	Address1 uint32
	Address2 uint32
	Address3 uint32
	Address4 uint32
	FlowInfo uint32
	ScopeId  uint32
	Port     uint16
}

func ipv6FromWords(words ...uint32) net.IP {
	ret := make(net.IP, net.IPv6len)
	for i, word := range words {
		binary.LittleEndian.PutUint32(ret[i*4:], word)
	}
	return ret
}

func (p *PeerAddress) UnmarshalCBOR(cborData []byte) error {
	peerType, err := cbor.DecodeIdFromList(cborData)
	if err != nil {
		return err
	}
	switch peerType {
	case peerTypeIPv4:
		var tmpPeer peerAddressIPv4
		if _, err := cbor.Decode(cborData, &tmpPeer); err != nil {
			return err
		}
		p.IP = make(net.IP, net.IPv4len)
		binary.LittleEndian.PutUint32(p.IP, tmpPeer.Address)
		p.Port = tmpPeer.Port
	case peerTypeIPv6:
		listLen, err := cbor.ListLength(cborData)
		if err != nil {
			return err
		}
		switch listLen {
		case 6:
			var tmpPeer peerAddressIPv6
			if _, err := cbor.Decode(cborData, &tmpPeer); err != nil {
				return err
			}
			p.IP = ipv6FromWords(tmpPeer.Address1, tmpPeer.Address2, tmpPeer.Address3, tmpPeer.Address4)
			p.Port = tmpPeer.Port
		case 8:
			var tmpPeer peerAddressIPv6Legacy
			if _, err := cbor.Decode(cborData, &tmpPeer); err != nil {
				return err
			}
			p.IP = ipv6FromWords(tmpPeer.Address1, tmpPeer.Address2, tmpPeer.Address3, tmpPeer.Address4)
			p.Port = tmpPeer.Port
		default:
			return fmt.Errorf("invalid peer address length: %d", listLen)
		}
	default:
		return fmt.Errorf("unknown peer type: %d", peerType)
	}
	return nil
}

func (p PeerAddress) MarshalCBOR() ([]byte, error) {
	if ip4 := p.IP.To4(); ip4 != nil {
		return cbor.Encode(
			peerAddressIPv4{
				PeerType: peerTypeIPv4,
				Address:  binary.LittleEndian.Uint32(ip4),
				Port:     p.Port,
			},
		)
	}
	ip6 := p.IP.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("invalid peer address: %s", p.IP)
	}
	return cbor.Encode(
		peerAddressIPv6{
			PeerType: peerTypeIPv6,
			Address1: binary.LittleEndian.Uint32(ip6[0:]),
			Address2: binary.LittleEndian.Uint32(ip6[4:]),
			Address3: binary.LittleEndian.Uint32(ip6[8:]),
			Address4: binary.LittleEndian.Uint32(ip6[12:]),
			Port:     p.Port,
		},
	)
}
