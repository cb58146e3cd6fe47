// Copyright 2024 SRxLab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bgpsec contains the wire model for the BGPsec_PATH path attribute
// (RFC 8205) and a defensive decoder for it. The decoder only extracts what
// key-availability tracking needs: the secure path segments and, per
// signature block, the algorithm suite and the subject key identifier of
// every signature segment. Signature bytes are carried through unverified,
// aliasing the input buffer.
package bgpsec

import (
	"bytes"
	"encoding/hex"

	"github.com/srxlab/bgpsecval/pkg/private/serrors"
)

const (
	// AttrTypeBGPSecPath is the BGP path attribute type code of BGPsec_PATH.
	AttrTypeBGPSecPath = 33
	// FlagExtendedLength is the attribute flag bit selecting the 2-byte
	// length encoding.
	FlagExtendedLength = 0x10
	// SKILen is the length of a subject key identifier in bytes.
	SKILen = 20

	// securePathHdrLen is the length field of the Secure_Path element.
	securePathHdrLen = 2
	// pathSegmentLen is the fixed size of one Secure_Path segment
	// (pCount, flags, 4-byte AS number).
	pathSegmentLen = 6
	// sigBlockHdrLen is the length field plus algorithm suite identifier of
	// a Signature_Block.
	sigBlockHdrLen = 3
	// sigSegmentHdrLen is the fixed prefix of one signature segment
	// (20-byte SKI, 2-byte signature length).
	sigSegmentHdrLen = SKILen + 2
	// maxSignatureBlocks is the maximum number of signature blocks in one
	// attribute.
	maxSignatureBlocks = 2
)

// Algorithm suite identifiers from the IANA BGPsec algorithm suites registry.
const (
	// AlgorithmSuiteECDSAP256SHA256 is algorithm suite 1 (RFC 8608).
	AlgorithmSuiteECDSAP256SHA256 AlgorithmID = 1
)

// ASN is a 4-byte autonomous system number.
type ASN uint32

// AlgorithmID identifies a BGPsec algorithm suite.
type AlgorithmID uint8

// SKI is the 20-byte subject key identifier of a router key.
type SKI [SKILen]byte

// Compare compares two SKIs in unsigned byte-wise lexicographic order. The
// result is 0 if a == b, -1 if a < b, and +1 if a > b.
func (s SKI) Compare(o SKI) int {
	return bytes.Compare(s[:], o[:])
}

func (s SKI) String() string {
	return hex.EncodeToString(s[:])
}

// ParseSKI parses a 40-character hex string into an SKI.
func ParseSKI(s string) (SKI, error) {
	var ski SKI
	raw, err := hex.DecodeString(s)
	if err != nil {
		return SKI{}, serrors.Wrap("parsing SKI", err)
	}
	if len(raw) != SKILen {
		return SKI{}, serrors.New("wrong SKI length", "expected", SKILen, "actual", len(raw))
	}
	copy(ski[:], raw)
	return ski, nil
}

// MustParseSKI parses a 40-character hex string into an SKI. It panics on
// invalid input and is intended for tests and static initialization.
func MustParseSKI(s string) SKI {
	ski, err := ParseSKI(s)
	if err != nil {
		panic(err)
	}
	return ski
}
