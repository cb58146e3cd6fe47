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

package bgpsec_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gopacket/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srxlab/bgpsecval/pkg/bgpsec"
	"github.com/srxlab/bgpsecval/pkg/private/xtest"
)

const (
	flagsStandard = 0x80
	flagsExtended = 0x90

	ski1 = "AB4D910F55CAE71A215EF3CAFE3ACC45B5EEC154"
	ski2 = "47F23BF1AB2F8A9D26864EBBD8DF2711C74406EC"
	ski3 = "3A7C104909B37C7177DF8F29C800C7C8E2B8101E"
	ski4 = "8E232FCCAB9905C3D4802E27CC0576E6BFFDED64"
)

type sigSeg struct {
	ski string
	sig []byte
}

// secPath encodes a Secure_Path element with pCount 1 and zero flags per
// segment.
func secPath(asns ...uint32) []byte {
	buf := make([]byte, 2+6*len(asns))
	binary.BigEndian.PutUint16(buf, uint16(len(buf)))
	for i, as := range asns {
		off := 2 + 6*i
		buf[off] = 1
		binary.BigEndian.PutUint32(buf[off+2:], as)
	}
	return buf
}

// sigBlock encodes a Signature_Block with one signature segment per entry.
func sigBlock(algo byte, segs ...sigSeg) []byte {
	buf := []byte{0, 0, algo}
	for _, s := range segs {
		buf = append(buf, xtest.MustParseHexString(s.ski)...)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s.sig)))
		buf = append(buf, l[:]...)
		buf = append(buf, s.sig...)
	}
	binary.BigEndian.PutUint16(buf, uint16(len(buf)))
	return buf
}

// attrBody concatenates the elements behind an extended 2-byte attribute
// length field.
func attrBody(parts ...[]byte) []byte {
	var value []byte
	for _, p := range parts {
		value = append(value, p...)
	}
	buf := make([]byte, 2, 2+len(value))
	binary.BigEndian.PutUint16(buf, uint16(len(value)))
	return append(buf, value...)
}

func TestParsePathAttribute(t *testing.T) {
	body := attrBody(
		secPath(65534, 65535),
		sigBlock(1,
			sigSeg{ski: ski1, sig: []byte{0xde, 0xad, 0xbe, 0xef}},
			sigSeg{ski: ski2, sig: []byte{0x01, 0x02, 0x03, 0x04, 0x05}},
		),
	)

	pa, err := bgpsec.ParsePathAttribute(flagsExtended, body)
	require.NoError(t, err)

	wantPath := []bgpsec.PathSegment{
		{PCount: 1, AS: 65534},
		{PCount: 1, AS: 65535},
	}
	wantBlocks := []bgpsec.SignatureBlock{
		{
			AlgorithmID: 1,
			Segments: []bgpsec.SignatureSegment{
				{SKI: bgpsec.MustParseSKI(ski1), Signature: []byte{0xde, 0xad, 0xbe, 0xef}},
				{SKI: bgpsec.MustParseSKI(ski2), Signature: []byte{0x01, 0x02, 0x03, 0x04, 0x05}},
			},
		},
	}
	assert.Empty(t, cmp.Diff(wantPath, pa.SecurePath))
	assert.Empty(t, cmp.Diff(wantBlocks, pa.SignatureBlocks))
}

func TestParsePathAttributeTwoBlocks(t *testing.T) {
	body := attrBody(
		secPath(65536, 200000),
		sigBlock(1,
			sigSeg{ski: ski1, sig: []byte{0x11}},
			sigSeg{ski: ski2, sig: []byte{0x22, 0x22}},
		),
		sigBlock(2,
			sigSeg{ski: ski3, sig: []byte{0x33}},
			sigSeg{ski: ski4, sig: nil},
		),
	)

	pa, err := bgpsec.ParsePathAttribute(flagsExtended, body)
	require.NoError(t, err)
	require.Len(t, pa.SignatureBlocks, 2)
	assert.Equal(t, bgpsec.AlgorithmID(1), pa.SignatureBlocks[0].AlgorithmID)
	assert.Equal(t, bgpsec.AlgorithmID(2), pa.SignatureBlocks[1].AlgorithmID)
	assert.Equal(t, bgpsec.ASN(200000), pa.SecurePath[1].AS)
	assert.Equal(t, bgpsec.MustParseSKI(ski4), pa.SignatureBlocks[1].Segments[1].SKI)
}

func TestParsePathAttributeStandardLength(t *testing.T) {
	ext := attrBody(
		secPath(64512),
		sigBlock(1, sigSeg{ski: ski1, sig: []byte{0xaa, 0xbb}}),
	)
	// Same value behind a 1-byte length field.
	body := append([]byte{byte(len(ext) - 2)}, ext[2:]...)

	pa, err := bgpsec.ParsePathAttribute(flagsStandard, body)
	require.NoError(t, err)
	assert.Equal(t, bgpsec.ASN(64512), pa.SecurePath[0].AS)
	assert.Equal(t, bgpsec.MustParseSKI(ski1), pa.SignatureBlocks[0].Segments[0].SKI)
}

func TestParsePathAttributeMalformed(t *testing.T) {
	valid := func() []byte {
		return attrBody(
			secPath(65534, 65535),
			sigBlock(1,
				sigSeg{ski: ski1, sig: []byte{0x01}},
				sigSeg{ski: ski2, sig: []byte{0x02}},
			),
		)
	}
	block := func() []byte {
		return sigBlock(1,
			sigSeg{ski: ski1, sig: []byte{0x01}},
			sigSeg{ski: ski2, sig: []byte{0x02}},
		)
	}

	tests := map[string]func() []byte{
		"empty": func() []byte {
			return nil
		},
		"truncated mid secure path": func() []byte {
			body := valid()
			return body[:8]
		},
		"declared length exceeds buffer": func() []byte {
			body := valid()
			return body[:len(body)-1]
		},
		"trailing bytes after attribute": func() []byte {
			return append(valid(), 0x00)
		},
		"secure path exceeds attribute": func() []byte {
			body := valid()
			binary.BigEndian.PutUint16(body[2:4], 0xffff)
			return body
		},
		"secure path without segments": func() []byte {
			body := valid()
			binary.BigEndian.PutUint16(body[2:4], 2)
			return body
		},
		"secure path length not segment multiple": func() []byte {
			body := valid()
			binary.BigEndian.PutUint16(body[2:4], 15)
			return body
		},
		"third signature block": func() []byte {
			return attrBody(secPath(65534, 65535), block(), block(), block())
		},
		"residual after two blocks": func() []byte {
			return attrBody(secPath(65534, 65535), block(), block(), []byte{0x00})
		},
		"signature block not fully consumed": func() []byte {
			padded := append(block(), 0x00)
			binary.BigEndian.PutUint16(padded, uint16(len(padded)))
			return attrBody(secPath(65534, 65535), padded)
		},
		"signature truncated": func() []byte {
			b := block()
			// Declare a longer signature than the block holds.
			binary.BigEndian.PutUint16(b[3+20:], 0x0200)
			return attrBody(secPath(65534, 65535), b)
		},
		"missing signature segment": func() []byte {
			return attrBody(
				secPath(65534, 65535),
				sigBlock(1, sigSeg{ski: ski1, sig: []byte{0x01}}),
			)
		},
	}
	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := bgpsec.ParsePathAttribute(flagsExtended, build())
			assert.Error(t, err)
		})
	}
}

func TestDecodeFromBytes(t *testing.T) {
	body := attrBody(
		secPath(65534),
		sigBlock(1, sigSeg{ski: ski1, sig: []byte{0x07}}),
	)
	raw := append([]byte{flagsExtended, bgpsec.AttrTypeBGPSecPath}, body...)

	var pa bgpsec.PathAttribute
	require.NoError(t, pa.DecodeFromBytes(raw, gopacket.NilDecodeFeedback))
	assert.Equal(t, uint8(flagsExtended), pa.Flags)
	assert.Equal(t, bgpsec.ASN(65534), pa.SecurePath[0].AS)
	assert.Equal(t, bgpsec.LayerTypeBGPSecPath, pa.LayerType())
}

func TestDecodeFromBytesWrongType(t *testing.T) {
	raw := []byte{flagsExtended, 0x02, 0x00, 0x00}
	var pa bgpsec.PathAttribute
	assert.Error(t, pa.DecodeFromBytes(raw, gopacket.NilDecodeFeedback))
}

func TestSerializeToRoundTrip(t *testing.T) {
	pa := &bgpsec.PathAttribute{
		Flags: flagsExtended,
		SecurePath: []bgpsec.PathSegment{
			{PCount: 1, AS: 65534},
			{PCount: 2, AS: 397200},
		},
		SignatureBlocks: []bgpsec.SignatureBlock{
			{
				AlgorithmID: 1,
				Segments: []bgpsec.SignatureSegment{
					{SKI: bgpsec.MustParseSKI(ski1), Signature: []byte{0x01, 0x02}},
					{SKI: bgpsec.MustParseSKI(ski2), Signature: []byte{0x03}},
				},
			},
		},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, pa.SerializeTo(buf, gopacket.SerializeOptions{}))

	raw := buf.Bytes()
	decoded, err := bgpsec.ParsePathAttribute(raw[0], raw[2:])
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(pa.SecurePath, decoded.SecurePath))
	assert.Empty(t, cmp.Diff(pa.SignatureBlocks, decoded.SignatureBlocks))
}

func TestSerializeToSegmentMismatch(t *testing.T) {
	pa := &bgpsec.PathAttribute{
		Flags:      flagsExtended,
		SecurePath: []bgpsec.PathSegment{{PCount: 1, AS: 65534}},
		SignatureBlocks: []bgpsec.SignatureBlock{
			{AlgorithmID: 1},
		},
	}
	buf := gopacket.NewSerializeBuffer()
	assert.Error(t, pa.SerializeTo(buf, gopacket.SerializeOptions{}))
}
