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

package bgpsec

import (
	"encoding/binary"

	"github.com/gopacket/gopacket"

	"github.com/srxlab/bgpsecval/pkg/private/serrors"
)

// PathSegment is one Secure_Path segment: the AS that signed over the
// remainder of the path, its prepend count and the per-segment flags.
type PathSegment struct {
	PCount uint8
	Flags  uint8
	AS     ASN
}

// SignatureSegment carries the subject key identifier selecting the router
// key of one path segment's signature, and the signature itself. The
// signature bytes alias the decoded buffer and are never interpreted here.
type SignatureSegment struct {
	SKI       SKI
	Signature []byte
}

// SignatureBlock groups the signature segments produced under one algorithm
// suite. A block holds exactly one signature segment per path segment.
type SignatureBlock struct {
	AlgorithmID AlgorithmID
	Segments    []SignatureSegment
}

// PathAttribute is a decoded BGPsec_PATH attribute: one Secure_Path element
// followed by one or two signature blocks.
//
// The decoder is strict: every declared length must be consistent with the
// buffer, the Secure_Path must fit into the declared attribute length, and
// the signature blocks must consume the residual bytes exactly. On any
// violation an error is returned and the attribute is left in an undefined
// state; no partial results are produced.
type PathAttribute struct {
	BaseLayer
	// Flags is the attribute flags octet. Only FlagExtendedLength is
	// interpreted, to select the length encoding.
	Flags           uint8
	SecurePath      []PathSegment
	SignatureBlocks []SignatureBlock
}

func (pa *PathAttribute) LayerType() gopacket.LayerType {
	return LayerTypeBGPSecPath
}

func (pa *PathAttribute) CanDecode() gopacket.LayerClass {
	return LayerClassBGPSecPath
}

func (pa *PathAttribute) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

// DecodeFromBytes implements gopacket.DecodingLayer. The buffer must hold a
// complete path attribute TLV: flags octet, type octet (AttrTypeBGPSecPath),
// length field, and value.
func (pa *PathAttribute) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 2 {
		df.SetTruncated()
		return serrors.New("attribute header too short", "len", len(data))
	}
	if data[1] != AttrTypeBGPSecPath {
		return serrors.New("not a BGPsec_PATH attribute", "type", data[1])
	}
	pa.Flags = data[0]
	if err := pa.decodeBody(data[2:], df); err != nil {
		return err
	}
	pa.BaseLayer = BaseLayer{Contents: data}
	return nil
}

// ParsePathAttribute decodes a BGPsec_PATH attribute from its length field
// onward, with the flags octet supplied out of band. This is the form in
// which the validation daemon hands attributes around.
func ParsePathAttribute(flags uint8, data []byte) (*PathAttribute, error) {
	pa := &PathAttribute{Flags: flags}
	if err := pa.decodeBody(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	pa.BaseLayer = BaseLayer{Contents: data}
	return pa, nil
}

func (pa *PathAttribute) decodeBody(data []byte, df gopacket.DecodeFeedback) error {
	// Attribute length, 1 or 2 bytes depending on the extended length flag.
	var attrLen, hdr int
	if pa.Flags&FlagExtendedLength != 0 {
		if len(data) < 2 {
			df.SetTruncated()
			return serrors.New("attribute shorter than extended length field", "len", len(data))
		}
		attrLen, hdr = int(binary.BigEndian.Uint16(data[:2])), 2
	} else {
		if len(data) < 1 {
			df.SetTruncated()
			return serrors.New("attribute shorter than length field", "len", len(data))
		}
		attrLen, hdr = int(data[0]), 1
	}
	value := data[hdr:]
	if attrLen > len(value) {
		df.SetTruncated()
		return serrors.New("attribute truncated",
			"declared", attrLen, "actual", len(value))
	}
	if attrLen < len(value) {
		return serrors.New("trailing bytes after attribute",
			"declared", attrLen, "actual", len(value))
	}

	securePath, consumed, err := decodeSecurePath(value)
	if err != nil {
		return err
	}
	residual := attrLen - consumed
	// Residual is non-negative here; decodeSecurePath bounds itself by the
	// value slice, which is exactly attrLen long.

	var blocks []SignatureBlock
	offset := consumed
	for residual > 0 {
		if len(blocks) == maxSignatureBlocks {
			return serrors.New("residual bytes after signature blocks",
				"residual", residual)
		}
		block, blockLen, err := decodeSignatureBlock(value[offset:], offset, len(securePath))
		if err != nil {
			return err
		}
		blocks = append(blocks, block)
		offset += blockLen
		residual -= blockLen
	}

	pa.SecurePath = securePath
	pa.SignatureBlocks = blocks
	return nil
}

func decodeSecurePath(data []byte) ([]PathSegment, int, error) {
	if len(data) < securePathHdrLen {
		return nil, 0, serrors.New("attribute shorter than Secure_Path header", "len", len(data))
	}
	// The Secure_Path length covers the length field itself.
	spLen := int(binary.BigEndian.Uint16(data[:2]))
	segBytes := spLen - securePathHdrLen
	switch {
	case spLen > len(data):
		return nil, 0, serrors.New("Secure_Path exceeds attribute",
			"declared", spLen, "actual", len(data))
	case segBytes < pathSegmentLen:
		return nil, 0, serrors.New("Secure_Path without segments", "declared", spLen)
	case segBytes%pathSegmentLen != 0:
		return nil, 0, serrors.New("Secure_Path length not a segment multiple",
			"declared", spLen)
	}
	segments := make([]PathSegment, segBytes/pathSegmentLen)
	for i := range segments {
		seg := data[securePathHdrLen+i*pathSegmentLen:]
		segments[i] = PathSegment{
			PCount: seg[0],
			Flags:  seg[1],
			AS:     ASN(binary.BigEndian.Uint32(seg[2:6])),
		}
	}
	return segments, spLen, nil
}

// decodeSignatureBlock decodes one Signature_Block containing numSegments
// signature segments. base is the offset of data within the attribute value
// and is only used for error context.
func decodeSignatureBlock(data []byte, base, numSegments int) (SignatureBlock, int, error) {
	if len(data) < sigBlockHdrLen {
		return SignatureBlock{}, 0, serrors.New("signature block header too short",
			"offset", base, "len", len(data))
	}
	// The block length covers the length field and the algorithm id.
	blockLen := int(binary.BigEndian.Uint16(data[:2]))
	if blockLen < sigBlockHdrLen || blockLen > len(data) {
		return SignatureBlock{}, 0, serrors.New("bad signature block length",
			"offset", base, "declared", blockLen, "residual", len(data))
	}
	block := SignatureBlock{
		AlgorithmID: AlgorithmID(data[2]),
		Segments:    make([]SignatureSegment, 0, numSegments),
	}
	offset := sigBlockHdrLen
	for i := 0; i < numSegments; i++ {
		if blockLen-offset < sigSegmentHdrLen {
			return SignatureBlock{}, 0, serrors.New("signature segment header too short",
				"offset", base+offset, "segment", i)
		}
		var seg SignatureSegment
		copy(seg.SKI[:], data[offset:offset+SKILen])
		sigLen := int(binary.BigEndian.Uint16(data[offset+SKILen : offset+sigSegmentHdrLen]))
		offset += sigSegmentHdrLen
		if blockLen-offset < sigLen {
			return SignatureBlock{}, 0, serrors.New("signature truncated",
				"offset", base+offset, "segment", i, "declared", sigLen)
		}
		seg.Signature = data[offset : offset+sigLen]
		offset += sigLen
		block.Segments = append(block.Segments, seg)
	}
	if offset != blockLen {
		return SignatureBlock{}, 0, serrors.New("signature block not fully consumed",
			"offset", base, "declared", blockLen, "consumed", offset)
	}
	return block, blockLen, nil
}

// SerializeTo implements gopacket.SerializableLayer. Lengths are always
// computed from the content; opts.FixLengths is ignored. Every signature
// block must hold exactly one segment per path segment.
func (pa *PathAttribute) SerializeTo(b gopacket.SerializeBuffer,
	opts gopacket.SerializeOptions) error {

	if len(pa.SecurePath) == 0 {
		return serrors.New("Secure_Path must have at least one segment")
	}
	if len(pa.SignatureBlocks) > maxSignatureBlocks {
		return serrors.New("too many signature blocks", "count", len(pa.SignatureBlocks))
	}
	spLen := securePathHdrLen + len(pa.SecurePath)*pathSegmentLen
	valueLen := spLen
	for i, block := range pa.SignatureBlocks {
		if len(block.Segments) != len(pa.SecurePath) {
			return serrors.New("signature block segment count mismatch",
				"block", i, "segments", len(block.Segments), "path", len(pa.SecurePath))
		}
		valueLen += sigBlockHdrLen
		for _, seg := range block.Segments {
			valueLen += sigSegmentHdrLen + len(seg.Signature)
		}
	}
	hdr := 3
	if pa.Flags&FlagExtendedLength != 0 {
		hdr = 4
	}
	buf, err := b.PrependBytes(hdr + valueLen)
	if err != nil {
		return err
	}
	buf[0] = pa.Flags
	buf[1] = AttrTypeBGPSecPath
	if pa.Flags&FlagExtendedLength != 0 {
		binary.BigEndian.PutUint16(buf[2:4], uint16(valueLen))
	} else {
		if valueLen > 0xff {
			return serrors.New("attribute too long for standard length encoding",
				"len", valueLen)
		}
		buf[2] = uint8(valueLen)
	}
	offset := hdr
	binary.BigEndian.PutUint16(buf[offset:], uint16(spLen))
	offset += securePathHdrLen
	for _, seg := range pa.SecurePath {
		buf[offset] = seg.PCount
		buf[offset+1] = seg.Flags
		binary.BigEndian.PutUint32(buf[offset+2:], uint32(seg.AS))
		offset += pathSegmentLen
	}
	for _, block := range pa.SignatureBlocks {
		blockLen := sigBlockHdrLen
		for _, seg := range block.Segments {
			blockLen += sigSegmentHdrLen + len(seg.Signature)
		}
		binary.BigEndian.PutUint16(buf[offset:], uint16(blockLen))
		buf[offset+2] = uint8(block.AlgorithmID)
		offset += sigBlockHdrLen
		for _, seg := range block.Segments {
			copy(buf[offset:], seg.SKI[:])
			binary.BigEndian.PutUint16(buf[offset+SKILen:], uint16(len(seg.Signature)))
			offset += sigSegmentHdrLen
			copy(buf[offset:], seg.Signature)
			offset += len(seg.Signature)
		}
	}
	return nil
}
