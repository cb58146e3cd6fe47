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
	"github.com/gopacket/gopacket"
)

var (
	LayerTypeBGPSecPath = gopacket.RegisterLayerType(
		1360,
		gopacket.LayerTypeMetadata{
			Name:    "BGPSecPath",
			Decoder: gopacket.DecodeFunc(decodeBGPSecPath),
		},
	)
	LayerClassBGPSecPath gopacket.LayerClass = LayerTypeBGPSecPath
)

func decodeBGPSecPath(data []byte, pb gopacket.PacketBuilder) error {
	pa := &PathAttribute{}
	if err := pa.DecodeFromBytes(data, pb); err != nil {
		return err
	}
	pb.AddLayer(pa)
	return pb.NextDecoder(gopacket.LayerTypePayload)
}
