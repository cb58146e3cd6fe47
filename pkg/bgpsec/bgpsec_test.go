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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srxlab/bgpsecval/pkg/bgpsec"
)

func TestParseSKI(t *testing.T) {
	ski, err := bgpsec.ParseSKI(ski1)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(ski1), ski.String())

	_, err = bgpsec.ParseSKI("AB4D")
	assert.Error(t, err)
	_, err = bgpsec.ParseSKI("not hex")
	assert.Error(t, err)
}

func TestSKICompare(t *testing.T) {
	a := bgpsec.MustParseSKI(ski2)
	b := bgpsec.MustParseSKI(ski1)
	require.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Zero(t, a.Compare(a))

	// Byte-wise comparison is unsigned: 0x80 sorts after 0x7f.
	var hi, lo bgpsec.SKI
	hi[0], lo[0] = 0x80, 0x7f
	assert.Positive(t, hi.Compare(lo))
}
