// Copyright 2021 Optakt Labs OÜ
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package khash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/khash"
)

func Test_SeededDeterministic(t *testing.T) {
	fn := khash.Seeded(7)
	a := fn([]byte("ACGT"))
	b := fn([]byte("ACGT"))
	assert.Equal(t, a, b)
}

func Test_SeededDiffersBySeed(t *testing.T) {
	a := khash.Seeded(1)([]byte("ACGT"))
	b := khash.Seeded(2)([]byte("ACGT"))
	assert.NotEqual(t, a, b)
}

func Test_Family(t *testing.T) {
	fns := khash.Family(4)
	require.Len(t, fns, 4)
	digests := make(map[uint64]bool)
	for _, fn := range fns {
		digests[fn([]byte("ACGTACGT"))] = true
	}
	assert.Len(t, digests, 4)
}

func Test_IndexWithinBounds(t *testing.T) {
	fn := khash.Seeded(0)
	for _, kmer := range [][]byte{[]byte("A"), []byte("ACGTACGTACGT"), []byte("TTTTTTTTTT")} {
		idx := khash.Index(fn, kmer, 97)
		assert.Less(t, idx, uint(97))
	}
}
