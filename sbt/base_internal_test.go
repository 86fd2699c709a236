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

package sbt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kernel"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/khash"
)

// setBits turns a dense "0101..." string into a filter, bit i from char i.
func setBits(m uint, bits string) *bitfilter.Filter {
	f := bitfilter.New(m)
	for i, c := range bits {
		if c == '1' {
			f.Set(uint(i))
		}
	}
	return f
}

// properBinaryBase asserts every node under root has exactly 0 or 2 children (P5).
func properBinaryBase(t *testing.T, n *BaseNode) {
	t.Helper()
	if n == nil {
		return
	}
	if n.left == nil && n.right == nil {
		return
	}
	require.NotNil(t, n.left)
	require.NotNil(t, n.right)
	properBinaryBase(t, n.left)
	properBinaryBase(t, n.right)
}

// orConsistentBase asserts parent.bf == left.bf | right.bf at every inner
// node (P1).
func orConsistentBase(t *testing.T, n *BaseNode) {
	t.Helper()
	if IsLeaf(n) {
		return
	}
	want, err := bitfilter.Or2(n.left.bf, n.right.bf)
	require.NoError(t, err)
	assert.Equal(t, want.String(), n.bf.String())
	orConsistentBase(t, n.left)
	orConsistentBase(t, n.right)
}

// Test_ManualTreeScenario is spec scenario 1: five explicit leaves, greedy
// insertion, Hamming kernel, m=10.
func Test_ManualTreeScenario(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr, err := New(1, 10, khash.Family(1), 1.0, kernel.Hamming, Base, WithRand(rng))
	require.NoError(t, err)

	bits := []string{
		"0000000111",
		"1110000000",
		"0000001111",
		"1111000000",
		"1100000000",
	}
	for i, b := range bits {
		leaf := &BaseNode{id: tr.newID(), name: string(rune('a' + i)), bf: setBits(10, b)}
		require.NoError(t, tr.insertBaseNode(leaf))
	}

	require.NotNil(t, tr.rootBase)
	assert.Equal(t, "1111001111", tr.rootBase.bf.String())

	names := tr.rootBase.allLeafNames()
	assert.Len(t, names, 5)
	properBinaryBase(t, tr.rootBase)
	orConsistentBase(t, tr.rootBase)

	var countInner func(n *BaseNode) int
	countInner = func(n *BaseNode) int {
		if IsLeaf(n) {
			return 0
		}
		return 1 + countInner(n.left) + countInner(n.right)
	}
	assert.Equal(t, 4, countInner(tr.rootBase))
}

// Test_BaseORConsistencyUnderSequenceInserts checks P1 holds after ordinary
// sequence-based greedy insertion, not just hand-built leaves.
func Test_BaseORConsistencyUnderSequenceInserts(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tr, err := New(4, 256, khash.Family(2), 0.8, kernel.Hamming, Base, WithRand(rng))
	require.NoError(t, err)

	seqs := [][]byte{
		[]byte("ACGTACGTACGTACGT"),
		[]byte("TTTTGGGGCCCCAAAA"),
		[]byte("ACGTTTTTACGTGGGG"),
		[]byte("CCCCAAAATTTTGGGG"),
		[]byte("GATTACAGATTACAGA"),
	}
	for i, seq := range seqs {
		require.NoError(t, tr.InsertSequence(seq, string(rune('A'+i))))
	}

	properBinaryBase(t, tr.rootBase)
	orConsistentBase(t, tr.rootBase)
}
