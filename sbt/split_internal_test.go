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

// disjointSim checks P3: along the path from n down to every leaf, at most
// one node's sim filter claims any given bit position. claimed holds the
// union of sim bits already claimed by ancestors on this path.
func disjointSim(t *testing.T, n *SplitNode, claimed *bitfilter.Filter) {
	t.Helper()
	overlap := n.sim.Copy()
	require.NoError(t, overlap.And(claimed))
	assert.Zero(t, overlap.Popcount(), "sim bit claimed twice on one root-to-leaf path")

	if IsLeaf(n) {
		return
	}
	next, err := bitfilter.Or2(claimed, n.sim)
	require.NoError(t, err)
	disjointSim(t, n.left, next)
	disjointSim(t, n.right, next)
}

func properBinarySplit(t *testing.T, n *SplitNode) {
	t.Helper()
	if n.left == nil && n.right == nil {
		return
	}
	require.NotNil(t, n.left)
	require.NotNil(t, n.right)
	properBinarySplit(t, n.left)
	properBinarySplit(t, n.right)
}

// Test_SplitDisjointness checks P3 (ancestor-bit-resolution invariant) and
// P5 (proper binary tree) for the Split/SSBT variant.
func Test_SplitDisjointness(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	tr, err := New(4, 200, khash.Family(1), 0.7, kernel.Hamming, Split, WithRand(rng))
	require.NoError(t, err)

	seqs := [][]byte{
		[]byte("ACGTACGTACGTGGGG"),
		[]byte("TTTTGGGGCCCCAAAA"),
		[]byte("ACGTTTTTACGTGGGG"),
		[]byte("CCCCAAAATTTTGGGG"),
		[]byte("GATTACAGATTACAGA"),
		[]byte("AAAACCCCGGGGTTTT"),
		[]byte("GGGGTTTTAAAACCCC"),
	}
	for i, seq := range seqs {
		require.NoError(t, tr.InsertSequence(seq, string(rune('A'+i))))
	}

	require.NotNil(t, tr.rootSplit)
	properBinarySplit(t, tr.rootSplit)
	disjointSim(t, tr.rootSplit, bitfilter.New(200))
}

// Test_SplitLeafCoverage checks P4: every inserted experiment name is
// present among the tree's leaves.
func Test_SplitLeafCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	tr, err := New(4, 128, khash.Family(1), 0.7, kernel.Hamming, Split, WithRand(rng))
	require.NoError(t, err)

	names := []string{"p", "q", "r", "s"}
	for i, name := range names {
		seq := []byte("ACGT")
		for j := 0; j < i+1; j++ {
			seq = append(seq, []byte("TTGGCCAA")...)
		}
		require.NoError(t, tr.InsertSequence(seq, name))
	}

	got := tr.rootSplit.allLeafNames()
	assert.ElementsMatch(t, names, got)
}
