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
	"fmt"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/khash"
)

// HowDeNode is the HowDe-SBT node variant. A leaf holds only how (its own
// k-mer filter); an inner node additionally holds union (OR over
// descendant leaves) and det = how | ~union, the "determined" mask: a bit
// is determined when either every descendant has it set (how) or none do
// (~union).
type HowDeNode struct {
	id    uint64
	name  string
	how   *bitfilter.Filter
	det   *bitfilter.Filter // nil at a leaf
	union *bitfilter.Filter // nil at a leaf
	left  *HowDeNode
	right *HowDeNode
}

func newHowDeLeaf(id uint64, name string, m uint) *HowDeNode {
	return &HowDeNode{id: id, name: name, how: bitfilter.New(m)}
}

func (n *HowDeNode) ID() uint64   { return n.id }
func (n *HowDeNode) Name() string { return n.name }

func (n *HowDeNode) LeftChild() Node {
	if n.left == nil {
		return nil
	}
	return n.left
}

func (n *HowDeNode) RightChild() Node {
	if n.right == nil {
		return nil
	}
	return n.right
}

func (n *HowDeNode) copyLeaf() *HowDeNode {
	return &HowDeNode{id: n.id, name: n.name, how: n.how.Copy()}
}

func (n *HowDeNode) insertKmer(hashFn khash.Func, m uint, kmer []byte) {
	n.how.Set(khash.Index(hashFn, kmer, m))
}

func (n *HowDeNode) recomputeDet() error {
	det := n.how.Copy()
	notUnion := n.union.Not()
	if err := det.Or(notUnion); err != nil {
		return err
	}
	n.det = det
	return nil
}

// insertExperiment implements the HowDe greedy fold-and-descend of §4.D.
func (n *HowDeNode) insertExperiment(leaf *HowDeNode, nextID func() uint64) error {
	if n.left == nil && n.right == nil {
		clone := n.copyLeaf()
		n.id = nextID()
		n.name = fmt.Sprintf("I%d", n.id)
		n.left = clone
		n.right = leaf

		union, err := bitfilter.Or2(clone.how, leaf.how)
		if err != nil {
			return err
		}
		n.union = union
		if err := n.how.And(leaf.how); err != nil {
			return err
		}
		return n.recomputeDet()
	}

	if err := n.union.Or(leaf.how); err != nil {
		return err
	}
	if err := n.how.And(leaf.how); err != nil {
		return err
	}
	return n.recomputeDet()
}

func (n *HowDeNode) descend(leaf *HowDeNode, k Kernel) *HowDeNode {
	if k.Sim(n.left.how, leaf.how) >= k.Sim(n.right.how, leaf.how) {
		return n.left
	}
	return n.right
}

func howdeFromChildren(id uint64, left, right *HowDeNode) (*HowDeNode, error) {
	leftUnion := left.union
	if leftUnion == nil {
		leftUnion = left.how
	}
	rightUnion := right.union
	if rightUnion == nil {
		rightUnion = right.how
	}
	union, err := bitfilter.Or2(leftUnion, rightUnion)
	if err != nil {
		return nil, err
	}
	how, err := bitfilter.And2(left.how, right.how)
	if err != nil {
		return nil, err
	}
	node := &HowDeNode{id: id, name: fmt.Sprintf("I%d", id), how: how, union: union, left: left, right: right}
	if err := node.recomputeDet(); err != nil {
		return nil, err
	}
	return node, nil
}

type howdeClass int

const (
	howdeMiss howdeClass = iota
	howdeHit
	howdePartial
)

func (n *HowDeNode) classify(hashFn khash.Func, m uint, kmer []byte) howdeClass {
	idx := khash.Index(hashFn, kmer, m)
	if IsLeaf(n) {
		if n.how.Test(idx) {
			return howdeHit
		}
		return howdeMiss
	}
	if !n.det.Test(idx) {
		return howdePartial
	}
	if n.how.Test(idx) {
		return howdeHit
	}
	return howdeMiss
}

func (n *HowDeNode) classifyIndex(idx uint) howdeClass {
	if IsLeaf(n) {
		if n.how.Test(idx) {
			return howdeHit
		}
		return howdeMiss
	}
	if !n.det.Test(idx) {
		return howdePartial
	}
	if n.how.Test(idx) {
		return howdeHit
	}
	return howdeMiss
}

// queryExperiment implements the HowDe pruning descent of §4.D. The
// reference's inner-node branch accumulates `complete_misses +=
// query_kmer_how(kmer)`, adding a boolean to an integer; this is almost
// certainly meant to be `+= 1` and is implemented that way here.
func (n *HowDeNode) queryExperiment(hashFn khash.Func, m uint, kmers [][]byte, tau int) []string {
	completeHits, completeMisses := 0, 0
	partial := make([][]byte, 0, len(kmers))
	for _, kmer := range kmers {
		switch n.classify(hashFn, m, kmer) {
		case howdeHit:
			completeHits++
			if completeHits >= tau {
				return n.allLeafNames()
			}
		case howdePartial:
			partial = append(partial, kmer)
		default:
			completeMisses++
			if completeMisses > len(kmers)-tau {
				return nil
			}
		}
	}
	if IsLeaf(n) {
		return nil
	}
	remaining := tau - completeHits
	return append(n.left.queryExperiment(hashFn, m, partial, remaining), n.right.queryExperiment(hashFn, m, partial, remaining)...)
}

func (n *HowDeNode) queryExperimentFast(hashFn khash.Func, indices []uint, tau int) []string {
	completeHits, completeMisses := 0, 0
	partial := make([]uint, 0, len(indices))
	for _, idx := range indices {
		switch n.classifyIndex(idx) {
		case howdeHit:
			completeHits++
			if completeHits >= tau {
				return n.allLeafNames()
			}
		case howdePartial:
			partial = append(partial, idx)
		default:
			completeMisses++
			if completeMisses > len(indices)-tau {
				return nil
			}
		}
	}
	if IsLeaf(n) {
		return nil
	}
	remaining := tau - completeHits
	return append(n.left.queryExperimentFast(hashFn, partial, remaining), n.right.queryExperimentFast(hashFn, partial, remaining)...)
}

func (n *HowDeNode) allLeafNames() []string {
	if IsLeaf(n) {
		return []string{n.name}
	}
	return append(n.left.allLeafNames(), n.right.allLeafNames()...)
}

// queryExperimentWeighted is the deduplicated, multiplicity-weighted fast
// path supplemented from the reference's fast_query_experiment.
func (n *HowDeNode) queryExperimentWeighted(idx []uint, weight map[uint]int, tau int) []string {
	completeHits, completeMisses, total := 0, 0, 0
	for _, i := range idx {
		total += weight[i]
	}
	partial := make([]uint, 0, len(idx))
	for _, i := range idx {
		switch n.classifyIndex(i) {
		case howdeHit:
			completeHits += weight[i]
			if completeHits >= tau {
				return n.allLeafNames()
			}
		case howdePartial:
			partial = append(partial, i)
		default:
			completeMisses += weight[i]
			if completeMisses > total-tau {
				return nil
			}
		}
	}
	if IsLeaf(n) {
		return nil
	}
	remaining := tau - completeHits
	return append(n.left.queryExperimentWeighted(partial, weight, remaining), n.right.queryExperimentWeighted(partial, weight, remaining)...)
}
