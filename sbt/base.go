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

// BaseNode holds a single OR-aggregated filter: bit i is 1 iff any
// descendant leaf has bit i set. A leaf's bf is its own k-mer filter; an
// inner node's bf equals left.bf | right.bf (invariant I2).
type BaseNode struct {
	id    uint64
	name  string
	bf    *bitfilter.Filter
	left  *BaseNode
	right *BaseNode
}

func newBaseLeaf(id uint64, name string, m uint) *BaseNode {
	return &BaseNode{id: id, name: name, bf: bitfilter.New(m)}
}

// ID returns the node's stable monotonic identifier.
func (n *BaseNode) ID() uint64 { return n.id }

// Name returns the leaf's experiment name or the inner node's "I"+id label.
func (n *BaseNode) Name() string { return n.name }

// LeftChild returns the left child, or nil at a leaf.
func (n *BaseNode) LeftChild() Node {
	if n.left == nil {
		return nil
	}
	return n.left
}

// RightChild returns the right child, or nil at a leaf.
func (n *BaseNode) RightChild() Node {
	if n.right == nil {
		return nil
	}
	return n.right
}

// Filter exposes the node's aggregated filter.
func (n *BaseNode) Filter() *bitfilter.Filter { return n.bf }

func (n *BaseNode) copyLeaf() *BaseNode {
	return &BaseNode{id: n.id, name: n.name, bf: n.bf.Copy()}
}

// insertKmer sets every hash-function bit for kmer in the node's own
// filter.
func (n *BaseNode) insertKmer(hashFns []khash.Func, m uint, kmer []byte) {
	for _, hf := range hashFns {
		n.bf.Set(khash.Index(hf, kmer, m))
	}
}

// insertExperiment implements the greedy descent of §4.D for Base nodes.
// nextID mints ids for newly-created inner nodes.
func (n *BaseNode) insertExperiment(leaf *BaseNode, nextID func() uint64) error {
	if n.left == nil && n.right == nil {
		clone := n.copyLeaf()
		n.left = clone
		n.right = leaf
		n.id = nextID()
		n.name = fmt.Sprintf("I%d", n.id)
		n.bf = clone.bf.Copy()
		if err := n.bf.Or(leaf.bf); err != nil {
			return err
		}
		return nil
	}

	if err := n.bf.Or(leaf.bf); err != nil {
		return err
	}
	return nil
}

// descend returns the child more similar to leaf, for descendInsertBase to
// recurse into; called after insertExperiment has folded leaf's bits into n.
func (n *BaseNode) descend(leaf *BaseNode, k Kernel) *BaseNode {
	if k.Sim(n.left.bf, leaf.bf) >= k.Sim(n.right.bf, leaf.bf) {
		return n.left
	}
	return n.right
}

func baseFromChildren(id uint64, left, right *BaseNode) (*BaseNode, error) {
	bf, err := bitfilter.Or2(left.bf, right.bf)
	if err != nil {
		return nil, err
	}
	return &BaseNode{id: id, name: fmt.Sprintf("I%d", id), bf: bf, left: left, right: right}, nil
}

// queryExperiment implements the pruning descent of §4.D for Base nodes. A
// hit against the OR-aggregated filter only means "some descendant may have
// this bit", never "every descendant has it" (unlike Split's sim or HowDe's
// how/det), so reaching tau hits at an inner node does not let us return
// every descendant name: it only lets us stop scanning kmers and descend
// into both children with the surviving hits and the same, un-reduced tau
// (original_source/SBT/BaseNode.py:83-87).
func (n *BaseNode) queryExperiment(hashFns []khash.Func, m uint, kmers [][]byte, tau int) []string {
	completeMisses := 0
	hits := make([][]byte, 0, len(kmers))
	for _, kmer := range kmers {
		if n.isHit(hashFns, m, kmer) {
			hits = append(hits, kmer)
			if len(hits) >= tau {
				if IsLeaf(n) {
					return n.allLeafNames()
				}
				return append(n.left.queryExperiment(hashFns, m, hits, tau), n.right.queryExperiment(hashFns, m, hits, tau)...)
			}
		} else {
			completeMisses++
			if completeMisses > len(kmers)-tau {
				return nil
			}
		}
	}
	return nil
}

func (n *BaseNode) isHit(hashFns []khash.Func, m uint, kmer []byte) bool {
	for _, hf := range hashFns {
		if !n.bf.Test(khash.Index(hf, kmer, m)) {
			return false
		}
	}
	return true
}

// queryExperimentFast is the single-hash index-based fast path (§4.D fast
// path), usable only when len(hashFns) == 1. As in queryExperiment, a hit
// only reaches tau for the kmers scanned so far, never for every descendant,
// so the inner-node case descends into both children with the same tau.
func (n *BaseNode) queryExperimentFast(hashFn khash.Func, m uint, indices []uint, tau int) []string {
	completeMisses := 0
	hits := make([]uint, 0, len(indices))
	for _, idx := range indices {
		if n.bf.Test(idx) {
			hits = append(hits, idx)
			if len(hits) >= tau {
				if IsLeaf(n) {
					return n.allLeafNames()
				}
				return append(n.left.queryExperimentFast(hashFn, m, hits, tau), n.right.queryExperimentFast(hashFn, m, hits, tau)...)
			}
		} else {
			completeMisses++
			if completeMisses > len(indices)-tau {
				return nil
			}
		}
	}
	return nil
}

func (n *BaseNode) allLeafNames() []string {
	if IsLeaf(n) {
		return []string{n.name}
	}
	return append(n.left.allLeafNames(), n.right.allLeafNames()...)
}

// queryExperimentWeighted is the deduplicated, multiplicity-weighted fast
// path supplemented from the reference's faster_query_experiment/
// fast_query_experiment split (original_source/SBT/SBT.py): idx holds each
// distinct filter index once, and weight[idx] is how many query k-mers
// hashed to it.
func (n *BaseNode) queryExperimentWeighted(idx []uint, weight map[uint]int, tau int) []string {
	completeHits, completeMisses, total := 0, 0, 0
	for _, i := range idx {
		total += weight[i]
	}
	hits := make([]uint, 0, len(idx))
	for _, i := range idx {
		if n.bf.Test(i) {
			completeHits += weight[i]
			hits = append(hits, i)
			if completeHits >= tau {
				if IsLeaf(n) {
					return n.allLeafNames()
				}
				return append(n.left.queryExperimentWeighted(hits, weight, tau), n.right.queryExperimentWeighted(hits, weight, tau)...)
			}
		} else {
			completeMisses += weight[i]
			if completeMisses > total-tau {
				return nil
			}
		}
	}
	return nil
}
