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

// Package sbt implements the Sequence Bloom Tree: a binary tree of
// aggregated bit-filters that prunes whole subtrees of experiments out of a
// k-mer membership query.
package sbt

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kernel"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/khash"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kmer"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/store"
)

// Config configures a Tree beyond its required construction parameters.
type Config struct {
	Log          zerolog.Logger
	Rng          *rand.Rand
	HashFraction float64
	Store        *store.Store
}

// Option modifies a Config.
type Option func(*Config)

// DefaultConfig is the tree's default configuration: no sampling, and a
// *rand.Rand seeded with the fixed seed 1. That one *rand.Rand is shared by
// every tree built without WithRand; supply a per-tree source via WithRand
// for independent or differently seeded tie-breaking.
var DefaultConfig = Config{
	Log:          zerolog.Nop(),
	Rng:          rand.New(rand.NewSource(1)),
	HashFraction: 1.0,
}

// WithLogger attaches a logger; the tree adds its own component/variant
// fields on top.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Config) { c.Log = log }
}

// WithRand supplies the explicit, seedable random source used for kernel
// tie-breaking and k-mer sampling (Design Notes: no hidden global RNG).
func WithRand(rng *rand.Rand) Option {
	return func(c *Config) { c.Rng = rng }
}

// WithHashFraction sets rho in (0, 1]: the probability that a given k-mer
// position is hashed at all, simulating partial sequencing coverage.
func WithHashFraction(rho float64) Option {
	return func(c *Config) { c.HashFraction = rho }
}

// WithStore attaches an optional write-back filter store: every leaf
// filter built by the tree is also persisted there, keyed by experiment
// name, so it survives independently of the in-memory tree (e.g. to warm
// a cache ahead of a bulk cluster build, or to recover a leaf's raw bytes
// without re-reading the original sequence).
func WithStore(s *store.Store) Option {
	return func(c *Config) { c.Store = s }
}

// Tree is a Sequence Bloom Tree: k, m, a hash-function family, a
// similarity threshold, a similarity kernel, and a node-variant selector,
// together with the root of exactly one of the three node-variant trees.
type Tree struct {
	log zerolog.Logger

	k            int
	m            uint
	hashFns      []khash.Func
	theta        float64
	kernel       Kernel
	variant      Variant
	rng          *rand.Rand
	hashFraction float64
	filterStore  *store.Store

	nextID uint64

	rootBase  *BaseNode
	rootSplit *SplitNode
	rootHowDe *HowDeNode
}

// New builds a Tree. It returns ErrInvalidConfiguration if hashFns is empty,
// or if variant is Split or HowDe and len(hashFns) != 1.
func New(k int, m uint, hashFns []khash.Func, theta float64, kern kernel.Kernel, variant Variant, opts ...Option) (*Tree, error) {
	if len(hashFns) == 0 {
		return nil, fmt.Errorf("%w: at least one hash function is required", ErrInvalidConfiguration)
	}
	if max := variant.maxHashFuncs(); max >= 0 && len(hashFns) > max {
		return nil, fmt.Errorf("%w: variant %s supports at most %d hash function(s), got %d", ErrInvalidConfiguration, variant, max, len(hashFns))
	}

	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	t := &Tree{
		log:          config.Log.With().Str("component", "sbt").Str("variant", variant.String()).Logger(),
		k:            k,
		m:            m,
		hashFns:      hashFns,
		theta:        theta,
		kernel:       Kernel{Fn: kern, Rng: config.Rng},
		variant:      variant,
		rng:          config.Rng,
		hashFraction: config.HashFraction,
		filterStore:  config.Store,
	}
	return t, nil
}

// Close releases the tree's attached filter store, if any. It is a no-op
// on a tree with no store configured.
func (t *Tree) Close() error {
	if t.filterStore == nil {
		return nil
	}
	return t.filterStore.Close()
}

// persistLeaf writes a newly built leaf's raw filter bytes to the attached
// store, if any, keyed by its experiment name.
func (t *Tree) persistLeaf(name string, raw []byte) {
	if t.filterStore == nil {
		return
	}
	t.filterStore.Save(name, raw)
}

// RetrieveLeafFilter fetches a leaf's raw filter bytes from the attached
// store. It returns ErrInvalidConfiguration if no store is attached.
func (t *Tree) RetrieveLeafFilter(name string) ([]byte, error) {
	if t.filterStore == nil {
		return nil, fmt.Errorf("%w: no filter store attached", ErrInvalidConfiguration)
	}
	return t.filterStore.Retrieve(name)
}

func (t *Tree) newID() uint64 {
	id := t.nextID
	t.nextID++
	return id
}

func (t *Tree) extractKmers(seq []byte) [][]byte {
	if t.hashFraction >= 1 {
		return kmer.Extract(seq, t.k)
	}
	return kmer.Sample(seq, t.k, t.hashFraction, t.rng)
}

// InsertSequence builds a leaf from a single sequence's k-mers and inserts
// it under the given experiment name.
func (t *Tree) InsertSequence(seq []byte, name string) error {
	return t.insertKmersAsLeaf(t.extractKmers(seq), name)
}

// InsertExperiment folds the k-mers of many sequences into a single leaf:
// one experiment is the union of many reads. Preserved alongside
// InsertSequence per Design Notes (both are valid, distinct semantics).
func (t *Tree) InsertExperiment(seqs [][]byte, name string) error {
	var kmers [][]byte
	for _, seq := range seqs {
		kmers = append(kmers, t.extractKmers(seq)...)
	}
	return t.insertKmersAsLeaf(kmers, name)
}

func (t *Tree) insertKmersAsLeaf(kmers [][]byte, name string) error {
	t.log.Debug().Str("name", name).Int("kmers", len(kmers)).Msg("inserting experiment")
	id := t.newID()
	switch t.variant {
	case Base:
		leaf := newBaseLeaf(id, name, t.m)
		for _, km := range kmers {
			leaf.insertKmer(t.hashFns, t.m, km)
		}
		t.persistLeaf(name, leaf.bf.Bytes())
		return t.insertBaseNode(leaf)
	case Split:
		leaf := newSplitLeaf(id, name, t.m)
		for _, km := range kmers {
			leaf.insertKmer(t.hashFns[0], t.m, km)
		}
		t.persistLeaf(name, leaf.sim.Bytes())
		return t.insertSplitNode(leaf)
	case HowDe:
		leaf := newHowDeLeaf(id, name, t.m)
		for _, km := range kmers {
			leaf.insertKmer(t.hashFns[0], t.m, km)
		}
		t.persistLeaf(name, leaf.how.Bytes())
		return t.insertHowDeNode(leaf)
	default:
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
}

// InsertNode inserts a pre-built node of the tree's variant directly,
// matching §6's insert_node. It returns ErrDimensionMismatch if n is of the
// wrong node variant or filter length.
func (t *Tree) InsertNode(n Node) error {
	switch t.variant {
	case Base:
		bn, ok := n.(*BaseNode)
		if !ok {
			return fmt.Errorf("%w: expected a Base node", ErrDimensionMismatch)
		}
		return t.insertBaseNode(bn)
	case Split:
		sn, ok := n.(*SplitNode)
		if !ok {
			return fmt.Errorf("%w: expected a Split node", ErrDimensionMismatch)
		}
		return t.insertSplitNode(sn)
	case HowDe:
		hn, ok := n.(*HowDeNode)
		if !ok {
			return fmt.Errorf("%w: expected a HowDe node", ErrDimensionMismatch)
		}
		return t.insertHowDeNode(hn)
	default:
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
}

func (t *Tree) insertBaseNode(leaf *BaseNode) error {
	if leaf.bf.Len() != t.m {
		return fmt.Errorf("%w: leaf filter length %d, tree expects %d", ErrDimensionMismatch, leaf.bf.Len(), t.m)
	}
	if t.rootBase == nil {
		t.rootBase = leaf
		return nil
	}
	return descendInsertBase(t.rootBase, leaf, t.kernel, t.newID)
}

func descendInsertBase(n *BaseNode, leaf *BaseNode, k Kernel, nextID func() uint64) error {
	wasLeaf := IsLeaf(n)
	if err := n.insertExperiment(leaf, nextID); err != nil {
		return err
	}
	if wasLeaf {
		return nil
	}
	return descendInsertBase(n.descend(leaf, k), leaf, k, nextID)
}

func (t *Tree) insertSplitNode(leaf *SplitNode) error {
	if leaf.sim.Len() != t.m {
		return fmt.Errorf("%w: leaf filter length %d, tree expects %d", ErrDimensionMismatch, leaf.sim.Len(), t.m)
	}
	if t.rootSplit == nil {
		t.rootSplit = leaf
		return nil
	}
	return descendInsertSplit(t.rootSplit, leaf, t.kernel, t.newID)
}

func descendInsertSplit(n *SplitNode, leaf *SplitNode, k Kernel, nextID func() uint64) error {
	wasLeaf := IsLeaf(n)
	if err := n.insertExperiment(leaf, nextID); err != nil {
		return err
	}
	if wasLeaf {
		return nil
	}
	return descendInsertSplit(n.descend(leaf, k), leaf, k, nextID)
}

func (t *Tree) insertHowDeNode(leaf *HowDeNode) error {
	if leaf.how.Len() != t.m {
		return fmt.Errorf("%w: leaf filter length %d, tree expects %d", ErrDimensionMismatch, leaf.how.Len(), t.m)
	}
	if t.rootHowDe == nil {
		t.rootHowDe = leaf
		return nil
	}
	return descendInsertHowDe(t.rootHowDe, leaf, t.kernel, t.newID)
}

func descendInsertHowDe(n *HowDeNode, leaf *HowDeNode, k Kernel, nextID func() uint64) error {
	wasLeaf := IsLeaf(n)
	if err := n.insertExperiment(leaf, nextID); err != nil {
		return err
	}
	if wasLeaf {
		return nil
	}
	return descendInsertHowDe(n.descend(leaf, k), leaf, k, nextID)
}

// Root returns the tree's root node, or nil if nothing has been inserted.
func (t *Tree) Root() Node {
	switch t.variant {
	case Base:
		if t.rootBase == nil {
			return nil
		}
		return t.rootBase
	case Split:
		if t.rootSplit == nil {
			return nil
		}
		return t.rootSplit
	case HowDe:
		if t.rootHowDe == nil {
			return nil
		}
		return t.rootHowDe
	default:
		return nil
	}
}

func (t *Tree) empty() bool {
	return t.Root() == nil
}

// threshold computes tau = ceil-as-real-compared-by->= θ·n, i.e. the
// smallest integer compared with >= that reproduces "at least θ·n hits".
func threshold(theta float64, n int) int {
	exact := theta * float64(n)
	tau := int(exact)
	if float64(tau) < exact {
		tau++
	}
	return tau
}

// QuerySequence implements §4.E's query_sequence: k-merize the query,
// compute tau = ceil(theta * |kmers|), and run the pruning descent.
func (t *Tree) QuerySequence(seq []byte) ([]string, error) {
	if t.empty() {
		return nil, ErrEmptyTree
	}
	kmers := kmer.Extract(seq, t.k)
	tau := threshold(t.theta, len(kmers))
	switch t.variant {
	case Base:
		return t.rootBase.queryExperiment(t.hashFns, t.m, kmers, tau), nil
	case Split:
		return t.rootSplit.queryExperiment(t.hashFns[0], t.m, kmers, tau), nil
	case HowDe:
		return t.rootHowDe.queryExperiment(t.hashFns[0], t.m, kmers, tau), nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
}

// QueryFast implements §4.E's fast_query_sequence: pre-hash the query into
// raw filter indices (kept with natural duplicates) and traverse by index
// instead of by k-mer string. Requires H == 1; returns
// ErrInvalidConfiguration otherwise. Semantically equivalent to
// QuerySequence modulo duplicate index hits being counted more than once,
// which is the accepted imprecision of the fast path.
func (t *Tree) QueryFast(seq []byte) ([]string, error) {
	if t.empty() {
		return nil, ErrEmptyTree
	}
	if len(t.hashFns) != 1 {
		return nil, fmt.Errorf("%w: fast query requires exactly 1 hash function, got %d", ErrInvalidConfiguration, len(t.hashFns))
	}
	kmers := kmer.Extract(seq, t.k)
	indices := make([]uint, len(kmers))
	for i, km := range kmers {
		indices[i] = khash.Index(t.hashFns[0], km, t.m)
	}
	tau := threshold(t.theta, len(kmers))
	switch t.variant {
	case Base:
		return t.rootBase.queryExperimentFast(t.hashFns[0], t.m, indices, tau), nil
	case Split:
		return t.rootSplit.queryExperimentFast(t.hashFns[0], indices, tau), nil
	case HowDe:
		return t.rootHowDe.queryExperimentFast(t.hashFns[0], indices, tau), nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
}

// QueryFaster is the deduplicated, multiplicity-weighted fast path
// supplemented from original_source/SBT/SBT.py's faster_query_sequence /
// fast_query_experiment split: each distinct filter index is classified
// once, weighted by how many query k-mers hashed to it. Requires H == 1.
func (t *Tree) QueryFaster(seq []byte) ([]string, error) {
	if t.empty() {
		return nil, ErrEmptyTree
	}
	if len(t.hashFns) != 1 {
		return nil, fmt.Errorf("%w: faster query requires exactly 1 hash function, got %d", ErrInvalidConfiguration, len(t.hashFns))
	}
	kmers := kmer.Extract(seq, t.k)
	weight := make(map[uint]int, len(kmers))
	idx := make([]uint, 0, len(kmers))
	for _, km := range kmers {
		i := khash.Index(t.hashFns[0], km, t.m)
		if _, seen := weight[i]; !seen {
			idx = append(idx, i)
		}
		weight[i]++
	}
	tau := threshold(t.theta, len(kmers))
	switch t.variant {
	case Base:
		return t.rootBase.queryExperimentWeighted(idx, weight, tau), nil
	case Split:
		return t.rootSplit.queryExperimentWeighted(idx, weight, tau), nil
	case HowDe:
		return t.rootHowDe.queryExperimentWeighted(idx, weight, tau), nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
}

// K returns the tree's k-mer length.
func (t *Tree) K() int { return t.k }

// M returns the tree's filter length.
func (t *Tree) M() uint { return t.m }

// Theta returns the tree's similarity threshold.
func (t *Tree) Theta() float64 { return t.theta }

// VariantOf returns the tree's node variant.
func (t *Tree) VariantOf() Variant { return t.variant }
