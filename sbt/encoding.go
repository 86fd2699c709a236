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
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kernel"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/khash"
)

// On-disk format: magic, version, then fixed-width parameters, then the
// topology encoded depth-first (node kind, id, name, filter bytes,
// children). Hash functions are not themselves serialized: Load
// reconstructs the default seeded family of the stored width via
// khash.Family, so a tree built with caller-supplied non-default hash
// functions will not round-trip those functions' identities, only their
// count. This mirrors the Design Notes' requirement for an explicit binary
// format in place of the source's language-native pickling.
const (
	encMagic   = "SBT1"
	encVersion = uint8(1)

	nodeKindLeaf  = uint8(0)
	nodeKindInner = uint8(1)
)

func writeUint64(w io.Writer, v uint64, scratch []byte) error {
	binary.LittleEndian.PutUint64(scratch, v)
	_, err := w.Write(scratch)
	return err
}

func readUint64(r io.Reader, scratch []byte) (uint64, error) {
	if _, err := io.ReadFull(r, scratch); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(scratch), nil
}

func writeFloat64(w io.Writer, v float64, scratch []byte) error {
	return writeUint64(w, math.Float64bits(v), scratch)
}

func readFloat64(r io.Reader, scratch []byte) (float64, error) {
	bits, err := readUint64(r, scratch)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func writeBytes(w io.Writer, b []byte, scratch []byte) error {
	if err := writeUint64(w, uint64(len(b)), scratch); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader, scratch []byte) ([]byte, error) {
	n, err := readUint64(r, scratch)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeString(w io.Writer, s string, scratch []byte) error {
	return writeBytes(w, []byte(s), scratch)
}

func readString(r io.Reader, scratch []byte) (string, error) {
	b, err := readBytes(r, scratch)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Save writes the tree's variant, construction parameters, and full
// topology to w in the module's binary format. It returns ErrEmptyTree if
// nothing has been inserted, or a wrapped ErrIOFailure on any write error.
func (t *Tree) Save(w io.Writer) error {
	root := t.Root()
	if root == nil {
		return ErrEmptyTree
	}
	scratch := make([]byte, 8)

	if _, err := io.WriteString(w, encMagic); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if _, err := w.Write([]byte{encVersion, uint8(t.variant)}); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := writeUint64(w, uint64(t.k), scratch); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := writeUint64(w, uint64(t.m), scratch); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := writeUint64(w, uint64(len(t.hashFns)), scratch); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := writeFloat64(w, t.theta, scratch); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := writeFloat64(w, t.hashFraction, scratch); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := writeUint64(w, t.nextID, scratch); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	var encErr error
	switch t.variant {
	case Base:
		encErr = encodeBase(w, t.rootBase, scratch)
	case Split:
		encErr = encodeSplit(w, t.rootSplit, scratch)
	case HowDe:
		encErr = encodeHowDe(w, t.rootHowDe, scratch)
	default:
		encErr = fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
	if encErr != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, encErr)
	}
	return nil
}

func encodeBase(w io.Writer, n *BaseNode, scratch []byte) error {
	kind := nodeKindLeaf
	if !IsLeaf(n) {
		kind = nodeKindInner
	}
	if _, err := w.Write([]byte{kind}); err != nil {
		return err
	}
	if err := writeUint64(w, n.id, scratch); err != nil {
		return err
	}
	if err := writeString(w, n.name, scratch); err != nil {
		return err
	}
	if err := writeBytes(w, n.bf.Bytes(), scratch); err != nil {
		return err
	}
	if kind == nodeKindLeaf {
		return nil
	}
	if err := encodeBase(w, n.left, scratch); err != nil {
		return err
	}
	return encodeBase(w, n.right, scratch)
}

func encodeSplit(w io.Writer, n *SplitNode, scratch []byte) error {
	kind := nodeKindLeaf
	if !IsLeaf(n) {
		kind = nodeKindInner
	}
	if _, err := w.Write([]byte{kind}); err != nil {
		return err
	}
	if err := writeUint64(w, n.id, scratch); err != nil {
		return err
	}
	if err := writeString(w, n.name, scratch); err != nil {
		return err
	}
	if err := writeBytes(w, n.sim.Bytes(), scratch); err != nil {
		return err
	}
	if kind == nodeKindLeaf {
		return nil
	}
	if err := writeBytes(w, n.rem.Bytes(), scratch); err != nil {
		return err
	}
	if err := encodeSplit(w, n.left, scratch); err != nil {
		return err
	}
	return encodeSplit(w, n.right, scratch)
}

func encodeHowDe(w io.Writer, n *HowDeNode, scratch []byte) error {
	kind := nodeKindLeaf
	if !IsLeaf(n) {
		kind = nodeKindInner
	}
	if _, err := w.Write([]byte{kind}); err != nil {
		return err
	}
	if err := writeUint64(w, n.id, scratch); err != nil {
		return err
	}
	if err := writeString(w, n.name, scratch); err != nil {
		return err
	}
	if err := writeBytes(w, n.how.Bytes(), scratch); err != nil {
		return err
	}
	if kind == nodeKindLeaf {
		return nil
	}
	// det is derived (how | ~union) and is not persisted.
	if err := writeBytes(w, n.union.Bytes(), scratch); err != nil {
		return err
	}
	if err := encodeHowDe(w, n.left, scratch); err != nil {
		return err
	}
	return encodeHowDe(w, n.right, scratch)
}

// Load reads a tree previously written by Save. kern is the similarity
// kernel to bind (kernels are functions and cannot round-trip through the
// binary format); opts configures the logger, RNG, and any other Option.
func Load(r io.Reader, kern kernel.Kernel, opts ...Option) (*Tree, error) {
	scratch := make([]byte, 8)

	magic := make([]byte, len(encMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if string(magic) != encMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrIOFailure, magic)
	}
	head := make([]byte, 2)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if head[0] != encVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrIOFailure, head[0])
	}
	variant := Variant(head[1])

	k, err := readUint64(r, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	m, err := readUint64(r, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	h, err := readUint64(r, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	theta, err := readFloat64(r, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	hashFraction, err := readFloat64(r, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	nextID, err := readUint64(r, scratch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	t, err := New(int(k), uint(m), khash.Family(int(h)), theta, kern, variant, opts...)
	if err != nil {
		return nil, err
	}
	t.hashFraction = hashFraction
	t.nextID = nextID

	switch variant {
	case Base:
		t.rootBase, err = decodeBase(r, uint(m), scratch)
	case Split:
		t.rootSplit, err = decodeSplit(r, uint(m), scratch)
	case HowDe:
		t.rootHowDe, err = decodeHowDe(r, uint(m), scratch)
	default:
		err = fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, variant)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return t, nil
}

func decodeBase(r io.Reader, m uint, scratch []byte) (*BaseNode, error) {
	kindBuf := make([]byte, 1)
	if _, err := io.ReadFull(r, kindBuf); err != nil {
		return nil, err
	}
	id, err := readUint64(r, scratch)
	if err != nil {
		return nil, err
	}
	name, err := readString(r, scratch)
	if err != nil {
		return nil, err
	}
	bfRaw, err := readBytes(r, scratch)
	if err != nil {
		return nil, err
	}
	n := &BaseNode{id: id, name: name, bf: bitfilter.FromBytes(m, bfRaw)}
	if kindBuf[0] == nodeKindLeaf {
		return n, nil
	}
	if n.left, err = decodeBase(r, m, scratch); err != nil {
		return nil, err
	}
	if n.right, err = decodeBase(r, m, scratch); err != nil {
		return nil, err
	}
	return n, nil
}

func decodeSplit(r io.Reader, m uint, scratch []byte) (*SplitNode, error) {
	kindBuf := make([]byte, 1)
	if _, err := io.ReadFull(r, kindBuf); err != nil {
		return nil, err
	}
	id, err := readUint64(r, scratch)
	if err != nil {
		return nil, err
	}
	name, err := readString(r, scratch)
	if err != nil {
		return nil, err
	}
	simRaw, err := readBytes(r, scratch)
	if err != nil {
		return nil, err
	}
	n := &SplitNode{id: id, name: name, sim: bitfilter.FromBytes(m, simRaw)}
	if kindBuf[0] == nodeKindLeaf {
		return n, nil
	}
	remRaw, err := readBytes(r, scratch)
	if err != nil {
		return nil, err
	}
	n.rem = bitfilter.FromBytes(m, remRaw)
	if n.left, err = decodeSplit(r, m, scratch); err != nil {
		return nil, err
	}
	if n.right, err = decodeSplit(r, m, scratch); err != nil {
		return nil, err
	}
	return n, nil
}

func decodeHowDe(r io.Reader, m uint, scratch []byte) (*HowDeNode, error) {
	kindBuf := make([]byte, 1)
	if _, err := io.ReadFull(r, kindBuf); err != nil {
		return nil, err
	}
	id, err := readUint64(r, scratch)
	if err != nil {
		return nil, err
	}
	name, err := readString(r, scratch)
	if err != nil {
		return nil, err
	}
	howRaw, err := readBytes(r, scratch)
	if err != nil {
		return nil, err
	}
	n := &HowDeNode{id: id, name: name, how: bitfilter.FromBytes(m, howRaw)}
	if kindBuf[0] == nodeKindLeaf {
		return n, nil
	}
	unionRaw, err := readBytes(r, scratch)
	if err != nil {
		return nil, err
	}
	n.union = bitfilter.FromBytes(m, unionRaw)
	if err := n.recomputeDet(); err != nil {
		return nil, err
	}
	if n.left, err = decodeHowDe(r, m, scratch); err != nil {
		return nil, err
	}
	if n.right, err = decodeHowDe(r, m, scratch); err != nil {
		return nil, err
	}
	return n, nil
}
