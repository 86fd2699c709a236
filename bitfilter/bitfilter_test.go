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

package bitfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
)

func Test_SetTest(t *testing.T) {
	f := bitfilter.New(10)
	assert.False(t, f.Test(3))
	f.Set(3)
	assert.True(t, f.Test(3))
	assert.Equal(t, uint(1), f.Popcount())
}

func Test_Copy(t *testing.T) {
	f := bitfilter.New(8)
	f.Set(2)
	cp := f.Copy()
	cp.Set(5)
	assert.False(t, f.Test(5))
	assert.True(t, cp.Test(5))
	assert.True(t, cp.Test(2))
}

func Test_Or(t *testing.T) {
	a := bitfilter.New(8)
	a.Set(0)
	b := bitfilter.New(8)
	b.Set(1)
	require.NoError(t, a.Or(b))
	assert.True(t, a.Test(0))
	assert.True(t, a.Test(1))
}

func Test_And(t *testing.T) {
	a := bitfilter.New(8)
	a.Set(0)
	a.Set(1)
	b := bitfilter.New(8)
	b.Set(1)
	require.NoError(t, a.And(b))
	assert.False(t, a.Test(0))
	assert.True(t, a.Test(1))
}

func Test_AndNot(t *testing.T) {
	a := bitfilter.New(8)
	a.Set(0)
	a.Set(1)
	b := bitfilter.New(8)
	b.Set(1)
	require.NoError(t, a.AndNot(b))
	assert.True(t, a.Test(0))
	assert.False(t, a.Test(1))
}

func Test_Not(t *testing.T) {
	f := bitfilter.New(4)
	f.Set(1)
	not := f.Not()
	assert.True(t, not.Test(0))
	assert.False(t, not.Test(1))
	assert.True(t, not.Test(2))
	assert.True(t, not.Test(3))
}

func Test_Or2And2Immutable(t *testing.T) {
	a := bitfilter.New(4)
	a.Set(0)
	b := bitfilter.New(4)
	b.Set(1)

	or, err := bitfilter.Or2(a, b)
	require.NoError(t, err)
	assert.True(t, or.Test(0))
	assert.True(t, or.Test(1))
	assert.False(t, a.Test(1)) // a unchanged

	and, err := bitfilter.And2(or, a)
	require.NoError(t, err)
	assert.True(t, and.Test(0))
	assert.False(t, and.Test(1))
}

func Test_DimensionMismatch(t *testing.T) {
	a := bitfilter.New(4)
	b := bitfilter.New(8)
	assert.Error(t, a.Or(b))
	_, err := bitfilter.Or2(a, b)
	assert.Error(t, err)
}

func Test_BytesRoundTrip(t *testing.T) {
	f := bitfilter.New(37)
	f.Set(0)
	f.Set(36)
	f.Set(18)

	raw := f.Bytes()
	rebuilt := bitfilter.FromBytes(37, raw)
	assert.Equal(t, f.String(), rebuilt.String())
}

func Test_Slice(t *testing.T) {
	f := bitfilter.New(8)
	f.Set(0)
	f.Set(5)
	f.Set(7)

	short := f.Slice(4)
	assert.True(t, short.Test(0))
	assert.Equal(t, uint(4), short.Len())

	long := f.Slice(16)
	assert.Equal(t, uint(16), long.Len())
	assert.True(t, long.Test(5))
	assert.False(t, long.Test(10))
}
