// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package idlemem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdleGECumulative(t *testing.T) {
	var s idleMemStat
	s.incTotal(memFile)
	s.incTotal(memFile)
	s.incTotal(memFile)
	s.incIdle(memFile, 0)
	s.incIdle(memFile, 0)
	s.incIdle(memFile, 5)

	ge := s.idleGE(memFile)

	require.EqualValues(t, 3, ge[0], "idleGE[0] counts every idle page regardless of age")
	require.EqualValues(t, 1, ge[5], "idleGE[5] counts only the page that reached age 5")
	require.EqualValues(t, 0, ge[6], "no page reached age 6")
	require.EqualValues(t, 0, s.idleGE(memAnon)[0], "anon bucket untouched")
}

func TestIdleMemStatAdd(t *testing.T) {
	var a, b idleMemStat
	a.incTotal(memAnon)
	a.incIdle(memAnon, 2)
	b.incTotal(memAnon)
	b.incIdle(memAnon, 2)
	b.incIdle(memAnon, 10)

	sum := a.add(b)

	require.EqualValues(t, 2, sum.total[memAnon])
	require.EqualValues(t, 3, sum.idleGE(memAnon)[2])
	require.EqualValues(t, 1, sum.idleGE(memAnon)[10])
}

func TestCgroupMapInsertOnFirstObservation(t *testing.T) {
	m := newCgroupMap()

	if _, ok := m.lookup(42); ok {
		t.Fatalf("expected no entry for inode 42 before first get")
	}

	stat := m.get(42)
	stat.incTotal(memFile)

	seen, ok := m.lookup(42)
	require.True(t, ok)
	require.EqualValues(t, 1, seen.total[memFile])

	m.reset()
	if _, ok := m.lookup(42); ok {
		t.Fatalf("expected reset to clear inode 42")
	}
}

func TestAgeTableSaturatesAtMaxAge(t *testing.T) {
	ages := newAgeTable(64)

	for i := 0; i < MaxAge+10; i++ {
		ages.bumpIdle(3)
	}
	require.Equal(t, MaxAge-1, ages.get(3))

	ages.resetActive(3)
	require.Equal(t, 0, ages.get(3))
}
