// Copyright 2024 The faasmesh Authors
// This file is part of faasmesh.
//
// faasmesh is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// faasmesh is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with faasmesh. If not, see <http://www.gnu.org/licenses/>.

package scheduler

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/probeum/faasmesh/common"
	"github.com/stretchr/testify/require"
)

func mustPeer(t *testing.T, s string) peer.ID {
	t.Helper()
	return peer.ID(s)
}

func TestPushAdvancesLevel(t *testing.T) {
	tr := New()
	p := mustPeer(t, "peerA")

	tr.Push(p, false)
	level, refs, ok := tr.Snapshot(p)
	require.True(t, ok)
	require.Equal(t, 1, level)
	require.Equal(t, 0, refs)

	tr.Push(p, true)
	level, refs, ok = tr.Snapshot(p)
	require.True(t, ok)
	require.Equal(t, 2, level)
	require.Equal(t, 1, refs)
}

func TestPopRetreatsLevelAndRemovesAtZero(t *testing.T) {
	tr := New()
	p := mustPeer(t, "peerA")

	tr.Push(p, false)
	tr.Push(p, false)
	require.Equal(t, 2, snapshotLevel(t, tr, p))

	tr.Pop(p, false)
	require.Equal(t, 1, snapshotLevel(t, tr, p))

	tr.Pop(p, false)
	_, _, ok := tr.Snapshot(p)
	require.False(t, ok)
}

func snapshotLevel(t *testing.T, tr *Tracker, p peer.ID) int {
	t.Helper()
	l, _, ok := tr.Snapshot(p)
	require.True(t, ok)
	return l
}

func TestPopInBatchContextKeepsZeroLevelEntry(t *testing.T) {
	tr := New()
	p := mustPeer(t, "peerA")

	tr.Push(p, true)
	tr.Pop(p, true)

	level, refs, ok := tr.Snapshot(p)
	require.True(t, ok, "a peer with outstanding batch refs must stay tracked at level 0")
	require.Equal(t, 0, level)
	require.Equal(t, 1, refs)
}

func TestLevelVectorNeverShrinksBelowTwo(t *testing.T) {
	tr := New()
	require.Equal(t, 2, tr.LevelCount())

	p := mustPeer(t, "peerA")
	tr.Push(p, false)
	tr.Push(p, false)
	tr.Push(p, false)
	require.GreaterOrEqual(t, tr.LevelCount(), 4)

	tr.Pop(p, false)
	tr.Pop(p, false)
	tr.Pop(p, false)
	require.Equal(t, 2, tr.LevelCount())
}

func TestSelectPrefersLowestLevelThenFIFO(t *testing.T) {
	tr := New()
	a, b, c := mustPeer(t, "a"), mustPeer(t, "b"), mustPeer(t, "c")

	tr.Push(a, false)
	tr.Push(a, false) // a at level 2
	tr.Push(b, false) // b at level 1
	tr.Push(c, false) // c at level 1, pushed after b

	candidates := common.NewProviderSet(a, b, c)
	chosen, ok := tr.Select(candidates)
	require.True(t, ok)
	require.Equal(t, b, chosen, "b and c are both at level 1 but b was pushed first")
}

func TestSelectIgnoresNonCandidates(t *testing.T) {
	tr := New()
	a, b := mustPeer(t, "a"), mustPeer(t, "b")

	tr.Push(a, false) // level 1
	tr.Push(b, false)
	tr.Push(b, false) // level 2

	chosen, ok := tr.Select(common.NewProviderSet(b))
	require.True(t, ok)
	require.Equal(t, b, chosen)
}

func TestFindUnusedReturnsOnlyUntracked(t *testing.T) {
	tr := New()
	a, b := mustPeer(t, "a"), mustPeer(t, "b")
	tr.Push(a, false)

	chosen, ok := tr.FindUnused(common.NewProviderSet(a, b))
	require.True(t, ok)
	require.Equal(t, b, chosen)

	_, ok = tr.FindUnused(common.NewProviderSet(a))
	require.False(t, ok)
}

func TestReleaseBatchDecrementsAndRemovesAtZero(t *testing.T) {
	tr := New()
	a := mustPeer(t, "a")

	tr.Push(a, true)
	tr.Push(a, true)
	_, refs, ok := tr.Snapshot(a)
	require.True(t, ok)
	require.Equal(t, 2, refs)

	tr.ReleaseBatch(common.NewProviderSet(a))
	_, refs, ok = tr.Snapshot(a)
	require.True(t, ok)
	require.Equal(t, 1, refs)

	tr.ReleaseBatch(common.NewProviderSet(a))
	_, _, ok = tr.Snapshot(a)
	require.False(t, ok, "batchRefs reaching zero must fully untrack the peer")
}

func TestSelectAndPushPrefersUnusedCandidateInSet(t *testing.T) {
	tr := New()
	busy, fresh := mustPeer(t, "busy"), mustPeer(t, "fresh")
	tr.Push(busy, false)

	candidates := common.NewProviderSet(busy, fresh)
	u := candidates.Clone()

	chosen, firstUse := tr.SelectAndPush(candidates, u)
	require.Equal(t, fresh, chosen)
	require.True(t, firstUse)
	require.False(t, u.Contains(fresh), "selected peer must be removed from the not-yet-used set")
}

func TestSelectAndPushFallsBackToLeastBusyWhenAllUsed(t *testing.T) {
	tr := New()
	a, b := mustPeer(t, "a"), mustPeer(t, "b")
	tr.Push(a, false)
	tr.Push(a, false)
	tr.Push(b, false)

	candidates := common.NewProviderSet(a, b)
	u := common.NewProviderSet() // already emptied: all candidates seen this batch

	chosen, firstUse := tr.SelectAndPush(candidates, u)
	require.Equal(t, b, chosen, "b is at the lower level and must win")
	require.False(t, firstUse)
}

func TestPopWithoutPushPanics(t *testing.T) {
	tr := New()
	require.Panics(t, func() {
		tr.Pop(mustPeer(t, "ghost"), false)
	})
}

func TestConcurrentPushPopIsRaceFree(t *testing.T) {
	tr := New()
	done := make(chan struct{})

	for i := 0; i < 50; i++ {
		i := i
		go func() {
			p := mustPeer(t, string(rune('a'+i%26))+string(rune('A'+i/26)))
			tr.Push(p, false)
			tr.Pop(p, false)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}
}
