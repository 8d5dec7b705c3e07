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

// Package scheduler implements the provider load tracker: the
// least-busy-peer selector described in spec.md §4.A. A peer's level is
// the number of outstanding units of work it has relative to others
// that have been pushed exactly that many times; peers at lower levels
// are always preferred, and a FIFO order within a level breaks ties.
package scheduler

import (
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/probeum/faasmesh/common"
)

type entry struct {
	level     int
	batchRefs int
}

// Tracker is the concurrency-safe provider load tracker (component A).
// All methods acquire an internal mutex and are total and infallible on
// valid input, per spec.md §4.A.
type Tracker struct {
	mu     sync.Mutex
	peers  map[peer.ID]*entry
	levels [][]peer.ID // levels[i] is the FIFO sequence of peers at level i
}

// New returns an empty tracker with the minimum two levels.
func New() *Tracker {
	return &Tracker{
		peers:  make(map[peer.ID]*entry),
		levels: [][]peer.ID{{}, {}},
	}
}

func removeFromSeq(seq []peer.ID, p peer.ID) []peer.ID {
	for i, q := range seq {
		if q == p {
			out := make([]peer.ID, 0, len(seq)-1)
			out = append(out, seq[:i]...)
			out = append(out, seq[i+1:]...)
			return out
		}
	}
	return seq
}

func (t *Tracker) ensureLevel(l int) {
	for len(t.levels) <= l {
		t.levels = append(t.levels, nil)
	}
}

// trimTrailingEmpty drops trailing empty levels beyond index 1, per
// invariant 2 in spec.md §8.
func (t *Tracker) trimTrailingEmpty() {
	for len(t.levels) > 2 && len(t.levels[len(t.levels)-1]) == 0 {
		t.levels = t.levels[:len(t.levels)-1]
	}
}

// Push admits one unit of work for peer p. firstUseInBatch marks
// whether this push is the first dispatch to p within the caller's
// batch (see spec.md §4.A).
func (t *Tracker) Push(p peer.ID, firstUseInBatch bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.push(p, firstUseInBatch)
}

func (t *Tracker) push(p peer.ID, firstUseInBatch bool) {
	e, ok := t.peers[p]
	if !ok {
		refs := 0
		if firstUseInBatch {
			refs = 1
		}
		t.levels[1] = append(t.levels[1], p)
		t.peers[p] = &entry{level: 1, batchRefs: refs}
		return
	}

	l := e.level
	t.levels[l] = removeFromSeq(t.levels[l], p)

	newLevel := l + 1
	t.ensureLevel(newLevel)
	t.levels[newLevel] = append(t.levels[newLevel], p)

	if firstUseInBatch {
		e.batchRefs++
	}
	e.level = newLevel
}

// Pop signals that one unit of work for peer p finished. isBatchContext
// distinguishes a many-call dispatch from a single-invocation race, per
// spec.md §4.A.
func (t *Tracker) Pop(p peer.ID, isBatchContext bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pop(p, isBatchContext)
}

func (t *Tracker) pop(p peer.ID, isBatchContext bool) {
	e, ok := t.peers[p]
	if !ok {
		panic("scheduler: pop of peer with no matching push")
	}

	l := e.level
	t.levels[l] = removeFromSeq(t.levels[l], p)

	newLevel := l - 1
	if newLevel < 0 {
		newLevel = 0
	}

	keep := newLevel > 0 || (newLevel == 0 && isBatchContext) || (newLevel == 0 && !isBatchContext && e.batchRefs > 0)
	if keep {
		t.ensureLevel(newLevel)
		t.levels[newLevel] = append(t.levels[newLevel], p)
		e.level = newLevel
	} else {
		delete(t.peers, p)
	}

	t.trimTrailingEmpty()
}

// Select scans levels in ascending order and, within a level, insertion
// order, returning the first peer present in candidates. The returned
// peer is removed from its level's sequence but remains in the peer
// table; the caller must Push it back to account for the new unit of
// work. Select returns ("", false) when no candidate is tracked.
func (t *Tracker) Select(candidates common.ProviderSet) (peer.ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectLocked(candidates)
}

func (t *Tracker) selectLocked(candidates common.ProviderSet) (peer.ID, bool) {
	for l, seq := range t.levels {
		for _, p := range seq {
			if candidates.Contains(p) {
				t.levels[l] = removeFromSeq(t.levels[l], p)
				return p, true
			}
		}
	}
	return "", false
}

// FindUnused returns any peer from candidates that is not currently
// tracked (i.e. has no outstanding work at all), preferring fresh
// providers when priming a batch.
func (t *Tracker) FindUnused(candidates common.ProviderSet) (peer.ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for p := range candidates {
		if _, tracked := t.peers[p]; !tracked {
			return p, true
		}
	}
	return "", false
}

// ReleaseBatch decrements batchRefs for every peer of candidates that is
// still tracked; a peer whose batchRefs reaches zero is fully removed.
func (t *Tracker) ReleaseBatch(candidates common.ProviderSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for p := range candidates {
		e, ok := t.peers[p]
		if !ok {
			continue
		}
		e.batchRefs--
		if e.batchRefs <= 0 {
			t.levels[e.level] = removeFromSeq(t.levels[e.level], p)
			delete(t.peers, p)
		}
	}
	t.trimTrailingEmpty()
}

// SelectAndPush performs the priming sequence used by the many-call
// dispatcher (spec.md §4.E step 3a) atomically under the tracker's
// mutex: prefer an unused candidate still present in the not-yet-used
// set u; otherwise select the least-busy candidate. Either way it pushes
// the chosen peer with the computed firstUse flag and reports whether it
// counted as first use so the caller can remove it from u.
func (t *Tracker) SelectAndPush(candidates common.ProviderSet, u common.ProviderSet) (p peer.ID, firstUse bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cand, ok := t.findUnusedLocked(candidates); ok && u.Contains(cand) {
		firstUse = true
		delete(u, cand)
		t.push(cand, true)
		return cand, true
	}

	chosen, ok := t.selectLocked(candidates)
	if !ok {
		panic("scheduler: select found no candidate for a non-empty provider set")
	}
	if u.Contains(chosen) {
		firstUse = true
		delete(u, chosen)
	}
	t.push(chosen, firstUse)
	return chosen, firstUse
}

func (t *Tracker) findUnusedLocked(candidates common.ProviderSet) (peer.ID, bool) {
	for p := range candidates {
		if _, tracked := t.peers[p]; !tracked {
			return p, true
		}
	}
	return "", false
}

// Snapshot returns the level a tracked peer currently sits at, for
// tests verifying invariant 1. The boolean reports presence.
func (t *Tracker) Snapshot(p peer.ID) (level int, batchRefs int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, found := t.peers[p]
	if !found {
		return 0, 0, false
	}
	return e.level, e.batchRefs, true
}

// LevelCount returns the number of levels currently held, for tests
// verifying invariant 2 (level trimming).
func (t *Tracker) LevelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.levels)
}
