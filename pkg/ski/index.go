// Copyright 2024 SRxLab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ski

import (
	"github.com/srxlab/bgpsecval/pkg/bgpsec"
)

// numSlots is the size of the per-bucket direct-index table over the low 16
// bits of the AS number.
const numSlots = 1 << 16

// upperBucket covers one value of the high 16 bits of the AS number space.
// Buckets form a strictly ascending singly-linked list. Each bucket owns a
// direct-index table over the low 16 bits, trading roughly half a MiB per
// populated bucket for O(1) descent on the dominant case of legacy 2-byte AS
// numbers, which all live in the single bucket with value 0.
type upperBucket struct {
	value uint16
	next  *upperBucket
	slots *[numSlots]*algoList
}

// algoList holds the key entries of one (AS, algorithm suite) pair. Lists
// are strictly ascending by algorithm id and in practice have length 1.
type algoList struct {
	algorithm bgpsec.AlgorithmID
	next      *algoList
	keys      *keyEntry
}

// keyEntry is the node of one (AS, algorithm suite, SKI) triplet. Entries
// under an algoList are strictly ascending in byte-wise SKI order. The
// counter holds the number of currently known live keys matching the
// triplet; values above 1 occur transiently during key rollover.
type keyEntry struct {
	as        bgpsec.ASN
	algorithm bgpsec.AlgorithmID
	ski       bgpsec.SKI
	next      *keyEntry
	counter   int
	pending   *pendingUpdate
}

// pendingUpdate is one update waiting on a key entry. The identifier is
// stored by value; pending lists are strictly ascending in UpdateID.Path and
// contain no two Path-equal entries.
type pendingUpdate struct {
	id   UpdateID
	next *pendingUpdate
}

// index is the four-level key-availability structure. It owns every node
// below it.
type index struct {
	buckets *upperBucket
	// entries counts the live key entries across all levels.
	entries int
}

// lookupOrCreate descends the structure for the given triplet. With create
// set, missing nodes are inserted at their sorted position on every level and
// the result is never nil. Without create, nil is returned as soon as any
// level has no matching node; the structure is not mutated.
func (x *index) lookupOrCreate(as bgpsec.ASN, algo bgpsec.AlgorithmID, ski bgpsec.SKI,
	create bool) *keyEntry {

	upper := uint16(as >> 16)
	low := uint16(as)

	pb := &x.buckets
	for *pb != nil && (*pb).value < upper {
		pb = &(*pb).next
	}
	if *pb == nil || (*pb).value != upper {
		if !create {
			return nil
		}
		*pb = &upperBucket{value: upper, next: *pb, slots: new([numSlots]*algoList)}
	}

	pa := &(*pb).slots[low]
	for *pa != nil && (*pa).algorithm < algo {
		pa = &(*pa).next
	}
	if *pa == nil || (*pa).algorithm != algo {
		if !create {
			return nil
		}
		*pa = &algoList{algorithm: algo, next: *pa}
	}

	pk := &(*pa).keys
	for *pk != nil && (*pk).ski.Compare(ski) < 0 {
		pk = &(*pk).next
	}
	if *pk == nil || (*pk).ski != ski {
		if !create {
			return nil
		}
		*pk = &keyEntry{as: as, algorithm: algo, ski: ski, next: *pk}
		x.entries++
	}
	return *pk
}

// addPending registers the update as pending on the entry. Registering an
// identifier whose Path half is already present is a no-op.
func (x *index) addPending(e *keyEntry, id UpdateID) bool {
	pp := &e.pending
	for *pp != nil && (*pp).id.Path < id.Path {
		pp = &(*pp).next
	}
	if *pp != nil && (*pp).id.Path == id.Path {
		return false
	}
	*pp = &pendingUpdate{id: id, next: *pp}
	return true
}

// removePending drops the pending node matching the identifier's Path half.
// Removing an absent identifier is a no-op.
func (x *index) removePending(e *keyEntry, id UpdateID) bool {
	pp := &e.pending
	for *pp != nil && (*pp).id.Path < id.Path {
		pp = &(*pp).next
	}
	if *pp == nil || (*pp).id.Path != id.Path {
		return false
	}
	*pp = (*pp).next
	return true
}

// bump adjusts the live-key counter by delta, clamped at 0 from below, and
// derives the lifecycle transition. The second return value is false when the
// counter did not change (an unregister on an already-zero counter).
func (e *keyEntry) bump(delta int) (Transition, bool) {
	before := e.counter
	after := before + delta
	if after < 0 {
		after = 0
	}
	e.counter = after
	switch {
	case before == 0 && after == 1:
		return KeyNew, true
	case after > before:
		return KeyAdd, true
	case before == 1 && after == 0:
		return KeyRemoved, true
	case after < before:
		return KeyDel, true
	}
	return 0, false
}

// clean prunes key entries with a zero counter and no pending updates, and
// then removes algo lists, slots, and buckets that became empty. Returns the
// number of removed key entries. The walk touches every node and every slot
// of every bucket; callers must not expect bounded latency.
func (x *index) clean() int {
	removed := 0
	pb := &x.buckets
	for *pb != nil {
		b := *pb
		populated := false
		for i := range b.slots {
			pa := &b.slots[i]
			for *pa != nil {
				al := *pa
				pk := &al.keys
				for *pk != nil {
					e := *pk
					if e.counter == 0 && e.pending == nil {
						*pk = e.next
						x.entries--
						removed++
						continue
					}
					pk = &e.next
				}
				if al.keys == nil {
					*pa = al.next
					continue
				}
				pa = &al.next
			}
			if b.slots[i] != nil {
				populated = true
			}
		}
		if !populated {
			*pb = b.next
			continue
		}
		pb = &b.next
	}
	return removed
}

// releaseAll drops the entire structure. The garbage collector reclaims all
// nodes; pending identifiers are stored by value and hold no caller memory.
func (x *index) releaseAll() {
	x.buckets = nil
	x.entries = 0
}
