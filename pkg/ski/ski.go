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

// Package ski implements the key-availability cache of a BGPsec validation
// daemon. The cache indexes (AS, algorithm suite, subject key identifier)
// triplets extracted from BGPsec_PATH attributes, tracks how many live router
// keys are known per triplet, and remembers which pending updates wait on
// each triplet. Registering an update yields a cheap pre-validation verdict:
// whether full cryptographic path validation could possibly succeed with the
// keys currently known. When a key appears or disappears, the cache notifies
// the daemon for every update whose verdict may have changed.
//
// The cache is not internally synchronized. All mutating operations and the
// key-change callback they invoke must run under a single external
// serialization point, such as one exclusive lock per cache instance.
// Read-only use may run concurrently with itself but never with a mutation.
// The callback runs synchronously inside the mutating call; it must not
// re-enter the cache and must not block.
package ski

// UpdateID identifies a BGP update held by the validation daemon. Only the
// Path half is relevant to path validation; the cache orders and
// de-duplicates pending updates by Path alone, so two identifiers that
// differ only in Prefix address the same pending registration.
type UpdateID struct {
	// Path is the path-validation-relevant half of the identifier.
	Path uint32
	// Prefix is the prefix-origin half. It is carried through to the
	// key-change callback but ignored for ordering and equality.
	Prefix uint32
}

// Compare orders update identifiers by their path-validation-relevant half.
// The result is 0 if the identifiers are equivalent for indexing purposes.
func (u UpdateID) Compare(o UpdateID) int {
	switch {
	case u.Path < o.Path:
		return -1
	case u.Path > o.Path:
		return 1
	}
	return 0
}

// Verdict is the pre-validation outcome of registering an update.
type Verdict int

const (
	// VerdictError reports that the attribute was absent or malformed. The
	// update was not registered.
	VerdictError Verdict = iota
	// VerdictInvalid reports that no signature block has all its keys
	// available: full path validation is guaranteed to fail and can be
	// skipped. The update stays registered so a later key arrival can flip
	// the verdict.
	VerdictInvalid
	// VerdictUnknown reports that at least one signature block has all its
	// keys available. Key presence says nothing about signature validity,
	// so full path validation is still required.
	VerdictUnknown
)

func (v Verdict) String() string {
	switch v {
	case VerdictError:
		return "error"
	case VerdictInvalid:
		return "invalid"
	case VerdictUnknown:
		return "unknown"
	}
	return "invalid verdict value"
}

// Transition describes how the live-key counter of a triplet changed.
type Transition int

const (
	// KeyNew is the 0 to 1 transition: a key for the triplet became
	// available. Receivers are expected to re-validate affected updates.
	KeyNew Transition = iota
	// KeyAdd is an n to n+1 transition for n >= 1, typically a key
	// rollover overlap. Informational; the validation result cannot have
	// changed.
	KeyAdd
	// KeyDel is an n to n-1 transition with n-1 >= 1. Informational.
	KeyDel
	// KeyRemoved is the 1 to 0 transition: the last key for the triplet
	// disappeared. Receivers are expected to re-validate affected updates.
	KeyRemoved
)

func (t Transition) String() string {
	switch t {
	case KeyNew:
		return "new"
	case KeyAdd:
		return "add"
	case KeyDel:
		return "del"
	case KeyRemoved:
		return "removed"
	}
	return "invalid transition value"
}

// KeyChangeFunc is invoked once per pending update affected by a key-state
// transition. It runs synchronously inside the mutating cache call and must
// not re-enter the cache.
type KeyChangeFunc func(Transition, UpdateID)
