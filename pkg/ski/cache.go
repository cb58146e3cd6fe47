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
	"github.com/srxlab/bgpsecval/pkg/log"
	"github.com/srxlab/bgpsecval/pkg/metrics"
	"github.com/srxlab/bgpsecval/pkg/private/serrors"
)

// Metrics instruments a cache. Nil members are ignored.
type Metrics struct {
	// Updates counts update registrations, labeled by "verdict".
	Updates metrics.Counter
	// KeyChanges counts key lifecycle transitions, labeled by "transition".
	KeyChanges metrics.Counter
	// Notifications counts key-change callback invocations.
	Notifications metrics.Counter
	// Entries tracks the number of live key entries.
	Entries metrics.Gauge
	// CleanRuns counts advisory prune passes.
	CleanRuns metrics.Counter
}

// Option configures a cache.
type Option interface {
	apply(c *Cache)
}

type optionFunc func(c *Cache)

func (f optionFunc) apply(c *Cache) { f(c) }

// WithLogger attaches a logger to the cache. By default the cache is silent.
func WithLogger(logger log.Logger) Option {
	return optionFunc(func(c *Cache) { c.logger = logger })
}

// WithMetrics attaches metrics to the cache.
func WithMetrics(m Metrics) Option {
	return optionFunc(func(c *Cache) { c.metrics = m })
}

// Cache is the key-availability cache. See the package documentation for the
// serialization contract. The zero value is not usable; construct with New.
type Cache struct {
	idx     index
	notify  KeyChangeFunc
	logger  log.Logger
	metrics Metrics
}

// New creates a cache that reports key-state transitions through notify.
func New(notify KeyChangeFunc, opts ...Option) (*Cache, error) {
	if notify == nil {
		return nil, serrors.New("key change callback must not be nil")
	}
	c := &Cache{
		notify: notify,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c, nil
}

// RegisterUpdateRaw parses the raw attribute and registers the update. The
// buffer starts at the attribute length field; flags is the attribute flags
// octet. A malformed buffer yields VerdictError and leaves the cache
// untouched.
func (c *Cache) RegisterUpdateRaw(id UpdateID, flags uint8, data []byte) Verdict {
	attr, err := bgpsec.ParsePathAttribute(flags, data)
	if err != nil {
		c.logger.Debug("Rejected malformed BGPsec attribute",
			"update", id.Path, "err", err)
		c.countVerdict(VerdictError)
		return VerdictError
	}
	return c.RegisterUpdate(id, attr)
}

// RegisterUpdate registers the update as pending on every triplet referenced
// by the attribute and computes the pre-validation verdict. The update stays
// registered for both VerdictInvalid and VerdictUnknown, so that later key
// changes can re-trigger validation. A nil or inconsistent attribute yields
// VerdictError without mutating the cache.
func (c *Cache) RegisterUpdate(id UpdateID, attr *bgpsec.PathAttribute) Verdict {
	if attr == nil {
		c.countVerdict(VerdictError)
		return VerdictError
	}
	for _, block := range attr.SignatureBlocks {
		if len(block.Segments) != len(attr.SecurePath) {
			c.countVerdict(VerdictError)
			return VerdictError
		}
	}

	verdict := VerdictInvalid
	for _, block := range attr.SignatureBlocks {
		satisfiable := true
		for i, seg := range block.Segments {
			entry := c.idx.lookupOrCreate(attr.SecurePath[i].AS, block.AlgorithmID,
				seg.SKI, true)
			c.idx.addPending(entry, id)
			if entry.counter == 0 {
				satisfiable = false
			}
		}
		if satisfiable {
			verdict = VerdictUnknown
		}
	}
	c.countVerdict(verdict)
	metrics.GaugeSet(c.metrics.Entries, float64(c.idx.entries))
	return verdict
}

// UnregisterUpdateRaw parses the raw attribute and unregisters the update.
// Malformed buffers are ignored; no triplets can be derived from them, so
// there is nothing to unregister.
func (c *Cache) UnregisterUpdateRaw(id UpdateID, flags uint8, data []byte) {
	attr, err := bgpsec.ParsePathAttribute(flags, data)
	if err != nil {
		return
	}
	c.UnregisterUpdate(id, attr)
}

// UnregisterUpdate removes the update from every triplet referenced by the
// attribute. Unregistering an update that is not registered is a no-op;
// update and key lifecycles in the daemon can race with cache state, so
// unregistration is idempotent by contract.
func (c *Cache) UnregisterUpdate(id UpdateID, attr *bgpsec.PathAttribute) {
	if attr == nil {
		return
	}
	for _, block := range attr.SignatureBlocks {
		for i, seg := range block.Segments {
			if i >= len(attr.SecurePath) {
				break
			}
			entry := c.idx.lookupOrCreate(attr.SecurePath[i].AS, block.AlgorithmID,
				seg.SKI, false)
			if entry == nil {
				continue
			}
			c.idx.removePending(entry, id)
		}
	}
}

// RegisterKey records one live key for the triplet and notifies all pending
// updates of the resulting transition (KeyNew on 0 to 1, KeyAdd above).
func (c *Cache) RegisterKey(as bgpsec.ASN, algo bgpsec.AlgorithmID, ski bgpsec.SKI) {
	entry := c.idx.lookupOrCreate(as, algo, ski, true)
	metrics.GaugeSet(c.metrics.Entries, float64(c.idx.entries))
	transition, changed := entry.bump(1)
	if !changed {
		return
	}
	c.logger.Debug("Key registered", "as", as, "algorithm", algo,
		"ski", ski, "transition", transition, "counter", entry.counter)
	metrics.CounterInc(metrics.CounterWith(c.metrics.KeyChanges,
		"transition", transition.String()))
	c.notifyPending(entry, transition)
}

// UnregisterKey removes one live key from the triplet and notifies all
// pending updates of the resulting transition (KeyRemoved on 1 to 0, KeyDel
// above). Unregistering an unknown key is a silent no-op.
func (c *Cache) UnregisterKey(as bgpsec.ASN, algo bgpsec.AlgorithmID, ski bgpsec.SKI) {
	entry := c.idx.lookupOrCreate(as, algo, ski, false)
	if entry == nil {
		return
	}
	transition, changed := entry.bump(-1)
	if !changed {
		return
	}
	c.logger.Debug("Key unregistered", "as", as, "algorithm", algo,
		"ski", ski, "transition", transition, "counter", entry.counter)
	metrics.CounterInc(metrics.CounterWith(c.metrics.KeyChanges,
		"transition", transition.String()))
	c.notifyPending(entry, transition)
}

// Clean prunes key entries that hold neither a live key nor pending updates,
// along with emptied interior nodes. Advisory maintenance without a
// bounded-latency contract; invoke it outside per-update hot paths.
func (c *Cache) Clean() {
	removed := c.idx.clean()
	c.logger.Debug("Cache cleaned", "removed", removed, "entries", c.idx.entries)
	metrics.CounterInc(c.metrics.CleanRuns)
	metrics.GaugeSet(c.metrics.Entries, float64(c.idx.entries))
}

// Release drops the entire index. The cache must not be used afterwards.
func (c *Cache) Release() {
	c.idx.releaseAll()
	c.notify = nil
	metrics.GaugeSet(c.metrics.Entries, 0)
}

// Entries returns the number of live key entries in the index.
func (c *Cache) Entries() int {
	return c.idx.entries
}

func (c *Cache) notifyPending(entry *keyEntry, transition Transition) {
	for p := entry.pending; p != nil; p = p.next {
		c.notify(transition, p.id)
		metrics.CounterInc(c.metrics.Notifications)
	}
}

func (c *Cache) countVerdict(v Verdict) {
	metrics.CounterInc(metrics.CounterWith(c.metrics.Updates, "verdict", v.String()))
}
