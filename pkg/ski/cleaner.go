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
	"context"
	"sync"
)

// Cleaner runs the advisory prune pass under the daemon's serialization
// lock. It implements periodic.Task, so it can be scheduled with the
// periodic runner from a maintenance path.
type Cleaner struct {
	cache *Cache
	mu    sync.Locker
}

// NewCleaner creates a cleaner task for the cache. mu must be the same lock
// that serializes all other mutations of the cache.
func NewCleaner(cache *Cache, mu sync.Locker) *Cleaner {
	return &Cleaner{cache: cache, mu: mu}
}

// Name implements periodic.Task.
func (c *Cleaner) Name() string {
	return "ski_cache_cleaner"
}

// Run implements periodic.Task.
func (c *Cleaner) Run(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clean()
}
