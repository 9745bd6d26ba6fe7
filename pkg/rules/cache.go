// Copyright 2025 walteh LLC
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

package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/docfmt/pkg/trie"
)

// 🏗️ Load downloads the rules of src and builds a trie from them
func Load(ctx context.Context, src Source) (*trie.Trie, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("downloading rules")

	rules, err := src.Rules(ctx)
	if err != nil {
		return nil, errors.Errorf("loading rules: %w", err)
	}

	t := trie.Build(rules)

	logger.Info().Int("patterns", t.Len()).Msgf("%d rules processed", len(rules))

	return t, nil
}

// Digest fingerprints a rule list
func Digest(rules []trie.Rule) (string, error) {
	data, err := json.Marshal(rules)
	if err != nil {
		return "", errors.Errorf("encoding rules: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// 🗄️ Cache keeps the trie of a Source and refetches it once ttl has passed.
// A refetch that yields the same rules keeps the existing trie.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	trie      *trie.Trie
	digest    string
	fetchedAt time.Time
}

// NewCache creates a cache over src. A ttl of zero refetches on every call.
func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{
		source: src,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Trie returns the current trie, refreshing it when stale. When a refresh
// fails and an older trie exists, the older trie is returned and the next
// attempt waits for another ttl.
func (c *Cache) Trie(ctx context.Context) (*trie.Trie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trie != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.trie, nil
	}

	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("downloading rules")

	rules, err := c.source.Rules(ctx)
	if err != nil {
		if c.trie != nil {
			logger.Warn().Err(err).Msg("refreshing rules failed, keeping previous rules")
			c.fetchedAt = c.now()
			return c.trie, nil
		}
		return nil, errors.Errorf("loading rules: %w", err)
	}

	digest, err := Digest(rules)
	if err != nil {
		return nil, err
	}

	c.fetchedAt = c.now()

	if c.trie != nil && digest == c.digest {
		logger.Debug().Str("digest", digest).Msg("rules unchanged")
		return c.trie, nil
	}

	c.trie = trie.Build(rules)
	c.digest = digest

	logger.Info().Int("patterns", c.trie.Len()).Msgf("%d rules processed", len(rules))

	return c.trie, nil
}

// Invalidate forces the next call to Trie to refetch
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
