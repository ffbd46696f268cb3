// Package catalog caches the challenge and achievement catalogs, which change
// only through admin writes.
package catalog

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dukerupert/ecochallenge/internal/model"
)

const (
	DefaultSize = 16

	challengesKey   = "challenges:active"
	achievementsKey = "achievements:all"
)

type ChallengeSource interface {
	ListActive() ([]model.Challenge, error)
}

type AchievementSource interface {
	ListAll() ([]model.Achievement, error)
}

// Cache holds the catalogs until Invalidate is called. Callers must not
// modify returned slices.
type Cache struct {
	challenges   ChallengeSource
	achievements AchievementSource
	entries      *lru.Cache
	logger       *slog.Logger

	// gen is bumped by every invalidation. A load started under an older
	// generation is returned to its caller but not cached.
	mu  sync.Mutex
	gen uint64
}

func New(challenges ChallengeSource, achievements AchievementSource, size int, logger *slog.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		challenges:   challenges,
		achievements: achievements,
		entries:      entries,
		logger:       logger.With("component", "catalog"),
	}, nil
}

// Challenges returns the active challenge catalog, newest first.
func (c *Cache) Challenges() ([]model.Challenge, error) {
	if v, ok := c.entries.Get(challengesKey); ok {
		return v.([]model.Challenge), nil
	}
	gen := c.generation()
	list, err := c.challenges.ListActive()
	if err != nil {
		return nil, err
	}
	if c.store(gen, challengesKey, list) {
		c.logger.Debug("loaded challenges", "count", len(list))
	}
	return list, nil
}

// Achievements returns the achievement catalog, biggest reward first.
func (c *Cache) Achievements() ([]model.Achievement, error) {
	if v, ok := c.entries.Get(achievementsKey); ok {
		return v.([]model.Achievement), nil
	}
	gen := c.generation()
	list, err := c.achievements.ListAll()
	if err != nil {
		return nil, err
	}
	if c.store(gen, achievementsKey, list) {
		c.logger.Debug("loaded achievements", "count", len(list))
	}
	return list, nil
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// store caches v unless an invalidation happened since gen was read.
func (c *Cache) store(gen uint64, key string, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries.Add(key, v)
	return true
}

func (c *Cache) InvalidateChallenges() {
	c.mu.Lock()
	c.gen++
	c.entries.Remove(challengesKey)
	c.mu.Unlock()
}

func (c *Cache) InvalidateAchievements() {
	c.mu.Lock()
	c.gen++
	c.entries.Remove(achievementsKey)
	c.mu.Unlock()
}

// Invalidate drops both catalogs.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.entries.Purge()
	c.mu.Unlock()
}
