// Package cache stores raw model replies keyed by request fingerprint so
// repeated runs over the same collection reuse earlier completions.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/golang-lru/v2"

	"stepscope/internal/modelclient"
)

// memoryEntries bounds the in-memory tier.
const memoryEntries = 1024

// Cache is a two-tier store: a bounded in-memory LRU in front of one JSON
// file per entry on disk. The disk tier is skipped when dir is empty.
type Cache struct {
	dir string
	mu  sync.Mutex
	mem *lru.Cache[string, *modelclient.Message]
}

// New creates a cache rooted at dir.
func New(dir string) (*Cache, error) {
	mem, err := lru.New[string, *modelclient.Message](memoryEntries)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &Cache{dir: dir, mem: mem}, nil
}

// RequestKey fingerprints one model request. Two requests share a key only
// when model id, generation options and prompt all match.
func RequestKey(modelID string, req modelclient.Request) string {
	h := sha256.New()

	// Null byte delimiters prevent collisions between adjacent fields.
	io.WriteString(h, modelID+"\x00")
	fmt.Fprintf(h, "%d\x00", req.MaxTokens)
	fmt.Fprintf(h, "%g\x00", req.Temperature)
	io.WriteString(h, req.Prompt)

	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached reply. Unreadable or corrupt disk entries count
// as misses.
func (c *Cache) Get(key string) (*modelclient.Message, bool) {
	if msg, ok := c.mem.Get(key); ok {
		return msg, true
	}
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return nil, false
	}

	var msg modelclient.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false
	}

	c.mem.Add(key, &msg)
	return &msg, true
}

// Put stores a reply in both tiers.
func (c *Cache) Put(key string, msg *modelclient.Message) error {
	c.mem.Add(key, msg)
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling reply: %w", err)
	}

	if err := os.WriteFile(c.entryPath(key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear drops both tiers. The disk directory is only removed when it holds
// nothing but cache entries.
func (c *Cache) Clear() error {
	c.mem.Purge()
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if filepath.Ext(entry.Name()) != ".json" {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
