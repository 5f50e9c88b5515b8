// Package cache is a content-addressed result store with a fast
// in-process tier and a durable file tier. Keys are opaque strings the
// caller derives; entries expire lazily after a TTL. Durable-tier I/O
// failures are logged and treated as misses: caching is an
// optimization, never a correctness dependency.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const fileExt = ".cache"

type entry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	log     *logrus.Entry

	mu  sync.RWMutex
	mem map[string]entry

	// now is swappable for expiry tests.
	now func() time.Time
}

// New builds a cache rooted at dir. The directory is created if needed;
// expired and corrupt durable entries are swept opportunistically. A
// disabled cache answers every Get with a miss and drops every Set.
func New(dir string, ttl time.Duration, enabled bool, log *logrus.Entry) *Cache {
	c := &Cache{
		dir:     dir,
		ttl:     ttl,
		enabled: enabled,
		log:     log.WithField("component", "cache"),
		mem:     make(map[string]entry),
		now:     time.Now,
	}
	if enabled {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.log.WithField("error", err.Error()).Warn("cannot create cache dir, durable tier unavailable")
		} else {
			c.sweep()
		}
	}
	return c
}

// Get returns the value for key, or ok=false on a miss. An entry past
// its TTL counts as a miss and is removed from both tiers.
func (c *Cache) Get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	hash := hashKey(key)

	c.mu.RLock()
	e, hit := c.mem[hash]
	c.mu.RUnlock()

	if hit {
		if !c.expired(e) {
			return e.Value, true
		}
		c.mu.Lock()
		delete(c.mem, hash)
		c.mu.Unlock()
		c.removeFile(hash)
		return "", false
	}

	// In-process miss: consult the durable tier and repopulate on hit.
	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		return "", false
	}
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.WithField("key", key).Warn("corrupt cache entry, removing")
		c.removeFile(hash)
		return "", false
	}
	if c.expired(e) {
		c.removeFile(hash)
		return "", false
	}

	c.mu.Lock()
	c.mem[hash] = e
	c.mu.Unlock()
	return e.Value, true
}

// Set stores value under key in both tiers. memoryOnly skips the
// durable tier so self-test writes leave no residue on disk.
func (c *Cache) Set(key, value string, memoryOnly bool) {
	if !c.enabled {
		return
	}
	hash := hashKey(key)
	e := entry{Key: key, Value: value, Timestamp: c.now().Unix()}

	c.mu.Lock()
	c.mem[hash] = e
	c.mu.Unlock()

	if memoryOnly {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.log.WithField("error", err.Error()).Error("marshal cache entry")
		return
	}
	if err := os.WriteFile(c.path(hash), data, 0o644); err != nil {
		c.log.WithField("error", err.Error()).Error("write cache entry")
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(key string) {
	hash := hashKey(key)
	c.mu.Lock()
	delete(c.mem, hash)
	c.mu.Unlock()
	c.removeFile(hash)
}

// Clear drops every entry in both tiers.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.mem = make(map[string]entry)
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, de := range entries {
		if strings.HasSuffix(de.Name(), fileExt) {
			if err := os.Remove(filepath.Join(c.dir, de.Name())); err != nil {
				c.log.WithField("error", err.Error()).Warn("remove cache file")
			}
		}
	}
}

// Size reports the durable tier's entry count and total bytes, plus the
// in-process item count.
func (c *Cache) Size() (files int, totalBytes int64, memItems int) {
	c.mu.RLock()
	memItems = len(c.mem)
	c.mu.RUnlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return files, totalBytes, memItems
	}
	for _, de := range entries {
		if !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		files++
		if info, err := de.Info(); err == nil {
			totalBytes += info.Size()
		}
	}
	return files, totalBytes, memItems
}

// sweep removes expired and unreadable durable entries. Purely
// opportunistic: lazy expiry in Get is what guarantees correctness.
func (c *Cache) sweep() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, de := range entries {
		if !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || c.expired(e) {
			if err := os.Remove(path); err != nil {
				c.log.WithField("error", err.Error()).Warn("sweep cache file")
			}
		}
	}
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(time.Unix(e.Timestamp, 0)) > c.ttl
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash+fileExt)
}

func (c *Cache) removeFile(hash string) {
	if err := os.Remove(c.path(hash)); err != nil && !os.IsNotExist(err) {
		c.log.WithField("error", err.Error()).Warn("remove cache file")
	}
}

func hashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
