// Package statscache caches storage statistics for a short time so repeated
// dashboard requests do not rescan the disk.
package statscache

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"homenas/pkg/log"
)

const (
	// DefaultTTL is how long a computed result is served unchanged.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries caps the shallow count of root children.
	DefaultMaxEntries = 100000

	readBatch = 1024
)

// Usage is the capacity of the volume holding the storage root, in bytes.
type Usage struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// VolumeStatter reports volume usage for a path.
type VolumeStatter interface {
	Usage(path string) (Usage, error)
}

// statfsVolume asks the operating system.
type statfsVolume struct{}

// Stats is one computed snapshot. The file and folder counts cover the immediate
// children of the root only. Truncated means counting stopped at the cap and the
// counts are a lower bound.
type Stats struct {
	TotalSpace      uint64    `json:"total_space"`
	UsedSpace       uint64    `json:"used_space"`
	FreeSpace       uint64    `json:"free_space"`
	UsagePercentage float64   `json:"usage_percentage"`
	TotalFiles      int       `json:"total_files"`
	TotalFolders    int       `json:"total_folders"`
	Truncated       bool      `json:"counts_truncated,omitempty"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Cache holds at most one Stats value. All access goes through one mutex.
type Cache struct {
	mu         sync.Mutex
	dir        string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	volume     VolumeStatter
	observe    func(hit bool)

	entry *Stats
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL sets how long results are reused.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithVolume replaces the statfs based volume statter.
func WithVolume(volume VolumeStatter) Option {
	return func(c *Cache) { c.volume = volume }
}

// WithMaxEntries sets the cap of the shallow count.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithObserver is called on every Stats call with whether the cache was used.
func WithObserver(observe func(hit bool)) Option {
	return func(c *Cache) { c.observe = observe }
}

// New creates a cache for the storage directory dir.
func New(dir string, opts ...Option) *Cache {
	c := &Cache{
		dir:        dir,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		volume:     statfsVolume{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns the cached snapshot while it is younger than the TTL and a fresh
// one otherwise. Failed computations are not cached.
func (c *Cache) Stats() (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.entry != nil && now.Sub(c.entry.ComputedAt) < c.ttl {
		c.record(true)
		snapshot := *c.entry
		return &snapshot, nil
	}
	c.record(false)

	stats, err := c.compute(now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute storage stats")
		return nil, err
	}

	c.entry = stats
	snapshot := *stats
	return &snapshot, nil
}

func (c *Cache) record(hit bool) {
	if c.observe != nil {
		c.observe(hit)
	}
}

func (c *Cache) compute(now time.Time) (*Stats, error) {
	usage, err := c.volume.Usage(c.dir)
	if err != nil {
		return nil, fmt.Errorf("volume usage: %w", err)
	}

	files, folders, truncated, err := c.countChildren()
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}

	stats := &Stats{
		TotalSpace:      usage.Total,
		UsedSpace:       usage.Used,
		FreeSpace:       usage.Free,
		UsagePercentage: percentage(usage.Used, usage.Total),
		TotalFiles:      files,
		TotalFolders:    folders,
		Truncated:       truncated,
		ComputedAt:      now,
	}

	log.Debug().
		Uint64("total", usage.Total).
		Uint64("used", usage.Used).
		Int("files", files).
		Int("folders", folders).
		Bool("truncated", truncated).
		Msg("Storage stats computed")

	return stats, nil
}

// percentage is used/total*100 rounded to two decimals, 0 for an empty volume.
func percentage(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(used)/float64(total)*100*100) / 100
}

// countChildren counts the files and folders directly inside the root, stopping
// once maxEntries have been counted.
func (c *Cache) countChildren() (int, int, bool, error) {
	dir, err := os.Open(c.dir)
	if err != nil {
		return 0, 0, false, err
	}
	defer func() {
		if err := dir.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage root")
		}
	}()

	var files, folders int
	for {
		entries, err := dir.ReadDir(readBatch)
		for _, entry := range entries {
			if files+folders >= c.maxEntries {
				return files, folders, true, nil
			}

			mode := entry.Type()
			if mode&os.ModeSymlink != 0 {
				info, statErr := os.Stat(filepath.Join(c.dir, entry.Name()))
				if statErr != nil {
					continue
				}
				mode = info.Mode()
			}

			switch {
			case mode.IsRegular():
				files++
			case mode.IsDir():
				folders++
			}
		}

		if errors.Is(err, io.EOF) {
			return files, folders, false, nil
		}
		if err != nil {
			return files, folders, false, err
		}
	}
}
