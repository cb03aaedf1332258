package geocode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/provider-ingest/constants"
)

// Entry is one cached lookup.
type Entry struct {
	Lat     *float64                `json:"lat"`
	Lng     *float64                `json:"lng"`
	Status  constants.GeocodeStatus `json:"status"`
	Address string                  `json:"address,omitempty"`
}

// Cache maps normalized address strings to lookups. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool
}

func NewCache() *Cache {
	return &Cache{entries: map[string]Entry{}}
}

// CacheKey is the lookup key of a formatted address.
func CacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Get returns a cached entry. An entry without coordinates is a miss so the
// address is looked up again.
func (c *Cache) Get(query string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[CacheKey(query)]
	if !ok || e.Lat == nil || e.Lng == nil {
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) Put(query string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.Address = query
	c.entries[CacheKey(query)] = e
	c.dirty = true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Dirty reports whether entries were added since the last Load or Save.
func (c *Cache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Load merges a JSON cache document into c.
func (c *Cache) Load(r io.Reader) error {
	var in map[string]Entry
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("decode geocode cache: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range in {
		c.entries[CacheKey(k)] = e
	}
	c.dirty = false
	return nil
}

// Save writes c as an indented JSON document.
func (c *Cache) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.entries); err != nil {
		return fmt.Errorf("encode geocode cache: %w", err)
	}
	c.dirty = false
	return nil
}

// LoadFile loads path into c. A missing file leaves c empty.
func (c *Cache) LoadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return c.Load(f)
}

// SaveFile writes c to path through a temporary file in the same directory.
func (c *Cache) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".geocode-*.json")
	if err != nil {
		return err
	}
	if err := c.Save(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
