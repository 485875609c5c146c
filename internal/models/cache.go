package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/logger"
)

// Source is where the cache gets its data. The adapter provides a
// bridge-backed implementation.
type Source interface {
	ListModels(ctx context.Context) ([]domain.ModelInfo, error)
	ListDownloaded(ctx context.Context, modelDir string) ([]domain.DownloadedModel, error)
	DownloadModel(ctx context.Context, filename, modelDir string) error
}

// Snapshot is a copy of the cache state.
type Snapshot struct {
	Models         []domain.ModelInfo
	Downloaded     []domain.DownloadedModel
	Loading        bool
	Loaded         bool
	LastUpdated    time.Time
	ModelDirectory string
}

// Cache holds the model catalog and the downloaded model list. The catalog
// is fetched once; the downloaded list is refreshed on demand.
type Cache struct {
	src Source
	log *logger.Logger
	now func() time.Time

	mu        sync.Mutex
	state     Snapshot
	listeners map[uint64]func()
	nextID    uint64
}

func NewCache(src Source, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		src:       src,
		log:       log,
		now:       time.Now,
		listeners: make(map[uint64]func()),
	}
}

// Subscribe registers fn to be called after every change. The returned
// function removes it.
func (c *Cache) Subscribe(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Cache) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Models = append([]domain.ModelInfo(nil), c.state.Models...)
	s.Downloaded = append([]domain.DownloadedModel(nil), c.state.Downloaded...)
	return s
}

// Load fetches the catalog unless it is already loaded or being loaded.
// A failed load leaves the catalog empty and can be retried.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Loading || c.state.Loaded {
		c.mu.Unlock()
		return nil
	}
	c.state.Loading = true
	c.mu.Unlock()
	c.notify()

	list, err := c.src.ListModels(ctx)

	c.mu.Lock()
	c.state.Loading = false
	if err != nil {
		c.state.Models = nil
	} else {
		c.state.Models = list
		c.state.Loaded = true
		c.state.LastUpdated = c.now()
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		c.log.Error("Failed to load models: %v", err)
		return fmt.Errorf("failed to load models: %w", err)
	}
	return nil
}

// RefreshDownloaded reloads the list of models present in modelDir.
func (c *Cache) RefreshDownloaded(ctx context.Context, modelDir string) error {
	list, err := c.src.ListDownloaded(ctx, modelDir)
	if err != nil {
		c.mu.Lock()
		c.state.Downloaded = nil
		c.mu.Unlock()
		c.notify()
		c.log.Error("Failed to load downloaded models: %v", err)
		return fmt.Errorf("failed to load downloaded models: %w", err)
	}

	c.mu.Lock()
	c.state.Downloaded = list
	c.state.LastUpdated = c.now()
	c.mu.Unlock()
	c.notify()
	return nil
}

// DownloadModel fetches a model and refreshes the downloaded list.
func (c *Cache) DownloadModel(ctx context.Context, filename, modelDir string) error {
	if err := c.src.DownloadModel(ctx, filename, modelDir); err != nil {
		c.log.Error("Failed to download model: %v", err)
		return err
	}
	return c.RefreshDownloaded(ctx, modelDir)
}

func (c *Cache) SetModelDirectory(dir string) {
	c.mu.Lock()
	c.state.ModelDirectory = dir
	c.mu.Unlock()
	c.notify()
}

// Invalidate forgets the catalog so the next Load fetches it again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		return
	}
	c.state.Loaded = false
	c.state.Models = nil
	c.mu.Unlock()
	c.notify()
}

// Find returns the catalog entry for filename.
func (c *Cache) Find(filename string) (domain.ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.state.Models {
		if m.Filename == filename {
			return m, true
		}
	}
	return domain.ModelInfo{}, false
}

// AvailableStems splits a model's comma separated output_stems.
func AvailableStems(m domain.ModelInfo) []string {
	var stems []string
	for _, s := range strings.Split(m.OutputStems, ",") {
		if s = strings.TrimSpace(s); s != "" {
			stems = append(stems, s)
		}
	}
	return stems
}

// StemUnion returns the sorted set of stems offered by any of the models.
func StemUnion(models []domain.ModelInfo) []string {
	seen := make(map[string]struct{})
	for _, m := range models {
		for _, s := range AvailableStems(m) {
			seen[strings.ToLower(s)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
