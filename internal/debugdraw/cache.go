package debugdraw

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"third-strike/internal/chardef"
)

const (
	DefaultMaxFrames = 512
	FrameTTL         = 30 * time.Minute
)

// FrameCache stores encoded PNG overlays with LRU eviction. Entries are
// keyed by character identity, so a reloaded character never hits frames
// drawn from its old data; those age out instead.
type FrameCache struct {
	mu      sync.RWMutex
	frames  map[string]*cachedFrame
	order   []string // LRU order (oldest first)
	maxSize int
	opts    Options

	hits, misses uint64
}

type cachedFrame struct {
	png        []byte
	renderedAt time.Time
}

// NewFrameCache creates a cache rendering with opts.
func NewFrameCache(maxSize int, opts Options) *FrameCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrames
	}
	return &FrameCache{
		frames:  make(map[string]*cachedFrame),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		opts:    opts,
	}
}

// PNG returns the encoded overlay for one frame, rendering it on a miss.
func (c *FrameCache) PNG(ch *chardef.Character, animation string, frame int) ([]byte, error) {
	key := fmt.Sprintf("%p/%s/%d", ch, animation, frame)

	c.mu.Lock()
	if cached, ok := c.frames[key]; ok && time.Since(cached.renderedAt) <= FrameTTL {
		c.touch(key)
		c.hits++
		c.mu.Unlock()
		return cached.png, nil
	}
	c.misses++
	c.mu.Unlock()

	dc, err := Render(ch, animation, frame, c.opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frames[key]; !ok {
		if len(c.frames) >= c.maxSize {
			c.evict()
		}
		c.order = append(c.order, key)
	} else {
		c.touch(key)
	}
	c.frames[key] = &cachedFrame{png: buf.Bytes(), renderedAt: time.Now()}
	return buf.Bytes(), nil
}

// touch moves key to the newest end. Caller holds mu.
func (c *FrameCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			copy(c.order[i:], c.order[i+1:])
			c.order[len(c.order)-1] = key
			return
		}
	}
}

// evict removes the least recently used frame. Caller holds mu.
func (c *FrameCache) evict() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.frames, oldest)
}

// Size returns the number of cached frames.
func (c *FrameCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

// Stats reports hit and miss counts.
func (c *FrameCache) Stats() map[string]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]uint64{
		"hits":   c.hits,
		"misses": c.misses,
		"size":   uint64(len(c.frames)),
	}
}
