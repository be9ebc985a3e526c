package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ppiankov/policygap/internal/cache"
)

// Cached memoises structured responses by prompt and target type, so repeated
// runs over the same inputs see the same collaborator answers.
type Cached struct {
	next      StructuredGenerator
	cache     cache.Cache
	namespace string
	ttl       time.Duration
	logger    *log.Logger
}

// NewCached wraps next. namespace separates entries of different providers or models.
func NewCached(next StructuredGenerator, c cache.Cache, namespace string, ttl time.Duration, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.Default()
	}
	return &Cached{next: next, cache: c, namespace: namespace, ttl: ttl, logger: logger}
}

// GenerateStructured implements StructuredGenerator
func (c *Cached) GenerateStructured(ctx context.Context, prompt string, out any) error {
	key := cache.Key("llm", c.namespace, fmt.Sprintf("%T", out), prompt)

	if data, ok := c.cache.Get(key); ok {
		if err := json.Unmarshal(data, out); err == nil {
			return nil
		}
		// Stale entry from an older type shape
		_ = c.cache.Delete(key)
	}

	if err := c.next.GenerateStructured(ctx, prompt, out); err != nil {
		return err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil
	}
	if err := c.cache.Set(key, data, c.ttl); err != nil {
		c.logger.Printf("WARNING: cache write failed: %v", err)
	}
	return nil
}
