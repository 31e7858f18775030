package dedup

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
	"webhook_bot/internal/helper"
	"webhook_bot/internal/models"

	"github.com/cespare/xxhash/v2"
)

// placeholder подставляется вместо пустого поля: отпечаток считается всегда.
const placeholder = "-"

// Cache — fingerprint -> время последнего принятого сигнала.
type Cache struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time

	cooldown  time.Duration
	retention time.Duration
	now       func() time.Time
}

func New(cooldown, retention time.Duration) *Cache {
	if retention < cooldown {
		retention = cooldown
	}
	return &Cache{
		lastSeen:  make(map[string]time.Time),
		cooldown:  cooldown,
		retention: retention,
		now:       time.Now,
	}
}

// WithClock подменяет часы (для тестов).
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Fingerprint: xxhash от symbol|timeframe|direction|entry, порядок важен.
func Fingerprint(a models.Alert) string {
	entry := placeholder
	if !a.Entry.IsZero() {
		entry = a.Entry.String()
	}
	parts := []string{
		orPlaceholder(helper.NormSymbol(a.Symbol)),
		orPlaceholder(helper.NormTF(a.Timeframe)),
		orPlaceholder(strings.ToUpper(strings.TrimSpace(string(a.Direction)))),
		entry,
	}
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(parts, "|")), 16)
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// ShouldSuppress — true, если такой же сигнал уже был в пределах cooldown.
// Подавленный сигнал таймстамп не обновляет.
func (c *Cache) ShouldSuppress(fp string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastSeen[fp]; ok && now.Sub(last) < c.cooldown {
		return true
	}
	c.lastSeen[fp] = now
	return false
}

// Evict выкидывает записи старше retention, возвращает сколько удалили.
func (c *Cache) Evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for fp, last := range c.lastSeen {
		if now.Sub(last) >= c.retention {
			delete(c.lastSeen, fp)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastSeen)
}

// RunJanitor периодически чистит кеш, пока жив ctx.
func (c *Cache) RunJanitor(ctx context.Context, every time.Duration, onEvict func(evicted, left int)) {
	if every <= 0 {
		every = c.retention
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := c.Evict(c.now())
			if onEvict != nil {
				onEvict(n, c.Len())
			}
		}
	}
}
