package notify

import (
	"sync"
	"time"
)

// Dedup отсекает повторные уведомления админу по одному ключу в пределах окна.
// Размер ограничен: при переполнении сначала выбрасываются устаревшие ключи,
// затем самый старый.
type Dedup struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	window   time.Duration
	capacity int
	now      func() time.Time
}

// NewDedup создаёт фильтр повторов.
func NewDedup(window time.Duration, capacity int) *Dedup {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Dedup{
		seen:     make(map[string]time.Time),
		window:   window,
		capacity: capacity,
		now:      time.Now,
	}
}

// Allow возвращает true, если по ключу ещё не уведомляли в пределах окна.
func (d *Dedup) Allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.window {
		return false
	}
	if len(d.seen) >= d.capacity {
		d.pruneLocked(now)
	}
	if len(d.seen) >= d.capacity {
		d.evictOldestLocked()
	}
	d.seen[key] = now
	return true
}

// Prune удаляет ключи старше окна. Возвращает число удалённых.
func (d *Dedup) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pruneLocked(d.now())
}

// Len возвращает текущее число ключей.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Dedup) pruneLocked(now time.Time) int {
	removed := 0
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
			removed++
		}
	}
	return removed
}

func (d *Dedup) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, at := range d.seen {
		if oldestKey == "" || at.Before(oldest) {
			oldestKey, oldest = k, at
		}
	}
	delete(d.seen, oldestKey)
}
