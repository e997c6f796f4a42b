// Package accountlock сериализует операции над одним аккаунтом.
// In-memory реализация работает в пределах процесса, Redis — между репликами.
package accountlock

import (
	"context"
	"sync"
)

// Locker выдаёт эксклюзивную блокировку аккаунта.
// Блокировка не реентерабельна: держатель не должен брать её повторно.
type Locker interface {
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}

// Memory держит блокировки на каналах с подсчётом ссылок, чтобы карта не росла бесконечно.
type Memory struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	ch   chan struct{} // ёмкость 1: занято, когда в канале лежит токен
	refs int
}

// NewMemory создаёт in-memory блокировщик.
func NewMemory() *Memory {
	return &Memory{locks: make(map[int64]*entry)}
}

// Lock ждёт освобождения аккаунта или отмены ctx.
func (m *Memory) Lock(ctx context.Context, userID int64) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[userID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[userID] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(userID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(userID, e)
		})
	}, nil
}

func (m *Memory) release(userID int64, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, userID)
	}
}

// Size возвращает число заблокированных или ожидающих аккаунтов.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
