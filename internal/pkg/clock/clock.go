// Package clock абстрагирует текущее время, чтобы проверки сроков были детерминированы в тестах.
package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// Real возвращает системное время в UTC
type Real struct{}

// Now реализует Clock
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Manual - часы для тестов, которые двигаются только явно.
// Безопасны для конкурентного использования.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual создает часы, остановленные на start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now реализует Clock
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance сдвигает часы вперед на d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set устанавливает текущее время
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
