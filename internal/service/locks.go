package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// errLockHeld означает, что блокировку держит другая операция
var errLockHeld = errors.New("lock is held by another operation")

// acquireLock берет распределенную блокировку через SETNX.
// Без кеша блокировка не берется: атомарность тогда обеспечивает транзакция хранилища.
func acquireLock(ctx context.Context, cache repository.CacheRepository, key string, ttl time.Duration) (func(), error) {
	if cache == nil {
		return func() {}, nil
	}
	ok, err := cache.SetNX(ctx, key, "1", ttl)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Redis недоступен: не блокируем операцию, ее защищают транзакция и индексы БД
		log.Printf("[Locks] Не удалось взять блокировку %s: %v", key, err)
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", apperrors.ErrConflict, errLockHeld, key)
	}
	return func() {
		if err := cache.Delete(context.WithoutCancel(ctx), key); err != nil {
			log.Printf("[Locks] Не удалось снять блокировку %s: %v", key, err)
		}
	}, nil
}
