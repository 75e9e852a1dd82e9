// internal/storage/storage.go
package storage

import (
	"context"
)

// Store хранит сериализованное состояние флайвила одним документом.
type Store interface {
	// Load возвращает сохранённый документ; found=false, если сохранений ещё не было.
	Load(ctx context.Context) (data []byte, found bool, err error)
	// Save полностью перезаписывает документ.
	Save(ctx context.Context, data []byte) error
	// Close освобождает ресурсы бэкенда.
	Close() error
}
