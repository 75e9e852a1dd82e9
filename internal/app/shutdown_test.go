// internal/app/shutdown_test.go
package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShutdownClosesInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), time.Second)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"store", "journal", "api"} {
		name := name
		sh.AddFunc(name, func() error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, []string{"api", "journal", "store"}, order)

	// повторный вызов не закрывает сервисы ещё раз
	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownCollectsErrorsAndTimeouts(t *testing.T) {
	sh := NewShutdownHandler(zap.NewNop(), 50*time.Millisecond)
	boom := errors.New("boom")

	sh.AddFunc("stuck", func() error { time.Sleep(time.Second); return nil })
	sh.AddFunc("failing", func() error { return boom })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stuck: shutdown timeout")
}
