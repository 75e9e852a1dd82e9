// internal/storage/journal.go
package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Journal - потокобезопасный append-only CSV журнал записей тиков.
// В отличие от истории в состоянии, журнал не ограничен по размеру.
type Journal struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	ticker   *time.Ticker
	done     chan struct{}
	closed   bool
	logger   *zap.Logger
	filePath string

	// Stats
	writtenRecords uint64
	flushCount     uint64
}

// NewJournal открывает (или создаёт) журнал; заголовок пишется только в пустой файл
func NewJournal(filePath string, header []string, flushInterval time.Duration, logger *zap.Logger) (*Journal, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	j := &Journal{
		writer:   csv.NewWriter(file),
		file:     file,
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger.Named("journal"),
		filePath: filePath,
	}

	if stat.Size() == 0 && len(header) > 0 {
		if err := j.writer.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		j.writer.Flush()
		if err := j.writer.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	go j.periodicSync()

	return j, nil
}

// WriteRecord дописывает строку и сбрасывает буфер csv в файл;
// fsync делается периодически и при закрытии
func (j *Journal) WriteRecord(record []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("journal %s is closed", j.filePath)
	}
	if err := j.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}

	j.writtenRecords++
	return nil
}

// Sync forces buffered data to disk.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	j.flushCount++
	return nil
}

func (j *Journal) periodicSync() {
	for {
		select {
		case <-j.ticker.C:
			if err := j.Sync(); err != nil {
				j.logger.Error("Periodic journal sync failed",
					zap.String("file", j.filePath),
					zap.Error(err))
			}
		case <-j.done:
			return
		}
	}
}

// Close flushes and closes the journal. Safe to call twice.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	close(j.done)
	j.ticker.Stop()

	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		j.file.Close()
		return fmt.Errorf("CSV writer error on close: %w", err)
	}
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	j.logger.Info("Journal closed",
		zap.String("file", j.filePath),
		zap.Uint64("writtenRecords", j.writtenRecords),
		zap.Uint64("flushCount", j.flushCount))

	return nil
}

// GetStats returns journal statistics
func (j *Journal) GetStats() (records, flushes uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writtenRecords, j.flushCount
}
