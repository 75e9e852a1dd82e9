// internal/flywheel/state.go
package flywheel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/storage"
	"github.com/rovshanmuradov/solana-flywheel/internal/types"
)

// MaxHistory - сколько последних записей хранится в состоянии
const MaxHistory = 100

// Totals - накопленная статистика по всем записям, когда-либо созданным.
type Totals struct {
	SOLSpent        types.SOL       `json:"solSpent"`
	LamportsSpent   uint64          `json:"lamportsSpent"`
	TokensBoughtRaw types.RawAmount `json:"tokensBoughtRaw"`
	TokensBurnedRaw types.RawAmount `json:"tokensBurnedRaw"`
}

// RunRecord - результат одного (возможно частично) успешного тика.
type RunRecord struct {
	Time            time.Time          `json:"time"`
	SOLUsed         types.SOL          `json:"solUsed"`
	LamportsUsed    uint64             `json:"lamportsUsed"`
	TokensBoughtRaw types.RawAmount    `json:"tokensBoughtRaw"`
	TokensBurnedRaw types.RawAmount    `json:"tokensBurnedRaw"`
	SwapTx          string             `json:"swapTx"`
	ActionTx        *string            `json:"actionTx"`
	Mode            types.DisposalMode `json:"mode"`
	RunID           string             `json:"runId,omitempty"`
	DisposalError   string             `json:"disposalError,omitempty"`
}

// JournalHeader - колонки CSV-журнала записей
var JournalHeader = []string{
	"time", "run_id", "mode", "lamports_used", "sol_used",
	"tokens_bought_raw", "tokens_burned_raw", "swap_tx", "action_tx", "disposal_error",
}

// CSVRow returns the record in JournalHeader column order.
func (r RunRecord) CSVRow() []string {
	action := ""
	if r.ActionTx != nil {
		action = *r.ActionTx
	}
	return []string{
		r.Time.UTC().Format(time.RFC3339Nano),
		r.RunID,
		string(r.Mode),
		strconv.FormatUint(r.LamportsUsed, 10),
		r.SOLUsed.String(),
		r.TokensBoughtRaw.String(),
		r.TokensBurnedRaw.String(),
		r.SwapTx,
		action,
		r.DisposalError,
	}
}

// FlywheelState - всё, что переживает рестарт процесса.
type FlywheelState struct {
	Running   bool        `json:"running"`
	LastRunAt *time.Time  `json:"lastRunAt"`
	Totals    Totals      `json:"totals"`
	History   []RunRecord `json:"history"`
}

// Record folds rec into the totals and prepends it to the bounded history.
func (s *FlywheelState) Record(rec RunRecord) {
	s.Totals.LamportsSpent += rec.LamportsUsed
	s.Totals.SOLSpent = types.SOLFromLamports(s.Totals.LamportsSpent)
	s.Totals.TokensBoughtRaw = s.Totals.TokensBoughtRaw.Add(rec.TokensBoughtRaw)
	s.Totals.TokensBurnedRaw = s.Totals.TokensBurnedRaw.Add(rec.TokensBurnedRaw)

	history := make([]RunRecord, 0, min(len(s.History)+1, MaxHistory))
	history = append(history, rec)
	for _, old := range s.History {
		if len(history) == MaxHistory {
			break
		}
		history = append(history, old)
	}
	s.History = history

	at := rec.Time
	s.LastRunAt = &at
}

// clone делает глубокую копию для читателей
func (s FlywheelState) clone() FlywheelState {
	out := s
	if s.LastRunAt != nil {
		at := *s.LastRunAt
		out.LastRunAt = &at
	}
	out.History = make([]RunRecord, len(s.History))
	for i, rec := range s.History {
		if rec.ActionTx != nil {
			action := *rec.ActionTx
			rec.ActionTx = &action
		}
		out.History[i] = rec
	}
	return out
}

// normalize дополняет файлы старого формата, где были только SOL-суммы
func (s *FlywheelState) normalize() {
	if s.History == nil {
		s.History = []RunRecord{}
	}
	if s.Totals.LamportsSpent == 0 && s.Totals.SOLSpent.IsPositive() {
		s.Totals.LamportsSpent = s.Totals.SOLSpent.Lamports()
	}
	for i := range s.History {
		if s.History[i].LamportsUsed == 0 && s.History[i].SOLUsed.IsPositive() {
			s.History[i].LamportsUsed = s.History[i].SOLUsed.Lamports()
		}
	}
	if len(s.History) > MaxHistory {
		s.History = s.History[:MaxHistory]
	}
}

// StateManager - единственный владелец изменяемого состояния.
// Читатели получают копии через Snapshot.
type StateManager struct {
	mu     sync.RWMutex
	state  FlywheelState
	store  storage.Store
	logger *zap.Logger
}

func NewStateManager(store storage.Store, logger *zap.Logger) *StateManager {
	return &StateManager{
		state:  FlywheelState{History: []RunRecord{}},
		store:  store,
		logger: logger.Named("state"),
	}
}

// Load reads the persisted state; a missing one leaves the zero state.
func (m *StateManager) Load(ctx context.Context) error {
	data, found, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !found {
		m.logger.Info("No persisted state, starting from zero")
		m.state = FlywheelState{History: []RunRecord{}}
		return nil
	}

	var st FlywheelState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	m.state = st

	m.logger.Info("State loaded",
		zap.Bool("running", st.Running),
		zap.Int("history", len(st.History)),
		zap.String("tokens_burned_raw", st.Totals.TokensBurnedRaw.String()))
	return nil
}

// Snapshot returns a deep copy of the current state.
func (m *StateManager) Snapshot() FlywheelState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Running reports whether the flywheel is enabled.
func (m *StateManager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Running
}

// Mutate applies fn and persists the result synchronously. The in-memory
// change is kept even if persisting fails so the next save carries it.
func (m *StateManager) Mutate(ctx context.Context, fn func(*FlywheelState)) (FlywheelState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.state)
	snapshot := m.state.clone()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return snapshot, fmt.Errorf("encode state: %w", err)
	}
	if err := m.store.Save(ctx, data); err != nil {
		m.logger.Error("Failed to persist state", zap.Error(err))
		return snapshot, fmt.Errorf("persist state: %w", err)
	}
	return snapshot, nil
}

// SetRunning flips the running flag and persists it.
func (m *StateManager) SetRunning(ctx context.Context, running bool) (FlywheelState, error) {
	return m.Mutate(ctx, func(s *FlywheelState) {
		s.Running = running
	})
}
