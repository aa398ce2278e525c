// Package memory keeps requests and their history in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

type txMarker struct{}

// Store holds all state. Writes are serialized by txMu; a transaction holds
// txMu for its whole duration and restores a snapshot when fn fails.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	requests map[string]*entity.Request
	history  []*entity.DecisionRecord
	nextID   int64

	logger *zap.Logger
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		requests: make(map[string]*entity.Request),
		logger:   logger,
	}
}

// Requests returns the request repository view of the store
func (s *Store) Requests() port.RequestRepository {
	return &requestRepository{store: s}
}

// History returns the history repository view of the store
func (s *Store) History() port.HistoryRepository {
	return &historyRepository{store: s}
}

// WithTransaction runs fn with exclusive write access. Nested calls join the
// outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.restore(snap)
		s.logger.Debug("Transaction rolled back", zap.Error(err))
		return err
	}
	return nil
}

type snapshot struct {
	requests map[string]*entity.Request
	history  []*entity.DecisionRecord
	nextID   int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requests := make(map[string]*entity.Request, len(s.requests))
	for id, r := range s.requests {
		requests[id] = r
	}
	return snapshot{
		requests: requests,
		history:  append([]*entity.DecisionRecord(nil), s.history...),
		nextID:   s.nextID,
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = snap.requests
	s.history = snap.history
	s.nextID = snap.nextID
}

// write runs fn under the data lock, taking txMu when ctx is not inside a
// transaction
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

type requestRepository struct {
	store *Store
}

// Stored requests are never mutated in place, only replaced, so snapshots
// may share pointers.
func (r *requestRepository) Create(ctx context.Context, req *entity.Request) error {
	return r.store.write(ctx, func() error {
		if _, exists := r.store.requests[req.ID]; exists {
			return fmt.Errorf("request %s already exists", req.ID)
		}
		r.store.requests[req.ID] = req.Clone()
		return nil
	})
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	req, ok := r.store.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return req.Clone(), nil
}

func (r *requestRepository) Save(ctx context.Context, req *entity.Request, expectedVersion int64) error {
	return r.store.write(ctx, func() error {
		stored, ok := r.store.requests[req.ID]
		if !ok {
			return fmt.Errorf("%w: %s", workflow.ErrNotFound, req.ID)
		}
		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: request %s is at version %d, not %d",
				workflow.ErrConflict, req.ID, stored.Version, expectedVersion)
		}

		saved := req.Clone()
		saved.Version = expectedVersion + 1
		r.store.requests[req.ID] = saved
		req.Version = saved.Version
		return nil
	})
}

func (r *requestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	r.store.mu.RLock()
	matched := make([]*entity.Request, 0)
	for _, req := range r.store.requests {
		if filter.Matches(req) {
			matched = append(matched, req)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []*entity.Request{}, nil
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]*entity.Request, len(matched))
	for i, req := range matched {
		out[i] = req.Clone()
	}
	return out, nil
}

type historyRepository struct {
	store *Store
}

func (h *historyRepository) Create(ctx context.Context, record *entity.DecisionRecord) error {
	return h.store.write(ctx, func() error {
		if _, ok := h.store.requests[record.RequestID]; !ok {
			return fmt.Errorf("%w: %s", workflow.ErrNotFound, record.RequestID)
		}
		h.store.nextID++
		record.ID = h.store.nextID
		stored := *record
		h.store.history = append(h.store.history, &stored)
		return nil
	})
}

func (h *historyRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.DecisionRecord, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	out := make([]*entity.DecisionRecord, 0)
	for _, rec := range h.store.history {
		if rec.RequestID == requestID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ port.RequestRepository  = (*requestRepository)(nil)
	_ port.HistoryRepository  = (*historyRepository)(nil)
	_ port.TransactionManager = (*Store)(nil)
)
