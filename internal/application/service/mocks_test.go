package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/garyjia/staff-approvals/internal/application/dispatcher"
	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/event"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

// Mock repositories

type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*entity.Request
	order    []string

	createErr error
	saveErr   error
	lastList  port.RequestFilter
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*entity.Request)}
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.requests[req.ID] = req.Clone()
	m.order = append(m.order, req.ID)
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return req.Clone(), nil
}

func (m *mockRequestRepo) Save(ctx context.Context, req *entity.Request, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.requests[req.ID]
	if !ok {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, req.ID)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: %s", workflow.ErrConflict, req.ID)
	}
	req.Version = expectedVersion + 1
	m.requests[req.ID] = req.Clone()
	return nil
}

// List honours the filter fields the services rely on
func (m *mockRequestRepo) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = filter

	var out []*entity.Request
	for _, id := range m.order {
		r := m.requests[id]
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.RequesterID != "" && r.Requester.UserID != filter.RequesterID {
			continue
		}
		if filter.CurrentRole != "" {
			step, ok := r.CurrentApprovalStep()
			if !ok || step.Role != filter.CurrentRole {
				continue
			}
		}
		if filter.Department != "" && r.Department != filter.Department {
			continue
		}
		if filter.School != "" && r.School != filter.School {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRequestRepo) put(req *entity.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req.Clone()
	m.order = append(m.order, req.ID)
}

type mockHistoryRepo struct {
	mu        sync.Mutex
	records   []*entity.DecisionRecord
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, record *entity.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *mockHistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.DecisionRecord
	for _, r := range m.records {
		if r.RequestID == requestID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), content...)
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return b, nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/mock/" + relativePath
}

type mockRenderer struct {
	rendered []string
}

func (m *mockRenderer) Render(ctx context.Context, req *entity.Request, w io.Writer) error {
	m.rendered = append(m.rendered, req.ID)
	_, err := io.WriteString(w, "form:"+req.ID)
	return err
}

func (m *mockRenderer) ContentType() string { return "text/plain" }
func (m *mockRenderer) Extension() string   { return ".txt" }

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Close() error { return nil }

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
