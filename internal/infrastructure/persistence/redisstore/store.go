// Package redisstore persists requests in Redis. Requests are JSON values
// guarded by WATCH/MULTI on save; history is a list per request.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
)

const (
	requestPrefix = "request:"
	historyPrefix = "history:"
	requestIndex  = "requests:by_created"
	historySeqKey = "history:seq"
	defaultPrefix = "approvals:"
)

// Options configures the Redis connection
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
	KeyPrefix    string
}

// Store implements the request and history repositories on Redis
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewStore connects to Redis and verifies the connection
func NewStore(opts Options, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		IdleTimeout:  opts.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	logger.Info("Redis connection established", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &Store{client: client, prefix: prefix, logger: logger}, nil
}

// Requests returns the request repository view of the store
func (s *Store) Requests() port.RequestRepository {
	return &requestRepository{store: s}
}

// History returns the history repository view of the store
func (s *Store) History() port.HistoryRepository {
	return &historyRepository{store: s}
}

// WithTransaction runs fn directly. Each Save is atomic on its own through
// WATCH/MULTI; history records are appended after it.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) requestKey(id string) string {
	return s.prefix + requestPrefix + id
}

func (s *Store) historyKey(id string) string {
	return s.prefix + historyPrefix + id
}

type requestRepository struct {
	store *Store
}

func (r *requestRepository) Create(ctx context.Context, req *entity.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request %s: %w", req.ID, err)
	}

	key := r.store.requestKey(req.ID)
	ok, err := r.store.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		r.store.logger.Error("Failed to create request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}
	if !ok {
		return fmt.Errorf("request %s already exists", req.ID)
	}

	err = r.store.client.ZAdd(ctx, r.store.prefix+requestIndex, &redis.Z{
		Score:  float64(req.CreatedAt.UnixNano()),
		Member: req.ID,
	}).Err()
	if err != nil {
		_ = r.store.client.Del(ctx, key).Err()
		return fmt.Errorf("failed to index request %s: %w", req.ID, err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	data, err := r.store.client.Get(ctx, r.store.requestKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		r.store.logger.Error("Failed to get request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return decodeRequest(data)
}

// Save compares the stored version under WATCH and writes in MULTI/EXEC.
// A concurrent write to the key aborts EXEC, which is reported as a conflict.
func (r *requestRepository) Save(ctx context.Context, req *entity.Request, expectedVersion int64) error {
	key := r.store.requestKey(req.ID)

	saved := req.Clone()
	saved.Version = expectedVersion + 1
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to marshal request %s: %w", req.ID, err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", workflow.ErrNotFound, req.ID)
		}
		if err != nil {
			return err
		}

		stored, err := decodeRequest(current)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: request %s is at version %d, not %d",
				workflow.ErrConflict, req.ID, stored.Version, expectedVersion)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	err = r.store.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: request %s changed during save", workflow.ErrConflict, req.ID)
	}
	if err != nil {
		if !errors.Is(err, workflow.ErrConflict) && !errors.Is(err, workflow.ErrNotFound) {
			r.store.logger.Error("Failed to save request", zap.String("request_id", req.ID), zap.Error(err))
		}
		return err
	}

	req.Version = saved.Version
	return nil
}

// List scans the creation index newest first and filters client side
func (r *requestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	ids, err := r.store.client.ZRevRange(ctx, r.store.prefix+requestIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read request index: %w", err)
	}
	if len(ids) == 0 {
		return []*entity.Request{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.store.requestKey(id)
	}
	values, err := r.store.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}

	matched := make([]*entity.Request, 0)
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		req, err := decodeRequest([]byte(s))
		if err != nil {
			return nil, err
		}
		if filter.Matches(req) {
			matched = append(matched, req)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
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
	return matched, nil
}

func decodeRequest(data []byte) (*entity.Request, error) {
	var req entity.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &req, nil
}

type historyRepository struct {
	store *Store
}

func (h *historyRepository) Create(ctx context.Context, record *entity.DecisionRecord) error {
	exists, err := h.store.client.Exists(ctx, h.store.requestKey(record.RequestID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check request: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, record.RequestID)
	}

	id, err := h.store.client.Incr(ctx, h.store.prefix+historySeqKey).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate history id: %w", err)
	}
	record.ID = id

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := h.store.client.RPush(ctx, h.store.historyKey(record.RequestID), data).Err(); err != nil {
		h.store.logger.Error("Failed to create history record", zap.String("request_id", record.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

func (h *historyRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.DecisionRecord, error) {
	values, err := h.store.client.LRange(ctx, h.store.historyKey(requestID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	records := make([]*entity.DecisionRecord, 0, len(values))
	for _, v := range values {
		var rec entity.DecisionRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

var (
	_ port.RequestRepository  = (*requestRepository)(nil)
	_ port.HistoryRepository  = (*historyRepository)(nil)
	_ port.TransactionManager = (*Store)(nil)
)
