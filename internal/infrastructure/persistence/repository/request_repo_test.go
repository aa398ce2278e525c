package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/port"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/staff-approvals/migrations"
	"github.com/garyjia/staff-approvals/pkg/database"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "approvals.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Run(migrations.FS))
	return db.DB
}

func newMission(t *testing.T, id, dept string, created time.Time) *entity.Request {
	t.Helper()
	req, err := entity.NewMissionRequest(id, entity.Requester{UserID: "emp-" + id, Name: "Staff " + id}, dept, "Science",
		entity.MissionDetails{
			Type:        entity.MissionTypeLocal,
			Destination: "Kumasi",
			Purpose:     "Workshop",
			District:    "Central",
			StartDate:   created.AddDate(0, 0, 7),
			EndDate:     created.AddDate(0, 0, 9),
		}, created)
	require.NoError(t, err)
	return req
}

func newLeave(t *testing.T, id string, created time.Time) *entity.Request {
	t.Helper()
	req, err := entity.NewLeaveRequest(id, entity.Requester{UserID: "emp-" + id}, "Maths", "Science",
		entity.LeaveDetails{
			Type:      entity.LeaveTypeAnnual,
			Reason:    "Rest",
			StartDate: created.AddDate(0, 0, 1),
			EndDate:   created.AddDate(0, 0, 5),
			Duration:  5,
		}, created)
	require.NoError(t, err)
	return req
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	mission := newMission(t, "m-1", "CS", baseTime)
	require.NoError(t, repo.Create(ctx, mission))

	got, err := repo.GetByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, entity.KindMission, got.Kind)
	assert.Equal(t, workflow.CategoryLocalMission, got.Category)
	assert.Equal(t, "Staff m-1", got.Requester.Name)
	assert.Equal(t, workflow.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.ApprovalSteps, 4)
	assert.Equal(t, workflow.RoleCampusAdmin, got.ApprovalSteps[2].Role)
	assert.True(t, got.ApprovalSteps[2].RequiresSignature)
	require.NotNil(t, got.Mission)
	assert.Nil(t, got.Leave)
	assert.Equal(t, "Central", got.Mission.District)
	assert.True(t, got.CreatedAt.Equal(baseTime))

	leave := newLeave(t, "l-1", baseTime)
	require.NoError(t, repo.Create(ctx, leave))
	gotLeave, err := repo.GetByID(ctx, "l-1")
	require.NoError(t, err)
	require.NotNil(t, gotLeave.Leave)
	assert.Equal(t, 5, gotLeave.Leave.Duration)
	assert.Nil(t, gotLeave.Mission)

	assert.Error(t, repo.Create(ctx, mission), "duplicate id must fail")
}

func TestRequestRepository_GetByID_NotFound(t *testing.T) {
	repo := NewRequestRepository(setupTestDB(t), zap.NewNop())

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestRequestRepository_SaveCompareAndSwap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	req := newMission(t, "m-1", "CS", baseTime)
	require.NoError(t, repo.Create(ctx, req))

	first, err := repo.GetByID(ctx, "m-1")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "m-1")
	require.NoError(t, err)

	approvedAt := baseTime.Add(time.Hour)
	first.ApprovalSteps[0].Status = workflow.StatusApproved
	first.ApprovalSteps[0].ApprovedAt = &approvedAt
	first.ApprovalSteps[0].ApprovedBy = "hod-1"
	first.ApprovalSteps[1].Status = workflow.StatusPending
	first.CurrentStep = 1
	first.UpdatedAt = approvedAt
	require.NoError(t, repo.Save(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Status = workflow.StatusRejected
	err = repo.Save(ctx, second, 1)
	assert.ErrorIs(t, err, workflow.ErrConflict)

	stored, err := repo.GetByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, 1, stored.CurrentStep)
	assert.Equal(t, "hod-1", stored.ApprovalSteps[0].ApprovedBy)
	require.NotNil(t, stored.ApprovalSteps[0].ApprovedAt)
	assert.True(t, stored.ApprovalSteps[0].ApprovedAt.Equal(approvedAt))

	missing := newMission(t, "ghost", "CS", baseTime)
	assert.ErrorIs(t, repo.Save(ctx, missing, 1), workflow.ErrNotFound)
}

func TestRequestRepository_UnsavedError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop()).(*RequestRepository)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newMission(t, "m-1", "CS", baseTime)))

	assert.ErrorIs(t, repo.unsavedError(ctx, db, "m-1", 7), workflow.ErrConflict)
	assert.ErrorIs(t, repo.unsavedError(ctx, db, "ghost", 1), workflow.ErrNotFound)

	// a failed lookup is reported as is, not as a stale version
	require.NoError(t, db.Close())
	err := repo.unsavedError(ctx, db, "m-1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check request")
	assert.False(t, errors.Is(err, workflow.ErrConflict))
	assert.False(t, errors.Is(err, workflow.ErrNotFound))
}

func TestRequestRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newMission(t, "m-1", "CS", baseTime)))
	require.NoError(t, repo.Create(ctx, newMission(t, "m-2", "Physics", baseTime.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newLeave(t, "l-1", baseTime.Add(2*time.Minute))))

	advanced, err := repo.GetByID(ctx, "m-2")
	require.NoError(t, err)
	advanced.ApprovalSteps[0].Status = workflow.StatusApproved
	advanced.ApprovalSteps[1].Status = workflow.StatusPending
	advanced.CurrentStep = 1
	require.NoError(t, repo.Save(ctx, advanced, advanced.Version))

	tests := []struct {
		name   string
		filter port.RequestFilter
		want   []string
	}{
		{name: "all newest first", filter: port.RequestFilter{}, want: []string{"l-1", "m-2", "m-1"}},
		{name: "by kind", filter: port.RequestFilter{Kind: entity.KindMission}, want: []string{"m-2", "m-1"}},
		{name: "by requester", filter: port.RequestFilter{RequesterID: "emp-m-1"}, want: []string{"m-1"}},
		{name: "by category", filter: port.RequestFilter{Category: workflow.CategoryLeave}, want: []string{"l-1"}},
		{
			name:   "hod queue in department",
			filter: port.RequestFilter{Status: workflow.StatusPending, CurrentRole: workflow.RoleHOD, Department: "CS"},
			want:   []string{"m-1"},
		},
		{
			name:   "dean queue in school",
			filter: port.RequestFilter{Status: workflow.StatusPending, CurrentRole: workflow.RoleDean, School: "Science"},
			want:   []string{"m-2"},
		},
		{name: "paged", filter: port.RequestFilter{Limit: 1, Offset: 1}, want: []string{"m-2"}},
		{name: "no match", filter: port.RequestFilter{Status: workflow.StatusApproved}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestRequestRepository_CurrentRoleClearedWhenTerminal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	ctx := context.Background()

	req := newLeave(t, "l-1", baseTime)
	require.NoError(t, repo.Create(ctx, req))

	req.Status = workflow.StatusRejected
	req.ApprovalSteps[0].Status = workflow.StatusRejected
	require.NoError(t, repo.Save(ctx, req, 1))

	var role string
	require.NoError(t, db.QueryRow(`SELECT current_role FROM requests WHERE id = ?`, "l-1").Scan(&role))
	assert.Empty(t, role)

	got, err := repo.List(ctx, port.RequestFilter{CurrentRole: workflow.RoleHOD})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransaction_RollsBackRequestAndHistory(t *testing.T) {
	db := setupTestDB(t)
	txManager := sqlite.NewDB(db, zap.NewNop())
	requests := NewRequestRepository(db, zap.NewNop())
	history := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, requests.Create(txCtx, newLeave(t, "l-1", baseTime)))
		require.NoError(t, history.Create(txCtx, &entity.DecisionRecord{
			RequestID:   "l-1",
			ActorUserID: "emp-l-1",
			ActorRole:   "employee",
			NewStatus:   "pending",
			Action:      entity.ActionCreate,
			Timestamp:   baseTime,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = requests.GetByID(ctx, "l-1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
	records, err := history.GetByRequestID(ctx, "l-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return txManager.WithTransaction(txCtx, func(inner context.Context) error {
			assert.NotNil(t, sqlite.TxFromContext(inner))
			return requests.Create(inner, newLeave(t, "l-2", baseTime))
		})
	}))
	_, err = requests.GetByID(ctx, "l-2")
	assert.NoError(t, err)
}
