package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/staff-approvals/internal/application/service"
	appwf "github.com/garyjia/staff-approvals/internal/application/workflow"
	"github.com/garyjia/staff-approvals/internal/domain/entity"
	"github.com/garyjia/staff-approvals/internal/domain/workflow"
	"github.com/garyjia/staff-approvals/internal/export"
	"github.com/garyjia/staff-approvals/internal/infrastructure/persistence/memory"
	"github.com/garyjia/staff-approvals/internal/infrastructure/storage"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	auth   *Authenticator
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.NewStore(zap.NewNop())
	files, err := storage.NewLocalFileStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	clock := func() time.Time { return fixedNow }
	requests := service.NewRequestService(store.Requests(), store.History(), store, testLogger{}, service.WithClock(clock))
	documents := service.NewDocumentService(store.Requests(), store.History(), store, files,
		export.NewApprovalFormRenderer(zap.NewNop()), testLogger{}, service.WithClock(clock))
	engine := appwf.NewEngine(store.Requests(), store.History(), store, appwf.WithClock(clock))

	auth, err := NewAuthenticator("test-secret", "staff-approvals")
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	server := NewServer(cfg, NewHandlers(requests, documents, engine, testLogger{}), auth, testLogger{})

	return &testAPI{t: t, router: server.Router(), auth: auth}
}

func (a *testAPI) token(actor entity.Actor) string {
	tok, err := a.auth.Issue(actor, time.Hour)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path string, actor *entity.Actor, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(*actor))
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, "response error: %s", resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

var (
	staff   = entity.Actor{UserID: "emp-1", Name: "Kofi", Role: workflow.RoleEmployee, Department: "CS", School: "Science"}
	hod     = entity.Actor{UserID: "hod-1", Role: workflow.RoleHOD, Department: "CS"}
	otherHD = entity.Actor{UserID: "hod-2", Role: workflow.RoleHOD, Department: "Law"}
	dean    = entity.Actor{UserID: "dean-1", Role: workflow.RoleDean, School: "Science"}
	hr      = entity.Actor{UserID: "hr-1", Role: workflow.RoleHRManager}
)

func leaveBody() CreateLeaveRequest {
	return CreateLeaveRequest{Type: "annual", Reason: "Family visit", StartDate: "2026-03-10", EndDate: "2026-03-12"}
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	decodeData(t, w, &health)
	assert.Equal(t, "healthy", health.Status)
}

func TestAuthMiddleware(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	t.Run("expired token", func(t *testing.T) {
		tok, err := api.auth.Issue(staff, -time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "expired")
	})

	t.Run("token from another secret", func(t *testing.T) {
		other, err := NewAuthenticator("other-secret", "staff-approvals")
		require.NoError(t, err)
		tok, err := other.Issue(staff, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLeaveLifecycle(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/requests/leaves", &staff, leaveBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created entity.Request
	decodeData(t, w, &created)
	assert.Equal(t, workflow.CategoryLeave, created.Category)
	assert.Equal(t, 3, created.Leave.Duration)
	require.Len(t, created.ApprovalSteps, 3)

	id := created.ID
	statusPath := "/api/requests/" + id + "/status"

	// wrong role and wrong scope are refused before anything changes
	w = api.do(http.MethodPatch, statusPath, &dean, DecisionRequest{Status: "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.do(http.MethodPatch, statusPath, &otherHD, DecisionRequest{Status: "approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/requests/actionable", &hod, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue []entity.Request
	decodeData(t, w, &queue)
	require.Len(t, queue, 1)
	assert.Equal(t, id, queue[0].ID)

	w = api.do(http.MethodPatch, statusPath, &hod, DecisionRequest{Status: "approved", Comment: "fine"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(http.MethodPatch, statusPath, &dean, DecisionRequest{Status: "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// final hr step needs a signature
	w = api.do(http.MethodPatch, statusPath, &hr, DecisionRequest{Status: "approved"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodGet, "/api/requests/"+id+"/approval-form", &staff, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "form is only available once approved")

	w = api.do(http.MethodPatch, statusPath, &hr, DecisionRequest{Status: "approved", Signature: "A. Owusu"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var final entity.Request
	decodeData(t, w, &final)
	assert.Equal(t, workflow.StatusApproved, final.Status)
	assert.Equal(t, "A. Owusu", final.ApprovalSteps[2].Signature)

	w = api.do(http.MethodPatch, statusPath, &hr, DecisionRequest{Status: "rejected"})
	assert.Equal(t, http.StatusForbidden, w.Code, "terminal requests are not actionable")

	w = api.do(http.MethodGet, "/api/requests/"+id+"/history", &staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []entity.DecisionRecord
	decodeData(t, w, &history)
	require.Len(t, history, 4)
	assert.Equal(t, entity.ActionCreate, history[0].Action)
	assert.Equal(t, "approved", history[3].NewStatus)

	w = api.do(http.MethodGet, "/api/requests/"+id+"/approval-form", &staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "leave-approval-"+id+".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestCreateValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{name: "missing fields", path: "/api/requests/leaves", body: map[string]string{"type": "annual"}, want: http.StatusBadRequest},
		{name: "bad date", path: "/api/requests/leaves", body: CreateLeaveRequest{Type: "annual", Reason: "x", StartDate: "10/03/2026", EndDate: "2026-03-12"}, want: http.StatusBadRequest},
		{name: "past start", path: "/api/requests/leaves", body: CreateLeaveRequest{Type: "annual", Reason: "x", StartDate: "2026-02-01", EndDate: "2026-02-02"}, want: http.StatusBadRequest},
		{name: "unknown mission type", path: "/api/requests/missions", body: CreateMissionRequest{Type: "orbital", Destination: "Moon", Purpose: "x", StartDate: "2026-03-10", EndDate: "2026-03-11"}, want: http.StatusBadRequest},
		{name: "local mission needs district", path: "/api/requests/missions", body: CreateMissionRequest{Type: "local", Destination: "Kumasi", Purpose: "x", StartDate: "2026-03-10", EndDate: "2026-03-11"}, want: http.StatusBadRequest},
		{name: "international mission", path: "/api/requests/missions", body: CreateMissionRequest{Type: "international", Destination: "Nairobi", Purpose: "Conference", StartDate: "2026-03-10", EndDate: "2026-03-14"}, want: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, tt.path, &staff, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCreateRequiresRequesterScope(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name  string
		actor entity.Actor
		want  string
	}{
		{
			name:  "token without department",
			actor: entity.Actor{UserID: "emp-9", Role: workflow.RoleEmployee, School: "Science"},
			want:  "requester department is required",
		},
		{
			name:  "token without school",
			actor: entity.Actor{UserID: "emp-9", Role: workflow.RoleEmployee, Department: "CS"},
			want:  "requester school is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/requests/leaves", &tt.actor, leaveBody())
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}

	w := api.do(http.MethodGet, "/api/requests", &hr, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stored []entity.Request
	decodeData(t, w, &stored)
	assert.Empty(t, stored)
}

func TestVisibility(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/requests/leaves", &staff, leaveBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created entity.Request
	decodeData(t, w, &created)

	stranger := entity.Actor{UserID: "emp-2", Role: workflow.RoleEmployee, Department: "CS"}

	tests := []struct {
		name  string
		actor entity.Actor
		want  int
	}{
		{name: "requester", actor: staff, want: http.StatusOK},
		{name: "other employee", actor: stranger, want: http.StatusForbidden},
		{name: "hod of department", actor: hod, want: http.StatusOK},
		{name: "hod elsewhere", actor: otherHD, want: http.StatusForbidden},
		{name: "hr manager", actor: hr, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodGet, "/api/requests/"+created.ID, &tt.actor, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w = api.do(http.MethodGet, "/api/requests/"+created.ID, &hod, nil)
	var resp RequestResponse
	decodeData(t, w, &resp)
	assert.True(t, resp.CanAct)

	w = api.do(http.MethodGet, "/api/requests/does-not-exist", &hr, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/requests", &stranger, nil)
	var list []entity.Request
	decodeData(t, w, &list)
	assert.Empty(t, list, "employees only list their own requests")

	w = api.do(http.MethodGet, "/api/requests?mine=true", &staff, nil)
	decodeData(t, w, &list)
	assert.Len(t, list, 1)
}

func TestDocumentUploadAndDownload(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/requests/missions", &staff, CreateMissionRequest{
		Type: "local", Destination: "Kumasi", Purpose: "Workshop", District: "Ashanti",
		StartDate: "2026-03-10", EndDate: "2026-03-11",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created entity.Request
	decodeData(t, w, &created)

	upload := func(actor entity.Actor, name string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/requests/"+created.ID+"/documents", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+api.token(actor))
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, upload(hod, "letter.pdf", []byte("%PDF")).Code)
	assert.Equal(t, http.StatusBadRequest, upload(staff, "virus.exe", []byte("MZ")).Code)

	w = upload(staff, "letter.pdf", []byte("%PDF-1.7 invitation"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated entity.Request
	decodeData(t, w, &updated)
	require.NotNil(t, updated.Mission.Invitation)
	assert.Equal(t, "letter.pdf", updated.Mission.Invitation.Name)

	w = api.do(http.MethodGet, "/api/requests/"+created.ID+"/document", &hod, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.7 invitation", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "letter.pdf")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{workflow.ErrValidation, http.StatusBadRequest},
		{workflow.ErrInvalidCategory, http.StatusBadRequest},
		{workflow.ErrNotFound, http.StatusNotFound},
		{workflow.ErrRequestNotActionable, http.StatusForbidden},
		{workflow.ErrWrongApprover, http.StatusForbidden},
		{workflow.ErrScopeMismatch, http.StatusForbidden},
		{workflow.ErrNotRequester, http.StatusForbidden},
		{workflow.ErrSignatureRequired, http.StatusUnprocessableEntity},
		{workflow.ErrConflict, http.StatusConflict},
		{workflow.ErrNotApproved, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
