package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusrag/internal/app"
	"campusrag/internal/model"
	"campusrag/internal/pkg/jwtutil"
	"campusrag/internal/transport/http/handler"
)

const secret = "router-secret"

type emptyDocuments struct{}

func (emptyDocuments) Upload(context.Context, app.UploadInput) (*model.Document, error) {
	return &model.Document{ID: 1}, nil
}

func (emptyDocuments) List(context.Context) ([]app.DocumentView, error) {
	return []app.DocumentView{}, nil
}

func (emptyDocuments) Chunks(context.Context, uint) ([]model.Chunk, error) {
	return []model.Chunk{}, nil
}

func (emptyDocuments) Download(context.Context, uint) (*model.Document, []byte, error) {
	return nil, nil, app.ErrDocumentNotFound
}

func (emptyDocuments) Delete(context.Context, uint) error { return nil }

func (emptyDocuments) Reprocess(context.Context, uint) error { return nil }

type emptyStats struct{}

func (emptyStats) Dashboard(context.Context) (*app.DashboardStats, error) {
	return &app.DashboardStats{}, nil
}

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return newEngine(routes{
		jwtSecret: secret,
		health:    handler.NewHealthHandler("campusrag", "test", time.Now(), nil),
		chat:      handler.NewChatHandler(nil),
		documents: handler.NewDocumentHandler(emptyDocuments{}, 0),
		stats:     handler.NewStatsHandler(emptyStats{}),
	})
}

func serve(t *testing.T, method, path, role string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, err := jwtutil.GenerateToken(secret, 9, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	testEngine().ServeHTTP(rec, req)
	return rec.Code
}

func TestRouter_Access(t *testing.T) {
	tests := []struct {
		method string
		path   string
		role   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/v1/documents", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/documents", jwtutil.RoleStudent, http.StatusForbidden},
		{http.MethodGet, "/api/v1/documents", jwtutil.RoleAdmin, http.StatusOK},
		{http.MethodDelete, "/api/v1/documents/1", jwtutil.RoleStudent, http.StatusForbidden},
		{http.MethodPost, "/api/v1/documents/1/reprocess", jwtutil.RoleAdmin, http.StatusAccepted},
		{http.MethodGet, "/api/v1/documents/1/download", jwtutil.RoleStudent, http.StatusNotFound},
		{http.MethodGet, "/api/v1/documents/1/chunks", jwtutil.RoleStudent, http.StatusForbidden},
		{http.MethodGet, "/api/v1/admin/stats", jwtutil.RoleStudent, http.StatusForbidden},
		{http.MethodGet, "/api/v1/admin/stats", jwtutil.RoleAdmin, http.StatusOK},
		{http.MethodPost, "/api/v1/chat", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, serve(t, tt.method, tt.path, tt.role), "%s %s as %q", tt.method, tt.path, tt.role)
	}
}
