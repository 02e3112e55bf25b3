// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"colorscheme-indexer/internal/model"
)

// MockStore is a mock of the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	args := m.Called(ctx, owner, name)
	var repo *model.Repository
	if v := args.Get(0); v != nil {
		repo = v.(*model.Repository)
	}
	return repo, args.Error(1)
}
func (m *MockStore) ListRepositories(ctx context.Context, validOnly bool, limit, offset int) ([]*model.Repository, error) {
	args := m.Called(ctx, validOnly, limit, offset)
	var repos []*model.Repository
	if v := args.Get(0); v != nil {
		repos = v.([]*model.Repository)
	}
	return repos, args.Error(1)
}
func (m *MockStore) ListReports(ctx context.Context, jobName string, limit int) ([]model.RunReport, error) {
	args := m.Called(ctx, jobName, limit)
	var reports []model.RunReport
	if v := args.Get(0); v != nil {
		reports = v.([]model.RunReport)
	}
	return reports, args.Error(1)
}

func serve(t *testing.T, store Store, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, new(MockStore), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestGetRepository(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetRepository", mock.Anything, "morhetz", "gruvbox").
			Return(&model.Repository{OwnerName: "morhetz", Name: "gruvbox", Valid: true, ImageURLs: []string{}}, nil)

		rec := serve(t, store, "/v1/repositories/morhetz/gruvbox")

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "gruvbox", body["name"])
		assert.Equal(t, true, body["valid"])
	})

	t.Run("not found", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetRepository", mock.Anything, "o", "missing").Return(nil, nil)

		rec := serve(t, store, "/v1/repositories/o/missing")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetRepository", mock.Anything, "o", "r").Return(nil, errors.New("db down"))

		rec := serve(t, store, "/v1/repositories/o/r")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestListRepositories(t *testing.T) {
	t.Run("defaults to valid repositories", func(t *testing.T) {
		store := new(MockStore)
		store.On("ListRepositories", mock.Anything, true, defaultLimit, 0).Return(nil, nil)

		rec := serve(t, store, "/v1/repositories")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
		store.AssertExpectations(t)
	})

	t.Run("paging parameters", func(t *testing.T) {
		store := new(MockStore)
		store.On("ListRepositories", mock.Anything, false, 10, 20).Return([]*model.Repository{{Name: "x"}}, nil)

		rec := serve(t, store, "/v1/repositories?valid=false&limit=10&offset=20")

		assert.Equal(t, http.StatusOK, rec.Code)
		store.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := serve(t, new(MockStore), "/v1/repositories?limit=0")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListReports(t *testing.T) {
	t.Run("filters by job", func(t *testing.T) {
		store := new(MockStore)
		store.On("ListReports", mock.Anything, "update", defaultLimit).
			Return([]model.RunReport{{ID: 1, JobName: "update", Results: model.Results{"repository_count": 2}}}, nil)

		rec := serve(t, store, "/v1/reports?job=update")

		require.Equal(t, http.StatusOK, rec.Code)
		var body []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, "update", body[0]["job_name"])
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := serve(t, new(MockStore), "/v1/reports?job=deploy")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
