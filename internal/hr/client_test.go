package hr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adviser-allocation/internal/repository"
)

type countingTokenSource struct {
	refreshes atomic.Int32
}

func (s *countingTokenSource) Token(context.Context) (string, error) { return "stale", nil }
func (s *countingTokenSource) Refresh(context.Context) (string, error) {
	s.refreshes.Add(1)
	return "fresh", nil
}

func TestListEmployees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/employees", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"id": "emp-1", "email": "a@firm.example"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"), 5*time.Second, zap.NewNop())
	employees, err := client.ListEmployees(context.Background())

	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "emp-1", employees[0].EmployeeID)
}

func TestRefreshOnceOn401(t *testing.T) {
	tokens := &countingTokenSource{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, tokens, 5*time.Second, zap.NewNop())
	_, err := client.ListEmployees(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestPersistent401SurfacesUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("always-bad"), 5*time.Second, zap.NewNop())
	_, err := client.ListEmployees(context.Background())

	assert.True(t, repository.IsUnavailable(err))
}

func TestListApprovedLeaveParsesDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "approved", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"employee_id": "emp-1", "start_date": "2026-01-28", "end_date": "2026-01-29", "status": "approved"},
			{"employee_id": "emp-1", "start_date": "bogus", "end_date": "2026-02-02", "status": "approved"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"), 5*time.Second, zap.NewNop())
	from := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	to := time.Date(2027, 1, 11, 0, 0, 0, 0, time.UTC)
	leave, err := client.ListApprovedLeave(context.Background(), "emp-1", from, to)

	require.NoError(t, err)
	require.Len(t, leave, 1)
	assert.True(t, leave[0].Approved())
}
