package crm

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
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second, zap.NewNop()), srv
}

func TestGetDeal(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/deals/deal-1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "deal-1",
			"properties": {
				"service_package": "Series A",
				"household_type": "Couple",
				"agreement_start_date": "2026-01-05",
				"has_clarify": false
			}
		}`))
	}))

	deal, err := client.GetDeal(context.Background(), "deal-1")

	require.NoError(t, err)
	assert.Equal(t, "Series A", deal.ServicePackage)
	require.NotNil(t, deal.AgreementStartDate)
	assert.Equal(t, "2026-01-05", deal.AgreementStartDate.Format("2006-01-02"))
	assert.False(t, deal.HasClarify)
}

func TestGetDealNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such deal", http.StatusNotFound)
	}))

	_, err := client.GetDeal(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetDealOwnerRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "backend hiccup", http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, http.MethodPatch, r.Method)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.SetDealOwner(context.Background(), "deal-1", "owner-9")

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSetDealOwnerPermanent(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "owner field is read-only", http.StatusUnprocessableEntity)
	}))

	err := client.SetDealOwner(context.Background(), "deal-1", "owner-9")

	assert.ErrorIs(t, err, ErrPermanent)
	// Permanent rejections are not retried.
	assert.Equal(t, int32(1), calls.Load())
}

func TestListMeetingsSkipsBadDates(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-01-12", r.URL.Query().Get("from"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [
			{"adviser_id": "a-1", "activity_type": "Clarify", "start_date": "2026-01-20"},
			{"adviser_id": "a-1", "activity_type": "Kick Off", "start_date": "not-a-date"}
		]}`))
	}))

	from := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	to := time.Date(2027, 1, 11, 0, 0, 0, 0, time.UTC)
	meetings, err := client.ListMeetings(context.Background(), "a-1", from, to)

	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "Clarify", string(meetings[0].Kind))
}

func TestListAdvisers(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{
			"id": "owner-1",
			"properties": {
				"email": "a@firm.example",
				"taking_on_clients": true,
				"service_packages": ["Series A", "Seed"],
				"household_types": ["Single"],
				"pod_type": "Solo Adviser",
				"client_limit_monthly": 8,
				"adviser_start_date": "2024-06-03"
			}
		}]}`))
	}))

	advisers, err := client.ListAdvisers(context.Background())

	require.NoError(t, err)
	require.Len(t, advisers, 1)
	a := advisers[0]
	assert.Equal(t, "a@firm.example", a.Email)
	assert.True(t, a.SupportsServicePackage("series a"))
	assert.True(t, a.TakingOnClients)
	require.NotNil(t, a.AdviserStartDate)
}
