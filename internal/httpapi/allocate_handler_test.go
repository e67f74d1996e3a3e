package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adviser-allocation/internal/allocator"
	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/store"
)

type fakeAllocService struct {
	result     *allocator.Result
	err        error
	lastReq    allocator.Request
	candidates []allocator.Candidate
}

func (f *fakeAllocService) Allocate(_ context.Context, req allocator.Request) (*allocator.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAllocService) EarliestAvailability(context.Context, store.AdviserFilter) ([]allocator.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func successResult() *allocator.Result {
	return &allocator.Result{
		Record: domain.AllocationRecord{
			DealID:         "deal-1",
			ServicePackage: "Series A",
		},
		Adviser:      domain.Adviser{Email: "b@firm.example"},
		EarliestWeek: calendar.Date(2026, time.January, 26),
	}
}

func postAllocate(t *testing.T, svc AllocationService, body string, query string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewAllocationHandler(svc, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/post/allocate"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleAllocate(rec, req)
	return rec
}

const validBody = `{
	"fields": {
		"service_package": "Series A",
		"hs_deal_record_id": "deal-1",
		"household_type": "Couple",
		"agreement_start_date": "2026-01-05"
	},
	"requester": {"ip": "10.1.2.3", "user_agent": "integration-test"}
}`

func TestHandleAllocateSuccess(t *testing.T) {
	svc := &fakeAllocService{result: successResult()}

	rec := postAllocate(t, svc, validBody, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	alloc := resp["allocation"].(map[string]any)
	assert.Equal(t, "deal-1", alloc["deal_id"])
	assert.Equal(t, "b@firm.example", alloc["adviser_email"])
	assert.Equal(t, "2026-01-26", alloc["earliest_available_week"])

	assert.Equal(t, "deal-1", svc.lastReq.DealID)
	assert.Equal(t, "10.1.2.3", svc.lastReq.RequesterIP)
	require.NotNil(t, svc.lastReq.AgreementStart)
	assert.False(t, svc.lastReq.SuppressNotify)
}

func TestHandleAllocateSuppressAlertFlag(t *testing.T) {
	svc := &fakeAllocService{result: successResult()}

	rec := postAllocate(t, svc, validBody, "?send_alert=0")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastReq.SuppressNotify)
}

func TestHandleAllocateGetHint(t *testing.T) {
	h := NewAllocationHandler(&fakeAllocService{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/post/allocate", nil)
	rec := httptest.NewRecorder()

	h.HandleAllocate(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "POST")
}

func TestHandleAllocateWrongContentType(t *testing.T) {
	h := NewAllocationHandler(&fakeAllocService{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/post/allocate", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.HandleAllocate(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandleAllocateMalformedBody(t *testing.T) {
	rec := postAllocate(t, &fakeAllocService{}, `{"fields": `, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAllocateMissingFields(t *testing.T) {
	rec := postAllocate(t, &fakeAllocService{}, `{"fields": {"agreement_start_date": "01/02/2026"}}`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "InvalidInput", resp.Error)
	assert.Contains(t, resp.Fields, "fields.hs_deal_record_id")
	assert.Contains(t, resp.Fields, "fields.service_package")
	assert.Contains(t, resp.Fields, "fields.agreement_start_date")
}

func TestHandleAllocateErrorMapping(t *testing.T) {
	cases := []struct {
		kind   allocator.Kind
		status int
	}{
		{allocator.KindDealNotFound, http.StatusNotFound},
		{allocator.KindNoEligibleAdvisers, http.StatusUnprocessableEntity},
		{allocator.KindNoAvailability, http.StatusUnprocessableEntity},
		{allocator.KindStoreUnavailable, http.StatusServiceUnavailable},
		{allocator.KindCrmUnavailable, http.StatusServiceUnavailable},
		{allocator.KindCrmUpdateFailed, http.StatusBadGateway},
		{allocator.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &fakeAllocService{err: &allocator.Error{Kind: tc.kind, Detail: "boom"}}
		rec := postAllocate(t, svc, validBody, "")

		assert.Equal(t, tc.status, rec.Code, tc.kind.String())
		var resp errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tc.kind.String(), resp.Error)
		assert.Equal(t, "boom", resp.Detail)
	}
}
