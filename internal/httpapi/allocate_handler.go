package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"adviser-allocation/internal/allocator"
	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/store"
)

// AllocationService is the slice of the allocator the handlers call.
type AllocationService interface {
	Allocate(ctx context.Context, req allocator.Request) (*allocator.Result, error)
	EarliestAvailability(ctx context.Context, filter store.AdviserFilter) ([]allocator.Candidate, error)
}

// AllocationHandler serves the allocation webhook.
type AllocationHandler struct {
	svc    AllocationService
	logger *zap.Logger
}

func NewAllocationHandler(svc AllocationService, logger *zap.Logger) *AllocationHandler {
	return &AllocationHandler{svc: svc, logger: logger}
}

// allocateRequest is the webhook payload.
type allocateRequest struct {
	Fields struct {
		ServicePackage     string `json:"service_package"`
		DealRecordID       string `json:"hs_deal_record_id"`
		HouseholdType      string `json:"household_type"`
		AgreementStartDate string `json:"agreement_start_date"`
	} `json:"fields"`
	Requester struct {
		IP        string `json:"ip"`
		UserAgent string `json:"user_agent"`
	} `json:"requester"`
}

type allocateResponse struct {
	Status     string `json:"status"`
	Allocation struct {
		DealID       string `json:"deal_id"`
		AdviserEmail string `json:"adviser_email"`
		EarliestWeek string `json:"earliest_available_week"`
	} `json:"allocation"`
}

// HandleAllocate accepts the deal-allocation webhook.
func (h *AllocationHandler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Hi, please use POST request."})
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{
			Error:  "InvalidInput",
			Detail: "Content-Type must be application/json",
		})
		return
	}

	var payload allocateRequest
	if err := readBodyJSON(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidInput", Detail: "malformed JSON body"})
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(payload.Fields.DealRecordID) == "" {
		fields["fields.hs_deal_record_id"] = "required"
	}
	if strings.TrimSpace(payload.Fields.ServicePackage) == "" {
		fields["fields.service_package"] = "required"
	}
	var agreementStart *time.Time
	if raw := strings.TrimSpace(payload.Fields.AgreementStartDate); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			fields["fields.agreement_start_date"] = "must be YYYY-MM-DD"
		} else {
			agreementStart = &d
		}
	}
	if len(fields) > 0 {
		writeValidationError(w, fields)
		return
	}

	req := allocator.Request{
		DealID:         payload.Fields.DealRecordID,
		ServicePackage: payload.Fields.ServicePackage,
		HouseholdType:  payload.Fields.HouseholdType,
		AgreementStart: agreementStart,
		RequesterIP:    payload.Requester.IP,
		UserAgent:      payload.Requester.UserAgent,
		SuppressNotify: suppressed(r.URL.Query().Get("send_alert")),
	}
	if req.RequesterIP == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			req.RequesterIP = host
		}
	}
	if req.UserAgent == "" {
		req.UserAgent = r.Header.Get("User-Agent")
	}

	h.logger.Info("Allocation webhook received",
		zap.String("deal_id", req.DealID),
		zap.String("service_package", req.ServicePackage),
		zap.String("requester_ip", req.RequesterIP),
	)

	result, err := h.svc.Allocate(r.Context(), req)
	if err != nil {
		h.logger.Error("Allocation failed",
			zap.String("deal_id", req.DealID),
			zap.String("kind", allocator.KindOf(err).String()),
			zap.Error(err),
		)
		writeAllocationError(w, err)
		return
	}

	var resp allocateResponse
	resp.Status = "success"
	resp.Allocation.DealID = result.Record.DealID
	resp.Allocation.AdviserEmail = result.Adviser.Email
	resp.Allocation.EarliestWeek = calendar.FormatDate(result.EarliestWeek)
	writeJSON(w, http.StatusOK, resp)
}

func suppressed(flag string) bool {
	switch strings.ToLower(flag) {
	case "0", "false", "no", "off":
		return true
	default:
		return false
	}
}
