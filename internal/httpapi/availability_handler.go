package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/capacity"
	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/logger"
	"adviser-allocation/internal/store"
)

// ScheduleStore is what the schedule view reads: adviser profiles plus the
// capacity-engine inputs.
type ScheduleStore interface {
	capacity.Source
	ListAdvisers(ctx context.Context, filter store.AdviserFilter) ([]domain.Adviser, error)
	PrestartWeeks(ctx context.Context) int
}

// AvailabilityConfig tunes the read views.
type AvailabilityConfig struct {
	HorizonWeeks int
	BufferWeeks  int
	HistoryWeeks int
	Location     *time.Location
}

// AvailabilityHandler serves the operator read views.
type AvailabilityHandler struct {
	svc    AllocationService
	store  ScheduleStore
	cfg    AvailabilityConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewAvailabilityHandler(svc AllocationService, st ScheduleStore, cfg AvailabilityConfig, logger *zap.Logger) *AvailabilityHandler {
	if cfg.HorizonWeeks <= 0 {
		cfg.HorizonWeeks = capacity.DefaultHorizonWeeks
	}
	if cfg.BufferWeeks <= 0 {
		cfg.BufferWeeks = capacity.DefaultBufferWeeks
	}
	if cfg.HistoryWeeks <= 0 {
		cfg.HistoryWeeks = 8
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AvailabilityHandler{
		svc:    svc,
		store:  st,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type earliestRow struct {
	Email              string   `json:"email"`
	ServicePackages    []string `json:"service_packages"`
	HouseholdTypes     []string `json:"household_types"`
	PodType            string   `json:"pod_type"`
	ClientLimitMonthly int      `json:"client_limit_monthly"`
	EarliestWeekLabel  string   `json:"earliest_week_label,omitempty"`
	EarliestWeekMonday string   `json:"earliest_week_monday,omitempty"`
}

// GetEarliest lists each matching adviser with their earliest open week.
func (h *AvailabilityHandler) GetEarliest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AdviserFilter{
		ServicePackage:   strings.TrimSpace(q.Get("service_package")),
		HouseholdType:    strings.TrimSpace(q.Get("household_type")),
		IncludeNotTaking: q.Get("include_not_taking") == "true",
	}

	candidates, err := h.svc.EarliestAvailability(r.Context(), filter)
	if err != nil {
		h.logger.Error("Earliest availability failed", zap.Error(err))
		writeAllocationError(w, err)
		return
	}

	rows := make([]earliestRow, 0, len(candidates))
	for _, c := range candidates {
		row := earliestRow{
			Email:              c.Adviser.Email,
			ServicePackages:    c.Adviser.ServicePackages,
			HouseholdTypes:     c.Adviser.HouseholdTypes,
			PodType:            c.Adviser.PodType,
			ClientLimitMonthly: c.Adviser.ClientLimitMonthly,
		}
		if c.EarliestWeek != nil {
			row.EarliestWeekLabel = calendar.ISOWeekLabel(*c.EarliestWeek)
			row.EarliestWeekMonday = calendar.FormatDate(*c.EarliestWeek)
		}
		rows = append(rows, row)
	}
	// Soonest availability first; advisers with none sink to the bottom.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].EarliestWeekMonday == "" {
			return false
		}
		if rows[j].EarliestWeekMonday == "" {
			return true
		}
		return rows[i].EarliestWeekMonday < rows[j].EarliestWeekMonday
	})

	writeJSON(w, http.StatusOK, map[string]any{"count": len(rows), "advisers": rows})
}

type scheduleRow struct {
	capacity.WeekRow
	Earliest bool `json:"earliest,omitempty"`
}

// GetSchedule returns one adviser's full capacity projection with the
// earliest open week flagged.
func (h *AvailabilityHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeValidationError(w, map[string]string{"email": "required"})
		return
	}

	advisers, err := h.store.ListAdvisers(r.Context(), store.AdviserFilter{IncludeNotTaking: true})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var adviser *domain.Adviser
	for i := range advisers {
		if strings.EqualFold(advisers[i].Email, email) {
			adviser = &advisers[i]
			break
		}
	}
	if adviser == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Detail: "no adviser with that email"})
		return
	}

	today := calendar.CivilDate(h.now(), h.cfg.Location)
	baseline := calendar.MondayOf(today)
	prestart := h.store.PrestartWeeks(r.Context())

	sched, err := capacity.Load(r.Context(), h.store, *adviser, baseline, capacity.LoadOptions{
		PrestartWeeks: prestart,
		HorizonWeeks:  h.cfg.HorizonWeeks,
		HistoryWeeks:  h.cfg.HistoryWeeks,
	})
	if err != nil {
		logger.WithAdviser(h.logger, adviser.Email).Error("Schedule projection failed", zap.Error(err))
		writeStoreError(w, err)
		return
	}

	earliest, hasEarliest := capacity.EarliestWeek(sched, capacity.SelectorParams{
		Now:           today,
		BufferWeeks:   h.cfg.BufferWeeks,
		PrestartWeeks: prestart,
		HorizonWeeks:  h.cfg.HorizonWeeks,
	})

	rows := make([]scheduleRow, 0, len(sched.History)+len(sched.Rows))
	for _, wr := range sched.History {
		rows = append(rows, scheduleRow{WeekRow: wr})
	}
	for _, wr := range sched.Rows {
		rows = append(rows, scheduleRow{
			WeekRow:  wr,
			Earliest: hasEarliest && wr.Anchor.Equal(earliest),
		})
	}

	resp := map[string]any{
		"email":           adviser.Email,
		"baseline":        calendar.FormatDate(baseline),
		"initial_backlog": sched.InitialBacklog,
		"rows":            rows,
	}
	if hasEarliest {
		resp["earliest_week_monday"] = calendar.FormatDate(earliest)
		resp["earliest_week_label"] = calendar.ISOWeekLabel(earliest)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetNowFunc overrides the clock; tests only.
func (h *AvailabilityHandler) SetNowFunc(now func() time.Time) { h.now = now }
