// Package allocator ties the capacity model together end to end: filter
// eligible advisers, project their schedules concurrently, pick the
// adviser whose earliest open week is soonest, update the CRM deal owner
// and persist the allocation record.
package allocator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/capacity"
	"adviser-allocation/internal/crm"
	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/logger"
	"adviser-allocation/internal/metrics"
	"adviser-allocation/internal/repository"
	"adviser-allocation/internal/store"
)

// Store is the slice of the store gateway the allocator reads and writes.
type Store interface {
	capacity.Source
	ListAdvisers(ctx context.Context, filter store.AdviserFilter) ([]domain.Adviser, error)
	PutAllocationRecord(ctx context.Context, record *domain.AllocationRecord) (string, error)
	PrestartWeeks(ctx context.Context) int
}

// CRM is the slice of the CRM client the allocator calls directly.
type CRM interface {
	GetDeal(ctx context.Context, dealID string) (*domain.Deal, error)
	SetDealOwner(ctx context.Context, dealID, adviserID string) error
}

// Notifier receives the allocation payload after a successful allocation.
// Notifier failures are logged and never abort the allocation.
type Notifier interface {
	NotifyAllocation(ctx context.Context, result *Result) error
}

// Config carries the engine and fan-out knobs.
type Config struct {
	HorizonWeeks int
	BufferWeeks  int
	MaxParallel  int            // fan-out cap, default 16
	OuterTimeout time.Duration  // whole-allocation deadline, default 60s
	Location     *time.Location // zone used to derive "today"
}

const (
	defaultMaxParallel  = 16
	defaultOuterTimeout = 60 * time.Second
)

// Request is one allocation invocation.
type Request struct {
	DealID         string
	ServicePackage string
	HouseholdType  string
	AgreementStart *time.Time
	RequesterIP    string
	UserAgent      string
	SuppressNotify bool
}

// Candidate is one evaluated adviser.
type Candidate struct {
	Adviser      domain.Adviser
	EarliestWeek *time.Time // nil when no week inside the horizon qualified
	Ratio        float64
	Schedule     *capacity.Schedule
}

// Result is a completed allocation.
type Result struct {
	Record       domain.AllocationRecord
	Adviser      domain.Adviser
	EarliestWeek time.Time
	Candidates   []Candidate
}

// Allocator implements the deal-allocation flow.
type Allocator struct {
	store    Store
	crm      CRM
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(st Store, crmClient CRM, notifier Notifier, cfg Config, logger *zap.Logger) *Allocator {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if cfg.OuterTimeout <= 0 {
		cfg.OuterTimeout = defaultOuterTimeout
	}
	if cfg.HorizonWeeks <= 0 {
		cfg.HorizonWeeks = capacity.DefaultHorizonWeeks
	}
	if cfg.BufferWeeks <= 0 {
		cfg.BufferWeeks = capacity.DefaultBufferWeeks
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		store:    st,
		crm:      crmClient,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Allocate runs the full flow for one deal.
func (a *Allocator) Allocate(ctx context.Context, req Request) (*Result, error) {
	started := a.now()
	result, err := a.allocate(ctx, req)
	metrics.AllocationDuration.Observe(a.now().Sub(started).Seconds())
	if err != nil {
		metrics.AllocationsTotal.WithLabelValues(KindOf(err).String()).Inc()
		return nil, err
	}
	metrics.AllocationsTotal.WithLabelValues("allocated").Inc()
	return result, nil
}

func (a *Allocator) allocate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.OuterTimeout)
	defer cancel()

	if strings.TrimSpace(req.DealID) == "" {
		return nil, newError(KindInvalidInput, "deal id is required", nil)
	}

	deal, err := a.crm.GetDeal(ctx, req.DealID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return nil, newError(KindDealNotFound, fmt.Sprintf("deal %s not found", req.DealID), err)
		}
		return nil, newError(KindCrmUnavailable, "failed to load deal", err)
	}

	servicePackage := strings.TrimSpace(req.ServicePackage)
	if servicePackage == "" {
		servicePackage = deal.ServicePackage
	}
	if servicePackage == "" {
		return nil, newError(KindInvalidInput, "service package is required", nil)
	}
	household := strings.TrimSpace(req.HouseholdType)
	if household == "" {
		household = deal.HouseholdType
	}
	agreementStart := req.AgreementStart
	if agreementStart == nil {
		agreementStart = deal.AgreementStartDate
	}

	log := logger.WithDeal(a.logger, req.DealID, servicePackage)
	log.Info("Allocation started", zap.String("household_type", household))

	advisers, err := a.store.ListAdvisers(ctx, store.AdviserFilter{
		ServicePackage: servicePackage,
		HouseholdType:  household,
	})
	if err != nil {
		return nil, a.mapReadError("failed to list advisers", err)
	}
	if len(advisers) == 0 {
		return nil, newError(KindNoEligibleAdvisers,
			fmt.Sprintf("no advisers take %q deals", servicePackage), nil)
	}
	metrics.AdvisersEvaluated.Observe(float64(len(advisers)))

	candidates, err := a.evaluate(ctx, advisers, agreementStart)
	if err != nil {
		return nil, err
	}

	chosen := pickCandidate(candidates)
	if chosen == nil {
		return nil, newError(KindNoAvailability,
			"no eligible adviser has capacity inside the projection horizon", nil)
	}

	if err := a.crm.SetDealOwner(ctx, req.DealID, chosen.Adviser.ID); err != nil {
		if errors.Is(err, crm.ErrPermanent) {
			return nil, newError(KindCrmUpdateFailed, "CRM rejected the owner update", err)
		}
		return nil, newError(KindCrmUnavailable, "CRM owner update failed", err)
	}

	record := domain.AllocationRecord{
		DealID:         req.DealID,
		AdviserID:      chosen.Adviser.ID,
		AdviserEmail:   chosen.Adviser.Email,
		ServicePackage: servicePackage,
		HouseholdType:  household,
		EarliestWeek:   *chosen.EarliestWeek,
		DecidedAt:      a.now().UTC(),
		RequesterIP:    req.RequesterIP,
		UserAgent:      req.UserAgent,
		Extra:          candidatesExtra(candidates),
	}
	if _, err := a.store.PutAllocationRecord(ctx, &record); err != nil {
		// The deal owner changed in the CRM but no record exists: flag the
		// gap for reconciliation, then let the caller retry safely.
		log.Warn("Inconsistency: CRM updated but allocation record not written",
			zap.String("adviser_id", chosen.Adviser.ID),
			zap.Error(err),
		)
		return nil, newError(KindStoreUnavailable, "allocation record write failed", err)
	}

	metrics.EarliestWeekLeadWeeks.Observe(float64(calendar.WeeksBetween(
		calendar.MondayOf(calendar.CivilDate(a.now(), a.cfg.Location)), *chosen.EarliestWeek)))

	result := &Result{
		Record:       record,
		Adviser:      chosen.Adviser,
		EarliestWeek: *chosen.EarliestWeek,
		Candidates:   candidates,
	}

	if a.notifier != nil && !req.SuppressNotify {
		if err := a.notifier.NotifyAllocation(ctx, result); err != nil {
			log.Warn("Allocation notification failed", zap.Error(err))
		}
	}

	log.Info("Allocation complete",
		zap.String("adviser_email", chosen.Adviser.Email),
		zap.String("earliest_week", calendar.ISOWeekLabel(*chosen.EarliestWeek)),
	)
	return result, nil
}

// EarliestAvailability evaluates every adviser matching the filter; used by
// the availability read views.
func (a *Allocator) EarliestAvailability(ctx context.Context, filter store.AdviserFilter) ([]Candidate, error) {
	advisers, err := a.store.ListAdvisers(ctx, filter)
	if err != nil {
		return nil, a.mapReadError("failed to list advisers", err)
	}
	return a.evaluate(ctx, advisers, nil)
}

// evaluate fans the capacity projection out over the advisers with bounded
// parallelism. Each task holds its own read view; a failed task fails the
// evaluation because selection must see a complete snapshot.
func (a *Allocator) evaluate(ctx context.Context, advisers []domain.Adviser, agreementStart *time.Time) ([]Candidate, error) {
	today := calendar.CivilDate(a.now(), a.cfg.Location)
	baseline := calendar.MondayOf(today)
	prestart := a.store.PrestartWeeks(ctx)

	params := capacity.SelectorParams{
		Now:            today,
		BufferWeeks:    a.cfg.BufferWeeks,
		PrestartWeeks:  prestart,
		HorizonWeeks:   a.cfg.HorizonWeeks,
		AgreementStart: agreementStart,
	}
	opts := capacity.LoadOptions{
		PrestartWeeks: prestart,
		HorizonWeeks:  a.cfg.HorizonWeeks,
	}

	limit := a.cfg.MaxParallel
	if len(advisers) < limit {
		limit = len(advisers)
	}
	sem := make(chan struct{}, limit)

	candidates := make([]Candidate, len(advisers))
	errs := make([]error, len(advisers))
	var wg sync.WaitGroup
	for i, adviser := range advisers {
		wg.Add(1)
		go func(i int, adviser domain.Adviser) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}

			sched, err := capacity.Load(ctx, a.store, adviser, baseline, opts)
			if err != nil {
				errs[i] = err
				return
			}
			c := Candidate{Adviser: adviser, Schedule: sched}
			if week, ok := capacity.EarliestWeek(sched, params); ok {
				c.EarliestWeek = &week
				c.Ratio = capacity.UtilisationRatio(sched, week)
			}
			candidates[i] = c
		}(i, adviser)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, a.mapReadError("adviser capacity projection failed", err)
		}
	}
	return candidates, nil
}

// pickCandidate applies the selection order: earliest week, then lowest
// utilisation ratio, then adviser email as the fixed total order. Advisers
// with no available week never win while any adviser has one.
func pickCandidate(candidates []Candidate) *Candidate {
	available := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.EarliestWeek != nil {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return nil
	}
	sort.Slice(available, func(i, j int) bool {
		wi, wj := *available[i].EarliestWeek, *available[j].EarliestWeek
		if !wi.Equal(wj) {
			return wi.Before(wj)
		}
		if available[i].Ratio != available[j].Ratio {
			return available[i].Ratio < available[j].Ratio
		}
		return strings.ToLower(available[i].Adviser.Email) < strings.ToLower(available[j].Adviser.Email)
	})
	return &available[0]
}

func (a *Allocator) mapReadError(detail string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return newError(KindStoreUnavailable, detail+": deadline exceeded", err)
	case errors.Is(err, crm.ErrTransient) || errors.Is(err, crm.ErrPermanent) || errors.Is(err, crm.ErrNotFound):
		return newError(KindCrmUnavailable, detail, err)
	case repository.IsUnavailable(err) || repository.IsNotFound(err):
		return newError(KindStoreUnavailable, detail, err)
	default:
		return newError(KindStoreUnavailable, detail, err)
	}
}

// candidatesExtra summarises the evaluated advisers for the audit record.
func candidatesExtra(candidates []Candidate) json.RawMessage {
	type entry struct {
		Email        string  `json:"email"`
		EarliestWeek *string `json:"earliest_week,omitempty"`
		Ratio        float64 `json:"ratio"`
	}
	entries := make([]entry, 0, len(candidates))
	for _, c := range candidates {
		e := entry{Email: c.Adviser.Email, Ratio: c.Ratio}
		if c.EarliestWeek != nil {
			label := calendar.FormatDate(*c.EarliestWeek)
			e.EarliestWeek = &label
		}
		entries = append(entries, e)
	}
	raw, err := json.Marshal(map[string]any{"candidates": entries})
	if err != nil {
		return nil
	}
	return raw
}

// SetNowFunc overrides the clock; tests only.
func (a *Allocator) SetNowFunc(now func() time.Time) { a.now = now }
