// Package store is the typed gateway the engine and admin surface read
// through: Postgres repositories for closures, overrides, leave, allocation
// records and settings, the CRM client for advisers, meetings and deals,
// and a TTL-bounded Redis cache in front of the hot reads.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"adviser-allocation/internal/domain"
	"adviser-allocation/internal/repository"
)

// DefaultCacheTTL bounds every cache entry; admin writes additionally
// clear the affected entries immediately.
const DefaultCacheTTL = 5 * time.Minute

// CRMReader is the slice of the CRM client the store reads through.
type CRMReader interface {
	ListAdvisers(ctx context.Context) ([]domain.Adviser, error)
	ListMeetings(ctx context.Context, adviserID string, from, to time.Time) ([]domain.Meeting, error)
	ListDealsWithoutFirstMeeting(ctx context.Context, adviserID string, before time.Time) ([]domain.Deal, error)
}

// HRReader is the slice of the HR client used by the leave sync.
type HRReader interface {
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	ListApprovedLeave(ctx context.Context, employeeID string, from, to time.Time) ([]domain.LeaveRequest, error)
}

// AdviserFilter narrows ListAdvisers. Zero values mean "no constraint";
// advisers not taking on clients are excluded unless IncludeNotTaking.
type AdviserFilter struct {
	ServicePackage   string
	HouseholdType    string
	IncludeNotTaking bool
}

// Store composes the repositories and external readers.
type Store struct {
	closures    repository.ClosuresRepository
	overrides   repository.OverridesRepository
	leave       repository.LeaveRepository
	allocations repository.AllocationsRepository
	settings    repository.SettingsRepository
	crm         CRMReader
	hr          HRReader
	cache       Cache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

type Deps struct {
	Closures    repository.ClosuresRepository
	Overrides   repository.OverridesRepository
	Leave       repository.LeaveRepository
	Allocations repository.AllocationsRepository
	Settings    repository.SettingsRepository
	CRM         CRMReader
	HR          HRReader
	Cache       Cache
	CacheTTL    time.Duration
	Logger      *zap.Logger
}

func New(deps Deps) *Store {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		closures:    deps.Closures,
		overrides:   deps.Overrides,
		leave:       deps.Leave,
		allocations: deps.Allocations,
		settings:    deps.Settings,
		crm:         deps.CRM,
		hr:          deps.HR,
		cache:       deps.Cache,
		cacheTTL:    ttl,
		logger:      logger,
	}
}

// ListAdvisers returns adviser profiles matching the filter. The unfiltered
// CRM list is cached for the store TTL.
func (s *Store) ListAdvisers(ctx context.Context, filter AdviserFilter) ([]domain.Adviser, error) {
	advisers, err := s.cachedAdvisers(ctx)
	if err != nil {
		return nil, err
	}

	matched := []domain.Adviser{}
	for _, a := range advisers {
		if !filter.IncludeNotTaking && !a.TakingOnClients {
			continue
		}
		if filter.ServicePackage != "" && !a.SupportsServicePackage(filter.ServicePackage) {
			continue
		}
		if filter.HouseholdType != "" && !a.SupportsHouseholdType(filter.HouseholdType) {
			continue
		}
		matched = append(matched, a)
	}
	return matched, nil
}

func (s *Store) cachedAdvisers(ctx context.Context) ([]domain.Adviser, error) {
	if s.cache != nil {
		var cached []domain.Adviser
		if s.cache.GetJSON(ctx, adviserRosterKey, &cached) {
			return cached, nil
		}
	}

	advisers, err := s.crm.ListAdvisers(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, adviserRosterKey, advisers, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache adviser roster", zap.Error(err))
		}
	}
	return advisers, nil
}

// GetMeetings returns the adviser's meetings with start dates in
// [fromMonday, toMonday).
func (s *Store) GetMeetings(ctx context.Context, adviserID string, fromMonday, toMonday time.Time) ([]domain.Meeting, error) {
	return s.crm.ListMeetings(ctx, adviserID, fromMonday, toMonday)
}

// GetDealsWithoutClarify returns the adviser's open deals that have no
// Clarify meeting yet.
func (s *Store) GetDealsWithoutClarify(ctx context.Context, adviserID string, beforeMonday time.Time) ([]domain.Deal, error) {
	return s.crm.ListDealsWithoutFirstMeeting(ctx, adviserID, beforeMonday)
}

// GetLeaveRequests returns the adviser's approved leave intersecting
// [from, to]. An adviser unknown to HR simply has no leave.
func (s *Store) GetLeaveRequests(ctx context.Context, adviserEmail string, from, to time.Time) ([]domain.LeaveRequest, error) {
	employee, err := s.leave.GetEmployeeByEmail(ctx, adviserEmail)
	if err != nil {
		if repository.IsNotFound(err) {
			return []domain.LeaveRequest{}, nil
		}
		return nil, err
	}
	return s.leave.ListLeaveRequests(ctx, employee.EmployeeID, from, to)
}

// GetGlobalClosures returns office-wide closures intersecting [from, to],
// cached for the store TTL.
func (s *Store) GetGlobalClosures(ctx context.Context, from, to time.Time) ([]domain.OfficeClosure, error) {
	key := closureRangeKey(from, to)
	if s.cache != nil {
		var cached []domain.OfficeClosure
		if s.cache.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}

	closures, err := s.closures.ListGlobalClosures(ctx, from, to)
	if err != nil {
		if repository.IsNotFound(err) {
			return []domain.OfficeClosure{}, nil
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, closures, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache closures", zap.Error(err))
		}
	}
	return closures, nil
}

// GetAdviserClosures returns closures scoped to one adviser.
func (s *Store) GetAdviserClosures(ctx context.Context, adviserEmail string, from, to time.Time) ([]domain.OfficeClosure, error) {
	closures, err := s.closures.ListAdviserClosures(ctx, adviserEmail, from, to)
	if err != nil {
		if repository.IsNotFound(err) {
			return []domain.OfficeClosure{}, nil
		}
		return nil, err
	}
	return closures, nil
}

// GetActiveCapacityOverride returns the override in force for the adviser
// at asOf, or nil when none applies.
func (s *Store) GetActiveCapacityOverride(ctx context.Context, adviserEmail string, asOf time.Time) (*domain.CapacityOverride, error) {
	o, err := s.overrides.GetActiveOverride(ctx, adviserEmail, asOf)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// ListCapacityOverrides returns the adviser's override schedule ordered by
// effective date.
func (s *Store) ListCapacityOverrides(ctx context.Context, adviserEmail string) ([]domain.CapacityOverride, error) {
	overrides, err := s.overrides.ListOverridesForAdviser(ctx, adviserEmail)
	if err != nil {
		if repository.IsNotFound(err) {
			return []domain.CapacityOverride{}, nil
		}
		return nil, err
	}
	return overrides, nil
}

// PutAllocationRecord persists the record, overwriting any previous record
// for the same deal. A conflict from a concurrent newer decision resolves
// to the stored record's id.
func (s *Store) PutAllocationRecord(ctx context.Context, record *domain.AllocationRecord) (string, error) {
	id, err := s.allocations.PutAllocationRecord(ctx, record)
	if err != nil {
		if repository.IsConflict(err) {
			existing, getErr := s.allocations.GetAllocationByDeal(ctx, record.DealID)
			if getErr == nil {
				s.logger.Warn("Allocation record superseded by newer decision",
					zap.String("deal_id", record.DealID),
					zap.String("kept_allocation_id", existing.ID),
				)
				return existing.ID, nil
			}
		}
		return "", err
	}
	return id, nil
}

// GetAllocationByDeal returns the persisted record for a deal, if any.
func (s *Store) GetAllocationByDeal(ctx context.Context, dealID string) (*domain.AllocationRecord, error) {
	return s.allocations.GetAllocationByDeal(ctx, dealID)
}

// PrestartWeeks reads the prestart window from system settings.
func (s *Store) PrestartWeeks(ctx context.Context) int {
	const def = 3
	v, err := s.settings.GetInt(ctx, repository.SettingPrestartWeeks, def)
	if err != nil {
		s.logger.Warn("Failed to read prestart_weeks, using default", zap.Error(err))
		return def
	}
	if v < 0 {
		return def
	}
	return v
}

// ---- Admin writes (closures / overrides) ----

func (s *Store) GetClosure(ctx context.Context, id string) (*domain.OfficeClosure, error) {
	return s.closures.GetClosure(ctx, id)
}

func (s *Store) ListClosures(ctx context.Context) ([]domain.OfficeClosure, error) {
	return s.closures.ListClosures(ctx)
}

func (s *Store) CreateClosure(ctx context.Context, c *domain.OfficeClosure) (string, error) {
	id, err := s.closures.CreateClosure(ctx, c)
	if err != nil {
		return "", err
	}
	s.invalidateClosures(ctx)
	return id, nil
}

func (s *Store) UpdateClosure(ctx context.Context, id string, c *domain.OfficeClosure) error {
	if err := s.closures.UpdateClosure(ctx, id, c); err != nil {
		return err
	}
	s.invalidateClosures(ctx)
	return nil
}

func (s *Store) DeleteClosure(ctx context.Context, id string) error {
	if err := s.closures.DeleteClosure(ctx, id); err != nil {
		return err
	}
	s.invalidateClosures(ctx)
	return nil
}

func (s *Store) GetOverride(ctx context.Context, id string) (*domain.CapacityOverride, error) {
	return s.overrides.GetOverride(ctx, id)
}

func (s *Store) ListOverrides(ctx context.Context) ([]domain.CapacityOverride, error) {
	return s.overrides.ListOverrides(ctx)
}

func (s *Store) CreateOverride(ctx context.Context, o *domain.CapacityOverride) (string, error) {
	return s.overrides.CreateOverride(ctx, o)
}

func (s *Store) UpdateOverride(ctx context.Context, id string, o *domain.CapacityOverride) error {
	return s.overrides.UpdateOverride(ctx, id, o)
}

func (s *Store) DeleteOverride(ctx context.Context, id string) error {
	return s.overrides.DeleteOverride(ctx, id)
}

// invalidateClosures clears cached global-closure ranges after an admin
// write so the engine sees the change immediately.
func (s *Store) invalidateClosures(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, closureRangePrefix); err != nil {
		s.logger.Warn("Failed to clear closure cache", zap.Error(err))
	}
}
