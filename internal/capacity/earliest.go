package capacity

import (
	"time"

	"adviser-allocation/internal/calendar"
)

// SelectorParams drive the earliest-available-week search.
type SelectorParams struct {
	Now            time.Time // civil date of "today"
	BufferWeeks    int       // minimum lead time, default 2
	PrestartWeeks  int
	HorizonWeeks   int
	AgreementStart *time.Time // optional: allocations open the week after this date
}

// DefaultBufferWeeks is the minimum lead time between now and any
// selectable week.
const DefaultBufferWeeks = 2

// EarliestWeek scans the schedule's fortnight blocks for the first week
// the adviser can take a new client: the block's backlog must be fully
// drained and the week must have spare capacity and not be fully out of
// office. Returns false when no week inside the horizon qualifies.
func EarliestWeek(s *Schedule, p SelectorParams) (time.Time, bool) {
	buffer := p.BufferWeeks
	if buffer <= 0 {
		buffer = DefaultBufferWeeks
	}
	horizon := p.HorizonWeeks
	if horizon <= 0 {
		horizon = DefaultHorizonWeeks
	}

	nowMonday := calendar.MondayOf(p.Now)
	first := calendar.AddWeeks(nowMonday, buffer)
	if first.Before(s.Baseline) {
		first = s.Baseline
	}
	if start := s.Adviser.AdviserStartDate; start != nil && start.After(p.Now) {
		eligibleFrom := calendar.AddWeeks(calendar.MondayOf(*start), -p.PrestartWeeks)
		if eligibleFrom.After(first) {
			first = eligibleFrom
		}
	}
	if p.AgreementStart != nil {
		openFrom := calendar.AddWeeks(calendar.MondayOf(*p.AgreementStart), 1)
		if openFrom.After(first) {
			first = openFrom
		}
	}

	horizonEnd := calendar.AddWeeks(nowMonday, horizon)

	for _, block := range s.Blocks {
		if block.BacklogAfter != 0 {
			continue
		}
		for _, anchor := range []time.Time{block.Start, block.End} {
			if anchor.Before(first) || anchor.After(horizonEnd) {
				continue
			}
			idx := calendar.WeeksBetween(s.Baseline, anchor)
			if idx < 0 || idx >= len(s.Rows) {
				continue
			}
			row := s.Rows[idx]
			if row.OOO.Kind == OOOFull {
				continue
			}
			if row.Actual < row.Target {
				return anchor, true
			}
		}
	}
	return time.Time{}, false
}

// UtilisationRatio measures how loaded the adviser already is by the
// earliest week: accumulated clarifies from the baseline through that week,
// over the week's target. Used as the allocation tie-break.
func UtilisationRatio(s *Schedule, earliest time.Time) float64 {
	totalClarify := 0
	target := 0
	for _, row := range s.Rows {
		if row.Anchor.After(earliest) {
			break
		}
		totalClarify += row.ClarifyCount
		if row.Anchor.Equal(earliest) {
			target = row.Target
		}
	}
	if target < 1 {
		target = 1
	}
	return float64(totalClarify) / float64(target)
}
