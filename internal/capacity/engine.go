// Package capacity implements the weekly capacity model: it folds booked
// onboarding meetings, the backlog of deals still awaiting their first
// Clarify, and out-of-office periods into per-adviser week rows, and
// searches those rows for the earliest week with room for a new client.
package capacity

import (
	"time"

	"adviser-allocation/internal/calendar"
	"adviser-allocation/internal/domain"
)

// OOOKind classifies a week's out-of-office coverage.
type OOOKind int

const (
	OOONone OOOKind = iota
	OOOPartial
	OOOFull
)

func (k OOOKind) String() string {
	switch k {
	case OOOPartial:
		return "partial"
	case OOOFull:
		return "full"
	default:
		return "none"
	}
}

// OOOState is the union of personal leave, global closures and
// adviser-scoped closures clipped to one week's business days.
type OOOState struct {
	Kind OOOKind `json:"kind"`
	Days int     `json:"days"` // business days out, 0..5
}

// WeekRow is one week of the capacity table.
type WeekRow struct {
	Anchor             time.Time `json:"anchor"` // Monday
	Label              string    `json:"label"`  // ISO YYYY-Www
	ClarifyCount       int       `json:"clarify_count"`
	KickoffCount       int       `json:"kickoff_count"` // reported for UI parity, not occupancy
	DealNoClarifyCount int       `json:"deal_no_clarify_count"`
	OOO                OOOState  `json:"ooo_state"`
	Target             int       `json:"target"`
	Actual             int       `json:"actual"` // clarifies + backlog carry-forward
	Difference         int       `json:"difference"`
}

// BlockState records the backlog accounting of one fortnight block.
type BlockState struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"` // second week's Monday
	Added        int       `json:"added"`
	Drained      int       `json:"drained"`
	BacklogAfter int       `json:"backlog_after"`
}

// Schedule is the projected capacity for one adviser from a baseline week.
type Schedule struct {
	Adviser        domain.Adviser `json:"adviser"`
	Baseline       time.Time      `json:"baseline"`
	Rows           []WeekRow      `json:"rows"`              // baseline .. baseline+horizon-1
	History        []WeekRow      `json:"history,omitempty"` // display only, no backlog accounting
	Blocks         []BlockState   `json:"blocks"`
	InitialBacklog int            `json:"initial_backlog"`
}

// Inputs is everything the engine consumes for one adviser. Meetings,
// leave and closures may extend before the baseline for display history.
type Inputs struct {
	Adviser       domain.Adviser
	PrestartWeeks int
	HorizonWeeks  int
	HistoryWeeks  int
	Meetings      []domain.Meeting
	OpenDeals     []domain.Deal // deals without a Clarify yet
	Leave         []domain.LeaveRequest
	Closures      []domain.OfficeClosure
	Overrides     []domain.CapacityOverride // effective-date ascending
}

// DefaultHorizonWeeks is the projection horizon when none is configured.
const DefaultHorizonWeeks = 52

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Build produces the capacity schedule for one adviser at the given
// baseline Monday.
func Build(in Inputs, baseline time.Time) *Schedule {
	horizon := in.HorizonWeeks
	if horizon <= 0 {
		horizon = DefaultHorizonWeeks
	}
	if horizon%2 != 0 {
		// Round up so the fortnight blocks tile the whole horizon.
		horizon++
	}
	history := in.HistoryWeeks
	if history < 0 {
		history = 0
	}

	s := &Schedule{
		Adviser:  in.Adviser,
		Baseline: baseline,
	}

	clarify := map[time.Time]int{}
	kickoff := map[time.Time]int{}
	for _, m := range in.Meetings {
		wk := calendar.MondayOf(m.StartDate)
		switch m.Kind {
		case domain.MeetingClarify:
			clarify[wk]++
		case domain.MeetingKickOff:
			kickoff[wk]++
		}
	}

	// Deals without Clarify: dated before the baseline they form the
	// pre-existing queue; inside the horizon they join the block that
	// contains their agreement start week. Deals with no agreement start
	// date cannot be placed on the timeline and are left out.
	deals := map[time.Time]int{}
	horizonEnd := calendar.AddWeeks(baseline, horizon)
	for _, d := range in.OpenDeals {
		if d.AgreementStartDate == nil {
			continue
		}
		start := *d.AgreementStartDate
		if start.Before(baseline) {
			s.InitialBacklog++
			continue
		}
		if start.Before(horizonEnd) {
			deals[calendar.MondayOf(start)]++
		}
	}

	ooo := buildOOO(in, calendar.AddWeeks(baseline, -history), horizonEnd)

	makeRow := func(anchor time.Time) WeekRow {
		row := WeekRow{
			Anchor:             anchor,
			Label:              calendar.ISOWeekLabel(anchor),
			ClarifyCount:       clarify[anchor],
			KickoffCount:       kickoff[anchor],
			DealNoClarifyCount: deals[anchor],
			OOO:                ooo[anchor],
		}
		row.Target = weeklyTarget(in, anchor, row.OOO)
		row.Actual = row.ClarifyCount
		return row
	}

	for i := -history; i < 0; i++ {
		s.History = append(s.History, finishRow(makeRow(calendar.AddWeeks(baseline, i))))
	}

	rows := make([]WeekRow, 0, horizon)
	for i := 0; i < horizon; i++ {
		rows = append(rows, makeRow(calendar.AddWeeks(baseline, i)))
	}

	// Fortnight-paced backlog consumption: each block absorbs its own new
	// deals, then drains as much of the accumulated backlog as its spare
	// capacity allows. The drain lands on the rows as carry-forward.
	backlog := s.InitialBacklog
	blocks := calendar.FortnightBlocks(baseline, horizon/2)
	for _, b := range blocks {
		i0 := calendar.WeeksBetween(baseline, b[0])
		i1 := calendar.WeeksBetween(baseline, b[1])

		added := rows[i0].DealNoClarifyCount + rows[i1].DealNoClarifyCount
		backlog += added

		spare := rows[i0].Target + rows[i1].Target - rows[i0].ClarifyCount - rows[i1].ClarifyCount
		if spare < 0 {
			spare = 0
		}
		drained := backlog
		if spare < drained {
			drained = spare
		}
		backlog -= drained

		carryFirst := drained
		if rows[i0].Target < carryFirst {
			carryFirst = rows[i0].Target
		}
		rows[i0].Actual += carryFirst
		rows[i1].Actual += drained - carryFirst

		s.Blocks = append(s.Blocks, BlockState{
			Start:        b[0],
			End:          b[1],
			Added:        added,
			Drained:      drained,
			BacklogAfter: backlog,
		})
	}

	for i := range rows {
		rows[i] = finishRow(rows[i])
	}
	s.Rows = rows
	return s
}

func finishRow(row WeekRow) WeekRow {
	row.Difference = row.Actual - row.Target
	return row
}

// weeklyTarget computes the capacity target for one week: half the
// fortnight target derived from the effective monthly limit, zeroed for
// full OOO and pre-start weeks, reduced pro rata for partial OOO.
func weeklyTarget(in Inputs, anchor time.Time, state OOOState) int {
	limit := in.Adviser.ClientLimitMonthly
	for _, o := range in.Overrides {
		if o.EffectiveDate.After(anchor) {
			break
		}
		limit = o.ClientLimitMonthly
	}
	if limit <= 0 {
		return 0
	}
	perFortnight := ceilDiv(limit, 2)
	base := ceilDiv(perFortnight, 2)

	if start := in.Adviser.AdviserStartDate; start != nil {
		eligibleFrom := calendar.AddWeeks(calendar.MondayOf(*start), -in.PrestartWeeks)
		if anchor.Before(eligibleFrom) {
			return 0
		}
	}

	switch state.Kind {
	case OOOFull:
		return 0
	case OOOPartial:
		return ceilDiv(base*(5-state.Days), 5)
	default:
		return base
	}
}

// buildOOO unions leave and closures into per-week business-day coverage.
// Overlapping sources count each business day once.
func buildOOO(in Inputs, from, to time.Time) map[time.Time]OOOState {
	type daySet map[int]bool
	covered := map[time.Time]daySet{}

	mark := func(start, end time.Time) {
		if end.Before(start) {
			return
		}
		lo, hi := start, end
		if lo.Before(from) {
			lo = from
		}
		if !hi.Before(to) {
			hi = to.AddDate(0, 0, -1)
		}
		for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
			wd := d.Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				continue
			}
			wk := calendar.MondayOf(d)
			if covered[wk] == nil {
				covered[wk] = daySet{}
			}
			covered[wk][int(wd)] = true
		}
	}

	for _, l := range in.Leave {
		if !l.Approved() {
			continue
		}
		mark(l.StartDate, l.EndDate)
	}
	for _, c := range in.Closures {
		mark(c.StartDate, c.EndDate)
	}

	states := make(map[time.Time]OOOState, len(covered))
	for wk, days := range covered {
		n := len(days)
		switch {
		case n >= 5:
			states[wk] = OOOState{Kind: OOOFull, Days: 5}
		case n > 0:
			states[wk] = OOOState{Kind: OOOPartial, Days: n}
		}
	}
	return states
}
