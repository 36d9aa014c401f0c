package rollup

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"workobs/internal/buckets"
	"workobs/internal/domain"
	"workobs/internal/events"
)

// Day replays the log into the rollup for one calendar date. Blocks are
// materialized only from started events carrying the query date; later
// interrupted/ended events are matched by blockId alone and silently
// dropped when no entry exists yet.
func (e Engine) Day(ctx context.Context, date string) (domain.DayRollup, error) {
	intents, err := e.latestIntents(ctx, date)
	if err != nil {
		return domain.DayRollup{}, err
	}

	evts, err := e.Store.Query(ctx, events.Filter{Types: domain.BlockLifecycleTypes})
	if err != nil {
		return domain.DayRollup{}, err
	}

	workMap := map[string]*domain.WorkBlock{}
	recMap := map[string]*domain.RecoveryBlock{}
	var workOrder, recOrder []string
	for _, evt := range evts {
		decoded, err := domain.Decode(evt)
		if err != nil {
			return domain.DayRollup{}, err
		}
		switch p := decoded.(type) {
		case domain.IntentBlockStarted:
			if p.BlockID == "" || p.Date != date {
				continue
			}
			if _, seen := workMap[p.BlockID]; !seen {
				workOrder = append(workOrder, p.BlockID)
			}
			workMap[p.BlockID] = &domain.WorkBlock{
				BlockID: p.BlockID,
				Intent:  p.Intent,
				Notes:   p.Notes,
				Date:    p.Date,
			}
		case domain.IntentBlockInterrupted:
			if b, ok := workMap[p.BlockID]; ok {
				b.Interrupted = true
				code := p.ReasonCode
				b.ReasonCode = &code
			}
		case domain.IntentBlockEnded:
			if b, ok := workMap[p.BlockID]; ok {
				b.ActualOutcome = p.ActualOutcome
				b.DurationMinutes = p.DurationMinutes
				if label := buckets.Label(p.DurationMinutes); label != nil {
					b.DurationLabel = *label
				}
			}
		case domain.RecoveryBlockStarted:
			if p.BlockID == "" || p.Date != date {
				continue
			}
			if _, seen := recMap[p.BlockID]; !seen {
				recOrder = append(recOrder, p.BlockID)
			}
			recMap[p.BlockID] = &domain.RecoveryBlock{
				BlockID: p.BlockID,
				Kind:    p.Kind,
				Date:    p.Date,
			}
		case domain.RecoveryBlockEnded:
			if b, ok := recMap[p.BlockID]; ok {
				dur := p.DurationMinutes
				b.DurationMinutes = &dur
				if label := buckets.Label(&dur); label != nil {
					b.DurationLabel = *label
				}
			}
		}
	}

	blocks := make([]domain.WorkBlock, 0, len(workOrder))
	for _, id := range workOrder {
		blocks = append(blocks, *workMap[id])
	}
	recovery := make([]domain.RecoveryBlock, 0, len(recOrder))
	for _, id := range recOrder {
		recovery = append(recovery, *recMap[id])
	}

	m := domain.DayMetrics{TotalBlocks: len(blocks)}
	for _, b := range blocks {
		dur := 0
		if b.DurationMinutes != nil {
			dur = *b.DurationMinutes
		}
		if b.Interrupted {
			m.InterruptedBlocks++
		} else if dur >= 30 {
			m.FocusBlocks++
		}
		m.TotalActiveMinutes += dur
	}
	m.TotalActiveLabel = buckets.TotalLabel(m.TotalActiveMinutes)
	m.FragmentationRate = round2(rate(m.InterruptedBlocks, m.TotalBlocks))
	for _, b := range recovery {
		if b.DurationMinutes != nil {
			m.TotalRecoveryMinutes += *b.DurationMinutes
		}
	}
	m.TotalRecoveryLabel = buckets.RecoveryTotalLabel(m.TotalRecoveryMinutes)

	return domain.DayRollup{
		Date:           date,
		Intents:        intents,
		Blocks:         blocks,
		RecoveryBlocks: recovery,
		Metrics:        m,
	}, nil
}

// latestIntents picks the newest daily_intents_set for the date, strictly
// by timestamp (insertion order only breaks exact ties).
func (e Engine) latestIntents(ctx context.Context, date string) ([]string, error) {
	evts, err := e.Store.Query(ctx, events.Filter{Types: []string{domain.TypeDailyIntentsSet}})
	if err != nil {
		return nil, err
	}
	intents := []string{}
	for _, evt := range evts {
		decoded, err := domain.Decode(evt)
		if err != nil {
			return nil, err
		}
		p := decoded.(domain.DailyIntentsSet)
		if p.Date != date {
			continue
		}
		intents = p.Intents
		if intents == nil {
			intents = []string{}
		}
	}
	return intents, nil
}

// weekBlock is the reduced work-block state the week fold tracks.
type weekBlock struct {
	interrupted bool
	duration    int
}

// Week replays the log for one ISO week. A malformed key is not an error:
// it yields the all-zero rollup shape.
func (e Engine) Week(ctx context.Context, yearWeek string) (domain.WeekRollup, error) {
	start, ok := parseYearWeek(yearWeek)
	if !ok {
		return zeroWeek(yearWeek), nil
	}
	end := start.AddDate(0, 0, 7)

	evts, err := e.Store.Query(ctx, events.Filter{
		Types: domain.BlockLifecycleTypes,
		From:  &start,
		To:    &end,
	})
	if err != nil {
		return domain.WeekRollup{}, err
	}

	blocks := map[string]*weekBlock{}
	fragCounts := map[string]int{}
	var order, fragOrder []string
	recoveryMinutes := 0
	for _, evt := range evts {
		decoded, err := domain.Decode(evt)
		if err != nil {
			return domain.WeekRollup{}, err
		}
		switch p := decoded.(type) {
		case domain.IntentBlockStarted:
			// No per-date scoping here: everything inside the window counts.
			if p.BlockID == "" {
				continue
			}
			if _, seen := blocks[p.BlockID]; !seen {
				order = append(order, p.BlockID)
			}
			blocks[p.BlockID] = &weekBlock{}
		case domain.IntentBlockInterrupted:
			if p.ReasonCode != "" {
				if _, seen := fragCounts[p.ReasonCode]; !seen {
					fragOrder = append(fragOrder, p.ReasonCode)
				}
				fragCounts[p.ReasonCode]++
			}
			if b, ok := blocks[p.BlockID]; ok {
				b.interrupted = true
			}
		case domain.IntentBlockEnded:
			// Overwrites unconditionally, like the day fold: a later ended
			// event without a duration clears the earlier one.
			if b, ok := blocks[p.BlockID]; ok {
				b.duration = 0
				if p.DurationMinutes != nil {
					b.duration = *p.DurationMinutes
				}
			}
		case domain.RecoveryBlockEnded:
			// Recovery blocks are not materialized for the week view; only
			// their ended durations contribute.
			recoveryMinutes += p.DurationMinutes
		}
	}

	m := domain.WeekMetrics{TotalBlocks: len(order)}
	for _, id := range order {
		b := blocks[id]
		if b.interrupted {
			m.InterruptedBlocks++
		} else if b.duration >= 30 {
			m.FocusBlocks++
		}
		m.TotalActiveMinutes += b.duration
	}
	m.TotalActiveLabel = buckets.TotalLabel(m.TotalActiveMinutes)
	m.FragmentationRate = round2(rate(m.InterruptedBlocks, m.TotalBlocks))
	m.TotalRecoveryMinutes = recoveryMinutes
	m.TotalRecoveryLabel = buckets.RecoveryTotalLabel(recoveryMinutes)

	m.TopFragmenters = make([]domain.Fragmenter, 0, len(fragOrder))
	for _, code := range fragOrder {
		m.TopFragmenters = append(m.TopFragmenters, domain.Fragmenter{Code: code, Count: fragCounts[code]})
	}
	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(m.TopFragmenters, func(i, j int) bool {
		return m.TopFragmenters[i].Count > m.TopFragmenters[j].Count
	})

	reflection, err := e.latestReflection(ctx, yearWeek)
	if err != nil {
		return domain.WeekRollup{}, err
	}

	return domain.WeekRollup{
		YearWeek:   yearWeek,
		Metrics:    m,
		Reflection: reflection,
	}, nil
}

func (e Engine) latestReflection(ctx context.Context, yearWeek string) (domain.Reflection, error) {
	reflection := emptyReflection()
	evts, err := e.Store.Query(ctx, events.Filter{Types: []string{domain.TypeWeeklySummarySaved}})
	if err != nil {
		return reflection, err
	}
	for _, evt := range evts {
		decoded, err := domain.Decode(evt)
		if err != nil {
			return reflection, err
		}
		p := decoded.(domain.WeeklySummarySaved)
		if p.YearWeek != yearWeek {
			continue
		}
		reflection = domain.Reflection{
			TopFragmenters:       p.TopFragmenters,
			NotPerformanceIssues: p.NotPerformanceIssues,
			OneChangeNextWeek:    p.OneChangeNextWeek,
		}
		if reflection.TopFragmenters == nil {
			reflection.TopFragmenters = []string{}
		}
		if reflection.NotPerformanceIssues == nil {
			reflection.NotPerformanceIssues = []string{}
		}
	}
	return reflection, nil
}

// parseYearWeek parses a YYYY-Www key into the UTC midnight of its Monday.
// ISO-8601 numbering: Monday is day 1 and week 1 is the week containing
// January 4. Keys that do not split into integers, or whose week falls
// outside 1..53, report !ok.
func parseYearWeek(yearWeek string) (time.Time, bool) {
	yStr, wStr, found := strings.Cut(yearWeek, "-W")
	if !found {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yStr)
	if err != nil || year <= 0 {
		return time.Time{}, false
	}
	week, err := strconv.Atoi(wStr)
	if err != nil || week < 1 || week > 53 {
		return time.Time{}, false
	}
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	daysFromMonday := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -daysFromMonday)
	return monday.AddDate(0, 0, (week-1)*7), true
}

func zeroWeek(yearWeek string) domain.WeekRollup {
	return domain.WeekRollup{
		YearWeek: yearWeek,
		Metrics: domain.WeekMetrics{
			TopFragmenters:     []domain.Fragmenter{},
			TotalActiveLabel:   "~0 mins",
			TotalRecoveryLabel: "~0 mins",
		},
		Reflection: emptyReflection(),
	}
}

func emptyReflection() domain.Reflection {
	return domain.Reflection{
		TopFragmenters:       []string{},
		NotPerformanceIssues: []string{},
	}
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
