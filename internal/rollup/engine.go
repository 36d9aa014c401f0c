// Package rollup is the event-sourced core: write operations validate and
// append events, read operations replay the log into day and week
// summaries. The engine holds no state between calls; every rollup is a
// fresh fold over the store.
package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"workobs/internal/domain"
	"workobs/internal/events"
)

type Engine struct {
	Store events.Store
}

func New(store events.Store) Engine {
	return Engine{Store: store}
}

// ValidationError marks client-caused failures. No event is appended when
// one is returned.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

const maxDailyIntents = 5

// SetDailyIntents replaces the declared intents for a date.
func (e Engine) SetDailyIntents(ctx context.Context, date string, intents []string) error {
	if err := checkDate(date); err != nil {
		return err
	}
	if len(intents) > maxDailyIntents {
		return validationErrorf("max %d intents allowed", maxDailyIntents)
	}
	if intents == nil {
		intents = []string{}
	}
	_, err := e.Store.Append(ctx, domain.TypeDailyIntentsSet, domain.DailyIntentsSet{
		Date:    date,
		Intents: intents,
	}, "")
	return err
}

// StartBlock opens a work block and returns its generated id.
func (e Engine) StartBlock(ctx context.Context, date, intent string, notes *string) (string, error) {
	if err := checkDate(date); err != nil {
		return "", err
	}
	if intent == "" {
		return "", validationErrorf("intent is required")
	}
	blockID := uuid.NewString()
	_, err := e.Store.Append(ctx, domain.TypeIntentBlockStarted, domain.IntentBlockStarted{
		BlockID: blockID,
		Date:    date,
		Intent:  intent,
		Notes:   notes,
	}, "")
	return blockID, err
}

// InterruptBlock records an interruption of an open block.
func (e Engine) InterruptBlock(ctx context.Context, blockID, reasonCode string) error {
	if blockID == "" {
		return validationErrorf("blockId is required")
	}
	if !domain.ValidReasonCode(reasonCode) {
		return validationErrorf("invalid reason code %q; must be one of %v", reasonCode, domain.ReasonCodes)
	}
	_, err := e.Store.Append(ctx, domain.TypeIntentBlockInterrupted, domain.IntentBlockInterrupted{
		BlockID:    blockID,
		ReasonCode: reasonCode,
	}, "")
	return err
}

// EndBlock closes a work block. Outcome and duration are optional; a block
// ended without a duration keeps a nil durationMinutes in replay.
func (e Engine) EndBlock(ctx context.Context, blockID string, actualOutcome *string, durationMinutes *int) error {
	if blockID == "" {
		return validationErrorf("blockId is required")
	}
	_, err := e.Store.Append(ctx, domain.TypeIntentBlockEnded, domain.IntentBlockEnded{
		BlockID:         blockID,
		ActualOutcome:   actualOutcome,
		DurationMinutes: durationMinutes,
	}, "")
	return err
}

// StartRecovery opens a recovery block and returns its generated id.
func (e Engine) StartRecovery(ctx context.Context, date, kind string) (string, error) {
	if err := checkDate(date); err != nil {
		return "", err
	}
	if !domain.ValidRecoveryKind(kind) {
		return "", validationErrorf("invalid recovery kind %q; must be COFFEE or LUNCH", kind)
	}
	blockID := uuid.NewString()
	_, err := e.Store.Append(ctx, domain.TypeRecoveryBlockStarted, domain.RecoveryBlockStarted{
		BlockID: blockID,
		Date:    date,
		Kind:    kind,
	}, "")
	return blockID, err
}

// EndRecovery closes a recovery block.
func (e Engine) EndRecovery(ctx context.Context, blockID string, durationMinutes int) error {
	if blockID == "" {
		return validationErrorf("blockId is required")
	}
	_, err := e.Store.Append(ctx, domain.TypeRecoveryBlockEnded, domain.RecoveryBlockEnded{
		BlockID:         blockID,
		DurationMinutes: durationMinutes,
	}, "")
	return err
}

// SaveWeeklySummary records a weekly reflection.
func (e Engine) SaveWeeklySummary(ctx context.Context, yearWeek string, s domain.Reflection) error {
	if yearWeek == "" {
		return validationErrorf("yearWeek is required")
	}
	if s.TopFragmenters == nil {
		s.TopFragmenters = []string{}
	}
	if s.NotPerformanceIssues == nil {
		s.NotPerformanceIssues = []string{}
	}
	_, err := e.Store.Append(ctx, domain.TypeWeeklySummarySaved, domain.WeeklySummarySaved{
		YearWeek:             yearWeek,
		TopFragmenters:       s.TopFragmenters,
		NotPerformanceIssues: s.NotPerformanceIssues,
		OneChangeNextWeek:    s.OneChangeNextWeek,
	}, "")
	return err
}

func checkDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return validationErrorf("invalid date %q; expected YYYY-MM-DD", date)
	}
	return nil
}
