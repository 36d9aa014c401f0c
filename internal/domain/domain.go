package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one immutable row of the append-only log. Payload stays opaque
// to the store; Decode interprets it per type.
type Event struct {
	ID      string          `json:"id"`
	Seq     int64           `json:"seq"`
	TS      time.Time       `json:"ts"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event type tags.
const (
	TypeDailyIntentsSet        = "daily_intents_set"
	TypeIntentBlockStarted     = "intent_block_started"
	TypeIntentBlockInterrupted = "intent_block_interrupted"
	TypeIntentBlockEnded       = "intent_block_ended"
	TypeRecoveryBlockStarted   = "recovery_block_started"
	TypeRecoveryBlockEnded     = "recovery_block_ended"
	TypeWeeklySummarySaved     = "weekly_summary_saved"
)

// BlockLifecycleTypes are the five event types the rollup fold consumes.
var BlockLifecycleTypes = []string{
	TypeIntentBlockStarted,
	TypeIntentBlockInterrupted,
	TypeIntentBlockEnded,
	TypeRecoveryBlockStarted,
	TypeRecoveryBlockEnded,
}

// ReasonCodes are the accepted interruption reasons.
var ReasonCodes = []string{
	"MEETING", "DEPENDENCY", "CONTEXT_SWITCH",
	"FAMILY", "EMOTIONAL_LOAD", "TECH_ISSUE", "UNPLANNED_REQUEST",
}

// RecoveryKinds are the accepted recovery block kinds.
var RecoveryKinds = []string{"COFFEE", "LUNCH"}

func ValidReasonCode(code string) bool {
	for _, c := range ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

func ValidRecoveryKind(kind string) bool {
	for _, k := range RecoveryKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Typed payloads, one per event type.

type DailyIntentsSet struct {
	Date    string   `json:"date"`
	Intents []string `json:"intents"`
}

type IntentBlockStarted struct {
	BlockID string  `json:"blockId"`
	Date    string  `json:"date"`
	Intent  string  `json:"intent"`
	Notes   *string `json:"notes,omitempty"`
}

type IntentBlockInterrupted struct {
	BlockID    string `json:"blockId"`
	ReasonCode string `json:"reasonCode"`
}

type IntentBlockEnded struct {
	BlockID         string  `json:"blockId"`
	ActualOutcome   *string `json:"actualOutcome,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
}

type RecoveryBlockStarted struct {
	BlockID string `json:"blockId"`
	Date    string `json:"date"`
	Kind    string `json:"kind"`
}

type RecoveryBlockEnded struct {
	BlockID         string `json:"blockId"`
	DurationMinutes int    `json:"durationMinutes"`
}

type WeeklySummarySaved struct {
	YearWeek             string   `json:"yearWeek"`
	TopFragmenters       []string `json:"topFragmenters"`
	NotPerformanceIssues []string `json:"notPerformanceIssues"`
	OneChangeNextWeek    string   `json:"oneChangeNextWeek"`
}

// Decode unmarshals an event payload into its typed form. Unknown types
// are an error; the store never writes them.
func Decode(e Event) (any, error) {
	var (
		out any
		err error
	)
	switch e.Type {
	case TypeDailyIntentsSet:
		var p DailyIntentsSet
		err = json.Unmarshal(e.Payload, &p)
		out = p
	case TypeIntentBlockStarted:
		var p IntentBlockStarted
		err = json.Unmarshal(e.Payload, &p)
		out = p
	case TypeIntentBlockInterrupted:
		var p IntentBlockInterrupted
		err = json.Unmarshal(e.Payload, &p)
		out = p
	case TypeIntentBlockEnded:
		var p IntentBlockEnded
		err = json.Unmarshal(e.Payload, &p)
		out = p
	case TypeRecoveryBlockStarted:
		var p RecoveryBlockStarted
		err = json.Unmarshal(e.Payload, &p)
		out = p
	case TypeRecoveryBlockEnded:
		var p RecoveryBlockEnded
		err = json.Unmarshal(e.Payload, &p)
		out = p
	case TypeWeeklySummarySaved:
		var p WeeklySummarySaved
		err = json.Unmarshal(e.Payload, &p)
		out = p
	default:
		return nil, fmt.Errorf("unknown event type %s", e.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return out, nil
}

// Derived entities. These exist only as replay output and are never stored.

type WorkBlock struct {
	BlockID         string  `json:"blockId"`
	Intent          string  `json:"intent"`
	Notes           *string `json:"notes"`
	Date            string  `json:"date"`
	Interrupted     bool    `json:"interrupted"`
	ReasonCode      *string `json:"reasonCode"`
	ActualOutcome   *string `json:"actualOutcome"`
	DurationMinutes *int    `json:"durationMinutes"`
	DurationLabel   string  `json:"durationLabel"`
}

type RecoveryBlock struct {
	BlockID         string `json:"blockId"`
	Kind            string `json:"kind"`
	Date            string `json:"date"`
	DurationMinutes *int   `json:"durationMinutes"`
	DurationLabel   string `json:"durationLabel"`
}

type DayMetrics struct {
	TotalBlocks          int     `json:"totalBlocks"`
	InterruptedBlocks    int     `json:"interruptedBlocks"`
	FragmentationRate    float64 `json:"fragmentationRate"`
	FocusBlocks          int     `json:"focusBlocks"`
	TotalActiveMinutes   int     `json:"totalActiveMinutes"`
	TotalActiveLabel     string  `json:"totalActiveLabel"`
	TotalRecoveryMinutes int     `json:"totalRecoveryMinutes"`
	TotalRecoveryLabel   string  `json:"totalRecoveryLabel"`
}

type DayRollup struct {
	Date           string          `json:"date"`
	Intents        []string        `json:"intents"`
	Blocks         []WorkBlock     `json:"blocks"`
	RecoveryBlocks []RecoveryBlock `json:"recoveryBlocks"`
	Metrics        DayMetrics      `json:"metrics"`
}

type Fragmenter struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

type WeekMetrics struct {
	TotalBlocks          int          `json:"totalBlocks"`
	InterruptedBlocks    int          `json:"interruptedBlocks"`
	FragmentationRate    float64      `json:"fragmentationRate"`
	FocusBlocks          int          `json:"focusBlocks"`
	TopFragmenters       []Fragmenter `json:"topFragmenters"`
	TotalActiveMinutes   int          `json:"totalActiveMinutes"`
	TotalActiveLabel     string       `json:"totalActiveLabel"`
	TotalRecoveryMinutes int          `json:"totalRecoveryMinutes"`
	TotalRecoveryLabel   string       `json:"totalRecoveryLabel"`
}

type Reflection struct {
	TopFragmenters       []string `json:"topFragmenters"`
	NotPerformanceIssues []string `json:"notPerformanceIssues"`
	OneChangeNextWeek    string   `json:"oneChangeNextWeek"`
}

type WeekRollup struct {
	YearWeek   string      `json:"yearWeek"`
	Metrics    WeekMetrics `json:"metrics"`
	Reflection Reflection  `json:"reflection"`
}
