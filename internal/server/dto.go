package server

import (
	"encoding/json"
	"time"

	"workobs/internal/domain"
)

// Request payloads

type DailyIntentsRequest struct {
	Date    string   `json:"date" pattern:"^\\d{4}-\\d{2}-\\d{2}$"`
	Intents []string `json:"intents"`
}

type StartBlockRequest struct {
	Date   string  `json:"date" pattern:"^\\d{4}-\\d{2}-\\d{2}$"`
	Intent string  `json:"intent"`
	Notes  *string `json:"notes,omitempty"`
}

type InterruptBlockRequest struct {
	BlockID    string `json:"blockId"`
	ReasonCode string `json:"reasonCode" enum:"MEETING,DEPENDENCY,CONTEXT_SWITCH,FAMILY,EMOTIONAL_LOAD,TECH_ISSUE,UNPLANNED_REQUEST"`
}

type EndBlockRequest struct {
	BlockID         string  `json:"blockId"`
	ActualOutcome   *string `json:"actualOutcome,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
}

type StartRecoveryRequest struct {
	Kind string `json:"kind" enum:"COFFEE,LUNCH"`
	Date string `json:"date" pattern:"^\\d{4}-\\d{2}-\\d{2}$"`
}

type EndRecoveryRequest struct {
	BlockID         string `json:"blockId"`
	DurationMinutes int    `json:"durationMinutes"`
}

type WeeklySummaryRequest struct {
	TopFragmenters       []string `json:"topFragmenters"`
	NotPerformanceIssues []string `json:"notPerformanceIssues"`
	OneChangeNextWeek    string   `json:"oneChangeNextWeek"`
}

// Response payloads

type OKResponse struct {
	OK bool `json:"ok"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type BlockIDResponse struct {
	BlockID string `json:"blockId"`
}

type PathResponse struct {
	Path string `json:"path"`
}

type DailyIntentsResponse struct {
	Date    string   `json:"date"`
	Intents []string `json:"intents"`
}

type EventResponse struct {
	ID      string         `json:"id"`
	Seq     int64          `json:"seq"`
	TS      string         `json:"ts" format:"date-time"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func eventResponse(e domain.Event) EventResponse {
	var payload map[string]any
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		payload = nil
	}
	return EventResponse{
		ID:      e.ID,
		Seq:     e.Seq,
		TS:      e.TS.UTC().Format(time.RFC3339),
		Type:    e.Type,
		Payload: payload,
	}
}
