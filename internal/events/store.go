// Package events is the append-only event log. Rows are never updated or
// deleted; every state change in the system is a new event.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"workobs/internal/domain"
)

// tsFormat is fixed-width UTC so stored timestamps order correctly as text.
const tsFormat = time.RFC3339

// Filter narrows a Query. All set fields apply conjunctively.
type Filter struct {
	Types []string
	After *time.Time // strictly after
	From  *time.Time // inclusive window start
	To    *time.Time // exclusive window end
	Limit int        // 0 means no limit
}

// Store is the log the rollup engine depends on. Injected so tests can
// substitute MemStore.
type Store interface {
	// Append writes one event. The timestamp is assigned server-side; id is
	// generated unless the caller supplies one, which is accepted verbatim
	// with no uniqueness check.
	Append(ctx context.Context, evtType string, payload any, id string) (domain.Event, error)
	// Query returns events ordered by timestamp ascending, insertion order
	// breaking ties.
	Query(ctx context.Context, f Filter) ([]domain.Event, error)
}

// SQLStore persists events in the event_log table.
type SQLStore struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db, Now: time.Now}
}

func (s *SQLStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SQLStore) Append(ctx context.Context, evtType string, payload any, id string) (domain.Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal %s payload: %w", evtType, err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	ts := s.now().UTC().Truncate(time.Second)
	res, err := s.DB.ExecContext(ctx, `INSERT INTO event_log(id,ts,type,payload_json) VALUES (?,?,?,?)`,
		id, ts.Format(tsFormat), evtType, string(data))
	if err != nil {
		return domain.Event{}, fmt.Errorf("append %s event: %w", evtType, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{ID: id, Seq: seq, TS: ts, Type: evtType, Payload: data}, nil
}

func (s *SQLStore) Query(ctx context.Context, f Filter) ([]domain.Event, error) {
	var (
		conds []string
		args  []any
	)
	if len(f.Types) > 0 {
		conds = append(conds, `type IN (?`+strings.Repeat(",?", len(f.Types)-1)+`)`)
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if f.After != nil {
		conds = append(conds, `ts > ?`)
		args = append(args, f.After.UTC().Format(tsFormat))
	}
	if f.From != nil {
		conds = append(conds, `ts >= ?`)
		args = append(args, f.From.UTC().Format(tsFormat))
	}
	if f.To != nil {
		conds = append(conds, `ts < ?`)
		args = append(args, f.To.UTC().Format(tsFormat))
	}
	q := `SELECT seq,id,ts,type,payload_json FROM event_log`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY ts, seq`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			ts      string
			payload string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &ts, &e.Type, &payload); err != nil {
			return nil, err
		}
		e.TS, err = time.Parse(tsFormat, ts)
		if err != nil {
			return nil, fmt.Errorf("parse event %s timestamp: %w", e.ID, err)
		}
		e.Payload = json.RawMessage(payload)
		res = append(res, e)
	}
	return res, rows.Err()
}
