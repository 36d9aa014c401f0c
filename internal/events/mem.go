package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"workobs/internal/domain"
)

// MemStore is an in-memory Store with the same ordering and filter
// semantics as SQLStore. Used by engine tests and by anything that wants a
// throwaway log.
type MemStore struct {
	Now func() time.Time

	mu     sync.Mutex
	events []domain.Event
	seq    int64
}

func NewMemStore() *MemStore {
	return &MemStore{Now: time.Now}
}

func (s *MemStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemStore) Append(_ context.Context, evtType string, payload any, id string) (domain.Event, error) {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e := domain.Event{
		ID:      id,
		Seq:     s.seq,
		TS:      s.now().UTC().Truncate(time.Second),
		Type:    evtType,
		Payload: data,
	}
	s.events = append(s.events, e)
	return e, nil
}

func (s *MemStore) Query(_ context.Context, f Filter) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Event
	for _, e := range s.events {
		if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
			continue
		}
		if f.After != nil && !e.TS.After(*f.After) {
			continue
		}
		if f.From != nil && e.TS.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.TS.Before(*f.To) {
			continue
		}
		res = append(res, e)
	}
	// Stable sort keeps insertion order within a timestamp tie.
	sort.SliceStable(res, func(i, j int) bool { return res[i].TS.Before(res[j].TS) })
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func containsType(types []string, t string) bool {
	for _, c := range types {
		if c == t {
			return true
		}
	}
	return false
}
