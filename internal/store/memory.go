package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rbright/rehearse/internal/interview"
)

// Memory keeps records in process memory.
type Memory struct {
	mu       sync.RWMutex
	records  map[string]interview.Record
	feedback map[string]json.RawMessage
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string]interview.Record),
		feedback: make(map[string]json.RawMessage),
	}
}

func (m *Memory) Save(ctx context.Context, record interview.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(record.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = cloneRecord(record)
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (interview.Record, error) {
	if err := ValidateID(id); err != nil {
		return interview.Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return interview.Record{}, ErrNotFound
	}
	return cloneRecord(record), nil
}

func (m *Memory) List(context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Summary, 0, len(m.records))
	for id, record := range m.records {
		_, has := m.feedback[id]
		out = append(out, summarize(record, has))
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) SaveFeedback(ctx context.Context, id string, report json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	m.feedback[id] = append(json.RawMessage(nil), report...)
	return nil
}

func (m *Memory) LoadFeedback(_ context.Context, id string) (json.RawMessage, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.feedback[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), report...), nil
}

func (m *Memory) Close() error { return nil }

func cloneRecord(r interview.Record) interview.Record {
	r.Questions = append(make([]interview.Question, 0, len(r.Questions)), r.Questions...)
	r.Responses = append(make([]interview.Response, 0, len(r.Responses)), r.Responses...)
	return r
}
