package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/storage"
	"github.com/goodtune/permashift/internal/timeshift"
)

type memoryStore struct {
	events []storage.SessionEvent
	active *storage.ActiveSession

	failAppend bool
	failSave   bool
}

func (m *memoryStore) AppendEvent(ctx context.Context, ev storage.SessionEvent) error {
	if m.failAppend {
		return errors.New("store down")
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryStore) ListEvents(ctx context.Context, date string) ([]storage.SessionEvent, error) {
	var out []storage.SessionEvent
	for _, ev := range m.events {
		if ev.At.Format("2006-01-02") == date {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	kept := m.events[:0]
	deleted := 0
	for _, ev := range m.events {
		if ev.At.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	m.events = kept
	return deleted, nil
}

func (m *memoryStore) SaveActive(ctx context.Context, s storage.ActiveSession) error {
	if m.failSave {
		return errors.New("store down")
	}
	m.active = &s
	return nil
}

func (m *memoryStore) GetActive(ctx context.Context) (*storage.ActiveSession, error) {
	if m.active == nil {
		return nil, storage.ErrNotFound
	}
	return m.active, nil
}

func (m *memoryStore) ClearActive(ctx context.Context) error {
	m.active = nil
	return nil
}

func testJournal(store *memoryStore) (*Journal, *timeshift.TestClock) {
	clock := &timeshift.TestClock{Current: time.Date(2026, 3, 14, 23, 35, 0, 0, time.UTC)}
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return New(store, clock, logger), clock
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	store := &memoryStore{}
	j, clock := testJournal(store)

	j.Record(storage.SessionEvent{Kind: storage.EventStarted, ChannelNumber: 1})

	if len(store.events) != 1 {
		t.Fatalf("events = %d, want 1", len(store.events))
	}
	ev := store.events[0]
	if ev.ID == "" {
		t.Error("Record must assign an ID")
	}
	if !ev.At.Equal(clock.Now()) {
		t.Errorf("At = %v, want %v", ev.At, clock.Now())
	}
}

func TestRecordKeepsExplicitFields(t *testing.T) {
	store := &memoryStore{}
	j, _ := testJournal(store)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.Record(storage.SessionEvent{ID: "fixed", At: at, Kind: storage.EventStopped})

	ev := store.events[0]
	if ev.ID != "fixed" || !ev.At.Equal(at) {
		t.Errorf("event = %+v, explicit fields must survive", ev)
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &memoryStore{failAppend: true}
	j, _ := testJournal(store)

	// Must not panic or block; the event is dropped.
	j.Record(storage.SessionEvent{Kind: storage.EventStarted})
	if len(store.events) != 0 {
		t.Errorf("events = %+v", store.events)
	}
}

func TestActiveSessionLifecycle(t *testing.T) {
	store := &memoryStore{}
	j, _ := testJournal(store)

	j.SaveActive(storage.ActiveSession{TimerID: 3, ChannelNumber: 1})
	if store.active == nil || store.active.TimerID != 3 {
		t.Fatalf("active = %+v", store.active)
	}

	recovered, err := j.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if recovered == nil || recovered.TimerID != 3 {
		t.Errorf("recovered = %+v", recovered)
	}

	j.ClearActive()
	recovered, err = j.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if recovered != nil {
		t.Errorf("recovered = %+v, want nil after clear", recovered)
	}
}

func TestSaveActiveSwallowsStoreFailure(t *testing.T) {
	store := &memoryStore{failSave: true}
	j, _ := testJournal(store)

	j.SaveActive(storage.ActiveSession{TimerID: 3})
	if store.active != nil {
		t.Errorf("active = %+v", store.active)
	}
}

func TestCleanerPerformCleanup(t *testing.T) {
	store := &memoryStore{}
	now := time.Now()
	store.events = []storage.SessionEvent{
		{ID: "old", At: now.AddDate(0, 0, -120)},
		{ID: "fresh", At: now.AddDate(0, 0, -1)},
	}

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	c, err := NewCleaner(store, 90, "04:00", logger)
	if err != nil {
		t.Fatalf("NewCleaner: %v", err)
	}

	c.performCleanup()
	if len(store.events) != 1 || store.events[0].ID != "fresh" {
		t.Errorf("events = %+v, retention must keep only fresh entries", store.events)
	}
}

func TestCleanerRejectsBadTime(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	if _, err := NewCleaner(&memoryStore{}, 90, "late", logger); err == nil {
		t.Error("NewCleaner accepted a malformed cleanup time")
	}
}

func TestCleanerNextCleanupIsInFuture(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	c, err := NewCleaner(&memoryStore{}, 90, "04:00", logger)
	if err != nil {
		t.Fatalf("NewCleaner: %v", err)
	}

	next := c.calculateNextCleanup()
	if !next.After(time.Now()) {
		t.Errorf("next cleanup %v is not in the future", next)
	}
	if next.Hour() != 4 || next.Minute() != 0 {
		t.Errorf("next cleanup %v not at 04:00", next)
	}
}
