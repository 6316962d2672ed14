package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/goodtune/permashift/internal/config"
	"github.com/goodtune/permashift/internal/storage"
)

func testStore(t *testing.T) storage.SessionStore {
	t.Helper()
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}
	s, err := Open(config.RedisConfig{
		Host:         mr.Host(),
		Port:         port,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s.Sessions()
}

func at(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestAppendAndListEvents(t *testing.T) {
	sessions := testStore(t)
	ctx := context.Background()

	events := []storage.SessionEvent{
		{ID: "a", At: at(14, 23), Kind: storage.EventStarted, ChannelNumber: 1, TimerID: 3},
		{ID: "b", At: at(14, 23).Add(time.Minute), Kind: storage.EventStopped, Reason: "viewer"},
		{ID: "c", At: at(15, 1), Kind: storage.EventStarted, ChannelNumber: 2},
	}
	for _, ev := range events {
		if err := sessions.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	day14, err := sessions.ListEvents(ctx, "2026-03-14")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(day14) != 2 {
		t.Fatalf("day14 = %d events, want 2", len(day14))
	}
	if day14[0].ID != "a" || day14[1].ID != "b" {
		t.Errorf("events out of append order: %+v", day14)
	}
	if day14[1].Reason != "viewer" {
		t.Errorf("Reason = %q", day14[1].Reason)
	}
}

func TestListEventsEmptyDay(t *testing.T) {
	sessions := testStore(t)

	events, err := sessions.ListEvents(context.Background(), "2026-01-01")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none", events)
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	sessions := testStore(t)
	ctx := context.Background()

	// Two entries on an old day, one on the cutoff day.
	old := []storage.SessionEvent{
		{At: at(10, 12), Kind: storage.EventStarted},
		{At: at(10, 13), Kind: storage.EventStopped},
		{At: at(13, 12), Kind: storage.EventStarted},
	}
	for _, ev := range old {
		if err := sessions.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	deleted, err := sessions.DeleteEventsBefore(ctx, at(13, 0))
	if err != nil {
		t.Fatalf("DeleteEventsBefore: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	kept, err := sessions.ListEvents(ctx, "2026-03-13")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("cutoff day lost: %+v", kept)
	}
}

func TestActiveSessionRoundTrip(t *testing.T) {
	sessions := testStore(t)
	ctx := context.Background()

	if _, err := sessions.GetActive(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetActive on empty store = %v, want %v", err, storage.ErrNotFound)
	}

	sess := storage.ActiveSession{
		TimerID:       3,
		ChannelNumber: 1,
		FileName:      "/video/Pause/2026-03-14.23.35.50.99.rec",
		StartedAt:     at(14, 23),
	}
	if err := sessions.SaveActive(ctx, sess); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}

	got, err := sessions.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if got.TimerID != 3 || got.ChannelNumber != 1 || got.FileName != sess.FileName {
		t.Errorf("GetActive = %+v, want %+v", got, sess)
	}
	if !got.StartedAt.Equal(sess.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, sess.StartedAt)
	}

	// Saving again replaces, not merges.
	sess.FileName = ""
	if err := sessions.SaveActive(ctx, sess); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}
	got, err = sessions.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if got.FileName != "" {
		t.Errorf("FileName = %q, stale field survived the rewrite", got.FileName)
	}

	if err := sessions.ClearActive(ctx); err != nil {
		t.Fatalf("ClearActive: %v", err)
	}
	if _, err := sessions.GetActive(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetActive after clear = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestParseActiveSessionRejectsGarbage(t *testing.T) {
	if _, err := parseActiveSession(map[string]string{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("empty hash = %v, want %v", err, storage.ErrNotFound)
	}
	_, err := parseActiveSession(map[string]string{
		"timer_id":       "x",
		"channel_number": "1",
		"started_at":     at(14, 23).Format(time.RFC3339Nano),
	})
	if err == nil {
		t.Error("malformed timer_id accepted")
	}
}
