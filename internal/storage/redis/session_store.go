package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/permashift/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	journalKeyPrefix = "permashift:journal:"
	activeSessionKey = "permashift:session:active"

	// Journal day keys expire on their own as a safety net; the retention
	// cleaner usually gets there first.
	journalKeyTTL = 180 * 24 * time.Hour
)

type sessionStore struct {
	client *redis.Client
}

// AppendEvent appends a journal entry to its day's list
func (s *sessionStore) AppendEvent(ctx context.Context, ev storage.SessionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}

	key := journalKeyPrefix + ev.At.Format("2006-01-02")

	// Push and refresh the TTL in one round trip
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, journalKeyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// ListEvents returns all journal entries for a date, oldest first
func (s *sessionStore) ListEvents(ctx context.Context, date string) ([]storage.SessionEvent, error) {
	key := journalKeyPrefix + date

	items, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]storage.SessionEvent, 0, len(items))
	for _, item := range items {
		var ev storage.SessionEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

// DeleteEventsBefore drops whole day lists older than the cutoff date
func (s *sessionStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffDate := cutoff.Format("2006-01-02")

	var cursor uint64
	var deletedCount int

	for {
		var keys []string
		var err error
		keys, cursor, err = s.client.Scan(ctx, cursor, journalKeyPrefix+"*", 100).Result()
		if err != nil {
			return deletedCount, err
		}

		toDelete := make([]string, 0)
		for _, key := range keys {
			date := strings.TrimPrefix(key, journalKeyPrefix)
			if date < cutoffDate {
				toDelete = append(toDelete, key)
			}
		}

		if len(toDelete) > 0 {
			// Count entries before dropping the lists
			pipe := s.client.Pipeline()
			cmds := make([]*redis.IntCmd, len(toDelete))
			for i, key := range toDelete {
				cmds[i] = pipe.LLen(ctx, key)
			}
			if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
				return deletedCount, err
			}
			for _, cmd := range cmds {
				deletedCount += int(cmd.Val())
			}

			if err := s.client.Del(ctx, toDelete...).Err(); err != nil {
				return deletedCount, err
			}
		}

		if cursor == 0 {
			break
		}
	}

	return deletedCount, nil
}

// SaveActive persists the active session record, replacing any previous one
func (s *sessionStore) SaveActive(ctx context.Context, sess storage.ActiveSession) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, activeSessionKey)
	pipe.HSet(ctx, activeSessionKey, map[string]interface{}{
		"timer_id":       sess.TimerID,
		"channel_number": sess.ChannelNumber,
		"file_name":      sess.FileName,
		"started_at":     sess.StartedAt.Format(time.RFC3339Nano),
	})
	_, err := pipe.Exec(ctx)
	return err
}

// GetActive retrieves the persisted active session
func (s *sessionStore) GetActive(ctx context.Context) (*storage.ActiveSession, error) {
	data, err := s.client.HGetAll(ctx, activeSessionKey).Result()
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	return parseActiveSession(data)
}

// ClearActive removes the persisted active session
func (s *sessionStore) ClearActive(ctx context.Context) error {
	return s.client.Del(ctx, activeSessionKey).Err()
}
