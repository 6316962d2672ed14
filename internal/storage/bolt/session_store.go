package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/permashift/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) AppendEvent(ctx context.Context, ev storage.SessionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	key, err := eventKey(ev.At)
	if err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = key
	}
	data, err := marshal(ev)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return fmt.Errorf("event bucket missing")
		}
		return bucket.Put([]byte(key), data)
	})
}

func (s *sessionStore) ListEvents(ctx context.Context, date string) ([]storage.SessionEvent, error) {
	prefix := []byte(date + "/")
	events := make([]storage.SessionEvent, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var ev storage.SessionEvent
			if err := unmarshal(v, &ev); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *sessionStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ev storage.SessionEvent
			if err := unmarshal(v, &ev); err != nil {
				return err
			}
			if ev.At.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

func (s *sessionStore) SaveActive(ctx context.Context, sess storage.ActiveSession) error {
	return putBucketValue(ctx, s.db, bucketActive, activeKey, sess)
}

func (s *sessionStore) GetActive(ctx context.Context) (*storage.ActiveSession, error) {
	return getBucketValue[storage.ActiveSession](ctx, s.db, bucketActive, activeKey)
}

func (s *sessionStore) ClearActive(ctx context.Context) error {
	err := deleteBucketValue(ctx, s.db, bucketActive, activeKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
