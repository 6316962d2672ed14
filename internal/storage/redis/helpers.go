package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/permashift/internal/storage"
)

// parseActiveSession converts a Redis hash to ActiveSession
func parseActiveSession(data map[string]string) (*storage.ActiveSession, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	timerID, err := strconv.Atoi(data["timer_id"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse timer_id: %w", err)
	}

	channelNumber, err := strconv.Atoi(data["channel_number"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel_number: %w", err)
	}

	startedAt, err := time.Parse(time.RFC3339Nano, data["started_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	return &storage.ActiveSession{
		TimerID:       timerID,
		ChannelNumber: channelNumber,
		FileName:      data["file_name"],
		StartedAt:     startedAt,
	}, nil
}
