package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/lounge/internal/storage"
)

// sessionFields flattens a Session into hash field/value pairs.
func sessionFields(session storage.Session) ([]interface{}, error) {
	orders := session.Orders
	if orders == nil {
		orders = []storage.Order{}
	}
	ordersJSON, err := json.Marshal(orders)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal orders: %w", err)
	}

	fields := []interface{}{
		"id", session.ID,
		"device_name", session.DeviceName,
		"player_count", string(session.PlayerCount),
		"customer_name", session.CustomerName,
		"start_time", session.StartTime.Format(time.RFC3339Nano),
		"is_paused", strconv.FormatBool(session.IsPaused),
		"total_paused_ms", session.TotalPausedDuration.Milliseconds(),
		"payment_status", string(session.PaymentStatus),
		"created_at", session.CreatedAt.Format(time.RFC3339Nano),
		"orders", string(ordersJSON),
	}
	if session.EndTime != nil {
		fields = append(fields, "end_time", session.EndTime.Format(time.RFC3339Nano))
	}
	if session.PauseStartTime != nil {
		fields = append(fields, "pause_start_time", session.PauseStartTime.Format(time.RFC3339Nano))
	}
	return fields, nil
}

// parseSession converts a Redis hash to Session
func parseSession(data map[string]string) (*storage.Session, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	startTime, err := time.Parse(time.RFC3339Nano, data["start_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse start_time: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	endTime, err := parseOptionalTime(data, "end_time")
	if err != nil {
		return nil, err
	}

	pauseStartTime, err := parseOptionalTime(data, "pause_start_time")
	if err != nil {
		return nil, err
	}

	isPaused, err := strconv.ParseBool(data["is_paused"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse is_paused: %w", err)
	}

	pausedMS, err := strconv.ParseInt(data["total_paused_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_paused_ms: %w", err)
	}

	orders := []storage.Order{}
	if raw := data["orders"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &orders); err != nil {
			return nil, fmt.Errorf("failed to parse orders: %w", err)
		}
	}

	return &storage.Session{
		ID:                  data["id"],
		DeviceName:          data["device_name"],
		PlayerCount:         storage.PlayerCount(data["player_count"]),
		CustomerName:        data["customer_name"],
		StartTime:           startTime,
		EndTime:             endTime,
		IsPaused:            isPaused,
		PauseStartTime:      pauseStartTime,
		TotalPausedDuration: time.Duration(pausedMS) * time.Millisecond,
		Orders:              orders,
		PaymentStatus:       storage.PaymentStatus(data["payment_status"]),
		CreatedAt:           createdAt,
	}, nil
}

func parseOptionalTime(data map[string]string, field string) (*time.Time, error) {
	raw, ok := data[field]
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return &t, nil
}

// parseAccessPIN converts a Redis hash to AccessPIN
func parseAccessPIN(data map[string]string) (*storage.AccessPIN, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.AccessPIN{
		Hash:      data["hash"],
		UpdatedAt: updatedAt,
	}, nil
}

// parseAccessAttempts converts a Redis hash to AccessAttempts
func parseAccessAttempts(data map[string]string) (storage.AccessAttempts, error) {
	var attempts storage.AccessAttempts
	if raw := data["failures"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return attempts, fmt.Errorf("failed to parse failures: %w", err)
		}
		attempts.Failures = n
	}
	lockedUntil, err := parseOptionalTime(data, "locked_until")
	if err != nil {
		return attempts, err
	}
	if lockedUntil != nil {
		attempts.LockedUntil = *lockedUntil
	}
	return attempts, nil
}
