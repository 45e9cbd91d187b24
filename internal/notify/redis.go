package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/traveldata/hotel-exporter/internal/model"
)

const completedChannel = "hotel_exporter:export_completed"

// RedisNotifier publishes completion events for the notification service to
// deliver. Delivery itself is not this service's concern.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(addr, password string, db int) *RedisNotifier {
	return &RedisNotifier{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

type completedEvent struct {
	UserID     int64            `json:"user_id"`
	JobID      string           `json:"job_id"`
	ExportType model.ExportType `json:"export_type"`
	FilePath   string           `json:"file_path"`
}

func (n *RedisNotifier) ExportCompleted(ctx context.Context, userID int64, jobID string, exportType model.ExportType, filePath string) error {
	payload, err := json.Marshal(completedEvent{
		UserID:     userID,
		JobID:      jobID,
		ExportType: exportType,
		FilePath:   filePath,
	})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, completedChannel, payload).Err()
}
