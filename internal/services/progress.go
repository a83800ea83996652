package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quizforge-backend/internal/models"
)

// ProgressPublisher fans pipeline progress out to websocket clients via
// Redis pub/sub. Publishing is best-effort; a nil publisher is a no-op so
// handlers never need to guard calls.
type ProgressPublisher struct {
	redis *redis.Client
}

func NewProgressPublisher(redisClient *redis.Client) *ProgressPublisher {
	return &ProgressPublisher{redis: redisClient}
}

func (p *ProgressPublisher) Publish(ctx context.Context, userID uuid.UUID, update models.ProgressUpdate) {
	if p == nil || p.redis == nil || userID == uuid.Nil {
		return
	}

	data, err := json.Marshal(models.WSMessage{Type: "progress_update", Payload: update})
	if err != nil {
		return
	}
	p.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}

// Stage publishes a named pipeline stage with optional detail.
func (p *ProgressPublisher) Stage(ctx context.Context, userID uuid.UUID, stage, detail string) {
	p.Publish(ctx, userID, models.ProgressUpdate{Stage: stage, Detail: detail})
}

// Download publishes byte-level download progress.
func (p *ProgressPublisher) Download(ctx context.Context, userID uuid.UUID, downloaded, total int64) {
	update := models.ProgressUpdate{
		Stage:           "downloading",
		BytesDownloaded: downloaded,
		TotalBytes:      total,
	}
	if total > 0 {
		update.Percent = float64(downloaded) / float64(total) * 100
	}
	p.Publish(ctx, userID, update)
}
