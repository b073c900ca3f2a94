package audit

import (
	"context"
	"fmt"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends audit events to a Redis stream (XADD). The stream is
// append-only by construction, which matches the audit contract; consumers
// downstream read it with consumer groups.
type RedisSink struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
}

func NewRedisSink(client *redis.Client, streamKey string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, streamKey: streamKey, maxLen: maxLen}
}

func (s *RedisSink) Record(ctx context.Context, event domain.AuditEvent) error {
	values := map[string]interface{}{
		"type":      event.Type,
		"camera_id": string(event.CameraID),
		"store_id":  string(event.StoreID),
		"user_id":   string(event.UserID),
		"timestamp": event.Timestamp.UnixMilli(),
	}
	if event.SessionID != "" {
		values["session_id"] = string(event.SessionID)
	}
	if event.Artifact != "" {
		values["artifact"] = event.Artifact
	}
	if event.Reason != "" {
		values["reason"] = event.Reason
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.streamKey,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("audit xadd: %w", err)
	}
	return nil
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ ports.AuditSink = (*RedisSink)(nil)
