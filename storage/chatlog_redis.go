package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tubechat/core"
)

const (
	redisChatKey = "tubechat:chat_records"
	redisSeqKey  = "tubechat:chat_records:seq"
)

// RedisChatLog keeps records as JSON entries of a Redis list so several
// server instances share one conversation.
type RedisChatLog struct {
	client *redis.Client
}

func NewRedisChatLog(ctx context.Context, addr, password string, db int) (*RedisChatLog, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisChatLog{client: client}, nil
}

func (l *RedisChatLog) Append(ctx context.Context, role, output string) (core.ChatRecord, error) {
	id, err := l.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return core.ChatRecord{}, fmt.Errorf("next chat record id: %w", err)
	}
	rec := core.NewChatRecord(role, output)
	rec.ID = id

	data, err := json.Marshal(rec)
	if err != nil {
		return core.ChatRecord{}, fmt.Errorf("marshal chat record: %w", err)
	}
	if err := l.client.RPush(ctx, redisChatKey, string(data)).Err(); err != nil {
		return core.ChatRecord{}, fmt.Errorf("push chat record: %w", err)
	}
	return rec, nil
}

func (l *RedisChatLog) All(ctx context.Context) ([]core.ChatRecord, error) {
	return l.lrange(ctx, 0, -1)
}

func (l *RedisChatLog) LastN(ctx context.Context, n int) ([]core.ChatRecord, error) {
	if n <= 0 {
		return []core.ChatRecord{}, nil
	}
	return l.lrange(ctx, int64(-n), -1)
}

func (l *RedisChatLog) lrange(ctx context.Context, start, stop int64) ([]core.ChatRecord, error) {
	items, err := l.client.LRange(ctx, redisChatKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat records: %w", err)
	}
	records := make([]core.ChatRecord, 0, len(items))
	for _, item := range items {
		var r core.ChatRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode chat record: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (l *RedisChatLog) DeleteAll(ctx context.Context) error {
	if err := l.client.Del(ctx, redisChatKey, redisSeqKey).Err(); err != nil {
		return fmt.Errorf("delete chat records: %w", err)
	}
	return nil
}

func (l *RedisChatLog) Close() error {
	return l.client.Close()
}
