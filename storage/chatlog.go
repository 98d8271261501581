package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tubechat/core"
)

// ChatLog is the append-only conversation history.
type ChatLog interface {
	Append(ctx context.Context, role, output string) (core.ChatRecord, error)
	All(ctx context.Context) ([]core.ChatRecord, error)
	// LastN returns at most n of the newest records, oldest first.
	LastN(ctx context.Context, n int) ([]core.ChatRecord, error)
	DeleteAll(ctx context.Context) error
	Close() error
}

type ChatLogOptions struct {
	Kind          string // sqlite, redis or memory
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Logger        *slog.Logger
}

func NewChatLog(ctx context.Context, opts ChatLogOptions) (ChatLog, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "chat-log")

	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "sqlite":
		l, err := NewSQLiteChatLog(ctx, opts.Path)
		if err != nil {
			return nil, core.Wrap(core.ErrStorage, "storage", "chat log", "open sqlite", err)
		}
		logger.Info("chat log initialized", "backend", "sqlite", "path", opts.Path)
		return l, nil
	case "redis":
		l, err := NewRedisChatLog(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, core.Wrap(core.ErrStorage, "storage", "chat log", "connect redis", err)
		}
		logger.Info("chat log initialized", "backend", "redis", "addr", opts.RedisAddr)
		return l, nil
	case "memory":
		logger.Info("chat log initialized", "backend", "memory")
		return NewMemoryChatLog(), nil
	default:
		return nil, core.Wrap(core.ErrConfiguration, "storage", "chat log", fmt.Sprintf("unknown chat log %q", opts.Kind), nil)
	}
}

// MemoryChatLog is a process-local ChatLog.
type MemoryChatLog struct {
	mu      sync.Mutex
	records []core.ChatRecord
	seq     int64
}

func NewMemoryChatLog() *MemoryChatLog { return &MemoryChatLog{} }

func (l *MemoryChatLog) Append(_ context.Context, role, output string) (core.ChatRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	rec := core.NewChatRecord(role, output)
	rec.ID = l.seq
	l.records = append(l.records, rec)
	return rec, nil
}

func (l *MemoryChatLog) All(_ context.Context) ([]core.ChatRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.ChatRecord{}, l.records...), nil
}

func (l *MemoryChatLog) LastN(_ context.Context, n int) ([]core.ChatRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 {
		return []core.ChatRecord{}, nil
	}
	start := max(len(l.records)-n, 0)
	return append([]core.ChatRecord{}, l.records[start:]...), nil
}

func (l *MemoryChatLog) DeleteAll(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	return nil
}

func (l *MemoryChatLog) Close() error { return nil }
