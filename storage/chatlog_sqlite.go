package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"tubechat/core"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteChatLog persists chat records in a local sqlite database.
type SQLiteChatLog struct {
	db *sql.DB
}

func NewSQLiteChatLog(ctx context.Context, dbPath string) (*SQLiteChatLog, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &SQLiteChatLog{db: db}
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SQLiteChatLog) migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		version := migrationVersion(entry.Name())
		if entry.IsDir() || version <= 0 {
			continue
		}
		var applied int
		if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := l.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := l.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion reads the numeric prefix of "001_name.sql".
func migrationVersion(name string) int {
	digits, _, _ := strings.Cut(name, "_")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func (l *SQLiteChatLog) Append(ctx context.Context, role, output string) (core.ChatRecord, error) {
	rec := core.NewChatRecord(role, output)
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO chat_records (role, output, timestamp) VALUES (?, ?, ?)`, rec.Role, rec.Output, rec.Timestamp)
	if err != nil {
		return core.ChatRecord{}, fmt.Errorf("insert chat record: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return core.ChatRecord{}, fmt.Errorf("chat record id: %w", err)
	}
	return rec, nil
}

func (l *SQLiteChatLog) All(ctx context.Context) ([]core.ChatRecord, error) {
	return l.query(ctx, `SELECT id, role, output, timestamp FROM chat_records ORDER BY id ASC`)
}

func (l *SQLiteChatLog) LastN(ctx context.Context, n int) ([]core.ChatRecord, error) {
	if n <= 0 {
		return []core.ChatRecord{}, nil
	}
	return l.query(ctx, `SELECT id, role, output, timestamp FROM (
		SELECT id, role, output, timestamp FROM chat_records ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`, n)
}

func (l *SQLiteChatLog) query(ctx context.Context, q string, args ...any) ([]core.ChatRecord, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat records: %w", err)
	}
	defer rows.Close()

	records := make([]core.ChatRecord, 0)
	for rows.Next() {
		var r core.ChatRecord
		if err := rows.Scan(&r.ID, &r.Role, &r.Output, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (l *SQLiteChatLog) DeleteAll(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM chat_records`); err != nil {
		return fmt.Errorf("delete chat records: %w", err)
	}
	return nil
}

func (l *SQLiteChatLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
