package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"NFTScout/internal/stream"
)

// SQLSink 把非瞬态事件写入 MySQL 的 session_events 表。
type SQLSink struct {
	db *sql.DB
}

// NewSQLSink 基于已有连接池创建 SQL 事件历史。
func NewSQLSink(db *sql.DB) (*SQLSink, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}
	return &SQLSink{db: db}, nil
}

// Append 插入一条事件记录。
func (s *SQLSink) Append(event stream.Event) error {
	if s == nil || s.db == nil {
		return errors.New("SQL 事件历史未初始化")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `INSERT INTO session_events (session_id, kind, payload, emitted_at) VALUES (?, ?, ?, ?)`
	payload := []byte(event.Payload)
	if payload == nil {
		payload = []byte("null")
	}
	if _, err := s.db.ExecContext(ctx, query, event.SessionID, string(event.Kind), payload, event.EmittedAt); err != nil {
		return fmt.Errorf("写入事件记录失败: %w", err)
	}
	return nil
}
