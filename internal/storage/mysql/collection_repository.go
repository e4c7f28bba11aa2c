package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	xerrors "NFTScout/internal/errors"
)

// ErrNotFound 表示请求的集合记录不存在。
var ErrNotFound = xerrors.New(xerrors.CodeNotFound, "集合记录不存在")

// CollectionRecord 表示一条已持久化的集合记录。
type CollectionRecord struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
}

// CollectionRepository 抽象集合记录的持久化接口。
// Save 不做去重：同一载荷保存两次会得到两个不同的标识。
type CollectionRepository interface {
	Save(ctx context.Context, data json.RawMessage) (string, error)
	Get(ctx context.Context, id string) (*CollectionRecord, error)
}

// MemoryCollectionRepository 把集合记录保存在内存里，供测试和单机部署使用。
type MemoryCollectionRepository struct {
	mu      sync.RWMutex
	records map[string]CollectionRecord
}

// NewMemoryCollectionRepository 创建内存集合仓库。
func NewMemoryCollectionRepository() *MemoryCollectionRepository {
	return &MemoryCollectionRepository{records: make(map[string]CollectionRecord)}
}

// Save 生成新标识并保存记录。
func (m *MemoryCollectionRepository) Save(_ context.Context, data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "集合载荷不能为空")
	}
	id := uuid.NewString()
	stored := make(json.RawMessage, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = CollectionRecord{ID: id, Data: stored, CreatedAt: time.Now().UTC()}
	return id, nil
}

// Get 按标识查询记录。
func (m *MemoryCollectionRepository) Get(_ context.Context, id string) (*CollectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := record
	out.Data = make(json.RawMessage, len(record.Data))
	copy(out.Data, record.Data)
	return &out, nil
}

// Len 返回已保存的记录数。
func (m *MemoryCollectionRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// SQLCollectionRepository 使用真实的 MySQL 数据库存储集合记录。
type SQLCollectionRepository struct {
	db *sql.DB
}

// NewSQLCollectionRepository 创建连接池并执行待应用的迁移。
func NewSQLCollectionRepository(ctx context.Context, cfg Config) (*SQLCollectionRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLCollectionRepository{db: db}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Save 以新生成的 UUID 作为主键写入记录。
func (s *SQLCollectionRepository) Save(ctx context.Context, data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "集合载荷不能为空")
	}
	id := uuid.NewString()
	const stmt = `INSERT INTO collections (id, data, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt, id, []byte(data), time.Now().UTC()); err != nil {
		return "", xerrors.Wrap(xerrors.CodePersistence, err, "写入集合记录失败")
	}
	return id, nil
}

// Get 按标识查询记录。
func (s *SQLCollectionRepository) Get(ctx context.Context, id string) (*CollectionRecord, error) {
	const query = `SELECT id, data, created_at FROM collections WHERE id = ?`
	var record CollectionRecord
	var data []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&record.ID, &data, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询集合记录失败: %w", err)
	}
	record.Data = json.RawMessage(data)
	return &record, nil
}

// DB 暴露底层连接池，供事件历史等同库组件复用。
func (s *SQLCollectionRepository) DB() *sql.DB {
	return s.db
}

// Close 关闭底层数据库连接。
func (s *SQLCollectionRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
