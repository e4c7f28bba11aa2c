package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"NFTScout/internal/storage/mysql"
	"NFTScout/pkg/logger"
)

const defaultTTL = 10 * time.Minute

// Config 描述集合查询缓存的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedCollectionRepository 在底层仓库之上增加一层 Redis 旁路缓存。
// 缓存故障只记录日志并回落到底层仓库，不影响读写正确性。
type CachedCollectionRepository struct {
	inner  mysql.CollectionRepository
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

type cachedRecord struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewCachedCollectionRepository 创建带缓存的集合仓库。
func NewCachedCollectionRepository(cfg Config, inner mysql.CollectionRepository) (*CachedCollectionRepository, error) {
	if inner == nil {
		return nil, errors.New("底层集合仓库不能为空")
	}
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &CachedCollectionRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    logger.Named("collection-cache"),
	}, nil
}

// Save 写入底层仓库并回填缓存。
func (c *CachedCollectionRepository) Save(ctx context.Context, data json.RawMessage) (string, error) {
	id, err := c.inner.Save(ctx, data)
	if err != nil {
		return "", err
	}
	c.fill(ctx, cachedRecord{ID: id, Data: data, CreatedAt: time.Now().UTC()})
	return id, nil
}

// Get 先查缓存，未命中时回落到底层仓库并回填。
func (c *CachedCollectionRepository) Get(ctx context.Context, id string) (*mysql.CollectionRecord, error) {
	cached, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == nil {
		var record cachedRecord
		if err := json.Unmarshal(cached, &record); err == nil {
			return &mysql.CollectionRecord{ID: record.ID, Data: record.Data, CreatedAt: record.CreatedAt}, nil
		}
		c.log.Warn("缓存内容损坏，已回落到底层仓库", slog.String("collection_id", id))
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("读取缓存失败", slog.String("collection_id", id), slog.String("error", err.Error()))
	}

	record, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, cachedRecord{ID: record.ID, Data: record.Data, CreatedAt: record.CreatedAt})
	return record, nil
}

// Close 关闭 Redis 连接。
func (c *CachedCollectionRepository) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *CachedCollectionRepository) key(id string) string {
	return "nftscout:collections:" + id
}

func (c *CachedCollectionRepository) fill(ctx context.Context, record cachedRecord) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(record.ID), encoded, c.ttl).Err(); err != nil {
		c.log.Warn("写入缓存失败", slog.String("collection_id", record.ID), slog.String("error", err.Error()))
	}
}
