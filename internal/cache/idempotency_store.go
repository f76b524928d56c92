package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "cfl:idem:"

// 幂等记录状态
const (
	StatePending   = "PENDING"
	StateCompleted = "COMPLETED"
)

// StoredResponse 已完成请求的响应，用于重放
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyRecord 一个幂等键对应的记录
type IdempotencyRecord struct {
	Key         string          `json:"key"`
	Fingerprint string          `json:"fingerprint"` // 请求指纹（方法+路径+调用方+请求体摘要）
	State       string          `json:"state"`
	Response    *StoredResponse `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IdempotencyStore 基于 redis 的幂等存储
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore 创建幂等存储，ttl 为记录保留时长
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve 占用幂等键，键已存在时返回 false
func (s *IdempotencyStore) Reserve(ctx context.Context, key, fingerprint string) (bool, error) {
	raw, err := encodeRecord(IdempotencyRecord{
		Key:         key,
		Fingerprint: fingerprint,
		State:       StatePending,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	ok, err := s.client.SetNX(ctx, idempotencyKey(key), raw, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Get 读取幂等记录，不存在时返回 nil
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return decodeRecord(raw)
}

// Complete 保存响应，保留原有过期时间
func (s *IdempotencyStore) Complete(ctx context.Context, key, fingerprint string, resp StoredResponse) error {
	raw, err := encodeRecord(IdempotencyRecord{
		Key:         key,
		Fingerprint: fingerprint,
		State:       StateCompleted,
		Response:    &resp,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.client.SetArgs(ctx, idempotencyKey(key), raw, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release 释放未完成的幂等键，允许客户端重试
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func idempotencyKey(key string) string {
	return idempotencyPrefix + key
}

func encodeRecord(rec IdempotencyRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode idempotency record: %w", err)
	}
	return raw, nil
}

func decodeRecord(raw []byte) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}
