package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each user's sales in one hash keyed by sale ID, JSON
// values. Chosen over per-sale keys so List stays a single round trip.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "sales:"}, nil
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Create(ctx context.Context, sale SaleItem) error {
	data, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}
	return s.client.HSet(ctx, s.key(sale.UserID), sale.ID, data).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID, saleID string) (SaleItem, error) {
	val, err := s.client.HGet(ctx, s.key(userID), saleID).Result()
	if err == redis.Nil {
		return SaleItem{}, ErrSaleNotFound
	}
	if err != nil {
		return SaleItem{}, err
	}
	var sale SaleItem
	if err := json.Unmarshal([]byte(val), &sale); err != nil {
		return SaleItem{}, fmt.Errorf("unmarshal sale: %w", err)
	}
	return sale, nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]SaleItem, error) {
	vals, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]SaleItem, 0, len(vals))
	for _, val := range vals {
		var sale SaleItem
		if err := json.Unmarshal([]byte(val), &sale); err != nil {
			return nil, fmt.Errorf("unmarshal sale: %w", err)
		}
		out = append(out, sale)
	}
	sortSales(out)
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, sale SaleItem) error {
	exists, err := s.client.HExists(ctx, s.key(sale.UserID), sale.ID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return ErrSaleNotFound
	}
	data, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}
	return s.client.HSet(ctx, s.key(sale.UserID), sale.ID, data).Err()
}

func (s *RedisStore) Delete(ctx context.Context, userID, saleID string) error {
	removed, err := s.client.HDel(ctx, s.key(userID), saleID).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrSaleNotFound
	}
	return nil
}
