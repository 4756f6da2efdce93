package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"vcoin/internal/domain"
)

// Sequencer hands out member numbers. Numbers are unique and strictly
// increasing; they may have gaps when a signup rolls back.
type Sequencer interface {
	Next(ctx context.Context, tx *gorm.DB) (int64, error)
}

// MetadataSequencer increments the next_member_number counter row inside the
// caller's transaction, so concurrent signups serialise on that row.
type MetadataSequencer struct{}

// Next returns the next member number
func (MetadataSequencer) Next(ctx context.Context, tx *gorm.DB) (int64, error) {
	tx = tx.WithContext(ctx)
	res := tx.Model(&domain.Metadata{}).
		Where("meta_key = ?", domain.MetaNextMemberNumber).
		UpdateColumn("meta_counter", gorm.Expr("meta_counter + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		next, err := nextFromUsers(tx)
		if err != nil {
			return 0, err
		}
		row := domain.Metadata{Key: domain.MetaNextMemberNumber, Counter: next + 1, UpdatedAt: time.Now()}
		if err := tx.Create(&row).Error; err != nil {
			return 0, err
		}
		return next, nil
	}
	var row domain.Metadata
	if err := tx.Where("meta_key = ?", domain.MetaNextMemberNumber).First(&row).Error; err != nil {
		return 0, err
	}
	return row.Counter - 1, nil
}

// RedisSequencer uses INCR on a redis key, seeded from the users table on first use
type RedisSequencer struct {
	Client *redis.Client
	Key    string
}

// NewRedisSequencer creates a redis backed sequencer
func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	return &RedisSequencer{Client: client, Key: "seq:member_number"}
}

// Next returns the next member number
func (s *RedisSequencer) Next(ctx context.Context, tx *gorm.DB) (int64, error) {
	exists, err := s.Client.Exists(ctx, s.Key).Result()
	if err != nil {
		return 0, fmt.Errorf("member sequence: %w", err)
	}
	if exists == 0 {
		next, err := nextFromUsers(tx.WithContext(ctx))
		if err != nil {
			return 0, err
		}
		// INCR below returns next
		if err := s.Client.SetNX(ctx, s.Key, strconv.FormatInt(next-1, 10), 0).Err(); err != nil {
			return 0, fmt.Errorf("member sequence: %w", err)
		}
	}
	n, err := s.Client.Incr(ctx, s.Key).Result()
	if err != nil {
		return 0, fmt.Errorf("member sequence: %w", err)
	}
	return n, nil
}

func nextFromUsers(tx *gorm.DB) (int64, error) {
	var maxNumber int64
	if err := tx.Model(&domain.User{}).Select("COALESCE(MAX(member_number), 0)").Scan(&maxNumber).Error; err != nil {
		return 0, err
	}
	return maxNumber + 1, nil
}
