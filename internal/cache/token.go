package cache

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"StaffOps/storage/redis"
)

const tokenPrefix = "token"

// RefreshTokens 每个员工只保留最近签发的 refresh token，刷新即轮换
type RefreshTokens struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewRefreshTokens(rdb goredis.Cmdable, ttl time.Duration) *RefreshTokens {
	return &RefreshTokens{rdb: rdb, ttl: ttl}
}

// Key: staffops:token:refresh:{worker_id}
func (r *RefreshTokens) Set(ctx context.Context, workerID, refreshToken string) error {
	return r.rdb.Set(ctx, redis.Key(tokenPrefix, "refresh", workerID), refreshToken, r.ttl).Err()
}

func (r *RefreshTokens) Delete(ctx context.Context, workerID string) error {
	return r.rdb.Del(ctx, redis.Key(tokenPrefix, "refresh", workerID)).Err()
}

// Matches 不存在或不一致都返回 false
func (r *RefreshTokens) Matches(ctx context.Context, workerID, refreshToken string) (bool, error) {
	stored, err := r.rdb.Get(ctx, redis.Key(tokenPrefix, "refresh", workerID)).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == refreshToken, nil
}
