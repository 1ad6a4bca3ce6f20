package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"StaffOps/storage/redis"
)

const lockPrefix = "lock"

// 只删除自己持有的锁，避免过期后误删他人的锁
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SETNX 的分布式锁，用于多实例调度器选主
type Locker struct {
	rdb goredis.Cmdable
}

func NewLocker(rdb goredis.Cmdable) *Locker {
	return &Locker{rdb: rdb}
}

// TryLock 成功时返回持有凭证，Unlock 需要带上
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, redis.Key(lockPrefix, name), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Unlock(ctx context.Context, name, token string) error {
	return unlockScript.Run(ctx, l.rdb, []string{redis.Key(lockPrefix, name)}, token).Err()
}
