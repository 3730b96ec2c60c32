package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDedupe はwebhookイベントIDの先行チェック用キャッシュ。
// あくまで高速パスで、最終的な冪等性はDBの条件付き更新が守る。
type EventDedupe struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEventDedupe はaddrが空ならnilを返す（呼び出し側でnil許容）。
func NewEventDedupe(addr string, ttl time.Duration) *EventDedupe {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventDedupe{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

// MarkProcessed はイベントIDを初見なら記録して true を返す。
// 既に処理済みなら false。redisが落ちていたら初見扱い（DB側で防ぐ）。
func (d *EventDedupe) MarkProcessed(ctx context.Context, eventID string) bool {
	if d == nil || eventID == "" {
		return true
	}
	ok, err := d.rdb.SetNX(ctx, "webhook:event:"+eventID, 1, d.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Forget は記録済みのイベントIDを取り消す。DB反映に失敗したとき、
// プロバイダの再送を高速パスで落とさないために呼ぶ。
func (d *EventDedupe) Forget(ctx context.Context, eventID string) {
	if d == nil || eventID == "" {
		return
	}
	_ = d.rdb.Del(ctx, "webhook:event:"+eventID).Err()
}

func (d *EventDedupe) Close() error {
	if d == nil {
		return nil
	}
	return d.rdb.Close()
}
