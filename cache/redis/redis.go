package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zlnvch/notes/cache"
)

type RedisNotesCache struct {
	client redis.UniversalClient
}

func NewRedisNotesCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisNotesCache, error) {
	opts := &redis.Options{Addr: redisEndpoint}
	if !devMode {
		// AWS elasticache endpoints require TLS
		opts.TLSConfig = &tls.Config{}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisNotesCache{client: client}, nil
}

func (redisCache *RedisNotesCache) Publish(ctx context.Context, channel string, message []byte) error {
	return redisCache.client.Publish(ctx, channel, message).Err()
}

func (redisCache *RedisNotesCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Hash tags keep a user's keys in one cluster slot so pipelines stay valid.
func buildNotesKey(userId string) string {
	return "notes:{" + userId + "}"
}

func buildNotesDataKey(userId string) string {
	return "notes:{" + userId + "}:data"
}

func buildNotesCompleteKey(userId string) string {
	return "notes:{" + userId + "}:complete"
}

func buildNoteCountKey(userId string) string {
	return "user:{" + userId + "}:note_count"
}

const cacheTTL = 10 * time.Minute

// A user's notes are split over two structures:
//   - ZSet "notes:{uid}": note ids scored by creation time, for ordering and
//     O(log n) removal by id.
//   - Hash "notes:{uid}:data": note id -> JSON, fetched with HMGET.
//
// The ":complete" flag marks that the ZSet holds every stored note. Without
// it the set may hold only recently written notes and readers go to the store.
func (redisCache *RedisNotesCache) refreshTTL(ctx context.Context, pipe redis.Pipeliner, userId string) {
	pipe.Expire(ctx, buildNotesCompleteKey(userId), cacheTTL)
	pipe.Expire(ctx, buildNotesKey(userId), cacheTTL)
	pipe.Expire(ctx, buildNotesDataKey(userId), cacheTTL)
}

func (redisCache *RedisNotesCache) AddNote(ctx context.Context, userId string, noteId string, score int64, noteData []byte) error {
	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, buildNotesKey(userId), redis.Z{Score: float64(score), Member: noteId})
	pipe.HSet(ctx, buildNotesDataKey(userId), noteId, noteData)
	redisCache.refreshTTL(ctx, pipe, userId)
	_, err := pipe.Exec(ctx)
	return err
}

// AddNotesBatch backfills the cache from the store and marks it complete.
// Members are only added, so a note written concurrently is not lost.
func (redisCache *RedisNotesCache) AddNotesBatch(ctx context.Context, userId string, notes []cache.NoteCacheItem) error {
	pipe := redisCache.client.Pipeline()

	if len(notes) > 0 {
		zMembers := make([]redis.Z, len(notes))
		hValues := make([]interface{}, 0, len(notes)*2)
		for i, n := range notes {
			zMembers[i] = redis.Z{Score: float64(n.Score), Member: n.NoteId}
			hValues = append(hValues, n.NoteId, n.Data)
		}
		pipe.ZAdd(ctx, buildNotesKey(userId), zMembers...)
		pipe.HSet(ctx, buildNotesDataKey(userId), hValues...)
	}

	pipe.Set(ctx, buildNotesCompleteKey(userId), "true", cacheTTL)
	redisCache.refreshTTL(ctx, pipe, userId)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisNotesCache) RemoveNote(ctx context.Context, userId string, noteId string) error {
	pipe := redisCache.client.Pipeline()
	pipe.ZRem(ctx, buildNotesKey(userId), noteId)
	pipe.HDel(ctx, buildNotesDataKey(userId), noteId)
	redisCache.refreshTTL(ctx, pipe, userId)
	_, err := pipe.Exec(ctx)
	return err
}

// GetNotes returns the cached notes oldest first.
func (redisCache *RedisNotesCache) GetNotes(ctx context.Context, userId string) ([][]byte, error) {
	ids, err := redisCache.client.ZRange(ctx, buildNotesKey(userId), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return [][]byte{}, nil
	}

	dataList, err := redisCache.client.HMGet(ctx, buildNotesDataKey(userId), ids...).Result()
	if err != nil {
		return nil, err
	}

	notes := make([][]byte, 0, len(ids))
	for _, item := range dataList {
		if s, ok := item.(string); ok {
			notes = append(notes, []byte(s))
		}
	}

	pipe := redisCache.client.Pipeline()
	redisCache.refreshTTL(ctx, pipe, userId)
	_, _ = pipe.Exec(ctx)

	return notes, nil
}

func (redisCache *RedisNotesCache) IsNotesComplete(ctx context.Context, userId string) (bool, error) {
	val, err := redisCache.client.Get(ctx, buildNotesCompleteKey(userId)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "true", nil
}

func (redisCache *RedisNotesCache) InvalidateNotes(ctx context.Context, userIds []string) error {
	if len(userIds) == 0 {
		return nil
	}

	pipe := redisCache.client.Pipeline()
	for _, userId := range userIds {
		pipe.Del(ctx, buildNotesCompleteKey(userId), buildNotesKey(userId), buildNotesDataKey(userId), buildNoteCountKey(userId))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisNotesCache) IncrementUserNoteCount(ctx context.Context, userId string) (int64, error) {
	key := buildNoteCountKey(userId)
	count, err := redisCache.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	redisCache.client.Expire(ctx, key, cacheTTL)
	return count, nil
}

func (redisCache *RedisNotesCache) DecrementUserNoteCount(ctx context.Context, userId string) error {
	key := buildNoteCountKey(userId)
	if err := redisCache.client.Decr(ctx, key).Err(); err != nil {
		return err
	}
	redisCache.client.Expire(ctx, key, cacheTTL)
	return nil
}

func (redisCache *RedisNotesCache) SeedUserNoteCount(ctx context.Context, userId string, count int) error {
	return redisCache.client.SetNX(ctx, buildNoteCountKey(userId), count, cacheTTL).Err()
}

// GetUserNoteCount returns -1 when the counter is not cached.
func (redisCache *RedisNotesCache) GetUserNoteCount(ctx context.Context, userId string) (int, error) {
	val, err := redisCache.client.Get(ctx, buildNoteCountKey(userId)).Int()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}
