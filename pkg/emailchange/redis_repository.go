package emailchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisSelectorPrefix    = "email_change_selector_"
	redisAccountPrefix     = "email_change_user_"
	redisOldSelectorPrefix = "email_change_old_selector_"
	redisIndexKey          = "email_change_index"

	// Records outlive their expiry by this much so expired access can still be reported.
	redisTTLBuffer = time.Hour
)

var redisKeySanitizer = strings.NewReplacer(`\`, "_", ":", "_")

// RedisEmailChangeRepository keeps requests in Redis with a TTL. A set of selectors
// is kept under email_change_index so expired records can be counted and purged.
type RedisEmailChangeRepository struct {
	client *redis.Client
	lookup AccountLookup
	prefix string
	now    func() time.Time
}

// NewRedisEmailChangeRepository creates a new Redis backed repository. prefix namespaces
// every key and may be empty.
func NewRedisEmailChangeRepository(client *redis.Client, lookup AccountLookup, prefix string) *RedisEmailChangeRepository {
	return &RedisEmailChangeRepository{
		client: client,
		lookup: lookup,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RedisEmailChangeRepository) formatKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisEmailChangeRepository) selectorKey(selector string) string {
	return r.formatKey(redisSelectorPrefix + selector)
}

func (r *RedisEmailChangeRepository) accountKey(accountIdentifier string) string {
	return r.formatKey(redisAccountPrefix + redisKeySanitizer.Replace(accountIdentifier))
}

func (r *RedisEmailChangeRepository) oldSelectorKey(selector string) string {
	return r.formatKey(redisOldSelectorPrefix + selector)
}

func (r *RedisEmailChangeRepository) indexKey() string {
	return r.formatKey(redisIndexKey)
}

func (r *RedisEmailChangeRepository) ttl(request *EmailChangeRequest) time.Duration {
	ttl := request.ExpiresAt.Sub(r.now()) + redisTTLBuffer
	if ttl < redisTTLBuffer {
		return redisTTLBuffer
	}
	return ttl
}

func (r *RedisEmailChangeRepository) FindBySelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	value, err := r.client.Get(ctx, r.selectorKey(selector)).Result()
	if err == redis.Nil {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		slog.Error("Failed to get email change request", "selector", selector, "error", err)
		return nil, fmt.Errorf("failed to get email change request: %w", err)
	}

	var request EmailChangeRequest
	if err := json.Unmarshal([]byte(value), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal email change request: %w", err)
	}
	return &request, nil
}

func (r *RedisEmailChangeRepository) FindByAccount(ctx context.Context, accountIdentifier string) (*EmailChangeRequest, error) {
	return r.findByPointer(ctx, r.accountKey(accountIdentifier))
}

func (r *RedisEmailChangeRepository) FindByOldEmailSelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	return r.findByPointer(ctx, r.oldSelectorKey(selector))
}

func (r *RedisEmailChangeRepository) findByPointer(ctx context.Context, key string) (*EmailChangeRequest, error) {
	selector, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email change pointer: %w", err)
	}
	return r.FindBySelector(ctx, selector)
}

// Save writes the record and its secondary keys in one transaction. A different
// request already stored for the account is removed.
func (r *RedisEmailChangeRepository) Save(ctx context.Context, request *EmailChangeRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal email change request: %w", err)
	}

	previous, err := r.FindByAccount(ctx, request.AccountIdentifier)
	if err != nil && !errors.Is(err, ErrRequestNotFound) {
		return err
	}

	ttl := r.ttl(request)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != nil && previous.Selector != request.Selector {
			r.queueDelete(ctx, pipe, previous)
		}
		pipe.Set(ctx, r.selectorKey(request.Selector), data, ttl)
		pipe.Set(ctx, r.accountKey(request.AccountIdentifier), request.Selector, ttl)
		if request.OldEmailSelector != "" {
			pipe.Set(ctx, r.oldSelectorKey(request.OldEmailSelector), request.Selector, ttl)
		}
		pipe.SAdd(ctx, r.indexKey(), request.Selector)
		return nil
	})
	if err != nil {
		slog.Error("Failed to save email change request", "account", request.AccountIdentifier, "error", err)
		return fmt.Errorf("failed to save email change request: %w", err)
	}
	return nil
}

func (r *RedisEmailChangeRepository) Delete(ctx context.Context, request *EmailChangeRequest) error {
	current, err := r.client.Get(ctx, r.accountKey(request.AccountIdentifier)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to get email change pointer: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.selectorKey(request.Selector))
		if current == request.Selector {
			pipe.Del(ctx, r.accountKey(request.AccountIdentifier))
		}
		if request.OldEmailSelector != "" {
			pipe.Del(ctx, r.oldSelectorKey(request.OldEmailSelector))
		}
		pipe.SRem(ctx, r.indexKey(), request.Selector)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete email change request: %w", err)
	}
	return nil
}

func (r *RedisEmailChangeRepository) queueDelete(ctx context.Context, pipe redis.Pipeliner, request *EmailChangeRequest) {
	pipe.Del(ctx, r.selectorKey(request.Selector))
	if request.OldEmailSelector != "" {
		pipe.Del(ctx, r.oldSelectorKey(request.OldEmailSelector))
	}
	pipe.SRem(ctx, r.indexKey(), request.Selector)
}

func (r *RedisEmailChangeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	expired, err := r.scanExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, request := range expired {
		if err := r.Delete(ctx, request); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (r *RedisEmailChangeRepository) CountExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	expired, err := r.scanExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return int64(len(expired)), nil
}

// scanExpired walks the index, dropping selectors whose record is already gone
func (r *RedisEmailChangeRepository) scanExpired(ctx context.Context, cutoff time.Time) ([]*EmailChangeRequest, error) {
	selectors, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read email change index: %w", err)
	}

	var expired []*EmailChangeRequest
	for _, selector := range selectors {
		request, err := r.FindBySelector(ctx, selector)
		if errors.Is(err, ErrRequestNotFound) {
			if err := r.client.SRem(ctx, r.indexKey(), selector).Err(); err != nil {
				return nil, fmt.Errorf("failed to clean email change index: %w", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if request.IsExpired(cutoff) {
			expired = append(expired, request)
		}
	}
	return expired, nil
}

func (r *RedisEmailChangeRepository) GetAccount(ctx context.Context, request *EmailChangeRequest) (Account, error) {
	return lookupAccount(ctx, r.lookup, request)
}
