package emailchange

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisClient(t *testing.T) *redis.Client {
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	endpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisEmailChangeRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis test in short mode")
	}

	client := setupRedisClient(t)
	ctx := context.Background()

	newRepo := func(t *testing.T, users ...*testUser) EmailChangeRepository {
		require.NoError(t, client.FlushDB(ctx).Err())
		return NewRedisEmailChangeRepository(client, newTestAccounts(users...), "test")
	}

	testRepositoryContract(t, newRepo)

	t.Run("ReplacesRequestForAccount", func(t *testing.T) {
		testReplacesRequestForAccount(t, newRepo(t))
	})

	t.Run("KeysAreNamespacedAndExpire", func(t *testing.T) {
		user := &testUser{id: `a:b\c`, email: "old@x.com"}
		repo := newRepo(t, user)

		request := NewEmailChangeRequest(user, time.Now().Add(30*time.Minute), "selector", "hash", "new@x.com", time.Now())
		require.NoError(t, repo.Save(ctx, request))

		exists, err := client.Exists(ctx, "test:email_change_selector_selector", "test:email_change_user_user__a_b_c").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(2), exists)

		ttl, err := client.TTL(ctx, "test:email_change_selector_selector").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Hour)
		assert.LessOrEqual(t, ttl, 90*time.Minute)

		members, err := client.SMembers(ctx, "test:email_change_index").Result()
		require.NoError(t, err)
		assert.Equal(t, []string{"selector"}, members)
	})

	t.Run("IndexDropsVanishedRecords", func(t *testing.T) {
		user := &testUser{id: "1"}
		repo := newRepo(t, user)

		request := NewEmailChangeRequest(user, time.Now().Add(-time.Hour), "selector", "hash", "new@x.com", time.Now())
		require.NoError(t, repo.Save(ctx, request))
		require.NoError(t, client.Del(ctx, "test:email_change_selector_selector").Err())

		count, err := repo.CountExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, count)

		members, err := client.SMembers(ctx, "test:email_change_index").Result()
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestRedisEmailChangeRepository_Keys(t *testing.T) {
	repo := NewRedisEmailChangeRepository(nil, nil, "")
	assert.Equal(t, "email_change_selector_abc", repo.selectorKey("abc"))
	assert.Equal(t, "email_change_user_user__42", repo.accountKey("user::42"))
	assert.Equal(t, "email_change_old_selector_abc", repo.oldSelectorKey("abc"))
	assert.Equal(t, "email_change_index", repo.indexKey())

	prefixed := NewRedisEmailChangeRepository(nil, nil, "app")
	assert.Equal(t, "app:email_change_index", prefixed.indexKey())
}
