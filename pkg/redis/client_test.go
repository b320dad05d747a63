package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnithishraja/klinic-sub000/pkg/config"
)

func TestIncrWithTTLExpiresOnFirstHitOnly(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for want := int64(1); want <= 3; want++ {
		count, err := client.IncrWithTTL(ctx, "klinic:rate_limit:ip:login:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
	require.Len(t, mock.expireCalls, 1)
	assert.Equal(t, time.Minute, mock.expireCalls[0].ttl)

	_, err := client.IncrWithTTL(ctx, "no-ttl", 0)
	require.NoError(t, err)
	assert.Len(t, mock.expireCalls, 1)
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestPublishRecordsMessage(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	require.NoError(t, client.Publish(context.Background(), "klinic:channel:order-status", `{"status":"delivered"}`))
	require.Len(t, mock.published, 1)
	assert.Equal(t, "klinic:channel:order-status", mock.published[0].channel)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	assert.Error(t, client.Ping(context.Background()))
	_, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.Error(t, client.Publish(context.Background(), "c", "m"))
	_, err = client.Subscribe(context.Background(), "c")
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "klinic:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "klinic:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "klinic:session:access:abc", client.AccessSessionKey("abc"))
	assert.Equal(t, "klinic:lock:cron", client.LockKey("cron"))
	assert.Equal(t, "klinic:channel:order-status", client.ChannelName("order-status"))
	assert.Equal(t, "klinic:idempotency:scope", client.IdempotencyKey("scope", " "), "empty parts are skipped")
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
	published   []publishCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

type publishCall struct {
	channel string
	message any
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	m.published = append(m.published, publishCall{channel: channel, message: message})
	return redis.NewIntResult(1, nil)
}
