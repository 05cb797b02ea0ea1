/*
 * @module service/rate_limiter/redis_rate_limiter_test
 * @description Redis限流器单元测试,需要本地Redis,不可用时跳过
 * @architecture 测试层
 * @documentReference ai_docs/rate_limit_design.md
 */

package rate_limiter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis 设置测试用Redis环境,Redis不可用时跳过测试
func setupTestRedis(t *testing.T) *RedisRateLimiter {
	limiter, err := NewRedisRateLimiter()
	if err != nil {
		t.Skipf("跳过测试: Redis不可用: %v", err)
	}
	require.NotNil(t, limiter)

	// 清理测试数据
	ctx := context.Background()
	limiter.client.FlushDB(ctx)

	return limiter
}

func TestCheckSingleRule_FirstRequest(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := GlobalRule(60, 10)

	result, err := limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "第一次请求应该被允许")
	assert.Equal(t, 10, result.Limit)
	assert.Equal(t, 9, result.Remaining)
	assert.Equal(t, LimitTypeGlobal, result.RateLimitType)
}

func TestCheckSingleRule_RateLimited(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := ApiKeyRule("test-key-123", 10, 3)

	// 用满配额
	for i := 0; i < 3; i++ {
		result, err := limiter.checkSingleRule(ctx, rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "第%d次请求应该被允许", i+1)
	}

	// 第4次触发限流
	result, err := limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "超出配额后应该被限流")
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, LimitTypeApiKey, result.RateLimitType)
}

func TestCheckRateLimit_MultiLayer(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rules := []RateLimitRule{
		GlobalRule(60, 100),
		ApiKeyRule("key-abc", 60, 50),
		EndpointRule("snapshot_upload", 60, 2),
	}

	// 接口层配额最小,先触发
	for i := 0; i < 2; i++ {
		result, err := limiter.CheckRateLimit(ctx, rules)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.CheckRateLimit(ctx, rules)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, LimitTypeEndpoint, result.RateLimitType, "应该是接口层先超限")
}

func TestCheckRateLimit_NoRules(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	result, err := limiter.CheckRateLimit(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "none", result.RateLimitType)
}

func TestSortRulesByPriority(t *testing.T) {
	limiter := &RedisRateLimiter{}

	rules := []RateLimitRule{
		GlobalRule(60, 100),
		EndpointRule("import", 60, 10),
		ApiKeyRule("key-1", 60, 50),
	}

	sorted := limiter.sortRulesByPriority(rules)
	require.Len(t, sorted, 3)
	assert.Equal(t, LimitTypeEndpoint, sorted[0].Type)
	assert.Equal(t, LimitTypeApiKey, sorted[1].Type)
	assert.Equal(t, LimitTypeGlobal, sorted[2].Type)
}

func TestBuildRateLimitKey(t *testing.T) {
	limiter := &RedisRateLimiter{}

	globalKey := limiter.buildRateLimitKey(LimitTypeGlobal, "", 60)
	assert.Contains(t, globalKey, "rate_limit:global:")

	keyedKey := limiter.buildRateLimitKey(LimitTypeApiKey, "abc", 60)
	assert.Contains(t, keyedKey, "rate_limit:api_key:abc:")

	// 同窗口内Key稳定
	again := limiter.buildRateLimitKey(LimitTypeApiKey, "abc", 60)
	assert.Equal(t, keyedKey, again)
}

func TestCheckRateLimit_Concurrent(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := EndpointRule("report", 30, 20)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	// 并发50次请求,配额20,Lua脚本保证恰好放行20次
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.checkSingleRule(ctx, rule)
			if err != nil {
				return
			}
			if result.Allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, allowedCount, "原子计数下应恰好放行20次")
}

func TestResetRateLimit(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := ApiKeyRule("reset-key", 60, 1)

	result, err := limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	require.NoError(t, limiter.ResetRateLimit(ctx, rule))

	result, err = limiter.checkSingleRule(ctx, rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "重置后应恢复配额")
}

func TestGetStats(t *testing.T) {
	limiter := setupTestRedis(t)
	defer limiter.Close()

	ctx := context.Background()
	rule := EndpointRule("import", 60, 10)

	for i := 0; i < 4; i++ {
		_, err := limiter.checkSingleRule(ctx, rule)
		require.NoError(t, err)
	}

	stats, err := limiter.GetStats(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, 4, stats["current"])
	assert.Equal(t, 6, stats["remaining"])
	assert.Equal(t, LimitTypeEndpoint, stats["type"])
}

func BenchmarkCheckSingleRule(b *testing.B) {
	limiter, err := NewRedisRateLimiter()
	if err != nil {
		b.Skipf("跳过基准测试: Redis不可用: %v", err)
	}
	defer limiter.Close()

	ctx := context.Background()
	rule := GlobalRule(60, 1000000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := limiter.checkSingleRule(ctx, rule); err != nil {
			b.Fatal(err)
		}
	}
}
