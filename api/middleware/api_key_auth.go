/*
 * @module api/middleware/api_key_auth
 * @description API Key鉴权中间件,验证请求携带的访问凭证
 * @architecture 中间件模式 - HTTP请求拦截和验证
 * @documentReference ai_docs/access_control.md
 * @stateFlow Key提取 -> 缓存查询 -> bcrypt校验 -> 上下文注入 -> 下一个处理器
 * @rules 统一鉴权、安全验证、错误处理;bcrypt比对开销大,校验结果短期缓存
 * @dependencies net/http, strings, context
 * @refs service/access/access_service.go, api/routes.go
 */

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"warehouse-service/service/access"
	"warehouse-service/service/models"

	"github.com/go-chi/render"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	// ApiKeyInfoKey API Key信息在上下文中的键
	ApiKeyInfoKey ContextKey = "api_key_info"
)

// ApiKeyVerifier API Key校验接口
type ApiKeyVerifier interface {
	VerifyApiKey(keyValue string) (*models.ApiKey, error)
}

// ApiKeyAuthMiddleware API Key认证中间件
type ApiKeyAuthMiddleware struct {
	verifier ApiKeyVerifier
	// 校验结果缓存,避免每个请求都执行bcrypt比对
	cache      map[string]*cacheEntry
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	// 白名单路径(不需要鉴权)
	whitelistPaths []string
}

// cacheEntry 缓存条目
type cacheEntry struct {
	keyInfo   *models.ApiKey
	expiresAt time.Time
}

// NewApiKeyAuthMiddleware 创建API Key认证中间件实例
func NewApiKeyAuthMiddleware(verifier ApiKeyVerifier) *ApiKeyAuthMiddleware {
	return &ApiKeyAuthMiddleware{
		verifier: verifier,
		cache:    make(map[string]*cacheEntry),
		cacheTTL: 5 * time.Minute, // 缓存5分钟
		whitelistPaths: []string{
			"/health",  // 健康检查
			"/ready",   // 就绪检查
			"/metrics", // Prometheus指标
			"/swagger", // Swagger文档
			"/sse",     // 浏览器EventSource无法携带自定义请求头
		},
	}
}

// AddWhitelistPath 添加白名单路径
func (m *ApiKeyAuthMiddleware) AddWhitelistPath(path string) {
	m.whitelistPaths = append(m.whitelistPaths, path)
}

// IsWhitelistPath 检查路径是否在白名单中
func (m *ApiKeyAuthMiddleware) IsWhitelistPath(path string) bool {
	for _, whitelistPath := range m.whitelistPaths {
		// 支持前缀匹配
		if strings.HasPrefix(path, whitelistPath) {
			return true
		}
	}
	return false
}

// Middleware 认证中间件处理函数
func (m *ApiKeyAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 检查是否在白名单中
		if m.IsWhitelistPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		keyValue := extractApiKey(r)
		if keyValue == "" {
			m.respondUnauthorized(w, r, "缺少API Key,请通过Authorization头或X-API-Key头提供")
			return
		}

		// 先检查缓存
		if keyInfo := m.getFromCache(keyValue); keyInfo != nil {
			ctx := context.WithValue(r.Context(), ApiKeyInfoKey, keyInfo)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// 缓存未命中,走bcrypt校验
		keyInfo, err := m.verifier.VerifyApiKey(keyValue)
		if err != nil {
			m.respondUnauthorized(w, r, verifyFailMessage(err))
			return
		}

		// 保存到缓存
		m.saveToCache(keyValue, keyInfo)

		ctx := context.WithValue(r.Context(), ApiKeyInfoKey, keyInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractApiKey 从请求中提取API Key,支持Bearer Token与X-API-Key两种方式
func extractApiKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// 扫描工位等嵌入式客户端通常使用X-API-Key头
	return r.Header.Get("X-API-Key")
}

// verifyFailMessage 将校验错误转为对外的提示信息
func verifyFailMessage(err error) string {
	switch {
	case errors.Is(err, access.ErrApiKeyExpired):
		return "API Key已过期"
	case errors.Is(err, access.ErrApiKeyInvalid), errors.Is(err, access.ErrApiKeyNotFound):
		return "无效的API Key"
	default:
		return "API Key验证失败"
	}
}

// getFromCache 从缓存中获取Key信息
func (m *ApiKeyAuthMiddleware) getFromCache(keyValue string) *models.ApiKey {
	m.cacheMutex.RLock()
	defer m.cacheMutex.RUnlock()

	entry, exists := m.cache[keyValue]
	if !exists {
		return nil
	}

	// 检查是否过期
	if time.Now().After(entry.expiresAt) {
		// 异步删除过期缓存
		go m.removeFromCache(keyValue)
		return nil
	}

	return entry.keyInfo
}

// saveToCache 保存校验结果到缓存
func (m *ApiKeyAuthMiddleware) saveToCache(keyValue string, keyInfo *models.ApiKey) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	// 缓存过期时间取Key过期时间和缓存TTL的较小值
	cacheExpiry := time.Now().Add(m.cacheTTL)
	if keyInfo.ExpiresAt != nil && keyInfo.ExpiresAt.Before(cacheExpiry) {
		cacheExpiry = *keyInfo.ExpiresAt
	}

	m.cache[keyValue] = &cacheEntry{
		keyInfo:   keyInfo,
		expiresAt: cacheExpiry,
	}
}

// removeFromCache 从缓存中删除Key
func (m *ApiKeyAuthMiddleware) removeFromCache(keyValue string) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	delete(m.cache, keyValue)
}

// InvalidateKey 使某个Key的缓存立即失效,停用或删除Key后调用
func (m *ApiKeyAuthMiddleware) InvalidateKey(keyID string) {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	for keyValue, entry := range m.cache {
		if entry.keyInfo.ID == keyID {
			delete(m.cache, keyValue)
		}
	}
}

// ClearExpiredCache 清理过期缓存(可以定期调用)
func (m *ApiKeyAuthMiddleware) ClearExpiredCache() int {
	m.cacheMutex.Lock()
	defer m.cacheMutex.Unlock()

	now := time.Now()
	clearedCount := 0

	for keyValue, entry := range m.cache {
		if now.After(entry.expiresAt) {
			delete(m.cache, keyValue)
			clearedCount++
		}
	}

	return clearedCount
}

// GetCacheStats 获取缓存统计信息
func (m *ApiKeyAuthMiddleware) GetCacheStats() map[string]interface{} {
	m.cacheMutex.RLock()
	defer m.cacheMutex.RUnlock()

	stats := map[string]interface{}{
		"total_cached": len(m.cache),
		"cache_ttl":    m.cacheTTL.String(),
	}

	now := time.Now()
	validCount := 0
	expiredCount := 0

	for _, entry := range m.cache {
		if now.After(entry.expiresAt) {
			expiredCount++
		} else {
			validCount++
		}
	}

	stats["valid_cached"] = validCount
	stats["expired_cached"] = expiredCount

	return stats
}

// respondUnauthorized 返回401未授权响应
func (m *ApiKeyAuthMiddleware) respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	render.JSON(w, r, map[string]interface{}{
		"status":  http.StatusUnauthorized,
		"message": message,
		"error":   "Unauthorized",
	})
}

// GetApiKeyFromContext 从上下文中获取API Key信息
func GetApiKeyFromContext(ctx context.Context) (*models.ApiKey, bool) {
	keyInfo, ok := ctx.Value(ApiKeyInfoKey).(*models.ApiKey)
	return keyInfo, ok
}
