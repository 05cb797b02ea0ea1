/*
 * @module api/middleware/rate_limit
 * @description 限流中间件,按全局、API Key、接口类别三层检查请求频率
 * @architecture 中间件模式 - HTTP请求拦截
 * @documentReference ai_docs/rate_limit_design.md
 * @stateFlow 构造限流规则 -> Redis计数检查 -> 超限返回429 -> 下一个处理器
 * @rules Redis不可用时放行请求(fail-open),限流是保护手段而非强一致约束
 * @dependencies net/http, strconv
 * @refs service/rate_limiter/redis_rate_limiter.go, api/routes.go
 */

package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"warehouse-service/service/rate_limiter"

	"github.com/go-chi/render"
)

// 接口类别,快照上报与报表生成是高频或高开销接口,单独限流
const (
	endpointCategorySnapshot = "snapshot_upload"
	endpointCategoryImport   = "import"
	endpointCategoryReport   = "report"
)

// RateLimitMiddleware 限流中间件
type RateLimitMiddleware struct {
	limiter *rate_limiter.RedisRateLimiter

	globalWindow   int
	globalMax      int
	apiKeyWindow   int
	apiKeyMax      int
	endpointWindow int
	endpointMax    map[string]int
}

// NewRateLimitMiddleware 创建限流中间件实例,limiter为nil时所有请求直接放行
func NewRateLimitMiddleware(limiter *rate_limiter.RedisRateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:        limiter,
		globalWindow:   getEnvInt("RATE_LIMIT_GLOBAL_WINDOW", 60),
		globalMax:      getEnvInt("RATE_LIMIT_GLOBAL_MAX", 1200),
		apiKeyWindow:   getEnvInt("RATE_LIMIT_APIKEY_WINDOW", 60),
		apiKeyMax:      getEnvInt("RATE_LIMIT_APIKEY_MAX", 300),
		endpointWindow: getEnvInt("RATE_LIMIT_ENDPOINT_WINDOW", 60),
		endpointMax: map[string]int{
			endpointCategorySnapshot: getEnvInt("RATE_LIMIT_SNAPSHOT_MAX", 120),
			endpointCategoryImport:   getEnvInt("RATE_LIMIT_IMPORT_MAX", 10),
			endpointCategoryReport:   getEnvInt("RATE_LIMIT_REPORT_MAX", 6),
		},
	}
}

// Middleware 限流中间件处理函数
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 未配置Redis时不做限流
		if m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		rules := m.buildRules(r)
		if len(rules) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.limiter.CheckRateLimit(r.Context(), rules)
		if err != nil {
			// Redis故障时放行,限流不应成为单点
			slog.Warn("限流检查失败,放行请求", "path", r.URL.Path, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, result)

		if !result.Allowed {
			m.respondTooManyRequests(w, r, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// buildRules 按请求构造限流规则:全局 + API Key + 接口类别
func (m *RateLimitMiddleware) buildRules(r *http.Request) []rate_limiter.RateLimitRule {
	rules := []rate_limiter.RateLimitRule{
		rate_limiter.GlobalRule(m.globalWindow, m.globalMax),
	}

	if keyInfo, ok := GetApiKeyFromContext(r.Context()); ok {
		rules = append(rules, rate_limiter.ApiKeyRule(keyInfo.ID, m.apiKeyWindow, m.apiKeyMax))
	}

	if category := classifyEndpoint(r); category != "" {
		rules = append(rules, rate_limiter.EndpointRule(category, m.endpointWindow, m.endpointMax[category]))
	}

	return rules
}

// classifyEndpoint 识别需要单独限流的接口类别,其余返回空
func classifyEndpoint(r *http.Request) string {
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && path == "/snapshots":
		return endpointCategorySnapshot
	case strings.HasPrefix(path, "/import/"):
		return endpointCategoryImport
	case strings.HasPrefix(path, "/reports/"):
		return endpointCategoryReport
	default:
		return ""
	}
}

// setRateLimitHeaders 写入限流信息响应头
func setRateLimitHeaders(w http.ResponseWriter, result *rate_limiter.RateLimitResult) {
	if result.Limit < 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))
}

// respondTooManyRequests 返回429限流响应
func (m *RateLimitMiddleware) respondTooManyRequests(w http.ResponseWriter, r *http.Request, result *rate_limiter.RateLimitResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	render.JSON(w, r, map[string]interface{}{
		"status":   http.StatusTooManyRequests,
		"message":  result.Message,
		"error":    "Too Many Requests",
		"reset_at": result.ResetAt,
	})
}

// getEnvInt 获取整数环境变量,不存在或非法时返回默认值
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
