/*
 * @module service/distributed_lock/local_lock
 * @description 进程内锁实现,Redis不可用时的单实例退化方案
 * @architecture 工具层 - 提供锁能力
 * @documentReference ai_docs/reconcile_design.md
 * @stateFlow 获取锁 -> 执行任务 -> 释放锁/自动过期
 * @rules 仅在单实例部署下保证互斥,多副本部署必须使用Redis锁
 * @dependencies 无
 * @refs service/init.go
 */

package distributed_lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLock 进程内锁,接口与Redis锁一致
type LocalLock struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> 过期时间
}

// NewLocalLock 创建进程内锁
func NewLocalLock() *LocalLock {
	return &LocalLock{
		locks: make(map[string]time.Time),
	}
}

// TryLock 尝试获取锁,已过期的锁视为未持有
func (l *LocalLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expireAt, exists := l.locks[key]; exists && time.Now().Before(expireAt) {
		return false, nil
	}

	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// Unlock 释放锁
func (l *LocalLock) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, key)
	return nil
}

// Refresh 刷新锁的过期时间
func (l *LocalLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.locks[key]; !exists {
		return fmt.Errorf("锁不存在")
	}
	l.locks[key] = time.Now().Add(ttl)
	return nil
}

// IsLocked 检查锁是否存在且未过期
func (l *LocalLock) IsLocked(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expireAt, exists := l.locks[key]
	return exists && time.Now().Before(expireAt), nil
}
