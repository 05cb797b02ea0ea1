/*
 * @module service/report/storage_test
 * @description 本地存储后端单元测试,覆盖读写删除与目录穿越防护
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 临时目录建存储 -> 读写断言 -> 非法引用断言
 * @rules 引用只能是相对键;含 .. 或绝对路径一律拒绝
 * @dependencies testing, stretchr/testify
 * @refs storage.go
 */

package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStore_创建子目录(t *testing.T) {
	baseDir := t.TempDir()

	_, err := NewLocalStore(baseDir)
	require.NoError(t, err)

	for _, sub := range []string{"reports", "photos", "temp"} {
		info, err := os.Stat(filepath.Join(baseDir, sub))
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir())
	}
}

func TestLocalStore_保存读取删除(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("bin_id,zone\nA-01-01,A\n")
	require.NoError(t, store.Save(ctx, "reports/2025/a.csv", data, "text/csv"))

	loaded, err := store.Load(ctx, "reports/2025/a.csv")
	require.NoError(t, err)
	assert.Equal(t, data, loaded)

	require.NoError(t, store.Delete(ctx, "reports/2025/a.csv"))
	_, err = store.Load(ctx, "reports/2025/a.csv")
	assert.Error(t, err)

	// 删除不存在的文件视为成功
	assert.NoError(t, store.Delete(ctx, "reports/2025/a.csv"))
}

func TestLocalStore_拒绝非法引用(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	illegalKeys := []string{
		"",
		"../escape.csv",
		"reports/../../escape.csv",
		"/etc/passwd",
	}
	for _, key := range illegalKeys {
		err := store.Save(ctx, key, []byte("x"), "text/csv")
		assert.ErrorIs(t, err, ErrInvalidRef, key)

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidRef, key)
	}
}
