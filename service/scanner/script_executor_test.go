/*
 * @module service/scanner/script_executor_test
 * @description 转换脚本执行器单元测试,覆盖编译缓存、参数注入与错误传播
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 脚本文本 -> 执行 -> 结果与缓存断言
 * @rules 同一脚本内容复用编译结果;脚本变更按哈希自动失效
 * @dependencies testing, stretchr/testify
 * @refs script_executor.go
 */

package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptExecutor_执行与缓存(t *testing.T) {
	executor := NewScriptExecutor()

	script := `return map[string]interface{}{"bin_id": "A-01-01"}, nil`
	result, err := executor.Execute(script, map[string]interface{}{})
	require.NoError(t, err)

	fields, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "A-01-01", fields["bin_id"])

	// 同一脚本复用缓存
	_, err = executor.Execute(script, map[string]interface{}{})
	require.NoError(t, err)
	stats := executor.CacheStats()
	assert.Equal(t, 1, stats["cached_scripts"])

	// 内容变更产生新缓存项
	_, err = executor.Execute(script+" // v2", map[string]interface{}{})
	require.NoError(t, err)
	stats = executor.CacheStats()
	assert.Equal(t, 2, stats["cached_scripts"])

	executor.ClearCache()
	stats = executor.CacheStats()
	assert.Equal(t, 0, stats["cached_scripts"])
}

func TestScriptExecutor_参数注入(t *testing.T) {
	executor := NewScriptExecutor()

	script := `return map[string]interface{}{"echo": topic + "|" + payload}, nil`
	result, err := executor.Execute(script, map[string]interface{}{
		"topic":   "warehouse/scan/zone1",
		"payload": `{"bin_id":"A-01-01"}`,
	})
	require.NoError(t, err)

	fields := result.(map[string]interface{})
	assert.Equal(t, `warehouse/scan/zone1|{"bin_id":"A-01-01"}`, fields["echo"])
}

func TestScriptExecutor_解析变量注入(t *testing.T) {
	executor := NewScriptExecutor()

	script := `return map[string]interface{}{"bin_id": parsed["loc"]}, nil`
	result, err := executor.Execute(script, map[string]interface{}{
		"parsed": map[string]interface{}{"loc": "B-02-02"},
	})
	require.NoError(t, err)

	fields := result.(map[string]interface{})
	assert.Equal(t, "B-02-02", fields["bin_id"])
}

func TestScriptExecutor_脚本返回错误(t *testing.T) {
	executor := NewScriptExecutor()

	_, err := executor.Execute(`return nil, fmt.Errorf("报文解析失败")`, map[string]interface{}{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "报文解析失败")
}

func TestScriptExecutor_编译失败(t *testing.T) {
	executor := NewScriptExecutor()

	_, err := executor.Execute("return map[", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "编译失败")

	// 编译失败的脚本不进缓存
	stats := executor.CacheStats()
	assert.Equal(t, 0, stats["cached_scripts"])
}

func TestScriptExecutor_Validate(t *testing.T) {
	executor := NewScriptExecutor()

	assert.NoError(t, executor.Validate(`return map[string]interface{}{}, nil`))
	assert.Error(t, executor.Validate("return map["))
}
