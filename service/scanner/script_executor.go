/*
 * @module service/scanner/script_executor
 * @description 厂商报文转换脚本执行器,基于 yaegi 解释执行,按脚本哈希缓存编译结果
 * @architecture 解释器模式 - 脚本编译缓存 + 参数注入
 * @documentReference ai_docs/scanner_feed_design.md
 * @stateFlow 脚本哈希 -> 缓存查找 -> 编译 -> 注入参数执行 -> 归一化结果
 * @rules 脚本必须定义 Run 函数;编译结果按内容哈希缓存,脚本变更自动失效
 * @dependencies github.com/traefik/yaegi
 * @refs service/scanner/scanner_service.go
 */

package scanner

import (
	"fmt"
	"sync"
	"time"

	"warehouse-service/service/utils"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// CompiledScript 编译后的脚本
type CompiledScript struct {
	fn       func(map[string]interface{}) (interface{}, error)
	compiled time.Time
	hash     string
}

// ScriptExecutor 报文转换脚本执行器
type ScriptExecutor struct {
	mu    sync.RWMutex
	cache map[string]*CompiledScript
}

// NewScriptExecutor 创建脚本执行器
func NewScriptExecutor() *ScriptExecutor {
	return &ScriptExecutor{
		cache: make(map[string]*CompiledScript),
	}
}

// Execute 执行转换脚本
// params 注入 topic、payload、parsed 三个变量,脚本返回快照字段映射
func (e *ScriptExecutor) Execute(script string, params map[string]interface{}) (interface{}, error) {
	hash := utils.SHA1Hex(script)

	e.mu.RLock()
	compiled, ok := e.cache[hash]
	e.mu.RUnlock()

	if !ok {
		var err error
		compiled, err = e.compile(script, hash)
		if err != nil {
			return nil, fmt.Errorf("脚本编译失败: %w", err)
		}

		e.mu.Lock()
		e.cache[hash] = compiled
		e.mu.Unlock()
	}

	return compiled.fn(params)
}

// compile 编译脚本为可执行函数
func (e *ScriptExecutor) compile(script, hash string) (*CompiledScript, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	// 包装脚本:要求脚本实现一个 Run 函数,预提取常用变量
	wrapped := fmt.Sprintf(`
package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func Run(params map[string]interface{}) (interface{}, error) {
	var topic string
	if v, exists := params["topic"]; exists {
		topic, _ = v.(string)
	}

	var payload string
	if v, exists := params["payload"]; exists {
		payload, _ = v.(string)
	}

	var parsed map[string]interface{}
	if v, exists := params["parsed"]; exists {
		parsed, _ = v.(map[string]interface{})
	}

	_ = topic
	_ = payload
	_ = parsed

	// 脚本内容
%s
}
`, script)

	_, err := i.Eval(wrapped)
	if err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	v, err := i.Eval("Run")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Run 函数: %w", err)
	}

	runFunc, ok := v.Interface().(func(map[string]interface{}) (interface{}, error))
	if !ok {
		return nil, fmt.Errorf("Run 函数签名必须是 func(map[string]interface{}) (interface{}, error)")
	}

	return &CompiledScript{
		fn:       runFunc,
		compiled: time.Now(),
		hash:     hash,
	}, nil
}

// Validate 校验脚本可编译,保存配置前调用
func (e *ScriptExecutor) Validate(script string) error {
	_, err := e.compile(script, utils.SHA1Hex(script))
	return err
}

// ClearCache 清空编译缓存
func (e *ScriptExecutor) ClearCache() {
	e.mu.Lock()
	e.cache = make(map[string]*CompiledScript)
	e.mu.Unlock()
}

// CacheStats 缓存统计
func (e *ScriptExecutor) CacheStats() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	hashes := make([]string, 0, len(e.cache))
	for hash := range e.cache {
		hashes = append(hashes, hash)
	}
	return map[string]interface{}{
		"cached_scripts": len(e.cache),
		"hashes":         hashes,
	}
}
