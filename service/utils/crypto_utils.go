/**
 * @module crypto_utils
 * @description 加密工具模块,提供 API Key 随机生成、哈希与常量时间比较
 * @architecture 工具函数模式,无状态方法集合
 * @stateFlow 无状态:输入 -> 算法 -> 输出
 * @rules
 *   - 密钥生成使用 crypto/rand,禁止 math/rand
 *   - 明文比较一律走常量时间比较
 * @dependencies
 *   - crypto/rand: 安全随机数
 *   - crypto/sha1: 脚本缓存键
 * @refs
 *   - service/access/*: API Key 管理
 *   - service/scanner/*: 转换脚本缓存
 */

package utils

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// GenerateRandomHex 生成 length 个十六进制字符的随机串,length 须为偶数
func GenerateRandomHex(length int) (string, error) {
	if length <= 0 || length%2 != 0 {
		return "", fmt.Errorf("非法长度: %d", length)
	}
	buf := make([]byte, length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机数失败: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SHA1Hex 计算 SHA1 摘要的十六进制表示,用作脚本缓存键
func SHA1Hex(data string) string {
	sum := sha1.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}

// SecureCompare 常量时间比较两个字符串
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
