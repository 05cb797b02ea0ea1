/**
 * @module encoding
 * @description 字符编码工具模块,负责旧系统导出 CSV 的 GBK 识别与转码、BOM 处理
 * @architecture 工具函数模式,提供静态转换方法集合
 * @stateFlow 无状态转换:输入字节 -> 编码识别 -> UTF-8 输出
 * @rules
 *   - 导入数据一律先归一化为 UTF-8 再解析
 *   - 识别失败不报错,按原样返回,交由上层按行处理
 * @dependencies
 *   - golang.org/x/text: GBK 编解码
 *   - unicode/utf8: UTF-8 合法性检查
 * @refs
 *   - service/ingest/*: CSV 导入
 *   - service/report/*: CSV 报表导出
 */

package utils

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// utf8BOM UTF-8 字节序标记,Excel 导出的 CSV 常见
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StripBOM 去除 UTF-8 BOM 前缀
func StripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// WithUTF8BOM 为导出数据添加 BOM,保证 Excel 直接打开不乱码
func WithUTF8BOM(data []byte) []byte {
	if bytes.HasPrefix(data, utf8BOM) {
		return data
	}
	out := make([]byte, 0, len(utf8BOM)+len(data))
	out = append(out, utf8BOM...)
	return append(out, data...)
}

// EnsureUTF8 将输入归一化为 UTF-8
// 先去 BOM;已是合法 UTF-8 则原样返回,否则按 GBK 解码(旧 WMS 导出格式)
// GBK 解码失败时返回去 BOM 后的原始数据和错误,由调用方决定如何降级
func EnsureUTF8(data []byte) ([]byte, error) {
	data = StripBOM(data)
	if utf8.Valid(data) {
		return data, nil
	}

	decoder := simplifiedchinese.GBK.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return data, err
	}
	return result, nil
}

// EncodeGBK 将 UTF-8 转为 GBK,兼容只认 GBK 的下游系统
func EncodeGBK(data []byte) ([]byte, error) {
	encoder := simplifiedchinese.GBK.NewEncoder()
	result, _, err := transform.Bytes(encoder, data)
	if err != nil {
		return nil, err
	}
	return result, nil
}
